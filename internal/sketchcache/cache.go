// Package sketchcache fronts the expensive, idempotent sketch-generation call
// with a durable TTL cache and in-memory request coalescing. At most one
// network call per distinct prompt is ever outstanding, no matter how many
// callers ask concurrently; failures propagate to every coalesced caller and
// are never written to the durable store.
package sketchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTTL = 24 * time.Hour

var (
	errMissingStore     = errors.New("sketchcache: store is required")
	errMissingGenerator = errors.New("sketchcache: generator is required")
	// ErrEmptyPrompt indicates a generation was requested without a prompt.
	ErrEmptyPrompt = errors.New("sketchcache: prompt must not be empty")

	noOpLogger = zap.NewNop()
)

// Result is the generation payload handed to consumers: the progressively
// revealed step images, the final composite and accompanying metadata.
type Result struct {
	Steps      []string          `json:"steps"`
	FinalImage string            `json:"final_image"`
	StepCount  int               `json:"step_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Options carries the tunables forwarded to the generation endpoint. Two
// calls with the same prompt coalesce even when their options differ; the
// prompt is the cache identity, matching the idempotent backend contract.
type Options struct {
	MaxSteps    int
	SortMethod  string
	ModelConfig map[string]any
}

// GenerateFunc performs the actual remote generation. The cache treats it as
// an opaque, idempotent procedure.
type GenerateFunc func(ctx context.Context, prompt string, opts Options) (*Result, error)

// CacheConfig wires the cache's dependencies. Clock and TTL exist so tests
// control time instead of sleeping through a 24 hour window.
type CacheConfig struct {
	Store     Store
	Generator GenerateFunc
	Clock     func() time.Time
	TTL       time.Duration
	Logger    *zap.Logger
}

// Cache deduplicates and persists sketch generations per prompt.
type Cache struct {
	store  Store
	gen    GenerateFunc
	clock  func() time.Time
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done   chan struct{}
	result *Result
	err    error
}

// NewCache constructs a Cache, validating required dependencies.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Generator == nil {
		return nil, errMissingGenerator
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Cache{
		store:    cfg.Store,
		gen:      cfg.Generator,
		clock:    clock,
		ttl:      ttl,
		logger:   logger,
		inflight: make(map[string]*inflightCall),
	}, nil
}

// Get returns the cached result for a prompt, or (nil, nil) on a miss. An
// entry older than the TTL is treated as absent and deleted as a side effect,
// never returned.
func (c *Cache) Get(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	entry, err := c.store.Load(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("sketchcache: load failed: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	insertedAt := time.Unix(entry.CreatedAtSeconds, 0)
	if c.clock().After(insertedAt.Add(c.ttl)) {
		if err := c.store.Delete(ctx, prompt); err != nil {
			c.logger.Warn("failed to purge expired sketch entry",
				zap.String("prompt", prompt),
				zap.Error(err))
		}
		return nil, nil
	}

	var result Result
	if err := json.Unmarshal([]byte(entry.PayloadJSON), &result); err != nil {
		// corrupt row: drop it and report a miss so the prompt regenerates
		if deleteErr := c.store.Delete(ctx, prompt); deleteErr != nil {
			c.logger.Warn("failed to purge corrupt sketch entry",
				zap.String("prompt", prompt),
				zap.Error(deleteErr))
		}
		return nil, nil
	}
	return &result, nil
}

// Generate returns the sketch for a prompt, preferring the durable cache,
// then an already in-flight request for the same prompt, and only then the
// network. A successful generation is written back to the store; a failed one
// leaves the prompt eligible for immediate retry.
func (c *Cache) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	cached, err := c.Get(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[prompt]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[prompt] = call
	c.mu.Unlock()

	result, genErr := c.gen(ctx, prompt, opts)
	call.result = result
	call.err = genErr

	c.mu.Lock()
	delete(c.inflight, prompt)
	c.mu.Unlock()
	close(call.done)

	if genErr != nil {
		c.logger.Warn("sketch generation failed",
			zap.String("prompt", prompt),
			zap.Error(genErr))
		return nil, genErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("failed to encode sketch payload",
			zap.String("prompt", prompt),
			zap.Error(err))
		return result, nil
	}
	entry := Entry{
		Prompt:           prompt,
		PayloadJSON:      string(payload),
		CreatedAtSeconds: c.clock().Unix(),
	}
	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.Warn("failed to persist sketch payload",
			zap.String("prompt", prompt),
			zap.Error(err))
	}
	return result, nil
}

// InflightCount reports how many prompts currently have an outstanding
// generation call, primarily for tests and diagnostics.
func (c *Cache) InflightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}
