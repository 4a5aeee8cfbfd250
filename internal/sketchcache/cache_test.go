package sketchcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	saves   int
	deletes int
	loadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (m *memoryStore) Load(_ context.Context, prompt string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	entry, ok := m.entries[prompt]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *memoryStore) Save(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.entries[entry.Prompt] = entry
	return nil
}

func (m *memoryStore) Delete(_ context.Context, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.entries, prompt)
	return nil
}

func (m *memoryStore) has(prompt string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[prompt]
	return ok
}

func fixedResult(prompt string) *Result {
	return &Result{
		Steps:      []string{"step-1", "step-2"},
		FinalImage: "final-" + prompt,
		StepCount:  2,
	}
}

func mustCache(t *testing.T, cfg CacheConfig) *Cache {
	t.Helper()
	cache, err := NewCache(cfg)
	if err != nil {
		t.Fatalf("failed to build cache: %v", err)
	}
	return cache
}

func TestNewCacheRequiresDependencies(t *testing.T) {
	if _, err := NewCache(CacheConfig{Generator: func(context.Context, string, Options) (*Result, error) { return nil, nil }}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewCache(CacheConfig{Store: newMemoryStore()}); err == nil {
		t.Fatalf("expected error without generator")
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	cache := mustCache(t, CacheConfig{
		Store:     newMemoryStore(),
		Generator: func(context.Context, string, Options) (*Result, error) { return fixedResult("x"), nil },
	})

	if _, err := cache.Generate(context.Background(), "   ", Options{}); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if _, err := cache.Get(context.Background(), ""); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt from Get, got %v", err)
	}
}

func TestGenerateCachesAndServesWithinTTL(t *testing.T) {
	store := newMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	var calls atomic.Int64

	cache := mustCache(t, CacheConfig{
		Store: store,
		Generator: func(_ context.Context, prompt string, _ Options) (*Result, error) {
			calls.Add(1)
			return fixedResult(prompt), nil
		},
		Clock: func() time.Time { return now },
		TTL:   time.Hour,
	})

	first, err := cache.Generate(context.Background(), "cat", Options{})
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if first.FinalImage != "final-cat" {
		t.Fatalf("unexpected result %#v", first)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 network call, got %d", calls.Load())
	}

	// just inside the TTL window: served from the store, no new call
	now = now.Add(time.Hour - time.Second)
	second, err := cache.Generate(context.Background(), "cat", Options{})
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if second.FinalImage != first.FinalImage || calls.Load() != 1 {
		t.Fatalf("expected cache hit, calls=%d", calls.Load())
	}
}

func TestExpiredEntryIsPurgedAndRegenerated(t *testing.T) {
	store := newMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	var calls atomic.Int64

	cache := mustCache(t, CacheConfig{
		Store: store,
		Generator: func(_ context.Context, prompt string, _ Options) (*Result, error) {
			calls.Add(1)
			return fixedResult(prompt), nil
		},
		Clock: func() time.Time { return now },
		TTL:   time.Hour,
	})

	if _, err := cache.Generate(context.Background(), "cat", Options{}); err != nil {
		t.Fatalf("seed generate failed: %v", err)
	}

	// just past the TTL window: the stale row must read as a miss
	now = now.Add(time.Hour + time.Second)
	hit, err := cache.Get(context.Background(), "cat")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if hit != nil {
		t.Fatalf("expired entry must never be returned, got %#v", hit)
	}
	if store.has("cat") {
		t.Fatalf("expired entry should have been purged")
	}

	if _, err := cache.Generate(context.Background(), "cat", Options{}); err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected regeneration after expiry, calls=%d", calls.Load())
	}
}

func TestCorruptEntryReadsAsMiss(t *testing.T) {
	store := newMemoryStore()
	store.entries["cat"] = Entry{
		Prompt:           "cat",
		PayloadJSON:      "{not json",
		CreatedAtSeconds: time.Now().Unix(),
	}

	cache := mustCache(t, CacheConfig{
		Store:     store,
		Generator: func(context.Context, string, Options) (*Result, error) { return fixedResult("cat"), nil },
	})

	hit, err := cache.Get(context.Background(), "cat")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if hit != nil {
		t.Fatalf("corrupt entry should read as a miss")
	}
	if store.has("cat") {
		t.Fatalf("corrupt entry should have been dropped")
	}
}

func TestConcurrentGeneratesCoalesce(t *testing.T) {
	store := newMemoryStore()
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})

	cache := mustCache(t, CacheConfig{
		Store: store,
		Generator: func(_ context.Context, prompt string, _ Options) (*Result, error) {
			if calls.Add(1) == 1 {
				close(entered)
			}
			<-release
			return fixedResult(prompt), nil
		},
	})

	type outcome struct {
		result *Result
		err    error
	}
	results := make(chan outcome, 2)
	run := func() {
		result, err := cache.Generate(context.Background(), "cat", Options{})
		results <- outcome{result: result, err: err}
	}

	go run()
	<-entered
	go run()

	// give the second caller time to park on the in-flight channel
	time.Sleep(50 * time.Millisecond)
	if got := cache.InflightCount(); got != 1 {
		t.Fatalf("expected exactly one in-flight prompt, got %d", got)
	}
	close(release)

	for index := 0; index < 2; index++ {
		got := <-results
		if got.err != nil {
			t.Fatalf("coalesced generate failed: %v", got.err)
		}
		if got.result.FinalImage != "final-cat" {
			t.Fatalf("unexpected coalesced result %#v", got.result)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("both callers should share one network call, got %d", calls.Load())
	}
	if cache.InflightCount() != 0 {
		t.Fatalf("in-flight registry should drain")
	}
}

func TestCoalescedWaiterHonorsContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	cache := mustCache(t, CacheConfig{
		Store: newMemoryStore(),
		Generator: func(_ context.Context, prompt string, _ Options) (*Result, error) {
			close(entered)
			<-release
			return fixedResult(prompt), nil
		},
	})

	go func() {
		_, _ = cache.Generate(context.Background(), "cat", Options{})
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Generate(ctx, "cat", Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	close(release)
}

func TestFailedGenerationIsNotCached(t *testing.T) {
	store := newMemoryStore()
	var calls atomic.Int64
	boom := errors.New("model unavailable")

	cache := mustCache(t, CacheConfig{
		Store: store,
		Generator: func(_ context.Context, prompt string, _ Options) (*Result, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return fixedResult(prompt), nil
		},
	})

	if _, err := cache.Generate(context.Background(), "cat", Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if store.has("cat") {
		t.Fatalf("failures must never be persisted")
	}
	if cache.InflightCount() != 0 {
		t.Fatalf("failed call should clear the in-flight registry")
	}

	// the prompt is immediately retryable
	result, err := cache.Generate(context.Background(), "cat", Options{})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.FinalImage != "final-cat" {
		t.Fatalf("unexpected retry result %#v", result)
	}
	if !store.has("cat") {
		t.Fatalf("successful retry should be persisted")
	}
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("disk on fire")

	cache := mustCache(t, CacheConfig{
		Store:     store,
		Generator: func(context.Context, string, Options) (*Result, error) { return fixedResult("x"), nil },
	})

	if _, err := cache.Get(context.Background(), "cat"); err == nil {
		t.Fatalf("store errors should surface")
	}
}
