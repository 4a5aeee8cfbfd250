// Package gameapi is the typed HTTP client for the draw-and-guess backend.
// It owns transport concerns only: request encoding, the uniform success/
// message envelope, and bearer-token attachment. Payload shaping is left to
// the normalize package and state handling to roomsync.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 15 * time.Second

var (
	errMissingBaseURL = errors.New("gameapi: base URL is required")

	noOpLogger = zap.NewNop()
)

// APIError represents an application-level failure: the server answered, but
// with success=false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "gameapi: request rejected by server"
	}
	return "gameapi: " + e.Message
}

// TokenProvider supplies the current session bearer token; an empty string
// means the request goes out unauthenticated.
type TokenProvider func() string

// ClientConfig wires the client's dependencies.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      TokenProvider
	Logger     *zap.Logger
}

// Client issues requests against the backend described in the room sync
// contract: three read endpoints, one mutation endpoint per action, and the
// sketch-generation call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenProvider
	logger     *zap.Logger
}

// NewClient validates configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("gameapi: invalid base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// AutoLogin resolves a session for the preferred username (which may be
// empty, letting the server assign one) and returns the granted identity and
// bearer token.
func (c *Client) AutoLogin(ctx context.Context, preferred string) (LoginResult, error) {
	var response struct {
		Envelope
		LoginResult
	}
	body := map[string]any{"username": preferred}
	if err := c.doJSON(ctx, http.MethodPost, "/api/user/auto-login", body, &response); err != nil {
		return LoginResult{}, err
	}
	if !response.Success {
		return LoginResult{}, &APIError{Message: response.Message}
	}
	if strings.TrimSpace(response.Username) == "" {
		return LoginResult{}, &APIError{Message: "login response missing username"}
	}
	return response.LoginResult, nil
}

// FetchRoom returns the raw room summary payload for normalization.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (any, error) {
	return c.fetchResource(ctx, roomPath(roomID, ""), "room")
}

// FetchDrawingState returns the raw drawing/game state payload.
func (c *Client) FetchDrawingState(ctx context.Context, roomID string) (any, error) {
	return c.fetchResource(ctx, roomPath(roomID, "/drawing"), "state")
}

// FetchChatMessages returns the raw ordered transcript payload.
func (c *Client) FetchChatMessages(ctx context.Context, roomID string) (any, error) {
	return c.fetchResource(ctx, roomPath(roomID, "/messages"), "messages")
}

// SetReady toggles the caller's readiness flag.
func (c *Client) SetReady(ctx context.Context, roomID, identity string, ready bool) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/ready"), map[string]any{
		"username": identity,
		"ready":    ready,
	})
}

// ConfigureRound sets the target word (and optional clue) for the next round.
func (c *Client) ConfigureRound(ctx context.Context, roomID, identity, targetWord, clue string) (Envelope, error) {
	body := map[string]any{
		"username":    identity,
		"target_word": targetWord,
	}
	if clue != "" {
		body["clue"] = clue
	}
	return c.mutate(ctx, roomPath(roomID, "/round"), body)
}

// SelectDrawer assigns the drawer for the next round.
func (c *Client) SelectDrawer(ctx context.Context, roomID, identity, drawer string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/drawer"), map[string]any{
		"username": identity,
		"drawer":   drawer,
	})
}

// StartRound requests the waiting -> drawing transition.
func (c *Client) StartRound(ctx context.Context, roomID, identity string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/start"), map[string]any{"username": identity})
}

// ResetRound requests a host-triggered reset back to the waiting state.
func (c *Client) ResetRound(ctx context.Context, roomID, identity string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/reset"), map[string]any{"username": identity})
}

// SubmitDrawing uploads the finished drawing for the active round.
func (c *Client) SubmitDrawing(ctx context.Context, roomID, identity, image string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/submit"), map[string]any{
		"username": identity,
		"image":    image,
	})
}

// SendMessage appends a chat message and returns the updated transcript.
func (c *Client) SendMessage(ctx context.Context, roomID, identity, text string) (MessageResponse, error) {
	var response MessageResponse
	body := map[string]any{"username": identity, "text": text}
	if err := c.doJSON(ctx, http.MethodPost, roomPath(roomID, "/messages"), body, &response); err != nil {
		return MessageResponse{}, err
	}
	return response, nil
}

// LeaveRoom removes the caller from the room.
func (c *Client) LeaveRoom(ctx context.Context, roomID, identity string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/leave"), map[string]any{"username": identity})
}

// Guess submits a human guess for the current drawing.
func (c *Client) Guess(ctx context.Context, roomID, identity, text string) (GuessResponse, error) {
	var response GuessResponse
	body := map[string]any{"username": identity, "guess": text}
	if err := c.doJSON(ctx, http.MethodPost, roomPath(roomID, "/guess"), body, &response); err != nil {
		return GuessResponse{}, err
	}
	return response, nil
}

// SkipGuess withdraws the caller from guessing this round.
func (c *Client) SkipGuess(ctx context.Context, roomID, identity string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/guess/skip"), map[string]any{"username": identity})
}

// RequestAIGuess asks the backend to run the AI guess over the current (or
// provided) drawing.
func (c *Client) RequestAIGuess(ctx context.Context, roomID, identity, image string) (Envelope, error) {
	body := map[string]any{"username": identity}
	if image != "" {
		body["image"] = image
	}
	return c.mutate(ctx, roomPath(roomID, "/ai-guess"), body)
}

// SetModelConfig updates the AI model configuration for the room.
func (c *Client) SetModelConfig(ctx context.Context, roomID, identity string, config map[string]any) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/model-config"), map[string]any{
		"username": identity,
		"config":   config,
	})
}

// SyncPreview pushes the drawer's in-progress canvas so other players can
// watch the drawing evolve between polls.
func (c *Client) SyncPreview(ctx context.Context, roomID, identity, image string) (Envelope, error) {
	return c.mutate(ctx, roomPath(roomID, "/preview"), map[string]any{
		"username": identity,
		"image":    image,
	})
}

// GenerateSketch runs one sketch generation. Callers normally go through the
// sketchcache package rather than hitting this directly.
func (c *Client) GenerateSketch(ctx context.Context, request GenerateSketchRequest) (*GenerateSketchResponse, error) {
	var response GenerateSketchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sketch/generate", request, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, &APIError{Message: response.Message}
	}
	return &response, nil
}

// fetchResource runs a GET, unwraps the envelope and returns the named raw
// sub-payload for the normalizer. An application-level failure is reported as
// an *APIError so the refresh cycle counts it as a failed sub-resource.
func (c *Client) fetchResource(ctx context.Context, path, field string) (any, error) {
	var body map[string]any
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	if success, ok := body["success"].(bool); ok && !success {
		message, _ := body["message"].(string)
		return nil, &APIError{Message: message}
	}
	return body[field], nil
}

func (c *Client) mutate(ctx context.Context, path string, body map[string]any) (Envelope, error) {
	var envelope Envelope
	if err := c.doJSON(ctx, http.MethodPost, path, body, &envelope); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gameapi: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gameapi: build request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Debug("request transport failure",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("gameapi: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		message := extractMessage(payload)
		if message == "" {
			message = fmt.Sprintf("unexpected status %d", response.StatusCode)
		}
		return &APIError{Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("gameapi: decode response: %w", err)
	}
	return nil
}

func extractMessage(payload []byte) string {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

func roomPath(roomID, suffix string) string {
	return "/api/rooms/" + url.PathEscape(roomID) + suffix
}
