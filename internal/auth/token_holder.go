package auth

import "sync"

// TokenHolder stores the current session bearer token. The gameapi client
// reads it through Provider on every request, so a re-login transparently
// rotates the token for in-flight polling.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder returns an empty holder.
func NewTokenHolder() *TokenHolder {
	return &TokenHolder{}
}

// Set replaces the stored token.
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// Token returns the stored token, empty when not logged in.
func (h *TokenHolder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Provider adapts the holder to the gameapi token callback shape.
func (h *TokenHolder) Provider() func() string {
	return h.Token
}
