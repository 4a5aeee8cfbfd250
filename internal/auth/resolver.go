// Package auth resolves and persists the player identity for this client.
// The backend hands out identities via an auto-login call; this package
// remembers the granted username per server so restarts keep the same
// handle, and keeps the session bearer token available to the HTTP client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/gameapi"
)

const guestPrefix = "Player_"

var (
	errMissingLoginClient = errors.New("auth: login client is required")

	noOpLogger = zap.NewNop()
)

// LoginClient is the slice of the backend client the resolver depends on.
type LoginClient interface {
	AutoLogin(ctx context.Context, preferred string) (gameapi.LoginResult, error)
}

// ResolverConfig wires the resolver's dependencies. Database is optional:
// without it identities are still resolved, just not remembered across runs.
type ResolverConfig struct {
	Client    LoginClient
	ServerURL string
	Preferred string
	Database  *gorm.DB
	Tokens    *TokenHolder
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Resolver performs auto-login and identity persistence.
type Resolver struct {
	client    LoginClient
	serverURL string
	preferred string
	db        *gorm.DB
	tokens    *TokenHolder
	clock     func() time.Time
	logger    *zap.Logger
}

// NewResolver validates configuration and constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Client == nil {
		return nil, errMissingLoginClient
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Resolver{
		client:    cfg.Client,
		serverURL: normalize(cfg.ServerURL),
		preferred: normalize(cfg.Preferred),
		db:        cfg.Database,
		tokens:    cfg.Tokens,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Resolve returns the player identity for this client, auto-logging-in when
// needed. Preference order for the requested name: explicit configuration,
// the identity persisted for this server, a freshly generated guest handle.
// The server has the final say; whatever it grants is persisted.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	preferred := r.preferred
	if preferred == "" {
		preferred = r.persistedUsername()
	}
	if preferred == "" {
		preferred = guestName()
	}

	result, err := r.client.AutoLogin(ctx, preferred)
	if err != nil {
		return "", fmt.Errorf("auth: auto-login failed: %w", err)
	}

	if r.tokens != nil {
		r.tokens.Set(result.Token)
	}
	r.persistUsername(result.Username)

	r.logger.Info("identity resolved",
		zap.String("username", result.Username),
		zap.String("server_url", r.serverURL))
	return result.Username, nil
}

func (r *Resolver) persistedUsername() string {
	if r.db == nil || r.serverURL == "" {
		return ""
	}
	var identity PlayerIdentity
	err := r.db.
		Where("server_url = ?", r.serverURL).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ""
	}
	if err != nil {
		r.logger.Warn("failed to load persisted identity", zap.Error(err))
		return ""
	}
	return identity.Username
}

func (r *Resolver) persistUsername(username string) {
	if r.db == nil || r.serverURL == "" || username == "" {
		return
	}
	identity := PlayerIdentity{
		ServerURL:  r.serverURL,
		Username:   username,
		LastSeenAt: r.clock(),
	}
	if err := r.db.Save(&identity).Error; err != nil {
		r.logger.Warn("failed to persist identity", zap.Error(err))
	}
}

func guestName() string {
	return guestPrefix + uuid.NewString()[:8]
}
