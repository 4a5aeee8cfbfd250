package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DRAWSYNC"
	defaultServerURL     = "http://localhost:8080"
	defaultCachePath     = "drawsync.db"
	defaultLogLevel      = "info"
	defaultPollInterval  = 4 * time.Second
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultSessionIssuer = "drawsync-dev"
)

// AppConfig captures runtime configuration for the sync client and the dev
// stub server.
type AppConfig struct {
	ServerURL     string
	RoomID        string
	Username      string
	CachePath     string
	PollInterval  time.Duration
	LogLevel      string
	HTTPAddress   string
	SigningSecret string
	SessionIssuer string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("server.url", defaultServerURL)
	configViper.SetDefault("cache.path", defaultCachePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("poll.interval", defaultPollInterval)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		ServerURL:     configViper.GetString("server.url"),
		RoomID:        configViper.GetString("room.id"),
		Username:      configViper.GetString("user.name"),
		CachePath:     configViper.GetString("cache.path"),
		PollInterval:  configViper.GetDuration("poll.interval"),
		LogLevel:      configViper.GetString("log.level"),
		HTTPAddress:   configViper.GetString("http.address"),
		SigningSecret: configViper.GetString("session.signing_secret"),
		SessionIssuer: configViper.GetString("session.issuer"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if strings.TrimSpace(c.CachePath) == "" {
		return fmt.Errorf("cache.path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}
