package auth

import (
	"strings"
	"time"
)

// PlayerIdentity persists which username this client resolved against a
// given backend, so a returning player keeps the same guest handle across
// runs instead of minting a fresh one every launch.
type PlayerIdentity struct {
	ServerURL  string    `gorm:"column:server_url;primaryKey;size:512;not null"`
	Username   string    `gorm:"column:username;size:190;not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing persisted player identities.
func (PlayerIdentity) TableName() string {
	return "player_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
