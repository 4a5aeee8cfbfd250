package sketchcache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Entry is the persisted form of one generation result, keyed by the exact
// prompt string. Expiry is evaluated lazily on read against CreatedAtSeconds;
// a stored row past its TTL is indistinguishable from a miss.
type Entry struct {
	Prompt           string `gorm:"column:prompt;primaryKey;size:512;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "sketch_cache"
}

// Store abstracts the durable prompt -> payload mapping so tests can swap in
// an in-memory implementation. Load returns (nil, nil) on a clean miss.
type Store interface {
	Load(ctx context.Context, prompt string) (*Entry, error)
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, prompt string) error
}

// SQLiteStore persists cache entries through GORM into the client-local
// SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore wraps a database handle as a cache store.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sketchcache: database handle is required")
	}
	return &SQLiteStore{db: db}, nil
}

// Load fetches the entry for a prompt, reporting a clean miss as (nil, nil).
func (s *SQLiteStore) Load(ctx context.Context, prompt string) (*Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("prompt = ?", prompt).
		Take(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Save inserts or replaces the entry for its prompt.
func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	return s.db.WithContext(ctx).Save(&entry).Error
}

// Delete removes the entry for a prompt. Deleting an absent prompt is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, prompt string) error {
	return s.db.WithContext(ctx).
		Where("prompt = ?", prompt).
		Delete(&Entry{}).
		Error
}
