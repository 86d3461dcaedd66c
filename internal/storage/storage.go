// Package storage keeps generated downloads until they are fetched or expire.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hbdrevv/email-filter-utility/internal/config"
)

// ErrNotFound is returned for unknown, malformed or expired download IDs.
var ErrNotFound = errors.New("download not found or expired")

// Object is one downloadable file.
type Object struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store holds downloads by opaque ID.
type Store interface {
	// Put stores obj and returns its ID.
	Put(ctx context.Context, obj Object) (string, error)
	// Get returns the object for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Object, error)
}

// New creates the Store selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	ttl := cfg.TTL()
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "local":
		return NewLocalStore(cfg.LocalPath, ttl)
	case "s3":
		s, err := NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion, cfg.AWSProfile, ttl)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 storage: %w", err)
		}
		return s, nil
	case "redis":
		s, err := NewRedisStore(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("initializing Redis storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func newID() string {
	return uuid.NewString()
}

// validID guards backends that build paths or keys from the ID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(created) > ttl
}
