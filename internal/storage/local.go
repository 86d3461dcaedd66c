package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStore writes each download to a directory as <id>.data with an
// <id>.json sidecar holding its metadata.
type LocalStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, ttl time.Duration) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (s *LocalStore) Put(_ context.Context, obj Object) (string, error) {
	id := newID()
	obj.CreatedAt = s.now().UTC()

	meta, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(s.dataPath(id), obj.Data, 0600); err != nil {
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := os.WriteFile(s.metaPath(id), meta, 0600); err != nil {
		os.Remove(s.dataPath(id))
		return "", fmt.Errorf("writing download metadata: %w", err)
	}
	return id, nil
}

func (s *LocalStore) Get(_ context.Context, id string) (*Object, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	meta, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading download metadata: %w", err)
	}
	var obj Object
	if err := json.Unmarshal(meta, &obj); err != nil {
		return nil, fmt.Errorf("unmarshaling download metadata: %w", err)
	}

	if expired(obj.CreatedAt, s.ttl, s.now()) {
		s.remove(id)
		return nil, ErrNotFound
	}

	obj.Data, err = os.ReadFile(s.dataPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading download: %w", err)
	}
	return &obj, nil
}

func (s *LocalStore) remove(id string) {
	os.Remove(s.dataPath(id))
	os.Remove(s.metaPath(id))
}

func (s *LocalStore) dataPath(id string) string { return filepath.Join(s.dir, id+".data") }
func (s *LocalStore) metaPath(id string) string { return filepath.Join(s.dir, id+".json") }
