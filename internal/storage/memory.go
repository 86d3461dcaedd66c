package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps downloads in process memory. Expired entries are swept
// on each Put.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	objects map[string]*Object
}

// NewMemoryStore creates an empty MemoryStore. A ttl of 0 never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		objects: make(map[string]*Object),
	}
}

func (s *MemoryStore) Put(_ context.Context, obj Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, o := range s.objects {
		if expired(o.CreatedAt, s.ttl, now) {
			delete(s.objects, id)
		}
	}

	obj.CreatedAt = now
	obj.Data = append([]byte(nil), obj.Data...)
	id := newID()
	s.objects[id] = &obj
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	if expired(o.CreatedAt, s.ttl, s.now()) {
		delete(s.objects, id)
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
