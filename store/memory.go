package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tricoach"
)

// MemoryStore is an in-process Store for tests and ephemeral sessions. It
// stores the same JSON documents the SQLite store does, so load-time
// normalization behaves identically.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[key]
	return raw, ok
}

func (s *MemoryStore) put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = value
}

func (s *MemoryStore) LoadProfile(ctx context.Context) (*tricoach.ProfileData, error) {
	raw, ok := s.get(KeyProfile)
	if !ok {
		return nil, nil
	}
	return decodeProfile(raw)
}

func (s *MemoryStore) SaveProfile(ctx context.Context, profile tricoach.ProfileData) error {
	data, err := encodeJSON(profile)
	if err != nil {
		return err
	}
	s.put(KeyProfile, data)
	return nil
}

func (s *MemoryStore) LoadDoctrine(ctx context.Context) (*tricoach.DoctrineData, error) {
	raw, ok := s.get(KeyDoctrine)
	if !ok {
		return nil, nil
	}
	var doctrine tricoach.DoctrineData
	if err := json.Unmarshal(raw, &doctrine); err != nil {
		return nil, err
	}
	return &doctrine, nil
}

func (s *MemoryStore) SaveDoctrine(ctx context.Context, doctrine tricoach.DoctrineData) error {
	data, err := encodeJSON(doctrine)
	if err != nil {
		return err
	}
	s.put(KeyDoctrine, data)
	return nil
}

func (s *MemoryStore) LoadActivities(ctx context.Context) ([]tricoach.Activity, error) {
	raw, ok := s.get(KeyActivities)
	if !ok {
		return nil, nil
	}
	return decodeActivities(raw, time.Now())
}

func (s *MemoryStore) SaveActivities(ctx context.Context, activities []tricoach.Activity) error {
	if activities == nil {
		activities = []tricoach.Activity{}
	}
	data, err := encodeJSON(activities)
	if err != nil {
		return err
	}
	s.put(KeyActivities, data)
	return nil
}

func (s *MemoryStore) AddActivities(ctx context.Context, activities []tricoach.Activity) error {
	current, err := s.LoadActivities(ctx)
	if err != nil {
		return err
	}
	return s.SaveActivities(ctx, append(current, activities...))
}
