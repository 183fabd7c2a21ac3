// Package store provides an in-memory alert store for local runs and tests.
package store

import (
	"context"
	"sync"

	"github.com/couchcryptid/hailwatch/internal/domain"
)

// MemoryStore is a concurrency-safe in-memory alert store. It also provides
// process-local named locks.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]domain.Alert
	order  []string

	lockMu sync.Mutex
	locks  map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]domain.Alert),
		locks:  make(map[string]bool),
	}
}

// Exists reports whether an alert with the id has been inserted.
func (s *MemoryStore) Exists(_ context.Context, alertID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.alerts[alertID]
	return ok, nil
}

// Insert stores the alert. An existing id returns domain.ErrDuplicate and the
// stored record is left untouched.
func (s *MemoryStore) Insert(_ context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.AlertID]; ok {
		return domain.ErrDuplicate
	}
	s.alerts[alert.AlertID] = alert
	s.order = append(s.order, alert.AlertID)
	return nil
}

// Get returns a stored alert.
func (s *MemoryStore) Get(alertID string) (domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID]
	return a, ok
}

// All returns stored alerts in insertion order.
func (s *MemoryStore) All() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.alerts[id])
	}
	return out
}

// Len returns the number of stored alerts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// TryLock takes the named lock without blocking. When acquired, release must
// be called to free it.
func (s *MemoryStore) TryLock(_ context.Context, name string) (release func(), acquired bool, err error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.locks[name] {
		return nil, false, nil
	}
	s.locks[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lockMu.Lock()
			delete(s.locks, name)
			s.lockMu.Unlock()
		})
	}, true, nil
}
