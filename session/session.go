// Package session is a small server-side session container: signed cookie
// ids, string attributes, expiry, optional persistence and listeners for
// session lifecycle events.
package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoSession 会话不存在
	ErrNoSession = errors.New("session isn't found")

	// ErrInvalidated 会话已注销
	ErrInvalidated = errors.New("session is invalidated")
)

// Session is one local session. Attributes are strings so that sessions can
// be persisted as is.
type Session struct {
	id      string
	manager *Manager

	mutex      sync.RWMutex
	values     map[string]string
	createdAt  time.Time
	accessedAt time.Time
	invalid    bool
}

func newSession(m *Manager, id string, now time.Time) *Session {
	return &Session{
		id:         id,
		manager:    m,
		values:     map[string]string{},
		createdAt:  now,
		accessedAt: now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) AccessedAt() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.accessedAt
}

// IsValid reports whether the session has not been invalidated.
func (s *Session) IsValid() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return !s.invalid
}

// Get returns the attribute stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Values returns a copy of all attributes.
func (s *Session) Values() map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	copied := make(map[string]string, len(s.values))
	for k, v := range s.values {
		copied[k] = v
	}
	return copied
}

// Set stores an attribute and notifies attribute listeners.
func (s *Session) Set(key, value string) error {
	s.mutex.Lock()
	if s.invalid {
		s.mutex.Unlock()
		return ErrInvalidated
	}
	old, replaced := s.values[key]
	s.values[key] = value
	s.mutex.Unlock()

	if replaced && old == value {
		return nil
	}
	s.manager.attributeChanged(s, key, old, replaced, false)
	return nil
}

// Remove deletes an attribute and notifies attribute listeners.
func (s *Session) Remove(key string) error {
	s.mutex.Lock()
	if s.invalid {
		s.mutex.Unlock()
		return ErrInvalidated
	}
	old, ok := s.values[key]
	delete(s.values, key)
	s.mutex.Unlock()

	if ok {
		s.manager.attributeChanged(s, key, old, true, true)
	}
	return nil
}

// Invalidate destroys the session.
func (s *Session) Invalidate() error {
	return s.manager.Invalidate(s.id)
}

func (s *Session) touch(now time.Time) {
	s.mutex.Lock()
	s.accessedAt = now
	s.mutex.Unlock()
}

func (s *Session) expired(now time.Time, maxInactive time.Duration) bool {
	if maxInactive <= 0 {
		return false
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return now.Sub(s.accessedAt) > maxInactive
}

func (s *Session) markInvalid() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.invalid {
		return false
	}
	s.invalid = true
	return true
}

func (s *Session) record() Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return Record{
		ID:         s.id,
		Values:     values,
		CreatedAt:  s.createdAt,
		AccessedAt: s.accessedAt,
	}
}
