// Package resolver maps a CAS principal to the resource id of the application.
package resolver

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound 用户没有对应的 resource id
var ErrNotFound = errors.New("resolver: resource id isn't found")

// Resolver maps a validated username to a resource id. ok is false when the
// username is unknown; err is reserved for lookup failures.
type Resolver interface {
	ResourceID(ctx context.Context, username string) (id int64, ok bool, err error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, username string) (int64, bool, error)

func (f Func) ResourceID(ctx context.Context, username string) (int64, bool, error) {
	return f(ctx, username)
}

// Map is a static, concurrency-safe resolver.
type Map struct {
	mutex sync.RWMutex
	ids   map[string]int64
}

// NewMap copies ids into a new Map.
func NewMap(ids map[string]int64) *Map {
	m := &Map{ids: make(map[string]int64, len(ids))}
	for k, v := range ids {
		m.ids[k] = v
	}
	return m
}

func (m *Map) ResourceID(ctx context.Context, username string) (int64, bool, error) {
	m.mutex.RLock()
	id, ok := m.ids[username]
	m.mutex.RUnlock()
	return id, ok, nil
}

// Set adds or replaces a mapping.
func (m *Map) Set(username string, id int64) {
	m.mutex.Lock()
	m.ids[username] = id
	m.mutex.Unlock()
}

// Delete removes a mapping.
func (m *Map) Delete(username string) {
	m.mutex.Lock()
	delete(m.ids, username)
	m.mutex.Unlock()
}
