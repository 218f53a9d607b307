// Package registry keeps the relation between CAS service tickets and the
// local sessions they authenticated.
package registry

import (
	"errors"
	"sync"
)

// ErrConflict ticket 已经关联到另一个会话
var ErrConflict = errors.New("registry: ticket is already bound to another session")

// Registry is a bidirectional ticket <-> session id map. A ticket maps to at
// most one session and a session holds at most one ticket. All methods are
// safe for concurrent use.
type Registry struct {
	mutex     sync.RWMutex
	sessions  map[string]string // ticket -> session id
	bySession map[string]string // session id -> ticket
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions:  map[string]string{},
		bySession: map[string]string{},
	}
}

// Register binds ticket to sessionID.
//
// A ticket already bound to a different session is rejected with ErrConflict
// and nothing changes. Registering an existing pair again is a no-op. If the
// session holds another ticket, that older binding is dropped.
func (r *Registry) Register(ticket, sessionID string) error {
	if ticket == "" || sessionID == "" {
		return errors.New("registry: ticket and session id must not be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if current, ok := r.sessions[ticket]; ok {
		if current == sessionID {
			return nil
		}
		return ErrConflict
	}

	if old, ok := r.bySession[sessionID]; ok {
		delete(r.sessions, old)
	}
	r.sessions[ticket] = sessionID
	r.bySession[sessionID] = ticket
	return nil
}

// LookupByTicket returns the session bound to ticket.
func (r *Registry) LookupByTicket(ticket string) (string, bool) {
	r.mutex.RLock()
	id, ok := r.sessions[ticket]
	r.mutex.RUnlock()
	return id, ok
}

// LookupBySession returns the ticket held by sessionID.
func (r *Registry) LookupBySession(sessionID string) (string, bool) {
	r.mutex.RLock()
	ticket, ok := r.bySession[sessionID]
	r.mutex.RUnlock()
	return ticket, ok
}

// Remove drops ticket in both directions. It reports whether an entry existed.
func (r *Registry) Remove(ticket string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, ok := r.sessions[ticket]
	if !ok {
		return false
	}
	delete(r.sessions, ticket)
	if r.bySession[id] == ticket {
		delete(r.bySession, id)
	}
	return true
}

// RemoveSession drops the entry held by sessionID and returns its ticket.
func (r *Registry) RemoveSession(sessionID string) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ticket, ok := r.bySession[sessionID]
	if !ok {
		return "", false
	}
	delete(r.bySession, sessionID)
	if r.sessions[ticket] == sessionID {
		delete(r.sessions, ticket)
	}
	return ticket, true
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mutex.RLock()
	n := len(r.sessions)
	r.mutex.RUnlock()
	return n
}

// Clear removes all entries.
func (r *Registry) Clear() {
	r.mutex.Lock()
	r.sessions = map[string]string{}
	r.bySession = map[string]string{}
	r.mutex.Unlock()
}
