package session

import (
	"context"
	"net/http"
	"sync"
)

type contextKey struct{}

// handle resolves the session of one request lazily, so requests that never
// ask for a session never get one.
type handle struct {
	manager *Manager
	w       http.ResponseWriter
	req     *http.Request

	mutex   sync.Mutex
	loaded  bool
	session *Session
}

func (h *handle) get(create bool) (*Session, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.session != nil && h.session.IsValid() {
		return h.session, nil
	}
	if !h.loaded {
		h.loaded = true
		h.session = h.manager.lookup(h.req)
		if h.session != nil {
			return h.session, nil
		}
	}
	if !create {
		return nil, ErrNoSession
	}
	h.session = h.manager.create(h.w)
	return h.session, nil
}

// Middleware attaches the session handle of the request to its context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &handle{manager: m, w: w, req: r}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, h)))
	})
}

func (m *Manager) handle(w http.ResponseWriter, r *http.Request) *handle {
	if h, ok := r.Context().Value(contextKey{}).(*handle); ok && h.manager == m {
		return h
	}
	return &handle{manager: m, w: w, req: r}
}

// Get returns the session of the request, creating one if needed.
func (m *Manager) Get(w http.ResponseWriter, r *http.Request) *Session {
	s, _ := m.handle(w, r).get(true)
	return s
}

// Peek returns the existing session of the request without creating one.
func (m *Manager) Peek(r *http.Request) (*Session, bool) {
	s, err := m.handle(nil, r).get(false)
	if err != nil {
		return nil, false
	}
	return s, true
}
