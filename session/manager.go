package session

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"hash"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultCookieName default name of the session cookie
	DefaultCookieName = "CASSESSIONID"

	DefaultMaxInactive   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Options 会话管理的配置项
type Options struct {
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly bool

	// SecretKey signs the session cookie. A random key is generated when it
	// is empty, which makes persisted sessions unusable after a restart.
	SecretKey []byte
	Hash      func() hash.Hash

	MaxInactive   time.Duration
	SweepInterval time.Duration

	Store  Store
	Logger *zap.Logger
}

// Manager owns the live sessions of one application.
type Manager struct {
	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieSecure   bool
	cookieHTTPOnly bool
	secretKey      []byte
	hash           func() hash.Hash
	maxInactive    time.Duration
	sweepInterval  time.Duration
	store          Store
	logger         *zap.Logger
	now            func() time.Time

	mutex     sync.Mutex
	sessions  map[string]*Session
	listeners listeners

	stop    chan struct{}
	stopped sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(opt *Options) *Manager {
	if opt == nil {
		opt = &Options{}
	}
	m := &Manager{
		cookieName:     opt.CookieName,
		cookiePath:     opt.CookiePath,
		cookieDomain:   opt.CookieDomain,
		cookieSecure:   opt.CookieSecure,
		cookieHTTPOnly: opt.CookieHTTPOnly,
		secretKey:      opt.SecretKey,
		hash:           opt.Hash,
		maxInactive:    opt.MaxInactive,
		sweepInterval:  opt.SweepInterval,
		store:          opt.Store,
		logger:         opt.Logger,
		now:            time.Now,
		sessions:       map[string]*Session{},
	}

	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	if m.cookiePath == "" {
		m.cookiePath = "/" // 必须指定 Path, 否则会被自动赋成当前请求的 url 中的 path
	} else if !strings.HasPrefix(m.cookiePath, "/") {
		m.cookiePath = "/" + m.cookiePath
	}
	if len(m.secretKey) == 0 {
		m.secretKey = make([]byte, 32)
		if _, err := rand.Read(m.secretKey); err != nil {
			panic(err)
		}
	}
	if m.hash == nil {
		m.hash = sha1.New
	}
	if m.maxInactive == 0 {
		m.maxInactive = DefaultMaxInactive
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = DefaultSweepInterval
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// AddListener registers l for every listener interface it implements.
func (m *Manager) AddListener(l interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	found := false
	if sl, ok := l.(Listener); ok {
		m.listeners.sessions = append(m.listeners.sessions, sl)
		found = true
	}
	if al, ok := l.(AttributeListener); ok {
		m.listeners.attributes = append(m.listeners.attributes, al)
		found = true
	}
	if al, ok := l.(ActivationListener); ok {
		m.listeners.activations = append(m.listeners.activations, al)
		found = true
	}
	if cl, ok := l.(ContextListener); ok {
		m.listeners.contexts = append(m.listeners.contexts, cl)
		found = true
	}
	if !found {
		return errors.New("session: listener implements no listener interface")
	}
	return nil
}

func (m *Manager) snapshotListeners() listeners {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.listeners
}

// Open restores persisted sessions and notifies context listeners.
func (m *Manager) Open(ctx context.Context) error {
	ls := m.snapshotListeners()
	for _, l := range ls.contexts {
		l.ContextInitialized(ctx)
	}

	if m.store == nil {
		return nil
	}
	records, err := m.store.List(ctx)
	if err != nil {
		return errors.New("session: restore sessions fail, " + err.Error())
	}

	now := m.now()
	var restored []*Session
	m.mutex.Lock()
	for _, rec := range records {
		s := newSession(m, rec.ID, rec.CreatedAt)
		s.accessedAt = rec.AccessedAt
		for k, v := range rec.Values {
			s.values[k] = v
		}
		if s.expired(now, m.maxInactive) {
			if err := m.store.Delete(ctx, rec.ID); err != nil {
				m.logger.Warn("delete expired session fail", zap.String("session", rec.ID), zap.Error(err))
			}
			continue
		}
		m.sessions[rec.ID] = s
		restored = append(restored, s)
	}
	m.mutex.Unlock()

	for _, s := range restored {
		for _, l := range ls.activations {
			l.SessionActivated(s)
		}
	}
	m.logger.Info("sessions restored", zap.Int("count", len(restored)))
	return nil
}

// Start runs the expiry sweeper until Close is called or ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mutex.Lock()
	if m.stop != nil {
		m.mutex.Unlock()
		return
	}
	m.stop = make(chan struct{})
	stop := m.stop
	m.mutex.Unlock()

	m.stopped.Add(1)
	go func() {
		defer m.stopped.Done()
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the sweeper and shuts the container down. With a store the
// live sessions are saved; without one they are destroyed.
func (m *Manager) Close() error {
	m.mutex.Lock()
	stop := m.stop
	m.stop = nil
	m.mutex.Unlock()
	if stop != nil {
		close(stop)
		m.stopped.Wait()
	}

	ctx := context.Background()
	ls := m.snapshotListeners()
	for _, l := range ls.contexts {
		l.ContextDestroyed(ctx)
	}

	m.mutex.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = map[string]*Session{}
	m.mutex.Unlock()

	if m.store == nil {
		for _, s := range live {
			m.destroy(s, ls)
		}
		return nil
	}

	var lastErr error
	for _, s := range live {
		if err := m.store.Save(ctx, s.record()); err != nil {
			m.logger.Warn("save session fail", zap.String("session", s.id), zap.Error(err))
			lastErr = err
		}
	}
	if err := m.store.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}

// Sweep destroys the sessions that have been inactive too long.
func (m *Manager) Sweep() int {
	now := m.now()
	var expired []*Session

	m.mutex.Lock()
	for id, s := range m.sessions {
		if s.expired(now, m.maxInactive) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mutex.Unlock()

	if len(expired) == 0 {
		return 0
	}
	ls := m.snapshotListeners()
	for _, s := range expired {
		m.deleteStored(s.id)
		m.destroy(s, ls)
	}
	m.logger.Debug("expired sessions removed", zap.Int("count", len(expired)))
	return len(expired)
}

// Lookup returns the live session with id.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mutex.Lock()
	s, ok := m.sessions[id]
	m.mutex.Unlock()
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sessions)
}

// Invalidate destroys the session with id. It returns ErrNoSession if the
// session does not exist (anymore).
func (m *Manager) Invalidate(id string) error {
	m.mutex.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mutex.Unlock()
	if !ok {
		return ErrNoSession
	}

	m.deleteStored(id)
	m.destroy(s, m.snapshotListeners())
	return nil
}

func (m *Manager) destroy(s *Session, ls listeners) {
	if !s.markInvalid() {
		return
	}
	for _, l := range ls.sessions {
		l.SessionDestroyed(s)
	}
}

func (m *Manager) deleteStored(id string) {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(context.Background(), id); err != nil {
		m.logger.Warn("delete session fail", zap.String("session", id), zap.Error(err))
	}
}

func (m *Manager) save(s *Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(context.Background(), s.record()); err != nil {
		m.logger.Warn("save session fail", zap.String("session", s.id), zap.Error(err))
	}
}

func (m *Manager) attributeChanged(s *Session, name, old string, existed, removed bool) {
	m.save(s)

	ls := m.snapshotListeners()
	for _, l := range ls.attributes {
		switch {
		case removed:
			l.AttributeRemoved(s, name, old)
		case existed:
			l.AttributeReplaced(s, name, old)
		default:
			value, _ := s.Get(name)
			l.AttributeAdded(s, name, value)
		}
	}
}

// lookup returns the live session named by the request cookie.
func (m *Manager) lookup(req *http.Request) *Session {
	id, err := idFromCookie(req, m.cookieName, m.hash, m.secretKey)
	if err != nil {
		if err != ErrCookieNotFound {
			m.logger.Debug("session cookie is rejected", zap.Error(err))
		}
		return nil
	}

	now := m.now()
	m.mutex.Lock()
	s, ok := m.sessions[id]
	if ok && s.expired(now, m.maxInactive) {
		delete(m.sessions, id)
		m.mutex.Unlock()
		m.deleteStored(id)
		m.destroy(s, m.snapshotListeners())
		return nil
	}
	m.mutex.Unlock()
	if !ok {
		return nil
	}
	s.touch(now)
	return s
}

func (m *Manager) create(w http.ResponseWriter) *Session {
	s := newSession(m, uuid.NewString(), m.now())

	m.mutex.Lock()
	m.sessions[s.id] = s
	ls := m.listeners
	m.mutex.Unlock()

	http.SetCookie(w, m.cookie(EncodeID(s.id, m.hash, m.secretKey), false))
	m.save(s)
	for _, l := range ls.sessions {
		l.SessionCreated(s)
	}
	return s
}

func (m *Manager) cookie(value string, expire bool) *http.Cookie {
	c := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		Secure:   m.cookieSecure,
		HttpOnly: m.cookieHTTPOnly,
	}
	if expire {
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	}
	return c
}

// ClearCookie expires the session cookie on the client.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", true))
}
