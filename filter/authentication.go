// Package filter authenticates the requests of a web application against a
// CAS server.
//
// One Authentication value plays every role of the integration: it is the
// request middleware, it answers the logout notifications sent by the CAS
// server, and it listens to the session container so that the ticket
// registry never outlives the sessions it points to.
package filter

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/three-plus-three/casauth/cas"
	"github.com/three-plus-three/casauth/registry"
	"github.com/three-plus-three/casauth/resolver"
	"github.com/three-plus-three/casauth/session"
)

// Validator validates a service ticket with the CAS server.
type Validator interface {
	Validate(ctx context.Context, ticket, service string) (*cas.Principal, error)
}

// Options 创建 Authentication 的参数
type Options struct {
	Config Config

	// Validator defaults to a cas.Validator built from Config.
	Validator Validator
	Resolver  resolver.Resolver
	Registry  *registry.Registry
	Sessions  *session.Manager
	Decoders  cas.DecoderFactory
	Logger    *zap.Logger
}

// Authentication 是 CAS 认证过滤器
type Authentication struct {
	config    Config
	validator Validator
	resolver  resolver.Resolver
	registry  *registry.Registry
	sessions  *session.Manager
	decoders  cas.DecoderFactory
	logger    *zap.Logger
	service   cas.Service
}

type contextKey struct{}

// New creates the filter and registers it as a listener of opt.Sessions.
func New(opt *Options) (*Authentication, error) {
	if opt == nil {
		return nil, errors.New("filter: options is missing")
	}
	if opt.Resolver == nil {
		return nil, errors.New("filter: resource id resolver is missing")
	}
	if opt.Sessions == nil {
		return nil, errors.New("filter: session manager is missing")
	}

	a := &Authentication{
		config:    opt.Config,
		validator: opt.Validator,
		resolver:  opt.Resolver,
		registry:  opt.Registry,
		sessions:  opt.Sessions,
		decoders:  opt.Decoders,
		logger:    opt.Logger,
	}
	if err := a.config.normalize(); err != nil {
		return nil, err
	}
	a.service = cas.Service{
		TicketParam:    a.config.TicketParam,
		TrustForwarded: a.config.TrustForwardedHeaders,
	}
	if a.config.ServerName != "" {
		base, err := cas.ParseServerName(a.config.ServerName)
		if err != nil {
			return nil, err
		}
		a.service.Base = base
	}
	if a.registry == nil {
		a.registry = registry.New()
	}
	if a.decoders == nil {
		a.decoders = cas.SafeDecoder
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.validator == nil {
		v, err := cas.NewValidator(a.config.ValidationURL,
			cas.WithTimeout(a.config.Timeout),
			cas.WithDecoderFactory(a.decoders),
			cas.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.validator = v
	}

	if err := a.sessions.AddListener(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Authentication) Config() Config {
	return a.config
}

func (a *Authentication) Registry() *registry.Registry {
	return a.registry
}

func (a *Authentication) Sessions() *session.Manager {
	return a.sessions
}

// Middleware checks, in this order, for a logout notification, a service
// ticket, or neither, and passes only the last case on to next.
func (a *Authentication) Middleware(next http.Handler) http.Handler {
	inner := a.sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if payload := a.logoutPayload(r); payload != "" {
			a.logout(w, payload)
			return
		}
		if ticket := r.URL.Query().Get(a.config.TicketParam); ticket != "" {
			a.authenticate(w, r, ticket)
			return
		}
		next.ServeHTTP(w, r)
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, a)))
	})
}

func (a *Authentication) authenticate(w http.ResponseWriter, r *http.Request, ticket string) {
	ctx := r.Context()
	service := a.service.URL(r)

	principal, err := a.validator.Validate(ctx, ticket, service)
	if err != nil {
		a.logger.Info("service ticket is rejected",
			zap.String("service", service),
			zap.Stringer("reason", cas.ReasonOf(err)),
			zap.Error(err))
		a.fail(w, r)
		return
	}

	resourceID, ok, err := a.resolver.ResourceID(ctx, principal.User)
	if err != nil {
		a.logger.Warn("resolve resource id fail", zap.String("user", principal.User), zap.Error(err))
		a.fail(w, r)
		return
	}
	if !ok {
		a.logger.Info("user has no resource id", zap.String("user", principal.User))
		a.fail(w, r)
		return
	}

	s := a.sessions.Get(w, r)
	if err := a.registry.Register(ticket, s.ID()); err != nil {
		a.logger.Warn("register ticket fail", zap.String("session", s.ID()), zap.Error(err))
		a.fail(w, r)
		return
	}
	if err := s.Set(a.config.AttributeNames.Ticket, ticket); err != nil {
		a.registry.Remove(ticket)
		a.fail(w, r)
		return
	}
	if err := s.Set(a.config.AttributeNames.ResourceID, strconv.FormatInt(resourceID, 10)); err != nil {
		a.registry.Remove(ticket)
		a.fail(w, r)
		return
	}

	a.logger.Info("user is authenticated",
		zap.String("user", principal.User),
		zap.Int64("resource_id", resourceID),
		zap.String("session", s.ID()),
		zap.String("address", cas.RealIP(r)))
	http.Redirect(w, r, service, http.StatusFound)
}

func (a *Authentication) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.config.FailureURL, http.StatusFound)
}

func (a *Authentication) logoutPayload(r *http.Request) string {
	if payload := r.URL.Query().Get(a.config.LogoutParam); payload != "" {
		return payload
	}
	if r.Method != http.MethodPost {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return ""
	}
	return r.PostFormValue(a.config.LogoutParam)
}

// HandleLogoutRequest answers a logout notification of the CAS server. It
// never looks at the session or the cookies of the request and always
// answers 200 OK.
func (a *Authentication) HandleLogoutRequest(w http.ResponseWriter, r *http.Request) {
	a.logout(w, a.logoutPayload(r))
}

func (a *Authentication) logout(w http.ResponseWriter, payload string) {
	if payload != "" {
		a.Logout(payload)
	}
	w.WriteHeader(http.StatusOK)
}

// Logout decodes a SAML logout request and invalidates the session its
// ticket authenticated. It reports whether a session was matched.
func (a *Authentication) Logout(payload string) bool {
	req, err := cas.ParseLogoutRequest(payload, a.decoders)
	if err != nil {
		a.logger.Info("logout request is ignored", zap.Error(err))
		return false
	}
	return a.LogoutTicket(req.SessionIndex)
}

// LogoutTicket invalidates the session bound to ticket. Unknown tickets are
// ignored.
func (a *Authentication) LogoutTicket(ticket string) bool {
	sessionID, ok := a.registry.LookupByTicket(ticket)
	if !ok {
		a.logger.Debug("logout for unknown ticket", zap.String("ticket", ticket))
		return false
	}
	if !a.registry.Remove(ticket) {
		return false
	}
	if err := a.sessions.Invalidate(sessionID); err != nil && err != session.ErrNoSession {
		a.logger.Warn("invalidate session fail", zap.String("session", sessionID), zap.Error(err))
	}
	a.logger.Info("session is logged out by cas", zap.String("session", sessionID))
	return true
}

// CurrentResourceID returns the resource id of the request's session, or
// the default resource id when the session is missing or anonymous. It never
// creates a session.
func (a *Authentication) CurrentResourceID(r *http.Request) int64 {
	s, ok := a.sessions.Peek(r)
	if !ok {
		return a.config.DefaultResourceID
	}
	value, ok := s.Get(a.config.AttributeNames.ResourceID)
	if !ok {
		return a.config.DefaultResourceID
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		a.logger.Warn("resource id in session is invalid", zap.String("session", s.ID()), zap.String("value", value))
		return a.config.DefaultResourceID
	}
	return id
}

// FromContext returns the Authentication that handles the request.
func FromContext(ctx context.Context) (*Authentication, bool) {
	a, ok := ctx.Value(contextKey{}).(*Authentication)
	return a, ok
}

// CurrentResourceID returns the resource id of a request served behind
// Middleware, or 0 if the request did not pass it.
func CurrentResourceID(r *http.Request) int64 {
	a, ok := FromContext(r.Context())
	if !ok {
		return 0
	}
	return a.CurrentResourceID(r)
}
