package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/three-plus-three/casauth/session"
)

// SessionCreated does nothing: a session is bound to a ticket only after a
// successful validation.
func (a *Authentication) SessionCreated(s *session.Session) {
	a.logger.Debug("session is created", zap.String("session", s.ID()))
}

// SessionDestroyed drops the ticket bound to the session.
func (a *Authentication) SessionDestroyed(s *session.Session) {
	if ticket, ok := a.registry.RemoveSession(s.ID()); ok {
		a.logger.Debug("ticket is unbound", zap.String("session", s.ID()), zap.String("ticket", ticket))
	}
}

func (a *Authentication) AttributeAdded(s *session.Session, name, value string) {}

// AttributeReplaced unbinds the previous ticket of the session. Unless the
// new ticket is the one the filter has just bound, the session loses its
// identity too, as no CAS logout can reach it any more.
func (a *Authentication) AttributeReplaced(s *session.Session, name, old string) {
	if name != a.config.AttributeNames.Ticket {
		return
	}
	a.unbind(s, old)
	if ticket, ok := s.Get(name); ok {
		if id, ok := a.registry.LookupByTicket(ticket); ok && id == s.ID() {
			return
		}
	}
	a.forget(s)
}

// AttributeRemoved unbinds the ticket when application code drops it from
// the session, and drops the resource id with it.
func (a *Authentication) AttributeRemoved(s *session.Session, name, old string) {
	if name == a.config.AttributeNames.Ticket {
		a.unbind(s, old)
		a.forget(s)
	}
}

func (a *Authentication) unbind(s *session.Session, ticket string) {
	if id, ok := a.registry.LookupByTicket(ticket); ok && id == s.ID() {
		a.registry.Remove(ticket)
	}
}

// forget returns s to the default identity.
func (a *Authentication) forget(s *session.Session) {
	if _, ok := s.Get(a.config.AttributeNames.ResourceID); !ok {
		return
	}
	if err := s.Remove(a.config.AttributeNames.ResourceID); err != nil && err != session.ErrInvalidated {
		a.logger.Warn("remove resource id fail", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	a.logger.Info("session is unbound from cas", zap.String("session", s.ID()))
}

// SessionActivated binds the ticket of a session restored from a store
// again, so a later CAS logout still reaches it. A session whose ticket
// cannot be bound loses its identity.
func (a *Authentication) SessionActivated(s *session.Session) {
	ticket, ok := s.Get(a.config.AttributeNames.Ticket)
	if !ok || ticket == "" {
		a.forget(s)
		return
	}
	if err := a.registry.Register(ticket, s.ID()); err != nil {
		a.logger.Warn("rebind ticket fail", zap.String("session", s.ID()), zap.Error(err))
		a.forget(s)
	}
}

func (a *Authentication) ContextInitialized(ctx context.Context) {
	a.logger.Info("cas authentication is started",
		zap.String("validation_url", a.config.ValidationURL),
		zap.String("failure_url", a.config.FailureURL),
		zap.String("ticket_param", a.config.TicketParam),
		zap.String("logout_param", a.config.LogoutParam),
		zap.String("server_name", a.config.ServerName),
		zap.Bool("trust_forwarded_headers", a.config.TrustForwardedHeaders),
		zap.Duration("timeout", a.config.Timeout))
}

// ContextDestroyed forgets every ticket and releases idle connections to
// the CAS server.
func (a *Authentication) ContextDestroyed(ctx context.Context) {
	a.registry.Clear()
	if closer, ok := a.validator.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	a.logger.Info("cas authentication is stopped")
}
