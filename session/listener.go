package session

import "context"

// Listener is notified when sessions are created and destroyed. A session is
// destroyed when it is invalidated, when it expires, and when the manager
// closes without a persistent store.
type Listener interface {
	SessionCreated(s *Session)
	SessionDestroyed(s *Session)
}

// AttributeListener is notified about attribute changes.
type AttributeListener interface {
	AttributeAdded(s *Session, name, value string)
	AttributeReplaced(s *Session, name, oldValue string)
	AttributeRemoved(s *Session, name, oldValue string)
}

// ActivationListener is notified when a session is restored from a Store.
type ActivationListener interface {
	SessionActivated(s *Session)
}

// ContextListener is notified when the manager opens and closes.
type ContextListener interface {
	ContextInitialized(ctx context.Context)
	ContextDestroyed(ctx context.Context)
}

type listeners struct {
	sessions    []Listener
	attributes  []AttributeListener
	activations []ActivationListener
	contexts    []ContextListener
}
