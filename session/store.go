package session

import (
	"context"
	"time"
)

// Record is the persisted form of a session.
type Record struct {
	ID         string
	Values     map[string]string
	CreatedAt  time.Time
	AccessedAt time.Time
}

// Store persists sessions across restarts. The manager keeps live sessions
// in memory and writes through to the store.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}
