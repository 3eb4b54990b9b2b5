package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// SessionFactory builds the session for a conversation id seen for the first time.
type SessionFactory func(ctx context.Context, conversationID string) (*domain.Session, error)

// SessionStore is the registry that owns every live session.
type SessionStore interface {
	// LookupOrCreate returns the session for conversationID, running factory at most once
	// for concurrent callers of a missing id. All of them observe the same instance.
	LookupOrCreate(ctx context.Context, conversationID string, factory SessionFactory) (*domain.Session, error)

	// Replace upserts the session record.
	Replace(conversationID string, session *domain.Session)

	// Get returns the session or domain.ErrSessionNotFound.
	Get(conversationID string) (*domain.Session, error)

	// WithLock runs fn while holding the conversation's exclusive lock.
	WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error
}
