package stores

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrBusy means another action already holds the lock.
	ErrBusy = errors.New("another action is in progress")
)

// SessionStore holds browser sessions for SESSION_TTL after their last write.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.State, error)
	Put(ctx context.Context, s *session.State) error
	Delete(ctx context.Context, id string) error
}

// WizardStore holds in-progress wizards; a wizard lives as long as its session.
type WizardStore interface {
	Get(ctx context.Context, id string) (*wizard.Wizard, error)
	Put(ctx context.Context, w *wizard.Wizard) error
	Delete(ctx context.Context, id string) error
}

// Locker is the busy flag: at most one holder per key until release or ttl.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
