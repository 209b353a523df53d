package store

import (
	"context"
	"errors"
	"time"

	"secretmessag.es/internal/models"
)

var (
	// ErrNotFound covers both "never existed" and "already deleted"; callers
	// must not be able to tell the two apart.
	ErrNotFound = errors.New("message not found")
	// ErrDuplicateID is the unique-constraint violation on create. The caller
	// may retry with a freshly generated id.
	ErrDuplicateID = errors.New("message id already exists")
)

// Store owns all persisted state. Mutation happens only through this narrow
// operation set; nothing else touches message rows.
type Store interface {
	// Create persists a new message. Returns ErrDuplicateID when the id is
	// already taken.
	Create(ctx context.Context, msg *models.Message) error

	// Get is a pure lookup with no side effects. Returns ErrNotFound for an
	// unknown id. Servability is the caller's concern.
	Get(ctx context.Context, id string) (*models.Message, error)

	// MarkViewed flips IsViewed, but only if it is not set yet. The returned
	// bool reports whether this call performed the transition, which lets the
	// caller detect a lost race between two simultaneous decrypts of a
	// one-time message.
	MarkViewed(ctx context.Context, id string) (bool, error)

	// Delete removes a message. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpiredOrViewed removes every message that is expired at now or
	// is a viewed one-time message, returning how many were deleted.
	// Idempotent: a second run with no new qualifying messages deletes zero.
	DeleteExpiredOrViewed(ctx context.Context, now time.Time) (int64, error)

	// IncrementCounter bumps the given category counter, creating it at 1 if
	// it does not exist yet.
	IncrementCounter(ctx context.Context, t models.CounterType) error

	// CounterValue returns the category count, zero when no counter exists.
	CounterValue(ctx context.Context, t models.CounterType) (int64, error)

	Close() error
}
