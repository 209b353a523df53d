package message

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretmessag.es/internal/models"
	"secretmessag.es/internal/store"
)

var testStart = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testStart }
	return svc, st
}

func TestStandardMessageLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "hello", false, 0, "pw1234")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	result, err := svc.AttemptDecrypt(ctx, id, "pw1234")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.False(t, result.IsOneTime)
	assert.Nil(t, result.ExpiresAt)

	_, err = svc.AttemptDecrypt(ctx, id, "wrong-password")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	// A failed attempt does not consume the message.
	result, err = svc.AttemptDecrypt(ctx, id, "pw1234")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
}

func TestOneTimeMessageIsConsumed(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "secret", true, 0, "pw1234")
	require.NoError(t, err)

	result, err := svc.AttemptDecrypt(ctx, id, "pw1234")
	require.NoError(t, err)
	assert.Equal(t, "secret", result.Content)
	assert.True(t, result.IsOneTime)

	_, err = svc.FetchForView(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The consumed message was deleted on the spot, not just hidden.
	_, err = st.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.AttemptDecrypt(ctx, id, "pw1234")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpiredMessageIsRemoved(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "short lived", false, 1, "pw1234")
	require.NoError(t, err)

	// Still servable just before expiry.
	svc.now = func() time.Time { return testStart.Add(59 * time.Second) }
	msg, err := svc.FetchForView(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, msg.ExpiresAt)

	// Two minutes after creation the message is gone and the subsequent
	// sweep has nothing left to count.
	svc.now = func() time.Time { return testStart.Add(2 * time.Minute) }
	_, err = svc.FetchForView(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	deleted, err := svc.Housekeeping(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestExpiryBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "boundary case", false, 1, "pw1234")
	require.NoError(t, err)

	// Queried at exactly expiresAt the message is already expired.
	svc.now = func() time.Time { return testStart.Add(time.Minute) }
	_, err = svc.FetchForView(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingSweep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "expiring one", false, 1, "pw1234")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "expiring two", false, 15, "pw1234")
	require.NoError(t, err)
	keeper, err := svc.Create(ctx, "keeper", false, 0, "pw1234")
	require.NoError(t, err)

	svc.now = func() time.Time { return testStart.Add(5 * time.Minute) }

	deleted, err := svc.Housekeeping(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = svc.Housekeeping(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	_, err = svc.FetchForView(ctx, keeper)
	assert.NoError(t, err)
}

func TestCreationCounters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// One-time and expiring at once: counted in both categories, once in all.
	_, err := svc.Create(ctx, "both", true, 15, "pw1234")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "plain", false, 0, "pw1234")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[models.CounterOneTime])
	assert.Equal(t, int64(1), stats[models.CounterExpiring])
	assert.Equal(t, int64(1), stats[models.CounterStandard])
	assert.Equal(t, int64(2), stats[models.CounterAll])
}

// collidingStore forces id collisions on the first create attempts.
type collidingStore struct {
	store.Store
	collisions int
	creates    int
}

func (s *collidingStore) Create(ctx context.Context, msg *models.Message) error {
	s.creates++
	if s.collisions > 0 {
		s.collisions--
		return store.ErrDuplicateID
	}
	return s.Store.Create(ctx, msg)
}

func TestCreateRetriesOnDuplicateID(t *testing.T) {
	_, mem := newTestService(t)
	ctx := context.Background()

	st := &collidingStore{Store: mem, collisions: 1}
	svc := NewService(st, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := svc.Create(ctx, "eventually stored", false, 0, "pw1234")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, st.creates)
}

func TestCreateGivesUpAfterRetry(t *testing.T) {
	_, mem := newTestService(t)
	ctx := context.Background()

	st := &collidingStore{Store: mem, collisions: 2}
	svc := NewService(st, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Create(ctx, "never stored", false, 0, "pw1234")
	assert.ErrorIs(t, err, store.ErrDuplicateID)
	assert.Equal(t, 2, st.creates)
}

// racingStore simulates losing the mark-viewed race to a concurrent decrypt.
type racingStore struct {
	store.Store
}

func (s *racingStore) MarkViewed(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func TestOneTimeLosingRaceReturnsNotFound(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "raced", true, 0, "pw1234")
	require.NoError(t, err)

	raced := NewService(&racingStore{Store: mem}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = raced.AttemptDecrypt(ctx, id, "pw1234")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// failingCounterStore rejects every counter increment.
type failingCounterStore struct {
	store.Store
}

func (s *failingCounterStore) IncrementCounter(ctx context.Context, t models.CounterType) error {
	return errors.New("counter table on fire")
}

func TestCounterFailureDoesNotFailCreation(t *testing.T) {
	_, mem := newTestService(t)
	ctx := context.Background()

	svc := NewService(&failingCounterStore{Store: mem}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := svc.Create(ctx, "still created", false, 0, "pw1234")
	require.NoError(t, err)

	_, err = svc.FetchForView(ctx, id)
	assert.NoError(t, err)
}
