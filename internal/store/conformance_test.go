package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretmessag.es/internal/models"
)

// runStoreSuite exercises the Store contract. Every backend must pass it.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	makeMessage := func(id string) *models.Message {
		return &models.Message{
			ID:         id,
			Ciphertext: "deadbeef",
			IV:         "00112233445566778899aabbccddeeff",
			CreatedAt:  base,
		}
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		expiresAt := base.Add(time.Hour)
		msg := makeMessage("create-and-get")
		msg.ExpiresAt = &expiresAt
		msg.IsOneTime = true
		require.NoError(t, s.Create(ctx, msg))

		got, err := s.Get(ctx, "create-and-get")
		require.NoError(t, err)
		assert.Equal(t, "create-and-get", got.ID)
		assert.Equal(t, "deadbeef", got.Ciphertext)
		assert.Equal(t, "00112233445566778899aabbccddeeff", got.IV)
		assert.True(t, got.CreatedAt.Equal(base))
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.ExpiresAt.Equal(expiresAt))
		assert.True(t, got.IsOneTime)
		assert.False(t, got.IsViewed)
	})

	t.Run("get without expiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, makeMessage("no-expiry")))

		got, err := s.Get(ctx, "no-expiry")
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("get unknown id", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(context.Background(), "never-existed")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, makeMessage("taken")))
		err := s.Create(ctx, makeMessage("taken"))
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("mark viewed applies once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, makeMessage("viewing")))

		applied, err := s.MarkViewed(ctx, "viewing")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.MarkViewed(ctx, "viewing")
		require.NoError(t, err)
		assert.False(t, applied, "second mark must report a no-op")

		got, err := s.Get(ctx, "viewing")
		require.NoError(t, err)
		assert.True(t, got.IsViewed)
	})

	t.Run("mark viewed on unknown id", func(t *testing.T) {
		s := newStore(t)

		applied, err := s.MarkViewed(context.Background(), "never-existed")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, makeMessage("doomed")))
		require.NoError(t, s.Delete(ctx, "doomed"))
		require.NoError(t, s.Delete(ctx, "doomed"))

		_, err := s.Get(ctx, "doomed")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("sweep", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base.Add(24 * time.Hour)

		past := now.Add(-time.Minute)
		expired := makeMessage("expired")
		expired.ExpiresAt = &past
		require.NoError(t, s.Create(ctx, expired))

		// Expiry exactly at now counts as expired.
		boundaryTime := now
		boundary := makeMessage("boundary")
		boundary.ExpiresAt = &boundaryTime
		require.NoError(t, s.Create(ctx, boundary))

		consumed := makeMessage("consumed")
		consumed.IsOneTime = true
		require.NoError(t, s.Create(ctx, consumed))
		_, err := s.MarkViewed(ctx, "consumed")
		require.NoError(t, err)

		future := now.Add(time.Hour)
		fresh := makeMessage("fresh")
		fresh.ExpiresAt = &future
		require.NoError(t, s.Create(ctx, fresh))

		// Viewed but not one-time: stays.
		viewed := makeMessage("viewed-standard")
		require.NoError(t, s.Create(ctx, viewed))
		_, err = s.MarkViewed(ctx, "viewed-standard")
		require.NoError(t, err)

		deleted, err := s.DeleteExpiredOrViewed(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		// Idempotent: nothing new qualifies, nothing is deleted.
		deleted, err = s.DeleteExpiredOrViewed(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)

		for _, id := range []string{"expired", "boundary", "consumed"} {
			_, err := s.Get(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound, "%s should be gone", id)
		}
		for _, id := range []string{"fresh", "viewed-standard"} {
			_, err := s.Get(ctx, id)
			assert.NoError(t, err, "%s should survive", id)
		}
	})

	t.Run("counters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		count, err := s.CounterValue(ctx, models.CounterAll)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, "missing counter reads as zero")

		for i := 0; i < 3; i++ {
			require.NoError(t, s.IncrementCounter(ctx, models.CounterAll))
		}
		require.NoError(t, s.IncrementCounter(ctx, models.CounterOneTime))

		count, err = s.CounterValue(ctx, models.CounterAll)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = s.CounterValue(ctx, models.CounterOneTime)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = s.CounterValue(ctx, models.CounterStandard)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
