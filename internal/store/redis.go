// redis.go
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"secretmessag.es/internal/models"
)

var _ Store = (*RedisStore)(nil)

// RedisStore persists messages as gob-encoded values. Expired messages are
// not given a Redis TTL: they stay until the sweep removes them, so the sweep
// count matches what the other backends report.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Create(ctx context.Context, msg *models.Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, messageKey(msg.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	if !ok {
		return ErrDuplicateID
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Message, error) {
	data, err := r.client.Get(ctx, messageKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query message %s: %w", id, err)
	}
	return decode(data)
}

func (r *RedisStore) MarkViewed(ctx context.Context, id string) (bool, error) {
	key := messageKey(id)
	var applied bool

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				applied = false
				return nil
			}
			return err
		}

		msg, err := decode(data)
		if err != nil {
			return err
		}
		if msg.IsViewed {
			applied = false
			return nil
		}

		msg.IsViewed = true
		newData, err := encode(msg)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return applied, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("mark message %s viewed: %w", id, err)
	}
	return false, redis.TxFailedErr
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, messageKey(id)).Err(); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) DeleteExpiredOrViewed(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64

	iter := r.client.Scan(ctx, 0, messageKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // already gone, e.g. a concurrent sweep
			}
			return deleted, fmt.Errorf("sweep read %s: %w", key, err)
		}

		msg, err := decode(data)
		if err != nil {
			return deleted, err
		}
		if !msg.Expired(now) && !msg.Consumed() {
			continue
		}

		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("sweep delete %s: %w", key, err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("sweep scan: %w", err)
	}
	return deleted, nil
}

func (r *RedisStore) IncrementCounter(ctx context.Context, t models.CounterType) error {
	if err := r.client.Incr(ctx, counterKey(t)).Err(); err != nil {
		return fmt.Errorf("increment counter %s: %w", t, err)
	}
	return nil
}

func (r *RedisStore) CounterValue(ctx context.Context, t models.CounterType) (int64, error) {
	val, err := r.client.Get(ctx, counterKey(t)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("query counter %s: %w", t, err)
	}
	return strconv.ParseInt(val, 10, 64)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func messageKey(id string) string {
	return "message:" + id
}

func counterKey(t models.CounterType) string {
	return "counter:" + string(t)
}

// storedMessage is the gob payload. ExpiresAt is flattened to a plain value
// (zero = no expiry) because gob does not round-trip nil pointer fields.
type storedMessage struct {
	ID         string
	Ciphertext string
	IV         string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	IsOneTime  bool
	IsViewed   bool
}

func encode(msg *models.Message) ([]byte, error) {
	stored := storedMessage{
		ID:         msg.ID,
		Ciphertext: msg.Ciphertext,
		IV:         msg.IV,
		CreatedAt:  msg.CreatedAt,
		IsOneTime:  msg.IsOneTime,
		IsViewed:   msg.IsViewed,
	}
	if msg.ExpiresAt != nil {
		stored.ExpiresAt = *msg.ExpiresAt
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&stored); err != nil {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Message, error) {
	var stored storedMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	msg := &models.Message{
		ID:         stored.ID,
		Ciphertext: stored.Ciphertext,
		IV:         stored.IV,
		CreatedAt:  stored.CreatedAt,
		IsOneTime:  stored.IsOneTime,
		IsViewed:   stored.IsViewed,
	}
	if !stored.ExpiresAt.IsZero() {
		t := stored.ExpiresAt
		msg.ExpiresAt = &t
	}
	return msg, nil
}
