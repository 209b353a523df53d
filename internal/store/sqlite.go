package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"secretmessag.es/internal/models"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the default persistent backend. Timestamps are stored as
// unix nanoseconds so expiry comparisons happen inside SQL.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore opens the database at path and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreFromDB wraps an already-open database. Used by tests with a
// shared in-memory database.
func NewSQLiteStoreFromDB(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, msg *models.Message) error {
	const query = `
		INSERT INTO messages (id, ciphertext, iv, created_at, expires_at, is_one_time, is_viewed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var expiresAt any
	if msg.ExpiresAt != nil {
		expiresAt = msg.ExpiresAt.UnixNano()
	}

	_, err := s.db.Writer.ExecContext(ctx, query,
		msg.ID, msg.Ciphertext, msg.IV, msg.CreatedAt.UnixNano(),
		expiresAt, boolToInt(msg.IsOneTime), boolToInt(msg.IsViewed),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Message, error) {
	const query = `
		SELECT id, ciphertext, iv, created_at, expires_at, is_one_time, is_viewed
		FROM messages
		WHERE id = ?
	`

	var (
		msg       models.Message
		createdAt int64
		expiresAt sql.NullInt64
		oneTime   int
		viewed    int
	)
	err := s.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.Ciphertext, &msg.IV, &createdAt, &expiresAt, &oneTime, &viewed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query message %s: %w", id, err)
	}

	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64).UTC()
		msg.ExpiresAt = &t
	}
	msg.IsOneTime = oneTime != 0
	msg.IsViewed = viewed != 0
	return &msg, nil
}

func (s *SQLiteStore) MarkViewed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE messages SET is_viewed = 1 WHERE id = ? AND is_viewed = 0`

	res, err := s.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark message %s viewed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark message %s viewed: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM messages WHERE id = ?`

	if _, err := s.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpiredOrViewed(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		DELETE FROM messages
		WHERE (is_one_time = 1 AND is_viewed = 1)
		   OR (expires_at IS NOT NULL AND expires_at <= ?)
	`

	res, err := s.db.Writer.ExecContext(ctx, query, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired or viewed messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired or viewed messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) IncrementCounter(ctx context.Context, t models.CounterType) error {
	const query = `
		INSERT INTO counters (type, count) VALUES (?, 1)
		ON CONFLICT (type) DO UPDATE SET count = count + 1
	`

	if _, err := s.db.Writer.ExecContext(ctx, query, string(t)); err != nil {
		return fmt.Errorf("increment counter %s: %w", t, err)
	}
	return nil
}

func (s *SQLiteStore) CounterValue(ctx context.Context, t models.CounterType) (int64, error) {
	const query = `SELECT count FROM counters WHERE type = ?`

	var count int64
	err := s.db.Reader.QueryRowContext(ctx, query, string(t)).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query counter %s: %w", t, err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) &&
		(serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
