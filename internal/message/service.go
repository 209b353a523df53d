// Package message implements the message lifecycle: creation, servability,
// decryption and housekeeping. The HTTP layer talks to the store only
// through this package.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"secretmessag.es/internal/crypto"
	"secretmessag.es/internal/models"
	"secretmessag.es/internal/store"
)

// ErrIncorrectPassword is returned when the supplied password cannot decrypt
// the message. Wrong password, corrupted ciphertext and a mismatched IV are
// deliberately indistinguishable.
var ErrIncorrectPassword = errors.New("incorrect password")

// ViewResult is the outcome of a successful decryption.
type ViewResult struct {
	Content   string
	CreatedAt time.Time
	ExpiresAt *time.Time
	IsOneTime bool
}

type Service struct {
	store  store.Store
	logger *slog.Logger

	now func() time.Time
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Create encrypts content under password and persists it, returning the
// public identifier for the shareable link. minutesToExpire of zero means
// the message never expires by time. Input validation (content and password
// length) is the caller's responsibility.
func (s *Service) Create(ctx context.Context, content string, isOneTime bool, minutesToExpire int, password string) (string, error) {
	iv, ciphertext, err := crypto.EncryptText(content, password)
	if err != nil {
		return "", fmt.Errorf("encrypt message: %w", err)
	}

	createdAt := s.now()
	msg := &models.Message{
		Ciphertext: ciphertext,
		IV:         iv,
		CreatedAt:  createdAt,
		IsOneTime:  isOneTime,
	}
	if minutesToExpire > 0 {
		expiresAt := createdAt.Add(time.Duration(minutesToExpire) * time.Minute)
		msg.ExpiresAt = &expiresAt
	}

	// One retry with a fresh id on collision; the id space makes a second
	// collision effectively impossible.
	for attempt := 0; attempt < 2; attempt++ {
		msg.ID = crypto.GenerateID()
		err = s.store.Create(ctx, msg)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateID) {
			return "", fmt.Errorf("save message: %w", err)
		}
		s.logger.Warn("message id collision, regenerating", "id", msg.ID)
	}
	if err != nil {
		return "", fmt.Errorf("save message: %w", err)
	}

	s.countCreation(ctx, isOneTime, minutesToExpire > 0)

	return msg.ID, nil
}

// countCreation bumps the display counters. Counts are best-effort telemetry:
// a failed increment is logged and never fails the creation.
func (s *Service) countCreation(ctx context.Context, isOneTime, isExpiring bool) {
	categories := []models.CounterType{models.CounterAll}
	if isOneTime {
		categories = append(categories, models.CounterOneTime)
	}
	if isExpiring {
		categories = append(categories, models.CounterExpiring)
	}
	if !isOneTime && !isExpiring {
		categories = append(categories, models.CounterStandard)
	}

	for _, t := range categories {
		if err := s.store.IncrementCounter(ctx, t); err != nil {
			s.logger.Error("counter increment failed", "type", t, "error", err)
		}
	}
}

// FetchForView returns the message if it is still servable. A message that
// exists but is expired or consumed is deleted on the spot and reported as
// not found, exactly like an id that never existed.
func (s *Service) FetchForView(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}

	if !msg.Servable(s.now()) {
		// Best-effort cleanup; the caller still gets not-found even if the
		// delete fails, the sweep will catch it later.
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error("cleanup of dead message failed", "id", id, "error", err)
		}
		return nil, store.ErrNotFound
	}
	return msg, nil
}

// AttemptDecrypt is the only path that can consume a one-time message. A
// failed decryption leaves the message untouched, so the recipient may retry
// with the correct password.
func (s *Service) AttemptDecrypt(ctx context.Context, id, password string) (*ViewResult, error) {
	msg, err := s.FetchForView(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := crypto.DecryptText(msg.Ciphertext, msg.IV, password)
	if err != nil {
		if errors.Is(err, crypto.ErrDecrypt) {
			return nil, ErrIncorrectPassword
		}
		return nil, err
	}

	applied, err := s.store.MarkViewed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark message viewed: %w", err)
	}
	// Two racing decrypts of a one-time message: only the one that performed
	// the viewed transition gets the plaintext.
	if msg.IsOneTime && !applied {
		return nil, store.ErrNotFound
	}

	return &ViewResult{
		Content:   content,
		CreatedAt: msg.CreatedAt,
		ExpiresAt: msg.ExpiresAt,
		IsOneTime: msg.IsOneTime,
	}, nil
}

// Housekeeping deletes every expired or consumed message in one sweep.
// Invoked by the authenticated HTTP trigger and the background ticker.
func (s *Service) Housekeeping(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpiredOrViewed(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("housekeeping sweep: %w", err)
	}
	return deleted, nil
}

// Stats returns the value of every counter category.
func (s *Service) Stats(ctx context.Context) (map[models.CounterType]int64, error) {
	stats := make(map[models.CounterType]int64, len(models.CounterTypes))
	for _, t := range models.CounterTypes {
		count, err := s.store.CounterValue(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("read counter %s: %w", t, err)
		}
		stats[t] = count
	}
	return stats, nil
}
