package models

import "time"

// Message is an encrypted message as persisted by the store. The plaintext
// never touches storage; only the hex-encoded ciphertext and IV do.
type Message struct {
	ID         string     `json:"id"`
	Ciphertext string     `json:"-"`
	IV         string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"` // nil = never expires
	IsOneTime  bool       `json:"one_time"`
	IsViewed   bool       `json:"-"`
}

// Expired reports whether the message's expiry has passed. A message whose
// expiry equals now is already expired.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Consumed reports whether a one-time message has already been decrypted.
func (m *Message) Consumed() bool {
	return m.IsOneTime && m.IsViewed
}

// Servable reports whether the message may still be shown to a visitor.
// Once false it stays false for every later now.
func (m *Message) Servable(now time.Time) bool {
	if m == nil {
		return false
	}
	return !m.Expired(now) && !m.Consumed()
}
