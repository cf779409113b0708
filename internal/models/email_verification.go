package models

import "time"

// EmailVerification — the single live OTP record for a not-yet-activated user.
// Only the SHA-256 hex of the code is stored (CodeHash); the plaintext goes out
// by email and is never persisted. A consumed, exhausted or superseded record is
// deleted outright, so row existence is what "valid" means.
type EmailVerification struct {
	ID          int64     `json:"id"`
	UserID      int       `json:"user_id"`
	CodeHash    string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	ResendCount int       `json:"resend_count"`
	LastSentAt  time.Time `json:"last_sent_at"`
}
