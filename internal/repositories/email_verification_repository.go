package repositories

import (
	"database/sql"
	"fmt"

	"bizmart/internal/models"
)

type EmailVerificationRepository interface {
	Create(v *models.EmailVerification) error
	GetByUserID(userID int) (*models.EmailVerification, error)
	IncrementAttempts(id int64) (int, error)
	Delete(id int64) (resendCount int, err error)
	DeleteByUserID(userID int) error
}

type emailVerificationRepository struct {
	DB *sql.DB
}

func NewEmailVerificationRepository(db *sql.DB) EmailVerificationRepository {
	return &emailVerificationRepository{DB: db}
}

// Create inserts the user's current verification record. UNIQUE(user_id)
// backstops the one-live-record-per-user invariant at the storage layer.
func (r *emailVerificationRepository) Create(v *models.EmailVerification) error {
	const q = `
		INSERT INTO email_verifications (user_id, code_hash, expires_at, attempts, resend_count, last_sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.DB.QueryRow(q,
		v.UserID, v.CodeHash, v.ExpiresAt, v.Attempts, v.ResendCount, v.LastSentAt,
	).Scan(&v.ID); err != nil {
		return fmt.Errorf("email_verification create: %w", err)
	}
	return nil
}

func (r *emailVerificationRepository) GetByUserID(userID int) (*models.EmailVerification, error) {
	const q = `
		SELECT id, user_id, code_hash, expires_at, attempts, resend_count, last_sent_at
		FROM email_verifications
		WHERE user_id = $1
	`
	var v models.EmailVerification
	err := r.DB.QueryRow(q, userID).Scan(
		&v.ID, &v.UserID, &v.CodeHash, &v.ExpiresAt, &v.Attempts, &v.ResendCount, &v.LastSentAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("email_verification get: %w", err)
	}
	return &v, nil
}

// IncrementAttempts adds one failed comparison and returns the new count.
func (r *emailVerificationRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE email_verifications
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("email_verification increment attempts: %w", err)
	}
	return attempts, nil
}

// Delete removes the record and hands back its resend_count so the caller can
// thread the lineage counter explicitly instead of keeping it anywhere global.
func (r *emailVerificationRepository) Delete(id int64) (int, error) {
	const q = `
		DELETE FROM email_verifications
		WHERE id = $1
		RETURNING resend_count
	`
	var resendCount int
	err := r.DB.QueryRow(q, id).Scan(&resendCount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("email_verification delete: %w", err)
	}
	return resendCount, nil
}

func (r *emailVerificationRepository) DeleteByUserID(userID int) error {
	if _, err := r.DB.Exec(`DELETE FROM email_verifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("email_verification delete by user: %w", err)
	}
	return nil
}
