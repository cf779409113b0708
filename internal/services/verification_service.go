package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bizmart/internal/models"
	"bizmart/internal/repositories"
	"bizmart/internal/utils"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNoValidOtp         = errors.New("no active code, request a new one")
	ErrOtpExpired         = errors.New("code expired")
	ErrOtpInvalid         = errors.New("code invalid")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrResendCooldown     = errors.New("resend cooldown not elapsed")
	ErrResendQuota        = errors.New("resend quota exhausted")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailDelivery      = errors.New("verification email delivery failed")
)

// DuplicateFieldError names the registration field that collides with an
// existing user, so the client can attach the message to the right input.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	if e.Field == "" {
		return "field already taken"
	}
	return strings.ToUpper(e.Field[:1]) + e.Field[1:] + " already taken"
}

// Defaults; overridable from the otp: section of the config.
const (
	defaultCodeTTL        = 10 * time.Minute
	defaultMaxAttempts    = 5
	defaultResendCooldown = 60 * time.Second
	defaultMaxResends     = 5
)

type VerificationOptions struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	MaxResends     int
	CodeLength     int
}

func (o *VerificationOptions) fillDefaults() {
	if o.CodeTTL <= 0 {
		o.CodeTTL = defaultCodeTTL
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.ResendCooldown <= 0 {
		o.ResendCooldown = defaultResendCooldown
	}
	if o.MaxResends <= 0 {
		o.MaxResends = defaultMaxResends
	}
	if o.CodeLength <= 0 {
		o.CodeLength = utils.DefaultOTPLength
	}
}

// VerificationService drives the register → verify/resend → activate flow.
// It is the only writer of email_verifications records.
type VerificationService struct {
	users  repositories.UserRepository
	codes  repositories.EmailVerificationRepository
	emails EmailService
	auth   AuthService
	opts   VerificationOptions
}

func NewVerificationService(
	users repositories.UserRepository,
	codes repositories.EmailVerificationRepository,
	emails EmailService,
	auth AuthService,
	opts VerificationOptions,
) *VerificationService {
	opts.fillDefaults()
	return &VerificationService{
		users:  users,
		codes:  codes,
		emails: emails,
		auth:   auth,
		opts:   opts,
	}
}

// Register creates an inactive user and dispatches the first OTP. The three
// uniqueness probes run concurrently; collisions are reported in the fixed
// order username, email, phone. The underlying UNIQUE constraints remain the
// backstop for a probe race.
func (s *VerificationService) Register(req *models.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	phone := strings.TrimSpace(req.Phone)

	probes := []struct {
		field string
		find  func() (*models.User, error)
	}{
		{"username", func() (*models.User, error) { return s.users.GetByUsername(username) }},
		{"email", func() (*models.User, error) { return s.users.GetByEmail(email) }},
		{"phone", func() (*models.User, error) { return s.users.GetByPhone(phone) }},
	}

	found := make([]*models.User, len(probes))
	var g errgroup.Group
	for i := range probes {
		i := i
		g.Go(func() error {
			u, err := probes[i].find()
			if err != nil {
				return err
			}
			found[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, u := range found {
		if u != nil {
			return nil, &DuplicateFieldError{Field: probes[i].field}
		}
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		Username:     username,
		Phone:        phone,
		PasswordHash: hash,
		Active:       false,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	log.Printf("[auth][register] user created id=%d email=%s (inactive)", user.ID, user.Email)

	// User and record persist even if dispatch fails; the client recovers
	// via resend.
	if err := s.issueCode(user, 0); err != nil {
		return user, err
	}
	return user, nil
}

// issueCode creates the user's verification record and emails the plaintext.
// resendCount is threaded in explicitly by the caller.
func (s *VerificationService) issueCode(user *models.User, resendCount int) error {
	code, err := utils.GenerateOTP(s.opts.CodeLength)
	if err != nil {
		return err
	}
	now := time.Now()
	rec := &models.EmailVerification{
		UserID:      user.ID,
		CodeHash:    utils.HashOTP(code),
		ExpiresAt:   now.Add(s.opts.CodeTTL),
		Attempts:    0,
		ResendCount: resendCount,
		LastSentAt:  now,
	}
	if err := s.codes.Create(rec); err != nil {
		return err
	}
	if err := s.emails.SendVerificationEmail(user.Email, code); err != nil {
		log.Printf("[auth][otp] send failed user_id=%d: %v", user.ID, err)
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	log.Printf("[auth][otp] sent user_id=%d resend_count=%d expires_at=%s",
		user.ID, resendCount, rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

// VerifyEmail compares the submitted code against the live record. On a match
// the user is activated, the record is deleted (the code can never replay)
// and a session token is issued — the auto-login step.
// An already-active user is an idempotent success: (user, "", nil).
func (s *VerificationService) VerifyEmail(email, code string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}
	if user.Active {
		return user, "", nil
	}

	rec, err := s.codes.GetByUserID(user.ID)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", ErrNoValidOtp
	}
	// Expired codes are left in place; the next resend supersedes them and
	// carries their resend_count forward.
	if !time.Now().Before(rec.ExpiresAt) {
		return nil, "", ErrOtpExpired
	}
	if rec.Attempts >= s.opts.MaxAttempts {
		return nil, "", s.exhaust(rec)
	}

	if utils.HashOTP(code) != rec.CodeHash {
		attempts, incErr := s.codes.IncrementAttempts(rec.ID)
		if incErr != nil {
			return nil, "", incErr
		}
		if attempts >= s.opts.MaxAttempts {
			return nil, "", s.exhaust(rec)
		}
		return nil, "", ErrOtpInvalid
	}

	if err := s.users.Activate(user.ID); err != nil {
		return nil, "", err
	}
	user.Active = true
	if _, err := s.codes.Delete(rec.ID); err != nil {
		return nil, "", err
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[auth][verify] user activated id=%d", user.ID)
	return user, token, nil
}

// exhaust deletes a record whose attempt budget is spent. The lineage counter
// comes back from the delete and is logged; a later resend opens a fresh
// lineage, with the cooldown as the remaining rate backstop.
func (s *VerificationService) exhaust(rec *models.EmailVerification) error {
	resendCount, err := s.codes.Delete(rec.ID)
	if err != nil {
		return err
	}
	log.Printf("[auth][verify] attempts exhausted user_id=%d resend_count=%d, record deleted",
		rec.UserID, resendCount)
	return ErrTooManyAttempts
}

// ResendOtp replaces the user's record with a fresh code. The returned flag is
// false when the user is already verified and nothing was sent.
func (s *VerificationService) ResendOtp(email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	if user.Active {
		return false, nil
	}

	nextResend := 1
	rec, err := s.codes.GetByUserID(user.ID)
	if err != nil {
		return false, err
	}
	if rec != nil {
		// Cooldown first, then quota; neither failure mutates the record.
		if time.Since(rec.LastSentAt) < s.opts.ResendCooldown {
			return false, ErrResendCooldown
		}
		if rec.ResendCount >= s.opts.MaxResends {
			return false, ErrResendQuota
		}
		prev, err := s.codes.Delete(rec.ID)
		if err != nil {
			return false, err
		}
		nextResend = prev + 1
	}

	if err := s.issueCode(user, nextResend); err != nil {
		return false, err
	}
	return true, nil
}

// Login checks credentials and issues a session token. Activation is not
// required to log in; the returned user carries Active so the client can
// route unverified accounts to the verification screen.
func (s *VerificationService) Login(email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if !s.auth.CheckPassword(user.PasswordHash, password) {
		log.Printf("[auth][login] password mismatch user_id=%d", user.ID)
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[auth][login] success user_id=%d active=%t", user.ID, user.Active)
	return user, token, nil
}
