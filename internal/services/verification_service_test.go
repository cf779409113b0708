package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizmart/internal/middleware"
	"bizmart/internal/models"
	"bizmart/internal/utils"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{}}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) getBy(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(id int) (*models.User, error) {
	return r.getBy(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	return r.getBy(func(u *models.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	return r.getBy(func(u *models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByPhone(phone string) (*models.User, error) {
	return r.getBy(func(u *models.User) bool { return u.Phone == phone })
}

func (r *fakeUserRepo) Activate(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Active = true
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(userID int, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type fakeCodeRepo struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*models.EmailVerification
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{recs: map[int64]*models.EmailVerification{}}
}

func (r *fakeCodeRepo) Create(v *models.EmailVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.UserID == v.UserID {
			return fmt.Errorf("duplicate record for user %d", v.UserID)
		}
	}
	r.nextID++
	v.ID = r.nextID
	cp := *v
	r.recs[v.ID] = &cp
	return nil
}

func (r *fakeCodeRepo) GetByUserID(userID int) (*models.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.UserID == userID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCodeRepo) IncrementAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return 0, fmt.Errorf("record %d not found", id)
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (r *fakeCodeRepo) Delete(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return 0, nil
	}
	delete(r.recs, id)
	return rec.ResendCount, nil
}

func (r *fakeCodeRepo) DeleteByUserID(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recs {
		if rec.UserID == userID {
			delete(r.recs, id)
		}
	}
	return nil
}

// mutate reaches into the stored record, for backdating timestamps in tests.
func (r *fakeCodeRepo) mutate(userID int, fn func(*models.EmailVerification)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.UserID == userID {
			fn(rec)
		}
	}
}

type fakeMailer struct {
	mu          sync.Mutex
	sent        []string // codes, in dispatch order
	to          []string
	resetTokens []string
	fail        error
}

func (m *fakeMailer) SendVerificationEmail(email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, code)
	m.to = append(m.to, email)
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *fakeMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

var testSecret = []byte("test-secret")

func newTestService(t *testing.T) (*VerificationService, *fakeUserRepo, *fakeCodeRepo, *fakeMailer) {
	t.Helper()
	users := newFakeUserRepo()
	codes := newFakeCodeRepo()
	mailer := &fakeMailer{}
	auth := NewAuthService(testSecret, time.Hour)
	svc := NewVerificationService(users, codes, mailer, auth, VerificationOptions{})
	return svc, users, codes, mailer
}

func register(t *testing.T, svc *VerificationService) *models.User {
	t.Helper()
	user, err := svc.Register(&models.RegisterRequest{
		Email:    "a@x.com",
		Password: "secret1",
		Username: "alice",
		Phone:    "5551234",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesInactiveUserAndRecord(t *testing.T) {
	svc, _, codes, mailer := newTestService(t)

	user := register(t, svc)
	assert.False(t, user.Active)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "alice", user.Username)

	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, 0, rec.ResendCount)
	assert.True(t, rec.ExpiresAt.After(time.Now()))

	code := mailer.lastCode()
	require.Len(t, code, 6)
	assert.Equal(t, utils.HashOTP(code), rec.CodeHash)
	assert.Equal(t, []string{"a@x.com"}, mailer.to)
}

func TestRegisterNormalizesInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	user, err := svc.Register(&models.RegisterRequest{
		Email:    "  Bob@X.COM ",
		Password: "secret1",
		Username: "BOB",
		Phone:    " 5559999 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", user.Email)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, "5559999", user.Phone)
}

func TestRegisterDuplicateFields(t *testing.T) {
	svc, users, codes, _ := newTestService(t)
	register(t, svc)

	cases := []struct {
		name  string
		req   models.RegisterRequest
		field string
	}{
		{"username", models.RegisterRequest{Email: "b@x.com", Password: "secret1", Username: "alice", Phone: "5550000"}, "username"},
		{"email", models.RegisterRequest{Email: "a@x.com", Password: "secret1", Username: "bob", Phone: "5550000"}, "email"},
		{"phone", models.RegisterRequest{Email: "b@x.com", Password: "secret1", Username: "bob", Phone: "5551234"}, "phone"},
		// all three collide: username wins the fixed check order
		{"username first", models.RegisterRequest{Email: "a@x.com", Password: "secret1", Username: "alice", Phone: "5551234"}, "username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(&tc.req)
			var dup *DuplicateFieldError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tc.field, dup.Field)
		})
	}

	// no stray users or records were created
	assert.Len(t, users.users, 1)
	assert.Len(t, codes.recs, 1)
}

func TestRegisterDeliveryFailureKeepsUserAndRecord(t *testing.T) {
	svc, users, codes, mailer := newTestService(t)
	mailer.fail = errors.New("smtp down")

	user, err := svc.Register(&models.RegisterRequest{
		Email:    "a@x.com",
		Password: "secret1",
		Username: "alice",
		Phone:    "5551234",
	})
	require.ErrorIs(t, err, ErrEmailDelivery)
	require.NotNil(t, user)

	stored, err := users.GetByEmail("a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	rec, err := codes.GetByUserID(stored.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestVerifyEmailSuccessActivatesAndLogsIn(t *testing.T) {
	svc, users, codes, mailer := newTestService(t)
	user := register(t, svc)

	verified, token, err := svc.VerifyEmail("a@x.com", mailer.lastCode())
	require.NoError(t, err)
	assert.True(t, verified.Active)
	require.NotEmpty(t, token)

	claims, err := middleware.ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)

	stored, err := users.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "record must be consumed")

	// replaying the same code hits the idempotent already-verified path
	again, token2, err := svc.VerifyEmail("a@x.com", mailer.lastCode())
	require.NoError(t, err)
	assert.True(t, again.Active)
	assert.Empty(t, token2)
}

func TestVerifyEmailUserNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, _, err := svc.VerifyEmail("ghost@x.com", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyEmailNoRecord(t *testing.T) {
	svc, _, codes, _ := newTestService(t)
	user := register(t, svc)
	require.NoError(t, codes.DeleteByUserID(user.ID))

	_, _, err := svc.VerifyEmail("a@x.com", "123456")
	assert.ErrorIs(t, err, ErrNoValidOtp)
}

func TestVerifyEmailExpired(t *testing.T) {
	svc, _, codes, mailer := newTestService(t)
	user := register(t, svc)
	codes.mutate(user.ID, func(rec *models.EmailVerification) {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
	})

	_, _, err := svc.VerifyEmail("a@x.com", mailer.lastCode())
	assert.ErrorIs(t, err, ErrOtpExpired)

	// expiry failure does not touch the attempt counter or delete the record
	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.Attempts)
}

func TestVerifyEmailAttemptBudget(t *testing.T) {
	svc, _, codes, _ := newTestService(t)
	user := register(t, svc)

	for i := 1; i <= 4; i++ {
		_, _, err := svc.VerifyEmail("a@x.com", "000000")
		assert.ErrorIs(t, err, ErrOtpInvalid, "attempt %d", i)
		rec, getErr := codes.GetByUserID(user.ID)
		require.NoError(t, getErr)
		require.NotNil(t, rec)
		assert.Equal(t, i, rec.Attempts)
	}

	// fifth mismatch reaches the budget: record deleted
	_, _, err := svc.VerifyEmail("a@x.com", "000000")
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// sixth attempt has nothing to check against
	_, _, err = svc.VerifyEmail("a@x.com", "000000")
	assert.ErrorIs(t, err, ErrNoValidOtp)
}

func TestResendCooldown(t *testing.T) {
	svc, _, codes, _ := newTestService(t)
	user := register(t, svc)

	before, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)

	_, err = svc.ResendOtp("a@x.com")
	assert.ErrorIs(t, err, ErrResendCooldown)

	after, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, before.CodeHash, after.CodeHash)
	assert.Equal(t, before.ResendCount, after.ResendCount)
	assert.Equal(t, before.LastSentAt.Unix(), after.LastSentAt.Unix())
}

func TestResendReplacesRecord(t *testing.T) {
	svc, _, codes, mailer := newTestService(t)
	user := register(t, svc)

	first, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)

	codes.mutate(user.ID, func(rec *models.EmailVerification) {
		rec.LastSentAt = time.Now().Add(-61 * time.Second)
		rec.Attempts = 2
	})

	sent, err := svc.ResendOtp("a@x.com")
	require.NoError(t, err)
	assert.True(t, sent)

	second, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.CodeHash, second.CodeHash)
	assert.Equal(t, 1, second.ResendCount)
	assert.Equal(t, 0, second.Attempts)
	assert.Len(t, mailer.sent, 2)
}

func TestResendQuota(t *testing.T) {
	svc, _, codes, mailer := newTestService(t)
	user := register(t, svc)
	codes.mutate(user.ID, func(rec *models.EmailVerification) {
		rec.LastSentAt = time.Now().Add(-2 * time.Minute)
		rec.ResendCount = 5
	})

	_, err := svc.ResendOtp("a@x.com")
	assert.ErrorIs(t, err, ErrResendQuota)

	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Len(t, mailer.sent, 1, "no email on quota failure")
}

func TestResendWithoutRecordStartsFreshLineage(t *testing.T) {
	svc, _, codes, _ := newTestService(t)
	user := register(t, svc)
	require.NoError(t, codes.DeleteByUserID(user.ID))

	sent, err := svc.ResendOtp("a@x.com")
	require.NoError(t, err)
	assert.True(t, sent)

	rec, err := codes.GetByUserID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.ResendCount)
}

func TestResendAlreadyVerified(t *testing.T) {
	svc, _, _, mailer := newTestService(t)
	register(t, svc)
	_, _, err := svc.VerifyEmail("a@x.com", mailer.lastCode())
	require.NoError(t, err)

	sent, err := svc.ResendOtp("a@x.com")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestResendUserNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.ResendOtp("ghost@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	user := register(t, svc)

	t.Run("success while inactive", func(t *testing.T) {
		got, token, err := svc.Login("a@x.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.False(t, got.Active)
		require.NotEmpty(t, token)

		claims, err := middleware.ParseToken(testSecret, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login("a@x.com", "wrongpass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login("ghost@x.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestDuplicateFieldErrorMessage(t *testing.T) {
	err := &DuplicateFieldError{Field: "username"}
	assert.Equal(t, "Username already taken", err.Error())
}
