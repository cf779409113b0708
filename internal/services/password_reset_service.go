package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"bizmart/internal/repositories"
	"bizmart/internal/utils"
)

var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

const resetTokenTTL = 1 * time.Hour

type PasswordResetService interface {
	RequestReset(email string) error
	ResetPassword(token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService
	auth     AuthService
}

func NewPasswordResetService(userRepo repositories.UserRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService) PasswordResetService {
	return &passwordResetService{
		userRepo: userRepo,
		repo:     repo,
		emails:   emails,
		auth:     auth,
	}
}

// RequestReset always reports success to the caller: reset requests must not
// leak whether an email is registered.
func (s *passwordResetService) RequestReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(email)
	if err != nil || user == nil {
		log.Printf("[auth][password-reset] request for %q: user not found or error: %v", email, err)
		return nil
	}

	token, err := utils.NewToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
		log.Printf("[auth][password-reset] failed to send email user_id=%d: %v", user.ID, err)
	}
	return nil
}

func (s *passwordResetService) ResetPassword(token, newPassword string) error {
	token = strings.TrimSpace(token)

	pr, err := s.repo.GetByToken(token)
	if err != nil {
		return err
	}
	if pr == nil || pr.UsedAt != nil || time.Now().After(pr.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(pr.UserID, hash); err != nil {
		return err
	}
	log.Printf("[auth][password-reset] password updated user_id=%d", pr.UserID)
	return s.repo.MarkUsed(pr.ID)
}
