package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendVerificationEmail(email, code string) error
	SendPasswordResetEmail(email, token string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *emailService) SendVerificationEmail(email, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "OTP verification")

	body := fmt.Sprintf(`
		<div style="font-family:system-ui">
			<h2 style="color:#F370FF;">Bizmart OTP</h2>
			<p>Your code (OTP) is:</p>
			<p style="font-size:26px;letter-spacing:6px;font-weight:700">%s</p>
			<p>OTP expires after 10 minutes.</p>
			<p>If you did not register, please ignore this email.</p>
		</div>
	`, code)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

func (s *emailService) SendPasswordResetEmail(email, token string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password reset request")

	body := fmt.Sprintf(`
		<div style="font-family:system-ui">
			<h2 style="color:#F370FF;">Bizmart</h2>
			<p>We received a request to reset the password for your account.</p>
			<p>Use the following token to reset your password: <strong>%s</strong></p>
			<p>The token expires after 1 hour.</p>
			<p>If you did not request this change, you can ignore this email.</p>
		</div>
	`, token)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	return nil
}
