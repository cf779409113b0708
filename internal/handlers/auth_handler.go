package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bizmart/internal/middleware"
	"bizmart/internal/models"
	"bizmart/internal/repositories"
	"bizmart/internal/services"
)

type AuthHandler struct {
	flow  *services.VerificationService
	users repositories.UserRepository
}

func NewAuthHandler(flow *services.VerificationService, users repositories.UserRepository) *AuthHandler {
	return &AuthHandler{flow: flow, users: users}
}

// setSessionCookie persists the token as an HTTP-only cookie for the whole
// site. No MaxAge/Secure/SameSite yet — production hardening, not behavior.
func setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(middleware.AuthCookie, token, 0, "/", "", false, true)
}

// @Summary      Register a new account
// @Description  Creates an inactive user and emails a 6-digit verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        input  body      models.RegisterRequest  true  "Registration data"
// @Success      201    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      502    {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.flow.Register(&req)
	if err != nil {
		var dup *services.DuplicateFieldError
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusBadRequest, gin.H{"error": dup.Error(), "field": dup.Field})
		case errors.Is(err, services.ErrEmailDelivery):
			// user already persisted; the client recovers via resend
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send verification email, please request a resend"})
		default:
			log.Printf("[auth][register] service error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"email":   user.Email,
		"message": "Please verify your email with the code we just sent",
	})
}

// @Summary      Verify email with OTP
// @Description  Activates the account and logs the user in when the code matches
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        input  body      models.VerifyEmailRequest  true  "Email and 6-digit code"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.flow.VerifyEmail(req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrNoValidOtp):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active code, please request a new one"})
		case errors.Is(err, services.ErrOtpExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Code expired, please request a new one"})
		case errors.Is(err, services.ErrTooManyAttempts):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Too many attempts, please request a new code"})
		case errors.Is(err, services.ErrOtpInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect OTP"})
		default:
			log.Printf("[auth][verify] service error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		}
		return
	}

	// idempotent path: account was already active, nothing to consume
	if token == "" {
		c.JSON(http.StatusOK, gin.H{
			"message":  "Email already verified",
			"redirect": "/sign-in",
		})
		return
	}

	setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Email verified",
		"user":     user,
		"token":    token,
		"redirect": "/",
	})
}

// @Summary      Resend verification OTP
// @Description  Replaces the pending code with a fresh one, subject to cooldown and quota
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        input  body      models.ResendOtpRequest  true  "Account email"
// @Success      200    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      429    {object}  map[string]string
// @Router       /auth/resend-otp [post]
func (h *AuthHandler) ResendOtp(c *gin.Context) {
	var req models.ResendOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sent, err := h.flow.ResendOtp(req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrResendCooldown):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Please wait before requesting another code"})
		case errors.Is(err, services.ErrResendQuota):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Resend limit reached"})
		case errors.Is(err, services.ErrEmailDelivery):
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send verification email, please try again"})
		default:
			log.Printf("[auth][resend] service error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Resend failed"})
		}
		return
	}

	if !sent {
		c.JSON(http.StatusOK, gin.H{"message": "Email already verified"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "A new code has been sent to your email"})
}

// @Summary      Log in
// @Description  Authenticates by email/password and sets the session cookie
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.flow.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		log.Printf("[auth][login] service error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// @Summary      Log out
// @Description  Deletes the session cookie; always succeeds
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// @Summary      Current session
// @Description  Returns the authenticated user, or a null user when the token is absent or invalid
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := getIntFromCtx(c, "user_id")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
