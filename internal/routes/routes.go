package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bizmart/internal/handlers"
	"bizmart/internal/middleware"
)

func SetupRoutes(r *gin.Engine, authHandler *handlers.AuthHandler, passwordHandler *handlers.PasswordHandler, jwtSecret []byte) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-otp", authHandler.ResendOtp)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/forgot-password", passwordHandler.ForgotPassword)
		auth.POST("/reset-password", passwordHandler.ResetPassword)

		// session resolves to a null user instead of 401 when unauthenticated
		auth.GET("/session", middleware.AuthOptional(jwtSecret), authHandler.Session)
	}

	return r
}
