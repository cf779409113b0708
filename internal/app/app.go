package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"bizmart/internal/config"
	"bizmart/internal/handlers"
	"bizmart/internal/repositories"
	"bizmart/internal/routes"
	"bizmart/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "bizmart/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to open database: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)
	passwordResetRepo := repositories.NewPasswordResetRepository(db)

	// === Services ===
	jwtSecret := []byte(cfg.Auth.JWTSecret)
	authService := services.NewAuthService(jwtSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	verificationService := services.NewVerificationService(
		userRepo,
		verificationRepo,
		emailService,
		authService,
		services.VerificationOptions{
			CodeTTL:        time.Duration(cfg.OTP.ExpMinutes) * time.Minute,
			MaxAttempts:    cfg.OTP.MaxAttempts,
			ResendCooldown: time.Duration(cfg.OTP.ResendIntervalSeconds) * time.Second,
			MaxResends:     cfg.OTP.MaxResendPerHour,
			CodeLength:     cfg.OTP.Length,
		},
	)

	passwordResetService := services.NewPasswordResetService(userRepo, passwordResetRepo, emailService, authService)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(verificationService, userRepo)
	passwordHandler := handlers.NewPasswordHandler(passwordResetService)

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, authHandler, passwordHandler, jwtSecret)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("failed to start server: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
