package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type OTPConfig struct {
	ExpMinutes            int `yaml:"exp_minutes"`
	MaxAttempts           int `yaml:"max_attempts"`
	ResendIntervalSeconds int `yaml:"resend_interval_seconds"`
	MaxResendPerHour      int `yaml:"max_resend_per_hour"`
	Length                int `yaml:"length"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	OTP OTPConfig `yaml:"otp"`
}

func LoadConfig() *Config {
	// .env is optional; secrets usually come from the environment
	_ = godotenv.Load()

	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTPPassword = v
	}

	if cfg.OTP.ExpMinutes <= 0 {
		cfg.OTP.ExpMinutes = 10
	}
	if cfg.OTP.MaxAttempts <= 0 {
		cfg.OTP.MaxAttempts = 5
	}
	if cfg.OTP.ResendIntervalSeconds <= 0 {
		cfg.OTP.ResendIntervalSeconds = 60
	}
	if cfg.OTP.MaxResendPerHour <= 0 {
		cfg.OTP.MaxResendPerHour = 5
	}
	if cfg.OTP.Length <= 0 {
		cfg.OTP.Length = 6
	}
	return &cfg
}
