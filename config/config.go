package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        string
	DBDriver    string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir string
	StaticDir string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	AdminEmail    string
	AdminPassword string

	LogLevel  string
	LogFormat string

	AuthRateLimit int
	AuthRateBurst int

	DiseaseAlertSeverity int
	ChatPageLimit        int
	OTPTTL               time.Duration
	JobsEnabled          bool
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Env:           getEnvOrDefault("APP_ENV", "production"),
		Port:          getEnvOrDefault("PORT", "4000"),
		DBDriver:      strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		UploadDir:     getEnvOrDefault("UPLOAD_DIR", "uploads"),
		StaticDir:     os.Getenv("STATIC_DIR"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPUser:      os.Getenv("SMTP_USER"),
		SMTPPass:      os.Getenv("SMTP_PASS"),
		MailFrom:      os.Getenv("MAIL_FROM"),
		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "json"),
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	var err error
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getEnvDuration("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getEnvInt("AUTH_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.AuthRateBurst, err = getEnvInt("AUTH_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.DiseaseAlertSeverity, err = getEnvInt("DISEASE_ALERT_SEVERITY", 8); err != nil {
		return nil, err
	}
	if cfg.ChatPageLimit, err = getEnvInt("CHAT_PAGE_LIMIT", 200); err != nil {
		return nil, err
	}
	if cfg.JobsEnabled, err = getEnvBool("JOBS_ENABLED", true); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "dev_secret"
	}
	positive := map[string]int{
		"AUTH_RATE_LIMIT":        cfg.AuthRateLimit,
		"AUTH_RATE_BURST":        cfg.AuthRateBurst,
		"DISEASE_ALERT_SEVERITY": cfg.DiseaseAlertSeverity,
		"CHAT_PAGE_LIMIT":        cfg.ChatPageLimit,
	}
	for key, v := range positive {
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", key, v)
		}
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DatabaseURL == "" {
		if cfg.DBDriver != "sqlite" {
			return nil, fmt.Errorf("DATABASE_URL is required for %s", cfg.DBDriver)
		}
		cfg.DatabaseURL = "cropverse.db"
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// String masks secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Port: %s, DB: %s, Uploads: %s, SMTP: %s, JWT: ***}",
		c.Env, c.Port, c.DBDriver, c.UploadDir, c.SMTPHost)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
