package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything read from the environment at startup
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	AutoMigrate bool

	JWTSecret string
	AdminCode string

	RedisAddr     string
	RedisPassword string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadPreset string
	MediaFolder            string

	SMTPHost  string
	SMTPPort  int
	EmailUser string
	EmailPass string

	Timezone         string
	ReminderSchedule string
	ResetCodeTTL     time.Duration

	LoginRate  float64
	LoginBurst int
}

var current = Defaults()

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:             "8000",
		Env:              "development",
		AdminCode:        "ADMIN123",
		MediaFolder:      "spa",
		SMTPPort:         587,
		Timezone:         "Asia/Ho_Chi_Minh",
		ReminderSchedule: "0 8 * * *",
		ResetCodeTTL:     time.Hour,
		LoginRate:        1,
		LoginBurst:       5,
	}
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables directly")
	}

	d := Defaults()
	cfg := &Config{
		Port:        env("PORT", d.Port),
		Env:         env("APP_ENV", d.Env),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: envBool("AUTO_MIGRATE", false),

		JWTSecret: os.Getenv("JWT_SECRET"),
		AdminCode: env("ADMIN_CODE", d.AdminCode),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		MediaFolder:            env("MEDIA_FOLDER", d.MediaFolder),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  envInt("SMTP_PORT", d.SMTPPort),
		EmailUser: os.Getenv("EMAIL_USER"),
		EmailPass: os.Getenv("EMAIL_PASS"),

		Timezone:         env("APP_TIMEZONE", d.Timezone),
		ReminderSchedule: env("REMINDER_SCHEDULE", d.ReminderSchedule),
		ResetCodeTTL:     envDuration("RESET_CODE_TTL", d.ResetCodeTTL),

		LoginRate:  envFloat("LOGIN_RATE", d.LoginRate),
		LoginBurst: envInt("LOGIN_BURST", d.LoginBurst),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	current = cfg
	return cfg, nil
}

// Get returns the active configuration
func Get() *Config {
	return current
}

// Set replaces the active configuration. Used by tests.
func Set(cfg *Config) {
	current = cfg
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
