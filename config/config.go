package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort      string        `env:"SERVER_PORT" env-default:"8080" validate:"required,numeric"`
	ServerHost      string        `env:"SERVER_HOST" env-default:"0.0.0.0"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	FrontendURL     string        `env:"FRONTEND_URL" env-default:"http://localhost:5173" validate:"required,url"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" validate:"omitempty,oneof=json text"`

	// Database configuration
	DBHost     string `env:"DB_HOST" env-default:"localhost"`
	DBPort     string `env:"DB_PORT" env-default:"5432"`
	DBUser     string `env:"DB_USER" env-default:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" env-default:"plately"`
	DBSSLMode  string `env:"DB_SSL_MODE" env-default:"disable" validate:"oneof=disable require verify-ca verify-full"`

	// Redis configuration
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     string `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisURL      string `env:"REDIS_URL"`

	// Firebase ID token verification
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	FirebaseJWKSURL   string `env:"FIREBASE_JWKS_URL" env-default:"https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"`
	AuthDisabled      bool   `env:"AUTH_DISABLED" env-default:"false"`

	// OpenAI
	OpenAIAPIKey            string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL           string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1" validate:"required,url"`
	ChatModel               string `env:"OPENAI_CHAT_MODEL" env-default:"gpt-4o-mini"`
	VisionModel             string `env:"OPENAI_VISION_MODEL" env-default:"gpt-4o-mini"`
	ImageModel              string `env:"OPENAI_IMAGE_MODEL" env-default:"gpt-image-1"`
	ImageFallbackModel      string `env:"OPENAI_IMAGE_FALLBACK_MODEL" env-default:"dall-e-3"`
	ImageSize               string `env:"OPENAI_IMAGE_SIZE" env-default:"1024x1024"`
	ImageGenMaxConcurrency  int    `env:"IMAGE_GEN_MAX_CONCURRENCY" env-default:"1" validate:"min=1"`
	AICategorizationEnabled bool   `env:"AI_CATEGORIZATION_ENABLED" env-default:"true"`

	// Blob storage
	S3BucketName      string        `env:"S3_BUCKET_NAME" env-default:"plately-uploads"`
	AWSRegion         string        `env:"AWS_REGION" env-default:"us-east-1"`
	S3Endpoint        string        `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool          `env:"S3_USE_PATH_STYLE" env-default:"false"`
	UploadURLTTL      time.Duration `env:"UPLOAD_URL_TTL" env-default:"15m"`
	ReadURLTTL        time.Duration `env:"READ_URL_TTL" env-default:"1h"`
	RecipeImageURLTTL time.Duration `env:"RECIPE_IMAGE_URL_TTL" env-default:"168h" validate:"max=168h"`

	// Billing
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePricePremium  string `env:"STRIPE_PRICE_PREMIUM"`
	StripePricePro      string `env:"STRIPE_PRICE_PRO"`

	// Quota and transient state
	FreeMealLimit int           `env:"FREE_MEAL_LIMIT" env-default:"30" validate:"min=1"`
	SessionTTL    time.Duration `env:"SESSION_TTL" env-default:"24h"`

	// Per-user hourly rate limits
	ScanRateLimit      int `env:"RATE_LIMIT_SCANS_PER_HOUR" env-default:"30" validate:"min=1"`
	MealImageRateLimit int `env:"RATE_LIMIT_MEAL_IMAGES_PER_HOUR" env-default:"60" validate:"min=1"`
}

// secretTargets maps Docker secret names to the config fields they override
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"db_user":               &cfg.DBUser,
		"db_password":           &cfg.DBPassword,
		"redis_password":        &cfg.RedisPassword,
		"redis_url":             &cfg.RedisURL,
		"openai_api_key":        &cfg.OpenAIAPIKey,
		"stripe_secret_key":     &cfg.StripeSecretKey,
		"stripe_webhook_secret": &cfg.StripeWebhookSecret,
		"firebase_project_id":   &cfg.FirebaseProjectID,
	}
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := &Config{}

	if env == Development || env == Test {
		// A missing .env file is fine; real deployments never ship one.
		_ = godotenv.Load()
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyEnvironmentDefaults(cfg, env)

	switch env {
	case CI:
		// CI injects every secret as a plain environment variable.
	case Development, Test, Production:
		loadSecretFiles(cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentDefaults fills settings whose default depends on the environment
func applyEnvironmentDefaults(cfg *Config, env Environment) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if env == Production {
			cfg.LogFormat = "json"
		}
	}
}

// loadSecretFiles overlays Docker secrets on top of the environment
func loadSecretFiles(cfg *Config) {
	for name, target := range secretTargets(cfg) {
		if value := readSecret(name); value != "" {
			*target = value
		}
	}
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

// DSN returns the postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// FirebaseIssuer is the issuer Firebase stamps on ID tokens for this project
func (c *Config) FirebaseIssuer() string {
	return "https://securetoken.google.com/" + c.FirebaseProjectID
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}
