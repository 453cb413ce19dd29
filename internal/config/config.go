package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds settings for the HTTP server runtime.
type ServerConfig struct {
	ListenAddr      string
	Env             string
	Database        DatabaseConfig
	JWT             JWTConfig
	Completion      CompletionConfig
	Log             LogConfig
	Uploads         UploadConfig
	RateLimit       RateLimitConfig
	BcryptCost      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	DSN    string
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// CompletionConfig describes the OpenAI-compatible completion endpoint.
type CompletionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// LogConfig selects the slog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// UploadConfig bounds transient image uploads.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// RateLimitConfig applies to the authentication endpoints, per client IP.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// IsProduction reports whether the server runs with production defaults.
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// LoadServerConfig builds the server configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func LoadServerConfig() ServerConfig {
	_ = godotenv.Load()

	return ServerConfig{
		ListenAddr:      envOrDefault("NOVAMIND_LISTEN_ADDR", ":"+envOrDefault("PORT", "5000")),
		Env:             envOrDefault("NOVAMIND_ENV", "development"),
		Database:        loadDatabaseConfig(),
		JWT:             loadJWTConfig(),
		Completion:      loadCompletionConfig(),
		Log:             LogConfig{Level: envOrDefault("NOVAMIND_LOG_LEVEL", "info"), Format: envOrDefault("NOVAMIND_LOG_FORMAT", "text")},
		Uploads:         UploadConfig{Dir: envOrDefault("NOVAMIND_UPLOAD_DIR", "uploads"), MaxBytes: int64(envInt("NOVAMIND_UPLOAD_MAX_BYTES", 10<<20))},
		RateLimit:       RateLimitConfig{RPS: envFloat("NOVAMIND_AUTH_RPS", 5), Burst: envInt("NOVAMIND_AUTH_BURST", 10)},
		BcryptCost:      envInt("NOVAMIND_BCRYPT_COST", 10),
		ReadTimeout:     envDuration("NOVAMIND_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    envDuration("NOVAMIND_WRITE_TIMEOUT", 90*time.Second),
		ShutdownTimeout: envDuration("NOVAMIND_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: envOrDefault("NOVAMIND_DB_DRIVER", DriverSQLite),
		DSN:    envOrDefault("NOVAMIND_DATABASE_URL", "novamind.db"),
	}
}

func loadJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:     envOrDefault("NOVAMIND_JWT_SECRET", "replace-me"),
		Issuer:     envOrDefault("NOVAMIND_JWT_ISSUER", "novamind"),
		Expiration: envDuration("NOVAMIND_JWT_EXPIRATION", 24*time.Hour),
	}
}

func loadCompletionConfig() CompletionConfig {
	return CompletionConfig{
		APIKey:      envOrDefault("NOVAMIND_LLM_API_KEY", os.Getenv("GROQ_API_KEY")),
		BaseURL:     envOrDefault("NOVAMIND_LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		Model:       envOrDefault("NOVAMIND_LLM_MODEL", "llama-3.3-70b-versatile"),
		VisionModel: envOrDefault("NOVAMIND_LLM_VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		Temperature: float32(envFloat("NOVAMIND_LLM_TEMPERATURE", 0.7)),
		MaxTokens:   envInt("NOVAMIND_LLM_MAX_TOKENS", 1024),
		Timeout:     envDuration("NOVAMIND_LLM_TIMEOUT", 60*time.Second),
	}
}

func envOrDefault(key, value string) string {
	if env, ok := os.LookupEnv(key); ok && env != "" {
		return env
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(env); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(env); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(env, 64); err == nil {
			return parsed
		}
	}
	return def
}
