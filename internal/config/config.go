package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Cleanup   CleanupConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	AccessSecret       string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// AuthConfig holds the account policy: lockout, one-time token lifetimes and hashing cost.
type AuthConfig struct {
	MaxLoginAttempts   int
	LockoutWindow      time.Duration
	VerificationExpiry time.Duration
	ResetExpiry        time.Duration
	BcryptCost         int
}

// RedisConfig holds the optional Redis connection used as revocation cache.
// An empty URL disables Redis.
type RedisConfig struct {
	URL string
}

// StorageConfig selects and configures the media store.
type StorageConfig struct {
	Driver         string // "local" or "s3"
	UploadDir      string
	MaxUploadBytes int64
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	PublicURL      string
}

// MailConfig holds SMTP settings for outgoing account emails.
// An empty Host makes the services log links instead of sending mail.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// RateLimitConfig controls the per-IP limiter on credential endpoints.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// CleanupConfig controls background maintenance jobs.
type CleanupConfig struct {
	RevocationPurgeInterval time.Duration
}

// Load reads configuration from environment variables. Values from a .env
// file in the working directory are applied first without overriding the
// real environment. defaultPort is used when SERVER_PORT is unset.
func Load(defaultPort string) *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", defaultPort),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "recetas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getIntEnv("DB_MAX_CONNS", 50)),
			MinConns: int32(getIntEnv("DB_MIN_CONNS", 5)),
		},
		JWT: JWTConfig{
			AccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  getDurationEnv("JWT_ACCESS_EXPIRY", 1*time.Minute),
			RefreshTokenExpiry: getDurationEnv("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			Issuer:             getEnv("JWT_ISSUER", "recetas"),
		},
		Auth: AuthConfig{
			MaxLoginAttempts:   getIntEnv("AUTH_MAX_LOGIN_ATTEMPTS", 3),
			LockoutWindow:      getDurationEnv("AUTH_LOCKOUT_WINDOW", 1*time.Minute),
			VerificationExpiry: getDurationEnv("AUTH_VERIFICATION_EXPIRY", 1*time.Hour),
			ResetExpiry:        getDurationEnv("AUTH_RESET_EXPIRY", 5*time.Minute),
			BcryptCost:         getIntEnv("AUTH_BCRYPT_COST", 10),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Storage: StorageConfig{
			Driver:         getEnv("STORAGE_DRIVER", "local"),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadBytes: int64(getIntEnv("UPLOAD_MAX_BYTES", 50<<20)),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:         getEnv("STORAGE_BUCKET", "recetas"),
			PublicURL:      getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Mail: MailConfig{
			Host:        getEnv("MAIL_HOST", ""),
			Port:        getIntEnv("MAIL_PORT", 587),
			Username:    getEnv("MAIL_USER", ""),
			Password:    getEnv("MAIL_PASSWORD", ""),
			From:        getEnv("MAIL_FROM", "no-reply@recetas.local"),
			FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloatEnv("RATE_LIMIT_RPS", 1),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Cleanup: CleanupConfig{
			RevocationPurgeInterval: getDurationEnv("REVOCATION_PURGE_INTERVAL", 1*time.Hour),
		},
	}
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDurationEnv returns duration from environment variable or default.
// Bare integers are minutes; Go duration strings ("90s") are also accepted.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
