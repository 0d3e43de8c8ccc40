package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Billing  BillingConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	CookieDomain       string
	CookieSecure       bool
	WorkerMetricsPort  string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string // if set, used as-is (e.g. postgres://localhost:5432/church?sslmode=disable)
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the audit archive bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AuditBucket     string
}

// BillingConfig tunes trials, overage grace and the subscription gate.
type BillingConfig struct {
	MissingSubscriptionPolicy string // allow | deny
	TrialDays                 int
	OverageGraceDays          int
	PlanCacheTTL              time.Duration
	DowngradeSchedule         string
}

// AuditConfig tunes audit recording and archival.
type AuditConfig struct {
	WriteTimeout    time.Duration
	ArchiveSchedule string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			CookieDomain:       getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:       getEnvBool("COOKIE_SECURE", false),
			WorkerMetricsPort:  getEnv("WORKER_METRICS_PORT", "9091"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "church"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MIN", 60)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AuditBucket:     getEnv("AWS_S3_AUDIT_BUCKET", ""),
		},
		Billing: BillingConfig{
			MissingSubscriptionPolicy: strings.ToLower(getEnv("MISSING_SUBSCRIPTION_POLICY", "allow")),
			TrialDays:                 getEnvInt("TRIAL_DAYS", 14),
			OverageGraceDays:          getEnvInt("OVERAGE_GRACE_DAYS", 7),
			PlanCacheTTL:              time.Duration(getEnvInt("PLAN_CACHE_TTL_SEC", 300)) * time.Second,
			DowngradeSchedule:         getEnv("DOWNGRADE_SCHEDULE", "*/15 * * * *"),
		},
		Audit: AuditConfig{
			WriteTimeout:    time.Duration(getEnvInt("AUDIT_WRITE_TIMEOUT_SEC", 5)) * time.Second,
			ArchiveSchedule: getEnv("AUDIT_ARCHIVE_SCHEDULE", "30 1 * * *"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Billing.MissingSubscriptionPolicy {
	case "allow", "deny":
	default:
		return fmt.Errorf("MISSING_SUBSCRIPTION_POLICY must be allow or deny, got %q", c.Billing.MissingSubscriptionPolicy)
	}
	if c.Billing.TrialDays <= 0 {
		return fmt.Errorf("TRIAL_DAYS must be positive")
	}
	if c.Billing.OverageGraceDays < 0 {
		return fmt.Errorf("OVERAGE_GRACE_DAYS must not be negative")
	}
	if c.JWT.ExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
