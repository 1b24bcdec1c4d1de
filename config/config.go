package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	S3        S3Config
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

// UpstreamConfig points at the price backend whose data is reconciled
type UpstreamConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool // echo statements through the GORM logger
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration // dial, read and write
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
	PresignExpiry   time.Duration
}

type ReconcileConfig struct {
	// OverrideApprovalThreshold deviation percent above which an override needs an admin
	OverrideApprovalThreshold float64
	TrendLookbackDays         int
	SnapshotTTL               time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Upstream: UpstreamConfig{
			BaseURL:  getEnv("HARGA_API_BASE_URL", "http://localhost:8000/api"),
			Timeout:  parseDuration(getEnv("HARGA_API_TIMEOUT", "15s"), 15*time.Second),
			PageSize: parseInt(getEnv("HARGA_API_PAGE_SIZE", "100"), 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "pangan_monitor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "5"), 5),
			MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "25"), 25),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
			LogSQL:          parseBool(getEnv("DB_LOG_SQL", "false")),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			PoolSize: parseInt(getEnv("REDIS_POOL_SIZE", "10"), 10),
			Timeout:  parseDuration(getEnv("REDIS_TIMEOUT", "3s"), 3*time.Second),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-southeast-3"),
			Bucket:          getEnv("AWS_S3_BUCKET", "pangan-monitor-evidence"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
			PresignExpiry:   parseDuration(getEnv("AWS_S3_PRESIGN_EXPIRY", "15m"), 15*time.Minute),
		},
		Reconcile: ReconcileConfig{
			OverrideApprovalThreshold: parseFloat(getEnv("OVERRIDE_APPROVAL_THRESHOLD", "50"), 50),
			TrendLookbackDays:         parseInt(getEnv("TREND_LOOKBACK_DAYS", "30"), 30),
			SnapshotTTL:               parseDuration(getEnv("SNAPSHOT_CACHE_TTL", "10m"), 10*time.Minute),
		},
	}

	if config.Reconcile.OverrideApprovalThreshold <= 0 {
		return nil, fmt.Errorf("OVERRIDE_APPROVAL_THRESHOLD must be positive, got %v", config.Reconcile.OverrideApprovalThreshold)
	}
	if config.Reconcile.TrendLookbackDays <= 0 {
		return nil, fmt.Errorf("TREND_LOOKBACK_DAYS must be positive, got %d", config.Reconcile.TrendLookbackDays)
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Invalid number %s, using default %v", s, fallback)
		return fallback
	}
	return f
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
