package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // credentials time zone must resolve in minimal images

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	LogLevel      string
	Store         string
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AWS           AWSConfig
	Credentials   CredentialsConfig
	Notifications NotificationsConfig
	Archive       ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	ShutdownTimeout    int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL            string // if set, used as-is (e.g. postgres://localhost:5432/campuspass?sslmode=disable)
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	ConnectRetries int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Secret      string
	Issuer      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the audit archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Endpoint             string // optional, e.g. a MinIO or localstack URL
	ArchiveBucket        string
	PresignExpireMinutes int
}

// Enabled reports whether an archive bucket is configured.
func (c AWSConfig) Enabled() bool { return c.ArchiveBucket != "" }

// CredentialsConfig controls ticket and certificate rendering.
type CredentialsConfig struct {
	CollegeFallback string
	TimeZone        string
	QRSize          int
	IssuerName      string
}

// Location resolves TimeZone, defaulting to UTC.
func (c CredentialsConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("credentials time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// NotificationsConfig controls the notification queue.
type NotificationsConfig struct {
	QueueName            string
	MaxRetries           int
	EnqueueTimeoutMillis int
	PollTimeoutSeconds   int
	RetryBackoffSeconds  int
}

// EnqueueTimeout bounds how long a request may wait on Redis.
func (c NotificationsConfig) EnqueueTimeout() time.Duration {
	return time.Duration(c.EnqueueTimeoutMillis) * time.Millisecond
}

// ArchiveConfig controls the audit log export.
type ArchiveConfig struct {
	IntervalMinutes int
	BatchSize       int
}

// Interval returns the time between archive runs.
func (c ArchiveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
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
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Store:    strings.ToLower(getEnv("STORE", StorePostgres)),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			ShutdownTimeout:    getEnvInt("SHUTDOWN_TIMEOUT_SEC", 15),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "campuspass"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvInt("DB_MAX_CONNS", 10),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			Issuer:      getEnv("JWT_ISSUER", "campuspass"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			ArchiveBucket:        getEnv("AWS_S3_ARCHIVE_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Credentials: CredentialsConfig{
			CollegeFallback: getEnv("CREDENTIALS_COLLEGE_FALLBACK", "Campus Events"),
			TimeZone:        getEnv("CREDENTIALS_TIME_ZONE", "Asia/Kolkata"),
			QRSize:          getEnvInt("CREDENTIALS_QR_SIZE", 512),
			IssuerName:      getEnv("CREDENTIALS_ISSUER_NAME", "Event Coordinator"),
		},
		Notifications: NotificationsConfig{
			QueueName:            getEnv("NOTIFICATIONS_QUEUE", "campuspass:notifications"),
			MaxRetries:           getEnvInt("NOTIFICATIONS_MAX_RETRIES", 3),
			EnqueueTimeoutMillis: getEnvInt("NOTIFICATIONS_ENQUEUE_TIMEOUT_MS", 2000),
			PollTimeoutSeconds:   getEnvInt("NOTIFICATIONS_POLL_TIMEOUT_SEC", 5),
			RetryBackoffSeconds:  getEnvInt("NOTIFICATIONS_RETRY_BACKOFF_SEC", 10),
		},
		Archive: ArchiveConfig{
			IntervalMinutes: getEnvInt("ARCHIVE_INTERVAL_MINUTES", 15),
			BatchSize:       getEnvInt("ARCHIVE_BATCH_SIZE", 500),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no binary can run with.
func (c *Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Credentials.QRSize <= 0 {
		return fmt.Errorf("CREDENTIALS_QR_SIZE must be positive")
	}
	if _, err := c.Credentials.Location(); err != nil {
		return err
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

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
