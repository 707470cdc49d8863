package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Catalog backends selectable with CATALOG_BACKEND.
const (
	BackendFilesystem = "filesystem"
	BackendPostgres   = "postgres"
)

// Config is the service configuration assembled from the environment.
// main builds it once and passes the pieces to each component.
type Config struct {
	Port            string
	RecordingsDir   string
	CatalogBackend  string
	SegmentDuration time.Duration
	LogLevel        string
	LogFormat       string
	RateLimitRPM    int
	CORSAllowOrigin string
	Database        Database
}

// Database holds the metadata store connection settings.
type Database struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	MaxConns       int
	ConnectRetries int
	RetryDelay     time.Duration
	AutoMigrate    bool
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment, applying defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:            GetEnv("PORT", "8080"),
		RecordingsDir:   GetEnv("RECORDINGS_DIR", "/recordings"),
		CatalogBackend:  strings.ToLower(GetEnv("CATALOG_BACKEND", BackendFilesystem)),
		SegmentDuration: GetEnvDuration("SEGMENT_DURATION", 5*time.Second),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
		RateLimitRPM:    GetEnvInt("RATE_LIMIT_RPM", 600),
		CORSAllowOrigin: GetEnv("CORS_ALLOW_ORIGIN", "*"),
		Database: Database{
			URL:            GetEnv("DATABASE_URL", ""),
			Host:           GetEnv("DB_HOST", "db"),
			Port:           GetEnv("DB_PORT", "5432"),
			User:           GetEnv("DB_USER", "user"),
			Password:       GetEnv("DB_PASSWORD", "password"),
			Name:           GetEnv("DB_NAME", "panoptic"),
			MaxConns:       GetEnvInt("DB_MAX_CONNS", 10),
			ConnectRetries: GetEnvInt("DB_CONNECT_RETRIES", 10),
			RetryDelay:     GetEnvDuration("DB_RETRY_DELAY", 3*time.Second),
			AutoMigrate:    GetEnvBool("DB_AUTO_MIGRATE", false),
		},
	}

	switch cfg.CatalogBackend {
	case BackendFilesystem, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("CATALOG_BACKEND must be %q or %q, got %q",
			BackendFilesystem, BackendPostgres, cfg.CatalogBackend)
	}
	if cfg.SegmentDuration <= 0 {
		return Config{}, fmt.Errorf("SEGMENT_DURATION must be positive")
	}
	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built from
// the DB_* settings.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback if the variable
// is unset or not a valid boolean.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration accepts a Go duration ("3s", "500ms") or a bare number of
// seconds ("5"). It returns fallback if the value is unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
