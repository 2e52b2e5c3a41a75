// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/propfolio/internal/utils"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Record source backends
const (
	SourceSQLite    = "sqlite"
	SourceS3        = "s3"
	SourceSurrealDB = "surrealdb"
)

// DefaultMarketAverageROI is the benchmark used when MARKET_AVERAGE_ROI is unset.
const DefaultMarketAverageROI = "3.2"

// Config holds application configuration
type Config struct {
	DataDir             string // Directory for the SQLite record store (always absolute)
	Port                int
	DevMode             bool
	LogLevel            string
	MarketAverageROI    decimal.Decimal
	RecordSource        string
	ReaderTimeout       time.Duration
	ReaderMaxRetries    int
	JWTSecret           string
	MaintenanceSchedule string
	CORSAllowedOrigins  []string
	S3                  S3Config
	SurrealDB           SurrealDBConfig
	Backup              BackupConfig
}

// S3Config holds the object store settings for the S3 record source
type S3Config struct {
	Bucket          string
	Prefix          string // Optional key prefix within the bucket
	Region          string
	Endpoint        string // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKeyID     string
	SecretAccessKey string
}

// BackupConfig controls off-site backups of the SQLite record store.
// Backups are disabled when Bucket is empty. The S3 client settings in
// S3Config (region, endpoint, credentials) are shared.
type BackupConfig struct {
	Bucket        string
	Prefix        string
	Schedule      string
	RetentionDays int
}

// SurrealDBConfig holds connection settings for the SurrealDB record source
type SurrealDBConfig struct {
	URL       string
	Username  string
	Password  string
	Namespace string
	Database  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("PROPFOLIO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	benchmark, err := decimal.NewFromString(getEnv("MARKET_AVERAGE_ROI", DefaultMarketAverageROI))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_AVERAGE_ROI: %w", err)
	}

	cfg := &Config{
		DataDir:             dataDir,
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MarketAverageROI:    benchmark,
		RecordSource:        strings.ToLower(getEnv("RECORD_SOURCE", SourceSQLite)),
		ReaderTimeout:       getEnvAsDuration("READER_TIMEOUT", 5*time.Second),
		ReaderMaxRetries:    getEnvAsInt("READER_MAX_RETRIES", 0),
		JWTSecret:           getEnv("AUTH_JWT_SECRET", ""),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@hourly"),
		CORSAllowedOrigins:  utils.ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Prefix:          getEnv("S3_PREFIX", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		SurrealDB: SurrealDBConfig{
			URL:       getEnv("SURREALDB_URL", ""),
			Username:  getEnv("SURREALDB_USER", "root"),
			Password:  getEnv("SURREALDB_PASS", ""),
			Namespace: getEnv("SURREALDB_NAMESPACE", "propfolio"),
			Database:  getEnv("SURREALDB_DATABASE", "propfolio"),
		},
		Backup: BackupConfig{
			Bucket:        getEnv("BACKUP_S3_BUCKET", ""),
			Prefix:        getEnv("BACKUP_S3_PREFIX", "propfolio"),
			Schedule:      getEnv("BACKUP_SCHEDULE", "@daily"),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Only the SQLite backend keeps local state
	if cfg.RecordSource == SourceSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.RecordSource {
	case SourceSQLite:
	case SourceS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when RECORD_SOURCE=%s", SourceS3)
		}
	case SourceSurrealDB:
		if c.SurrealDB.URL == "" {
			return fmt.Errorf("SURREALDB_URL is required when RECORD_SOURCE=%s", SourceSurrealDB)
		}
	default:
		return fmt.Errorf("unknown RECORD_SOURCE %q (expected %s, %s or %s)",
			c.RecordSource, SourceSQLite, SourceS3, SourceSurrealDB)
	}

	if c.Backup.Bucket != "" && c.RecordSource != SourceSQLite {
		return fmt.Errorf("BACKUP_S3_BUCKET requires RECORD_SOURCE=%s", SourceSQLite)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative, got %d", c.Backup.RetentionDays)
	}

	if c.ReaderMaxRetries < 0 {
		return fmt.Errorf("READER_MAX_RETRIES must not be negative, got %d", c.ReaderMaxRetries)
	}
	if c.ReaderTimeout <= 0 {
		return fmt.Errorf("READER_TIMEOUT must be positive, got %s", c.ReaderTimeout)
	}

	return nil
}

// RecordsDBPath returns the SQLite record store location
func (c *Config) RecordsDBPath() string {
	return filepath.Join(c.DataDir, "records.db")
}

// BackupStagingDir returns where backup archives are assembled before upload
func (c *Config) BackupStagingDir() string {
	return filepath.Join(c.DataDir, "backup-staging")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
