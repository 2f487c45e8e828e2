package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Blob     BlobConfig
	OCR      OCRConfig
	Ingest   IngestConfig
	Search   SearchConfig
	Server   ServerConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// BlobConfig holds blob store configuration
type BlobConfig struct {
	Root string
}

// OCRConfig holds OCR runner and orchestrator configuration
type OCRConfig struct {
	Executable       string
	Args             []string
	WorkRoot         string
	InputDir         string
	OutputDir        string
	LogsDir          string
	Timeout          time.Duration
	KeepLogs         bool
	MaxTextRunes     int
	MaxReasonRunes   int
	BatchConcurrency int
}

// IngestConfig holds ingestion configuration.
// CategoryID and ClassificationID are only required when a new document is created.
type IngestConfig struct {
	Enabled          bool
	CategoryID       string
	ClassificationID string
	MaxBytes         int64
	ValidatePDF      bool
}

// SearchConfig holds search configuration
type SearchConfig struct {
	Limit int
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" | "text"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Blob: BlobConfig{
			Root: getEnv("BLOB_ROOT", "./data/blobs"),
		},
		OCR: OCRConfig{
			Executable:       getEnv("OCR_EXECUTABLE", ""),
			Args:             getEnvAsFields("OCR_ARGS", []string{"{input}", "{output}"}),
			WorkRoot:         getEnv("OCR_WORK_ROOT", "./data/ocr"),
			InputDir:         getEnv("OCR_INPUT_DIR", "input"),
			OutputDir:        getEnv("OCR_OUTPUT_DIR", "output"),
			LogsDir:          getEnv("OCR_LOGS_DIR", "logs"),
			Timeout:          getEnvAsDuration("OCR_TIMEOUT", 5*time.Minute),
			KeepLogs:         getEnvAsBool("OCR_KEEP_LOGS", false),
			MaxTextRunes:     getEnvAsInt("OCR_MAX_TEXT_RUNES", 1_000_000),
			MaxReasonRunes:   getEnvAsInt("OCR_MAX_REASON_RUNES", 1000),
			BatchConcurrency: getEnvAsInt("OCR_BATCH_CONCURRENCY", 1),
		},
		Ingest: IngestConfig{
			Enabled:          getEnvAsBool("INGEST_ENABLED", true),
			CategoryID:       getEnv("INGEST_CATEGORY_ID", ""),
			ClassificationID: getEnv("INGEST_CLASSIFICATION_ID", ""),
			MaxBytes:         getEnvAsInt64("INGEST_MAX_BYTES", 100<<20),
			ValidatePDF:      getEnvAsBool("INGEST_VALIDATE_PDF", true),
		},
		Search: SearchConfig{
			Limit: getEnvAsInt("SEARCH_LIMIT", 50),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsFields splits on whitespace; arguments containing spaces are not supported.
func getEnvAsFields(key string, defaultValue []string) []string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return strings.Fields(value)
	}
	return defaultValue
}

// Validate checks the settings every binary needs at startup.
// Ingestion classification ids are checked lazily by the ingest service.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrConfiguration)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrConfiguration)
	}
	if c.Blob.Root == "" {
		return NewAppError(CodeConfig, "BLOB_ROOT is required", ErrConfiguration)
	}
	if c.OCR.MaxTextRunes <= 0 || c.OCR.MaxReasonRunes <= 0 {
		return NewAppError(CodeConfig, "OCR_MAX_TEXT_RUNES and OCR_MAX_REASON_RUNES must be positive", ErrConfiguration)
	}
	return nil
}

// ValidateServer additionally checks listener settings for the daemon.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrConfiguration)
	}
	return nil
}
