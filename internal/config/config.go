package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers.
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
	DatabaseMemory   = "memory"
)

// Storage drivers.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config is the application configuration, read from the environment.
type Config struct {
	AppPort         string
	BaseURL         string
	ShutdownTimeout time.Duration

	DatabaseDriver string
	DatabaseDSN    string

	StorageDriver      string
	StorageDestination string
	Minio              MinioConfig

	UploadMaxFileSize int64
	OperationTimeout  time.Duration

	RabbitMQURL string

	OrphanSweepEnabled  bool
	OrphanSweepSchedule string
	OrphanMinAge        time.Duration

	LogLevel string
	LogFile  string
}

// MinioConfig holds the object storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Load reads configuration from the environment. Variables in the given
// .env files (default ".env") are loaded first; missing files are ignored and
// variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DATABASE_DRIVER", DatabaseSQLite)
	v.SetDefault("DATABASE_DSN", "fonts.db")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_DESTINATION", "uploads")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "fonts")
	v.SetDefault("MINIO_PREFIX", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("OPERATION_TIMEOUT", "10s")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ORPHAN_SWEEP_ENABLED", true)
	v.SetDefault("ORPHAN_SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("ORPHAN_MIN_AGE", "15m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:         v.GetString("APP_PORT"),
		BaseURL:         strings.TrimRight(v.GetString("BASE_URL"), "/"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),

		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),

		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		StorageDestination: v.GetString("STORAGE_DESTINATION"),
		Minio: MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Prefix:    v.GetString("MINIO_PREFIX"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},

		UploadMaxFileSize: v.GetInt64("UPLOAD_MAX_FILE_SIZE"),
		OperationTimeout:  v.GetDuration("OPERATION_TIMEOUT"),

		RabbitMQURL: v.GetString("RABBITMQ_URL"),

		OrphanSweepEnabled:  v.GetBool("ORPHAN_SWEEP_ENABLED"),
		OrphanSweepSchedule: v.GetString("ORPHAN_SWEEP_SCHEDULE"),
		OrphanMinAge:        v.GetDuration("ORPHAN_MIN_AGE"),

		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DatabasePostgres, DatabaseSQLite:
		if c.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for the %s driver", c.DatabaseDriver))
		}
	case DatabaseMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.StorageDriver {
	case StorageLocal:
		if c.StorageDestination == "" {
			errs = append(errs, errors.New("STORAGE_DESTINATION is required for the local storage driver"))
		}
	case StorageMinio:
		if c.Minio.Endpoint == "" || c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio storage driver"))
		}
		if c.Minio.Bucket == "" {
			errs = append(errs, errors.New("MINIO_BUCKET is required for the minio storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.UploadMaxFileSize <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_FILE_SIZE must be positive"))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must be positive"))
	}
	if c.OrphanSweepEnabled && c.OrphanSweepSchedule == "" {
		errs = append(errs, errors.New("ORPHAN_SWEEP_SCHEDULE is required when the orphan sweeper is enabled"))
	}

	return errors.Join(errs...)
}
