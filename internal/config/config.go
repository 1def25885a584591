// Package config loads and validates server configuration from environment
// variables. A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted in the BACKEND variable.
const (
	BackendFile     = "file"
	BackendDynamo   = "dynamo"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the Datatops server.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Backup  BackupConfig
}

type ServerConfig struct {
	Port int
	// BaseURL is the public URL prefix used when handing a freshly created
	// project its address.
	BaseURL string
	// CreationSecret gates project creation when non-empty.
	CreationSecret     string
	RateLimitPerMinute int
}

type StorageConfig struct {
	Backend  string
	DataDir  string
	Database DatabaseConfig
	Dynamo   DynamoConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DynamoConfig struct {
	ProjectsTable string
	RecordsTable  string
	Region        string
	// Endpoint overrides the AWS endpoint, for dynamodb-local.
	Endpoint string
}

type RedisConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

type BackupConfig struct {
	Schedule string
	S3Bucket string
	S3Prefix string
	// S3Endpoint overrides the AWS endpoint, for MinIO and similar.
	S3Endpoint string
	Region     string
}

var validBackends = map[string]bool{
	BackendFile:     true,
	BackendDynamo:   true,
	BackendPostgres: true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any value is
// missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := envInt("PORT", 8080)
	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			BaseURL:            envString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
			CreationSecret:     os.Getenv("CREATION_SECRET"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Storage: StorageConfig{
			Backend: envString("BACKEND", BackendFile),
			DataDir: envString("DATA_DIR", "./data"),
			Database: DatabaseConfig{
				URL:             os.Getenv("DATABASE_URL"),
				MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			Dynamo: DynamoConfig{
				ProjectsTable: envString("DYNAMO_PROJECTS_TABLE", "datatops_projects"),
				RecordsTable:  envString("DYNAMO_RECORDS_TABLE", "datatops_records"),
				Region:        envString("AWS_REGION", "us-east-1"),
				Endpoint:      os.Getenv("DYNAMO_ENDPOINT"),
			},
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		Backup: BackupConfig{
			Schedule:   os.Getenv("BACKUP_SCHEDULE"),
			S3Bucket:   os.Getenv("BACKUP_S3_BUCKET"),
			S3Prefix:   envString("BACKUP_S3_PREFIX", "backups/"),
			S3Endpoint: os.Getenv("S3_ENDPOINT"),
			Region:     envString("AWS_REGION", "us-east-1"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("BACKEND must be one of file, dynamo, postgres; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when BACKEND is postgres")
	}
	if c.Storage.Backend == BackendFile && c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required when BACKEND is file")
	}

	if c.Backup.Schedule != "" && c.Backup.S3Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when BACKUP_SCHEDULE is set")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
