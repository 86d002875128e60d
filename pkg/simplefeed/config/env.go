package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//   DATABASE_URL - Connection string. "postgresql://" or "postgres://"
//                  selects postgres, "mongodb://" or "mongodb+srv://"
//                  selects mongo. Empty or "memory" uses the in-memory store.
//   MONGO_DATABASE - Mongo database name (default: "simplefeed")
//
// Tokens:
//   JWT_SECRET - HS256 signing key for bearer tokens
//
// Storage:
//   STORAGE_URL - "memory://" (default) or "s3://bucket?region=us-east-1".
//                 AWS credentials come from the standard AWS_* variables.
//   STORAGE_PUBLIC_BASE_URL - Optional base URL for returned asset URLs
//
// Events:
//   EVENT_QUEUE_SIZE - Per-subscriber queue capacity
//   EVENT_OVERFLOW_POLICY - "drop_oldest", "drop_newest" or "block"
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "JWT_SECRET"); ok && v != "" {
			c.JWTSecret = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		return applyEventEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	switch {
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = "mongo"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'mongodb://...')", dbURL)
	}

	if v, ok := lookupEnv(prefix, "MONGO_DATABASE"); ok && v != "" {
		c.MongoDatabase = v
	}

	return nil
}

// applyStorageEnv applies image storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.StorageBackend = "memory"
		return nil
	}

	if !strings.HasPrefix(storageURL, "s3://") {
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://' or 's3://...')", storageURL)
	}

	// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000
	rest := strings.TrimPrefix(storageURL, "s3://")
	bucket := rest
	query := ""
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		bucket = rest[:idx]
		query = rest[idx+1:]
	}
	if bucket == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	c.StorageBackend = "s3"
	c.S3.Bucket = bucket
	c.S3.Region = "us-east-1"

	for _, pair := range strings.Split(query, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found || value == "" {
			continue
		}
		switch key {
		case "region":
			c.S3.Region = value
		case "endpoint":
			c.S3.Endpoint = value
		case "use_path_style":
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid use_path_style in STORAGE_URL: %w", err)
			}
			c.S3.UsePathStyle = parsed
		case "create_bucket":
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid create_bucket in STORAGE_URL: %w", err)
			}
			c.S3.CreateBucketIfNotExist = parsed
		case "prefix":
			c.S3.KeyPrefix = value
		}
	}

	// AWS credentials come from the standard variables
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		c.S3.AccessKeyID = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		c.S3.SecretAccessKey = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		c.S3.Region = region
	}

	if v, ok := lookupEnv(prefix, "STORAGE_PUBLIC_BASE_URL"); ok && v != "" {
		c.S3.PublicBaseURL = v
	}

	return nil
}

// applyEventEnv applies event bus configuration from environment
func applyEventEnv(prefix string, c *ServerConfig) error {
	size, ok, err := parseIntEnv(prefix, "EVENT_QUEUE_SIZE")
	if err != nil {
		return err
	}
	if ok {
		c.EventQueueSize = size
	}

	if v, okPolicy := lookupEnv(prefix, "EVENT_OVERFLOW_POLICY"); okPolicy && v != "" {
		c.EventOverflowPolicy = v
	}

	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
