// Package config builds a running feed service from declarative settings.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-feed/pkg/simplefeed"
	"github.com/tendant/simple-feed/pkg/simplefeed/identity"
	"github.com/tendant/simple-feed/pkg/simplefeed/repo/memory"
	repomongo "github.com/tendant/simple-feed/pkg/simplefeed/repo/mongo"
	repopg "github.com/tendant/simple-feed/pkg/simplefeed/repo/postgres"
	memorystorage "github.com/tendant/simple-feed/pkg/simplefeed/storage/memory"
	s3storage "github.com/tendant/simple-feed/pkg/simplefeed/storage/s3"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                "8080",
		Environment:         "development",
		DatabaseType:        "memory",
		MongoDatabase:       "simplefeed",
		StorageBackend:      "memory",
		EventQueueSize:      simplefeed.DefaultQueueSize,
		EventOverflowPolicy: "drop_oldest",
	}
}

// ServerConfig represents server configuration for the simple-feed service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres", "mongo"
	MongoDatabase string // Mongo database name (default: simplefeed)

	// Token verification
	JWTSecret string

	// Image storage configuration
	StorageBackend string // "memory", "s3"
	S3             S3Config

	// Event bus configuration
	EventQueueSize      int
	EventOverflowPolicy string // "drop_oldest", "drop_newest", "block"
}

// S3Config holds settings for the S3 image store
type S3Config struct {
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	PublicBaseURL          string
	KeyPrefix              string
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres", "mongo":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'mongo'")
	}

	if c.DatabaseType == "mongo" && c.MongoDatabase == "" {
		return errors.New("mongo_database is required when using mongo")
	}

	switch c.StorageBackend {
	case "memory":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_backend must be 'memory' or 's3'")
	}

	if c.EventQueueSize < 1 {
		return errors.New("event_queue_size must be positive")
	}

	switch c.EventOverflowPolicy {
	case "drop_oldest", "drop_newest", "block":
	default:
		return errors.New("event_overflow_policy must be 'drop_oldest', 'drop_newest' or 'block'")
	}

	return nil
}

// BuildBus creates the event bus from the server configuration. The caller
// owns the bus and must Close it on shutdown.
func (c *ServerConfig) BuildBus() *simplefeed.Bus {
	var policy simplefeed.OverflowPolicy
	switch c.EventOverflowPolicy {
	case "drop_newest":
		policy = simplefeed.DropNewest
	case "block":
		policy = simplefeed.BlockPublisher
	default:
		policy = simplefeed.DropOldest
	}

	return simplefeed.NewBus(
		simplefeed.WithQueueSize(c.EventQueueSize),
		simplefeed.WithOverflowPolicy(policy),
	)
}

// BuildService creates a Service instance from the server configuration,
// wired to the given event bus.
func (c *ServerConfig) BuildService(ctx context.Context, bus *simplefeed.Bus) (simplefeed.Service, error) {
	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	verifier, err := c.buildVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to build token verifier: %w", err)
	}

	return simplefeed.New(
		simplefeed.WithRepository(repo),
		simplefeed.WithTokenVerifier(verifier),
		simplefeed.WithEventBus(bus),
	)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (simplefeed.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil

	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(c.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return repomongo.New(ctx, client.Database(c.MongoDatabase))

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildVerifier creates a TokenVerifier based on the configuration
func (c *ServerConfig) buildVerifier() (simplefeed.TokenVerifier, error) {
	if c.JWTSecret == "" {
		return nil, errors.New("jwt_secret is required")
	}
	return identity.NewJWTVerifier(c.JWTSecret)
}

// BuildBlobStore creates the image store based on the configuration
func (c *ServerConfig) BuildBlobStore() (simplefeed.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicBaseURL:          c.S3.PublicBaseURL,
			KeyPrefix:              c.S3.KeyPrefix,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}

// PingPostgres verifies connectivity to Postgres.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
