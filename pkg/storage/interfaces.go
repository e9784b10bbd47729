package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/descriptorpb"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot matches a name and version.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSnapshotExists is returned by Put when the name and version are taken.
	ErrSnapshotExists = errors.New("snapshot already exists")
	// ErrInvalidName is returned for names or versions that cannot be used as keys.
	ErrInvalidName = errors.New("invalid snapshot name or version")
)

// SnapshotInfo describes a stored snapshot without its descriptors.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
	Digest    string    `json:"digest"`
}

// Snapshot is a named, versioned descriptor set.
type Snapshot struct {
	SnapshotInfo
	Files *descriptorpb.FileDescriptorSet `json:"-"`
}

// SnapshotReader reads stored snapshots.
type SnapshotReader interface {
	// Get returns one version of a snapshot.
	Get(ctx context.Context, name, version string) (*Snapshot, error)
	// Latest returns the most recently created version of a snapshot.
	Latest(ctx context.Context, name string) (*Snapshot, error)
	// List returns the versions of name oldest first, or of every snapshot
	// when name is empty.
	List(ctx context.Context, name string) ([]SnapshotInfo, error)
}

// SnapshotWriter writes snapshots.
type SnapshotWriter interface {
	Put(ctx context.Context, snapshot *Snapshot) error
	Delete(ctx context.Context, name, version string) error
}

// HealthChecker verifies a backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SnapshotStore is implemented by every snapshot backend.
type SnapshotStore interface {
	SnapshotReader
	SnapshotWriter
	HealthChecker
	Close() error
}

// Backend types accepted by Open.
const (
	TypeFilesystem = "filesystem"
	TypeRedis      = "redis"
	TypePostgres   = "postgres"
	TypeSQLite     = "sqlite"
	TypeS3         = "s3"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"`

	// Filesystem config
	FilesystemRoot string `yaml:"filesystem_root"`

	// PostgreSQL config
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresMinConns int           `yaml:"postgres_min_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
	RedisKeyPrefix  string `yaml:"redis_key_prefix"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeFilesystem,
		FilesystemRoot:   ".protolink/snapshots",
		PostgresMaxConns: 10,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		SQLitePath:       ".protolink/snapshots.db",
		S3Prefix:         "snapshots",
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		RedisKeyPrefix:   "protolink",
	}
}

// Validate reports the first setting the selected backend is missing.
func (c Config) Validate() error {
	switch c.Type {
	case TypeFilesystem:
		if c.FilesystemRoot == "" {
			return errors.New("storage: filesystem_root is required")
		}
	case TypeRedis:
		if c.RedisURL == "" {
			return errors.New("storage: redis_url is required")
		}
	case TypePostgres:
		if c.PostgresURL == "" {
			return errors.New("storage: postgres_url is required")
		}
	case TypeSQLite:
		if c.SQLitePath == "" {
			return errors.New("storage: sqlite_path is required")
		}
	case TypeS3:
		if c.S3Bucket == "" {
			return errors.New("storage: s3_bucket is required")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Type)
	}
	return nil
}

// Open connects to the backend cfg.Type selects.
func Open(ctx context.Context, cfg Config) (SnapshotStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeRedis:
		return NewRedisStore(ctx, cfg)
	case TypePostgres:
		return NewPostgresStore(ctx, cfg)
	case TypeSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case TypeS3:
		return NewS3Store(ctx, cfg)
	default:
		return NewFileSystemStore(cfg.FilesystemRoot)
	}
}
