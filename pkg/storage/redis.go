package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps snapshot records in Redis.
//
// Keys:
//
//	<prefix>:snapshot:<name>:<version>  JSON record
//	<prefix>:versions:<name>            sorted set of versions scored by creation time
//	<prefix>:names                      set of snapshot names
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server in config.RedisURL.
func NewRedisStore(ctx context.Context, config Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreClient(client, config.RedisKeyPrefix), nil
}

// NewRedisStoreClient wraps an existing client.
func NewRedisStoreClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "protolink"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) snapshotKey(name, version string) string {
	return fmt.Sprintf("%s:snapshot:%s:%s", s.prefix, name, version)
}

func (s *RedisStore) versionsKey(name string) string {
	return fmt.Sprintf("%s:versions:%s", s.prefix, name)
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":names"
}

// Put implements SnapshotWriter.Put
func (s *RedisStore) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	data, err := encodeRecord(snapshot)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.snapshotKey(snapshot.Name, snapshot.Version), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if !ok {
		return exists(snapshot.Name, snapshot.Version)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.versionsKey(snapshot.Name), &redis.Z{
			Score:  float64(snapshot.CreatedAt.UnixNano()),
			Member: snapshot.Version,
		})
		pipe.SAdd(ctx, s.namesKey(), snapshot.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index snapshot: %w", err)
	}
	return nil
}

// Get implements SnapshotReader.Get
func (s *RedisStore) Get(ctx context.Context, name, version string) (*Snapshot, error) {
	if err := validateKey(name, version); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.snapshotKey(name, version)).Bytes()
	if err == redis.Nil {
		return nil, notFound(name, version)
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeRecord(data)
}

// Latest implements SnapshotReader.Latest
func (s *RedisStore) Latest(ctx context.Context, name string) (*Snapshot, error) {
	if err := validateKey(name, ""); err != nil {
		return nil, err
	}
	versions, err := s.client.ZRevRange(ctx, s.versionsKey(name), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return s.Get(ctx, name, versions[0])
}

// List implements SnapshotReader.List
func (s *RedisStore) List(ctx context.Context, name string) ([]SnapshotInfo, error) {
	var names []string
	if name != "" {
		if err := validateKey(name, ""); err != nil {
			return nil, err
		}
		names = []string{name}
	} else {
		var err error
		names, err = s.client.SMembers(ctx, s.namesKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis smembers failed: %w", err)
		}
	}

	infos := make([]SnapshotInfo, 0)
	for _, n := range names {
		versions, err := s.client.ZRange(ctx, s.versionsKey(n), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis zrange failed: %w", err)
		}
		for _, v := range versions {
			snapshot, err := s.Get(ctx, n, v)
			if errors.Is(err, ErrSnapshotNotFound) {
				continue
			} else if err != nil {
				return nil, err
			}
			infos = append(infos, snapshot.SnapshotInfo)
		}
	}
	sortInfos(infos)
	return infos, nil
}

// Delete implements SnapshotWriter.Delete
func (s *RedisStore) Delete(ctx context.Context, name, version string) error {
	if err := validateKey(name, version); err != nil {
		return err
	}
	n, err := s.client.Del(ctx, s.snapshotKey(name, version)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if n == 0 {
		return notFound(name, version)
	}
	if err := s.client.ZRem(ctx, s.versionsKey(name), version).Err(); err != nil {
		return fmt.Errorf("redis zrem failed: %w", err)
	}
	remaining, err := s.client.ZCard(ctx, s.versionsKey(name)).Result()
	if err != nil {
		return fmt.Errorf("redis zcard failed: %w", err)
	}
	if remaining == 0 {
		return s.client.SRem(ctx, s.namesKey(), name).Err()
	}
	return nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
