package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisStore keeps entries as plain Redis strings with a TTL. Each tag is a
// Redis set of the keys written under it, so a flush reads the set members
// and deletes them together with the set.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
	group  singleflight.Group
	opts   options
	owned  bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the server in cfg.
func NewRedisStore(cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	store := NewRedisStoreWithClient(client, cfg, opts...)
	store.owned = true
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. The caller keeps
// ownership of client and Close leaves it open.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig, opts ...Option) *RedisStore {
	return &RedisStore{
		client: client,
		cfg:    cfg,
		opts:   newOptions(BackendRedis, opts),
	}
}

// Remember implements Store.
func (s *RedisStore) Remember(ctx context.Context, key string, tags []string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}

	storageKey := s.key(key)

	data, err := s.client.Get(ctx, storageKey).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, &BackendError{Backend: BackendRedis, Op: "get", Key: key, Err: err}
	}

	ran := false
	v, err, _ := s.group.Do(storageKey, func() (any, error) {
		ran = true
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if err := s.write(ctx, storageKey, data, dedupe(tags), ttl); err != nil {
			s.opts.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
			reportWriteError(ctx, &BackendError{Backend: BackendRedis, Op: "set", Key: key, Err: err})
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		reportShared(ctx)
	}
	return v.([]byte), nil
}

func (s *RedisStore) write(ctx context.Context, storageKey string, data []byte, tags []string, ttl time.Duration) error {
	tagTTL := ttl
	if s.cfg.TagTTL > tagTTL {
		tagTTL = s.cfg.TagTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, storageKey, data, ttl)
	for _, tag := range tags {
		tagKey := s.tagKey(tag)
		pipe.SAdd(ctx, tagKey, storageKey)
		pipe.Expire(ctx, tagKey, tagTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Flush implements Store.
func (s *RedisStore) Flush(ctx context.Context, tags ...string) error {
	for _, tag := range dedupe(tags) {
		tagKey := s.tagKey(tag)

		members, err := s.client.SMembers(ctx, tagKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return &BackendError{Backend: BackendRedis, Op: "flush", Key: tag, Err: err}
		}

		pipe := s.client.TxPipeline()
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, tagKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return &BackendError{Backend: BackendRedis, Op: "flush", Key: tag, Err: err}
		}

		s.opts.logger.DebugContext(ctx, "cache tag flushed", "tag", tag, "keys", len(members))
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &BackendError{Backend: BackendRedis, Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &BackendError{Backend: BackendRedis, Op: "ping", Err: err}
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) key(key string) string {
	return s.cfg.KeyPrefix + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.cfg.KeyPrefix + "tag:" + tag
}
