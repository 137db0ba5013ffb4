package cache

import (
	"time"

	"github.com/goliatone/go-crm-repository/internal/cacheinfra"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = cacheinfra.BackendMemory
	BackendRedis    = cacheinfra.BackendRedis
	BackendMemcache = cacheinfra.BackendMemcache
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend  string         `yaml:"backend"`
	Memory   MemoryConfig   `yaml:"memory"`
	Redis    RedisConfig    `yaml:"redis"`
	Memcache MemcacheConfig `yaml:"memcache"`
}

// MemoryConfig configures the in process backend.
type MemoryConfig struct {
	Capacity           int                 `yaml:"capacity"`
	NumShards          int                 `yaml:"num_shards"`
	TTL                time.Duration       `yaml:"ttl"`
	EvictionPercentage int                 `yaml:"eviction_percentage"`
	EarlyRefresh       *EarlyRefreshConfig `yaml:"early_refresh"`
	EvictionInterval   time.Duration       `yaml:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	TagTTL       time.Duration `yaml:"tag_ttl"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// MemcacheConfig configures the Memcached backend.
type MemcacheConfig struct {
	Servers      []string      `yaml:"servers"`
	KeyPrefix    string        `yaml:"key_prefix"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.Memory.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.Memory.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.Memory.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.Memory.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.Memory.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Backend: c.Backend,
		Memory: cacheinfra.MemoryConfig{
			Capacity:           c.Memory.Capacity,
			NumShards:          c.Memory.NumShards,
			TTL:                c.Memory.TTL,
			EvictionPercentage: c.Memory.EvictionPercentage,
			EarlyRefresh:       early,
			EvictionInterval:   c.Memory.EvictionInterval,
		},
		Redis: cacheinfra.RedisConfig(c.Redis),
		Memcache: cacheinfra.MemcacheConfig{
			Servers:      append([]string(nil), c.Memcache.Servers...),
			KeyPrefix:    c.Memcache.KeyPrefix,
			Timeout:      c.Memcache.Timeout,
			MaxIdleConns: c.Memcache.MaxIdleConns,
		},
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.Memory.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.Memory.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.Memory.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.Memory.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.Memory.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Backend: cfg.Backend,
		Memory: MemoryConfig{
			Capacity:           cfg.Memory.Capacity,
			NumShards:          cfg.Memory.NumShards,
			TTL:                cfg.Memory.TTL,
			EvictionPercentage: cfg.Memory.EvictionPercentage,
			EarlyRefresh:       early,
			EvictionInterval:   cfg.Memory.EvictionInterval,
		},
		Redis: RedisConfig(cfg.Redis),
		Memcache: MemcacheConfig{
			Servers:      append([]string(nil), cfg.Memcache.Servers...),
			KeyPrefix:    cfg.Memcache.KeyPrefix,
			Timeout:      cfg.Memcache.Timeout,
			MaxIdleConns: cfg.Memcache.MaxIdleConns,
		},
	}
}
