package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
)

// Config selects and configures a cache backend.
type Config struct {
	// Backend is one of BackendMemory, BackendRedis or BackendMemcache.
	// Empty means BackendMemory.
	Backend string

	Memory   MemoryConfig
	Redis    RedisConfig
	Memcache MemcacheConfig
}

// MemoryConfig holds the sturdyc options of the in process backend.
type MemoryConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// TTL is the upper bound for entry lifetimes. Per entry TTLs longer than
	// this are cut short by sturdyc eviction.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh enables sturdyc background refreshes. Nil disables them.
	EarlyRefresh *EarlyRefreshConfig

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key and tag set written by the store.
	KeyPrefix string

	// TagTTL is the minimum lifetime of a tag set. Each write extends the set
	// to max(TagTTL, entry TTL).
	TagTTL time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// MemcacheConfig configures the Memcached backend.
type MemcacheConfig struct {
	Servers      []string
	KeyPrefix    string
	Timeout      time.Duration
	MaxIdleConns int
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Memory: MemoryConfig{
			Capacity:           10000,
			NumShards:          256,
			TTL:                30 * 24 * time.Hour,
			EvictionPercentage: 10,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			KeyPrefix:    "crm:",
			TagTTL:       24 * time.Hour,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Memcache: MemcacheConfig{
			Servers:      []string{"localhost:11211"},
			KeyPrefix:    "crm:",
			Timeout:      500 * time.Millisecond,
			MaxIdleConns: 8,
		},
	}
}

// BackendName returns the configured backend, defaulting to memory.
func (c Config) BackendName() string {
	if c.Backend == "" {
		return BackendMemory
	}
	return c.Backend
}

// Validate checks the backend selection and the settings of the selected
// backend only.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(BackendMemory, BackendRedis, BackendMemcache)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}

	switch c.BackendName() {
	case BackendRedis:
		err = c.Redis.Validate()
	case BackendMemcache:
		err = c.Memcache.Validate()
	default:
		err = c.Memory.Validate()
	}
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid "+c.BackendName()+" cache configuration")
	}
	return nil
}

// Validate implements validation.Validatable.
func (c MemoryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EarlyRefresh),
	)
}

// Validate implements validation.Validatable.
func (c EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxAsyncRefreshTime, validation.Min(c.MinAsyncRefreshTime)),
		validation.Field(&c.SyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}

// Validate implements validation.Validatable.
func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.TagTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.PoolSize, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (c MemcacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Servers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.KeyPrefix, validation.Length(0, 64)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}

// ToSturdycOptions converts the memory settings to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage are passed to sturdyc.New
// directly and are not included.
func (c MemoryConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}
