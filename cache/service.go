package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-crm-repository/internal/cacheinfra"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature Remember expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the tagged cache used by repository decorators.
type CacheService interface {
	// Tags returns a view of the cache whose entries are associated with tags.
	Tags(tags ...string) TaggedCache
	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error
	// Close releases the backend.
	Close() error
}

// TaggedCache reads and invalidates entries sharing a set of tags.
type TaggedCache interface {
	// Remember returns the bytes stored under key or stores the result of
	// fetch. Fetch errors are returned unchanged and are never cached.
	Remember(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
	// Flush invalidates every entry carrying any of the tags.
	Flush(ctx context.Context) error
	// Tags lists the tags of this view.
	Tags() []string
}

// BackendError reports a failure of the cache itself, as opposed to an error
// returned by a fetch function.
type BackendError = cacheinfra.BackendError

// ErrNilFetch is returned when Remember is called without a fetch function.
var ErrNilFetch = cacheinfra.ErrNilFetch

// IsBackendError reports whether err is, or wraps, a *BackendError.
func IsBackendError(err error) bool {
	return cacheinfra.IsBackendError(err)
}

// Option configures the service built by NewCacheService.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger handed to the backend.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used for entry expiry.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewCacheService constructs the cache service for the backend selected in cfg.
func NewCacheService(cfg Config, opts ...Option) (CacheService, error) {
	o := serviceOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := cacheinfra.New(cfg.toInternal(),
		cacheinfra.WithLogger(o.logger),
		cacheinfra.WithClock(o.now),
	)
	if err != nil {
		return nil, err
	}
	return NewStoreService(store), nil
}

// NewStoreService adapts a backend store to CacheService.
func NewStoreService(store cacheinfra.Store) CacheService {
	return &storeService{store: store}
}

type storeService struct {
	store cacheinfra.Store
}

func (s *storeService) Tags(tags ...string) TaggedCache {
	return &taggedCache{store: s.store, tags: append([]string(nil), tags...)}
}

func (s *storeService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

func (s *storeService) Close() error {
	return s.store.Close()
}

type taggedCache struct {
	store cacheinfra.Store
	tags  []string
}

func (c *taggedCache) Remember(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}
	return c.store.Remember(ctx, key, c.tags, ttl, fetch)
}

func (c *taggedCache) Flush(ctx context.Context) error {
	if len(c.tags) == 0 {
		return nil
	}
	return c.store.Flush(ctx, c.tags...)
}

func (c *taggedCache) Tags() []string {
	return append([]string(nil), c.tags...)
}

// Outcome describes how Remember served a read.
type Outcome struct {
	// Hit is set when the value was read back from the cache.
	Hit bool
	// Shared is set when a concurrent caller's fetch produced the value.
	// Shared reads are not hits.
	Shared bool
	// WriteErr is a *BackendError for a fetched value the cache failed to
	// store. The value is still returned.
	WriteErr error
}

// Remember is the typed read-through helper. On a miss it returns the value
// produced by fetch as is; on a hit, or when another caller fetched the same
// key, it decodes a fresh copy with codec.
func Remember[T any](ctx context.Context, tc TaggedCache, codec Codec, key string, ttl time.Duration, fetch FetchFn[T]) (T, Outcome, error) {
	var zero T
	if fetch == nil {
		return zero, Outcome{}, ErrNilFetch
	}
	if codec == nil {
		codec = DefaultCodec()
	}

	var (
		fresh   T
		fetched bool
		report  cacheinfra.Report
	)
	data, err := tc.Remember(cacheinfra.WithReport(ctx, &report), key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		fresh, fetched = v, true
		return codec.Marshal(v)
	})
	if err != nil {
		return zero, Outcome{}, err
	}

	outcome := Outcome{Shared: report.Shared && !fetched, WriteErr: report.WriteErr}
	if fetched {
		return fresh, outcome, nil
	}

	var out T
	if err := codec.Unmarshal(data, &out); err != nil {
		return zero, Outcome{}, &BackendError{Backend: "codec", Op: "decode", Key: key, Err: errors.Join(ErrDecode, err)}
	}
	outcome.Hit = !outcome.Shared
	return out, outcome, nil
}
