// Package cacheinfra holds the cache backends behind cache.CacheService:
// an in process sturdyc store, a Redis store and a Memcached store. Every
// store keeps byte values, associates them with tags for group invalidation
// and reports its own failures as *BackendError while passing fetch errors
// through unchanged.
package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// FetchFunc computes the value of a missing entry.
type FetchFunc = func(ctx context.Context) ([]byte, error)

// Store is the backend contract.
type Store interface {
	// Remember returns the entry under key, computing and storing it with
	// fetch when absent. The entry is associated with tags and expires after
	// ttl. Fetch errors are returned unchanged and nothing is stored.
	Remember(ctx context.Context, key string, tags []string, ttl time.Duration, fetch FetchFunc) ([]byte, error)
	// Flush removes every entry associated with any of tags.
	Flush(ctx context.Context, tags ...string) error
	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error
	// Close releases backend connections.
	Close() error
}

// ErrNilFetch is returned by Remember when no fetch function is given.
var ErrNilFetch = errors.New("cacheinfra: nil fetch function")

// BackendError reports a failure of the cache backend itself.
type BackendError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err is, or wraps, a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Report carries details of one Remember call that the returned bytes cannot.
// Stores fill the report attached to the context, if any.
type Report struct {
	// Shared is set when the value came from a concurrent caller's fetch.
	Shared bool
	// WriteErr holds the *BackendError of a failed write. The fetched value
	// is still returned.
	WriteErr error
}

type reportKey struct{}

// WithReport attaches r to ctx.
func WithReport(ctx context.Context, r *Report) context.Context {
	return context.WithValue(ctx, reportKey{}, r)
}

// ReportFrom returns the report attached to ctx, or nil.
func ReportFrom(ctx context.Context) *Report {
	r, _ := ctx.Value(reportKey{}).(*Report)
	return r
}

func reportShared(ctx context.Context) {
	if r := ReportFrom(ctx); r != nil {
		r.Shared = true
	}
}

func reportWriteError(ctx context.Context, err error) {
	if r := ReportFrom(ctx); r != nil {
		r.WriteErr = err
	}
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for non fatal backend failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for entry expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(backend string, opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("cache_backend", backend)
	return o
}

// New builds the store selected by cfg.
func New(cfg Config, opts ...Option) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.BackendName() {
	case BackendRedis:
		return NewRedisStore(cfg.Redis, opts...)
	case BackendMemcache:
		return NewMemcacheStore(cfg.Memcache, opts...)
	default:
		return NewMemoryStore(cfg.Memory, opts...)
	}
}

func dedupe(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok || tag == "" {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
