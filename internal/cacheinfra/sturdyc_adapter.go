package cacheinfra

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// memoryEntry is what the sturdyc client holds. ExpiresAt enforces the per
// entry TTL below the client wide one.
type memoryEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

// MemoryStore is the in process backend built on a sturdyc client.
// Concurrent misses on the same key are deduplicated by sturdyc.
type MemoryStore struct {
	client *sturdyc.Client[memoryEntry]
	tags   *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
	opts   options
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore validates cfg and builds a sturdyc backed store.
func NewMemoryStore(cfg MemoryConfig, opts ...Option) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[memoryEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryStore{
		client: client,
		tags:   xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
		opts:   newOptions(BackendMemory, opts),
	}, nil
}

// Remember implements Store.
func (s *MemoryStore) Remember(ctx context.Context, key string, tags []string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}

	if entry, ok := s.client.Get(key); ok {
		if s.opts.now().Before(entry.ExpiresAt) {
			return entry.Data, nil
		}
		s.client.Delete(key)
	}

	ran := false
	entry, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (memoryEntry, error) {
		ran = true
		data, err := fetch(ctx)
		if err != nil {
			return memoryEntry{}, err
		}
		return memoryEntry{Data: data, ExpiresAt: s.opts.now().Add(ttl)}, nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		reportShared(ctx)
	}

	s.index(key, tags)
	return entry.Data, nil
}

// Flush implements Store.
func (s *MemoryStore) Flush(ctx context.Context, tags ...string) error {
	for _, tag := range dedupe(tags) {
		keys, ok := s.tags.LoadAndDelete(tag)
		if !ok {
			continue
		}
		keys.Range(func(key string, _ struct{}) bool {
			s.client.Delete(key)
			return true
		})
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Close implements Store. The sturdyc client holds no external resources.
func (s *MemoryStore) Close() error { return nil }

// Size returns the number of entries held by the client.
func (s *MemoryStore) Size() int { return s.client.Size() }

// Keys returns the keys held by the client.
func (s *MemoryStore) Keys() []string { return s.client.ScanKeys() }

func (s *MemoryStore) index(key string, tags []string) {
	for _, tag := range dedupe(tags) {
		keys, _ := s.tags.LoadOrCompute(tag, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		keys.Store(key, struct{}{})
	}
}
