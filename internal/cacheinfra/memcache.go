package cacheinfra

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// memcacheMaxRelative is the longest expiration memcached reads as relative
// seconds. Longer ones must be sent as a unix timestamp.
const memcacheMaxRelative = 30 * 24 * time.Hour

// memcacheClient is the subset of *memcache.Client the store uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	GetMulti(keys []string) (map[string]*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Delete(key string) error
}

// memcacheEntry is the stored envelope: the value plus the version each of
// its tags had when it was written. Key guards against hash collisions.
type memcacheEntry struct {
	Key      string            `msgpack:"k"`
	Versions map[string]string `msgpack:"v"`
	Data     []byte            `msgpack:"d"`
}

// MemcacheStore implements tags through versioned namespaces. Memcached
// cannot enumerate keys, so every tag owns a version id and entries record
// the versions they were written under. Flushing a tag rotates its version,
// which turns every entry written under the old one into a miss.
type MemcacheStore struct {
	client memcacheClient
	cfg    MemcacheConfig
	group  singleflight.Group
	opts   options
}

var _ Store = (*MemcacheStore)(nil)

// NewMemcacheStore builds a store talking to cfg.Servers.
func NewMemcacheStore(cfg MemcacheConfig, opts ...Option) (*MemcacheStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := memcache.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}

	return newMemcacheStore(client, cfg, opts...), nil
}

func newMemcacheStore(client memcacheClient, cfg MemcacheConfig, opts ...Option) *MemcacheStore {
	return &MemcacheStore{
		client: client,
		cfg:    cfg,
		opts:   newOptions(BackendMemcache, opts),
	}
}

// Remember implements Store.
func (s *MemcacheStore) Remember(ctx context.Context, key string, tags []string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}

	tags = dedupe(tags)
	storageKey := s.key(key)

	versions, err := s.versions(tags)
	if err != nil {
		return nil, &BackendError{Backend: BackendMemcache, Op: "versions", Key: key, Err: err}
	}

	item, err := s.client.Get(storageKey)
	switch {
	case err == nil:
		var entry memcacheEntry
		if decodeErr := msgpack.Unmarshal(item.Value, &entry); decodeErr == nil && entry.Key == key && sameVersions(entry.Versions, versions) {
			return entry.Data, nil
		}
	case errors.Is(err, memcache.ErrCacheMiss):
	default:
		return nil, &BackendError{Backend: BackendMemcache, Op: "get", Key: key, Err: err}
	}

	ran := false
	v, err, _ := s.group.Do(storageKey, func() (any, error) {
		ran = true
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if err := s.write(storageKey, memcacheEntry{Key: key, Versions: versions, Data: data}, ttl); err != nil {
			s.opts.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
			reportWriteError(ctx, &BackendError{Backend: BackendMemcache, Op: "set", Key: key, Err: err})
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

func (s *MemcacheStore) write(storageKey string, entry memcacheEntry, ttl time.Duration) error {
	value, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        storageKey,
		Value:      value,
		Expiration: s.expiration(ttl),
	})
}

// Flush implements Store.
func (s *MemcacheStore) Flush(ctx context.Context, tags ...string) error {
	for _, tag := range dedupe(tags) {
		err := s.client.Set(&memcache.Item{
			Key:   s.tagKey(tag),
			Value: []byte(uuid.NewString()),
		})
		if err != nil {
			return &BackendError{Backend: BackendMemcache, Op: "flush", Key: tag, Err: err}
		}
	}
	return nil
}

// Delete implements Store.
func (s *MemcacheStore) Delete(ctx context.Context, key string) error {
	err := s.client.Delete(s.key(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return &BackendError{Backend: BackendMemcache, Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Close implements Store.
func (s *MemcacheStore) Close() error {
	if closer, ok := s.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// versions returns the current version of every tag, creating the missing ones.
func (s *MemcacheStore) versions(tags []string) (map[string]string, error) {
	if len(tags) == 0 {
		return map[string]string{}, nil
	}

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = s.tagKey(tag)
	}

	items, err := s.client.GetMulti(keys)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]string, len(tags))
	for i, tag := range tags {
		if item, ok := items[keys[i]]; ok {
			versions[tag] = string(item.Value)
			continue
		}

		version, err := s.initVersion(keys[i])
		if err != nil {
			return nil, err
		}
		versions[tag] = version
	}
	return versions, nil
}

// initVersion creates a tag version, reading back the winner when another
// writer created it first.
func (s *MemcacheStore) initVersion(tagKey string) (string, error) {
	version := uuid.NewString()
	err := s.client.Add(&memcache.Item{Key: tagKey, Value: []byte(version)})
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, memcache.ErrNotStored) {
		return "", err
	}

	item, err := s.client.Get(tagKey)
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

func (s *MemcacheStore) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > memcacheMaxRelative {
		return int32(s.opts.now().Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

// key hashes the cache key: memcached limits keys to 250 bytes without
// spaces or control characters.
func (s *MemcacheStore) key(key string) string {
	return s.cfg.KeyPrefix + "k:" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

func (s *MemcacheStore) tagKey(tag string) string {
	return s.cfg.KeyPrefix + "t:" + strconv.FormatUint(xxhash.Sum64String(tag), 16)
}

func sameVersions(stored, current map[string]string) bool {
	if len(stored) != len(current) {
		return false
	}
	for tag, version := range current {
		if stored[tag] != version {
			return false
		}
	}
	return true
}
