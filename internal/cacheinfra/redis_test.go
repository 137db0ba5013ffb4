package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := DefaultConfig().Redis
	cfg.Addr = mr.Addr()
	cfg.TagTTL = time.Hour

	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_Remember(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	var calls int32

	got, err := store.Remember(ctx, "customer::find::1", []string{"customer::find"}, time.Minute, countingFetch(&calls, "ada"))
	require.NoError(t, err)
	assert.Equal(t, "ada", string(got))

	got, err = store.Remember(ctx, "customer::find::1", []string{"customer::find"}, time.Minute, countingFetch(&calls, "other"))
	require.NoError(t, err)
	assert.Equal(t, "ada", string(got))
	assert.EqualValues(t, 1, calls)

	assert.True(t, mr.Exists("crm:customer::find::1"))
	members, err := mr.Members("crm:tag:customer::find")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm:customer::find::1"}, members)

	assert.Equal(t, time.Minute, mr.TTL("crm:customer::find::1"))
	assert.Equal(t, time.Hour, mr.TTL("crm:tag:customer::find"))
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	var calls int32

	_, err := store.Remember(ctx, "k", nil, time.Minute, countingFetch(&calls, "v"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Remember(ctx, "k", nil, time.Minute, countingFetch(&calls, "v"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestRedisStore_TagTTLCoversLongEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	var calls int32

	_, err := store.Remember(ctx, "office::find::1", []string{"office::find"}, 48*time.Hour, countingFetch(&calls, "v"))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, mr.TTL("crm:tag:office::find"))
}

func TestRedisStore_Flush(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	var calls int32

	store.Remember(ctx, "a", []string{"search", "geo"}, time.Minute, countingFetch(&calls, "a"))
	store.Remember(ctx, "b", []string{"search"}, time.Minute, countingFetch(&calls, "b"))
	store.Remember(ctx, "c", []string{"find"}, time.Minute, countingFetch(&calls, "c"))

	require.NoError(t, store.Flush(ctx, "search"))

	assert.False(t, mr.Exists("crm:a"))
	assert.False(t, mr.Exists("crm:b"))
	assert.True(t, mr.Exists("crm:c"))
	assert.False(t, mr.Exists("crm:tag:search"))

	require.NoError(t, store.Flush(ctx, "never-written"))
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	var calls int32

	store.Remember(ctx, "k", nil, time.Minute, countingFetch(&calls, "v"))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.False(t, mr.Exists("crm:k"))
}

func TestRedisStore_FetchErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	remoteErr := errors.New("remote down")

	_, err := store.Remember(ctx, "k", []string{"t"}, time.Minute, func(ctx context.Context) ([]byte, error) {
		return nil, remoteErr
	})
	assert.Same(t, remoteErr, err)
	assert.False(t, mr.Exists("crm:k"))
	assert.False(t, mr.Exists("crm:tag:t"))
}

func TestRedisStore_BackendFailure(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	mr.Close()

	var calls int32
	_, err := store.Remember(ctx, "k", nil, time.Minute, countingFetch(&calls, "v"))
	require.Error(t, err)

	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, BackendRedis, be.Backend)
	assert.Equal(t, "get", be.Op)
	assert.EqualValues(t, 0, calls)

	assert.True(t, IsBackendError(store.Flush(ctx, "t")))
	assert.True(t, IsBackendError(store.Delete(ctx, "k")))
	assert.True(t, IsBackendError(store.Ping(ctx)))
}

// failingWrites fails pipelines carrying a SET so reads succeed while writes
// do not.
type failingWrites struct{}

func (failingWrites) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingWrites) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (failingWrites) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			if cmd.Name() == "set" {
				return errors.New("READONLY replica")
			}
		}
		return next(ctx, cmds)
	}
}

func TestRedisStore_WriteFailureReported(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	client.AddHook(failingWrites{})

	store := NewRedisStoreWithClient(client, RedisConfig{Addr: mr.Addr(), KeyPrefix: "crm:"})
	var calls int32
	var report Report

	got, err := store.Remember(WithReport(ctx, &report), "k", []string{"t"}, time.Minute, countingFetch(&calls, "v"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	assert.False(t, mr.Exists("crm:k"))

	var be *BackendError
	require.True(t, errors.As(report.WriteErr, &be))
	assert.Equal(t, BackendRedis, be.Backend)
	assert.Equal(t, "set", be.Op)
	assert.False(t, report.Shared)
}

func TestRedisStore_ConcurrentMissesReportShared(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	var calls int32
	release := make(chan struct{})

	slow := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	reports := make([]Report, 5)
	done := make(chan struct{}, len(reports))
	for i := range reports {
		go func(r *Report) {
			defer func() { done <- struct{}{} }()
			_, err := store.Remember(WithReport(ctx, r), "hot", nil, time.Minute, slow)
			assert.NoError(t, err)
		}(&reports[i])
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	for range reports {
		<-done
	}

	assert.EqualValues(t, 1, calls)
	shared := 0
	for _, r := range reports {
		if r.Shared {
			shared++
		}
	}
	assert.Equal(t, len(reports)-1, shared)
}

func TestRedisStore_WithClientKeepsOwnership(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStoreWithClient(client, RedisConfig{Addr: mr.Addr()})
	require.NoError(t, store.Close())
	require.NoError(t, client.Ping(context.Background()).Err())
}
