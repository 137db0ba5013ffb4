package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/pkg/config"
	"github.com/goliatone/go-crm-repository/pkg/testsupport"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func redisConfig(t *testing.T) (string, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	yaml := fmt.Sprintf("log_level: error\ncache:\n  backend: redis\n  redis:\n    addr: %s\n    key_prefix: \"portal:\"\n", mr.Addr())
	return testsupport.WriteTempFile(t, "portal.yaml", []byte(yaml)), mr
}

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		method repositorycache.Method
		ns     string
		rc     repository.Context
		keyArg []any
	}{
		{
			name:   "find",
			args:   []string{"-resource", "serviceType", "-method", "find", "-office", "1", "7"},
			method: repositorycache.MethodFind,
			ns:     "service_type",
			rc:     repository.Context{OfficeID: 1},
			keyArg: []any{7},
		},
		{
			name:   "find many",
			args:   []string{"-resource", "customer", "-method", "FindMany", "1,2", "3"},
			method: repositorycache.MethodFindMany,
			ns:     "customer",
			keyArg: []any{[]int{1, 2, 3}},
		},
		{
			name:   "search by",
			args:   []string{"-resource", "appointment", "-method", "search_by", "customerID", "1", "2"},
			method: repositorycache.MethodSearchBy,
			ns:     "appointment",
			keyArg: []any{"customerID", []int{1, 2}},
		},
		{
			name:   "search paged",
			args:   []string{"-resource", "customer", "-method", "search", "-page", "2", "-page-size", "25", "status=1", "customerID=1,2"},
			method: repositorycache.MethodSearch,
			ns:     "customer",
			rc:     repository.Context{Page: 2, PageSize: 25},
			keyArg: []any{repository.Where("status", 1).In("customerID", 1, 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, append([]string{"key"}, tt.args...)...)
			require.NoError(t, err)

			keys := repositorycache.NewKeys(tt.ns)
			expected := fmt.Sprintf("key: %s\ntag: %s\n", keys.Key(tt.rc, tt.method, tt.keyArg...), keys.Tag(tt.method))
			assert.Equal(t, expected, out)
		})
	}
}

func TestKey_SpotGeoTag(t *testing.T) {
	out, err := runCmd(t, "key", "-resource", "spot", "-method", "search", "latitude=30.27", "longitude=-97.74")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tag: spot::search", lines[1])
	assert.Equal(t, "tag: spots::geo::30.3:-97.7", lines[2])
}

func TestKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no resource", args: []string{"key", "1"}},
		{name: "unknown resource", args: []string{"key", "-resource", "invoice", "1"}},
		{name: "unknown method", args: []string{"key", "-resource", "customer", "-method", "count"}},
		{name: "find without id", args: []string{"key", "-resource", "customer"}},
		{name: "bad id", args: []string{"key", "-resource", "customer", "-method", "find_many", "1,x"}},
		{name: "bad filter", args: []string{"key", "-resource", "customer", "-method", "search", "status"}},
		{name: "unknown command", args: []string{"purge"}},
		{name: "no command", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFlush(t *testing.T) {
	path, mr := redisConfig(t)
	ctx := context.Background()

	cfg, err := config.Load(path)
	require.NoError(t, err)
	svc, err := cache.NewCacheService(cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	fetch := func(ctx context.Context) ([]byte, error) { return []byte("cached"), nil }
	_, err = svc.Tags("customer::find").Remember(ctx, "customer::find::1", time.Minute, fetch)
	require.NoError(t, err)
	_, err = svc.Tags("appointment::find").Remember(ctx, "appointment::find::1", time.Minute, fetch)
	require.NoError(t, err)
	require.True(t, mr.Exists("portal:customer::find::1"))

	out, err := runCmd(t, "-config", path, "flush", "-resource", "customer")
	require.NoError(t, err)
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("flush_customer.txt"), []byte(out))

	assert.False(t, mr.Exists("portal:customer::find::1"))
	assert.True(t, mr.Exists("portal:appointment::find::1"), "other resources are untouched")
}

func TestFlush_SpotGeo(t *testing.T) {
	path, mr := redisConfig(t)
	ctx := context.Background()

	cfg, err := config.Load(path)
	require.NoError(t, err)
	svc, err := cache.NewCacheService(cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	fetch := func(ctx context.Context) ([]byte, error) { return []byte("spots"), nil }
	_, err = svc.Tags("spot::search", "spots::geo::30.3:-97.7").Remember(ctx, "spot::search::a", time.Minute, fetch)
	require.NoError(t, err)
	_, err = svc.Tags("spot::search", "spots::geo::51.5:-0.1").Remember(ctx, "spot::search::b", time.Minute, fetch)
	require.NoError(t, err)

	out, err := runCmd(t, "-config", path, "flush", "-resource", "spot", "-geo", "30.31,-97.66")
	require.NoError(t, err)
	assert.Equal(t, "flushed spots::geo::30.3:-97.7\n", out)
	assert.False(t, mr.Exists("portal:spot::search::a"))
	assert.True(t, mr.Exists("portal:spot::search::b"))

	out, err = runCmd(t, "-config", path, "flush", "-resource", "spot", "-method", "search", "-geo", "30.27,-97.74")
	require.NoError(t, err)
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("flush_spot_geo.txt"), []byte(out))
	assert.False(t, mr.Exists("portal:spot::search::b"))
}

func TestFlush_Invalid(t *testing.T) {
	path, _ := redisConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no resource", args: []string{"flush"}},
		{name: "unknown method", args: []string{"flush", "-resource", "customer", "-method", "count"}},
		{name: "geo on customer", args: []string{"flush", "-resource", "customer", "-geo", "30,-97"}},
		{name: "bad geo", args: []string{"flush", "-resource", "spot", "-geo", "north"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, append([]string{"-config", path}, tt.args...)...)
			assert.Error(t, err)
		})
	}

	_, err := runCmd(t, "-config", "testdata/missing.yaml", "flush", "-resource", "customer")
	assert.Error(t, err)
}
