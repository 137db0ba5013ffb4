package di

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/pestroutes"
	"github.com/goliatone/go-crm-repository/pkg/config"
	"github.com/goliatone/go-crm-repository/pkg/testsupport"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewContainer(t *testing.T) {
	cfg := config.Default()
	cfg.FailOpen = true
	cfg.Resources = map[string]config.ResourceConfig{
		crm.TypeCustomer: {TTL: map[string]string{"default": "2m"}},
	}

	transport := testsupport.NewFakeTransport()
	container, err := NewContainer(cfg, WithTransport(transport), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Transport() != transport {
		t.Error("Container should use the given transport")
	}
	if container.Metrics() != nil {
		t.Error("Container should not record metrics without a registerer")
	}
	if !container.Config().FailOpen {
		t.Error("Expected config to be stored")
	}

	repos := container.Repositories()
	if repos == nil {
		t.Fatal("Container should build the repositories")
	}
	if got := repos.Customers.TTL().For(repositorycache.MethodFind); got != 2*time.Minute {
		t.Errorf("Expected customer TTL override of 2m, got %v", got)
	}
	if got := repos.Offices.TTL().For(repositorycache.MethodFind); got != crm.ReferenceTTL {
		t.Errorf("Expected office TTL %v, got %v", crm.ReferenceTTL, got)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(testsupport.NewFakeTransport())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if container.Config().Cache.Backend != cache.BackendMemory {
		t.Errorf("Expected memory backend, got %s", container.Config().Cache.Backend)
	}
	if len(container.Repositories().Registry.Types()) != 7 {
		t.Errorf("Expected 7 registered types, got %v", container.Repositories().Registry.Types())
	}
}

func TestNewContainer_BuildsPestRoutesClient(t *testing.T) {
	cfg := config.Default()
	cfg.CRM.BaseURL = "https://demo.pestroutes.com/api"
	cfg.CRM.AuthKey = "key"
	cfg.CRM.AuthToken = "token"

	container, err := NewContainer(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if _, ok := container.Transport().(*pestroutes.Client); !ok {
		t.Errorf("Expected a *pestroutes.Client transport, got %T", container.Transport())
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		opts   []Option
		want   error
	}{
		{
			name:   "invalid cache backend",
			mutate: func(c *config.Config) { c.Cache.Backend = "etcd" },
			opts:   []Option{WithTransport(testsupport.NewFakeTransport())},
		},
		{
			name:   "invalid ttl",
			mutate: func(c *config.Config) { c.Resources = map[string]config.ResourceConfig{"invoice": {}} },
			opts:   []Option{WithTransport(testsupport.NewFakeTransport())},
		},
		{
			name:   "no transport",
			mutate: func(c *config.Config) {},
			want:   ErrNoTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)

			opts := append([]Option{WithLogger(quietLogger())}, tt.opts...)
			_, err := NewContainer(cfg, opts...)
			if err == nil {
				t.Fatal("Expected NewContainer() to fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults(testsupport.NewFakeTransport())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if container.CacheService() != container.CacheService() {
		t.Error("CacheService should return the same instance")
	}
	if container.KeySerializer() != container.KeySerializer() {
		t.Error("KeySerializer should return the same instance")
	}
	if container.Repositories() != container.Repositories() {
		t.Error("Repositories should return the same instance")
	}
}

func TestContainer_Metrics(t *testing.T) {
	transport := testsupport.NewFakeTransport()
	transport.Seed(crm.TypeOffice, map[string]any{"officeID": "1", "officeName": "Austin"})

	reg := prometheus.NewRegistry()
	container, err := NewContainer(config.Default(),
		WithTransport(transport),
		WithLogger(quietLogger()),
		WithRegisterer(reg),
	)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := container.Repositories().Offices.Find(ctx, 1); err != nil {
			t.Fatalf("Find() failed: %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			found[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	if found["crm_repository_cache_hits_total"] != 2 {
		t.Errorf("Expected 2 hits, got %v", found["crm_repository_cache_hits_total"])
	}
	if found["crm_repository_cache_misses_total"] != 1 {
		t.Errorf("Expected 1 miss, got %v", found["crm_repository_cache_misses_total"])
	}
}

func TestKeySerializerIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults(testsupport.NewFakeTransport())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	serializer := container.KeySerializer()

	key1 := serializer.SerializeKey("find", 1)
	key2 := serializer.SerializeKey("find", 1)
	if key1 != key2 {
		t.Errorf("Expected same keys for identical inputs, got %s and %s", key1, key2)
	}

	key3 := serializer.SerializeKey("find", 2)
	if key1 == key3 {
		t.Error("Expected different keys for different arguments")
	}

	key4 := serializer.SerializeKey("find_many", 1)
	if key1 == key4 {
		t.Error("Expected different keys for different methods")
	}
}
