package di

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/pestroutes"
	"github.com/goliatone/go-crm-repository/pkg/config"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

// ErrNoTransport is returned when neither a transport nor a CRM base URL is
// configured.
var ErrNoTransport = errors.New("di: no CRM transport configured")

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger shared by every component. By default the
// container logs text to stderr at the configured level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport replaces the PestRoutes client built from the CRM section.
func WithTransport(transport repository.Transport) Option {
	return func(c *Container) {
		c.transport = transport
	}
}

// WithCacheService replaces the cache service built from the cache section.
func WithCacheService(svc cache.CacheService) Option {
	return func(c *Container) {
		c.cacheService = svc
	}
}

// WithRegisterer registers cache metrics with reg. Without it no metrics are
// recorded.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Container) {
		c.registerer = reg
	}
}

// Container provides dependency injection for the cached CRM repositories.
// It owns the cache service, the key serializer, the metrics and the CRM
// transport, and builds the repository set from them.
type Container struct {
	config        config.Config
	logger        *slog.Logger
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	registerer    prometheus.Registerer
	metrics       *repositorycache.Metrics
	transport     repository.Transport
	ttl           map[string]repositorycache.TTLPolicy
	repositories  *crm.Repositories
}

// NewContainer wires the components described by cfg.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:        cfg,
		keySerializer: cache.NewHashedKeySerializer(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}

	if c.registerer != nil {
		metrics, err := repositorycache.NewMetrics(c.registerer)
		if err != nil {
			return nil, err
		}
		c.metrics = metrics
	}

	if c.transport == nil {
		if cfg.CRM.BaseURL == "" {
			return nil, ErrNoTransport
		}
		client, err := pestroutes.New(cfg.CRM, pestroutes.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.transport = client
	}

	if c.cacheService == nil {
		svc, err := cache.NewCacheService(cfg.Cache, cache.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.cacheService = svc
	}

	ttl, err := cfg.TTLPolicies()
	if err != nil {
		return nil, err
	}
	c.ttl = ttl

	c.repositories = crm.NewRepositories(c.transport, c.cacheService, crm.Config{
		TTL:      ttl,
		FailOpen: cfg.FailOpen,
		Logger:   c.logger,
		Metrics:  c.metrics,
	})

	c.logger.Info("repositories ready",
		"cache_backend", cfg.Cache.Backend,
		"fail_open", cfg.FailOpen,
		"metrics", c.metrics != nil,
	)
	return c, nil
}

// NewContainerWithDefaults creates a container over transport using the
// default configuration and a silent logger.
func NewContainerWithDefaults(transport repository.Transport) (*Container, error) {
	return NewContainer(config.Default(),
		WithTransport(transport),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// Repositories returns the cached CRM repositories.
func (c *Container) Repositories() *crm.Repositories {
	return c.repositories
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the key serializer handed to repositories built with
// NewCachedRepository.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Transport returns the CRM transport.
func (c *Container) Transport() repository.Transport {
	return c.transport
}

// Metrics returns the cache metrics, nil unless WithRegisterer was given.
func (c *Container) Metrics() *repositorycache.Metrics {
	return c.metrics
}

// Logger returns the shared logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

// Close releases the cache service.
func (c *Container) Close() error {
	return c.repositories.Close()
}

// NewCachedRepository decorates a repository outside the CRM set with the
// container's cache, serializer, logger, metrics and fail open setting, and
// registers it as the relation source of name. The TTL policy of name comes
// from the configured resources table; a WithTTL in opts replaces it.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[*Invoice](container, "invoice", invoices)
func NewCachedRepository[T entity.Entity](c *Container, name string, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	all := []repositorycache.Option{
		repositorycache.WithKeySerializer(c.keySerializer),
		repositorycache.WithLogger(c.logger),
		repositorycache.WithMetrics(c.metrics),
		repositorycache.WithFailOpen(c.config.FailOpen),
		repositorycache.WithTTL(crm.TTLFor(name, c.ttl)),
	}
	all = append(all, opts...)

	cached := repositorycache.New[T](base, c.cacheService, all...)
	c.repositories.Registry.Register(name, repository.AsSource[T](cached))
	return cached
}
