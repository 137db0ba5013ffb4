package repositorycache

import (
	"context"
	"io"
	"log/slog"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/repository"
)

// Interface assertion to ensure CachedRepository implements ReadWriter[T]
var (
	_ repository.ReadWriter[entity.Entity] = (*CachedRepository[entity.Entity])(nil)
	_ repository.Activator                 = (*CachedRepository[entity.Entity])(nil)
)

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	namespace  string
	serializer cache.KeySerializer
	codec      cache.Codec
	ttl        TTLPolicy
	tagFunc    TagFunc
	metrics    *Metrics
	logger     *slog.Logger
	failOpen   bool
}

// WithNamespace overrides the namespace derived from the entity type.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		if namespace != "" {
			o.namespace = toSnake(namespace)
		}
	}
}

// WithKeySerializer sets the serializer used for the method and arguments
// part of keys.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(o *options) {
		if serializer != nil {
			o.serializer = serializer
		}
	}
}

// WithCodec sets the codec of cached values.
func WithCodec(codec cache.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithTTL sets the per method TTL table.
func WithTTL(policy TTLPolicy) Option {
	return func(o *options) {
		o.ttl = policy
	}
}

// WithTagFunc adds resource specific tags to reads.
func WithTagFunc(fn TagFunc) Option {
	return func(o *options) {
		o.tagFunc = fn
	}
}

// WithMetrics records hits, misses and backend errors.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFailOpen makes reads bypass the cache when the backend fails instead of
// returning the *cache.BackendError. Failures are still logged and counted.
func WithFailOpen(enabled bool) Option {
	return func(o *options) {
		o.failOpen = enabled
	}
}

// CachedRepository decorates a base repository with caching functionality.
// Reads are cached without relations and the relations requested by the
// current context are always loaded afterwards through the base repository.
// Writes pass through untouched.
type CachedRepository[T entity.Entity] struct {
	base  repository.Repository[T]
	cache cache.CacheService
	keys  Keys
	opts  *options
}

// New creates a new CachedRepository that wraps the base repository with caching
func New[T entity.Entity](base repository.Repository[T], cacheService cache.CacheService, opts ...Option) *CachedRepository[T] {
	o := &options{
		namespace:  NamespaceFor[T](),
		serializer: cache.NewHashedKeySerializer(nil),
		codec:      cache.DefaultCodec(),
		ttl:        DefaultTTLPolicy(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("cache_namespace", o.namespace)

	return &CachedRepository[T]{
		base:  base,
		cache: cacheService,
		keys:  Keys{Namespace: o.namespace, Serializer: o.serializer},
		opts:  o,
	}
}

// Namespace returns the namespace of keys and tags.
func (c *CachedRepository[T]) Namespace() string { return c.keys.Namespace }

// Keys returns the key and tag builder.
func (c *CachedRepository[T]) Keys() Keys { return c.keys }

// TTL returns the TTL policy.
func (c *CachedRepository[T]) TTL() TTLPolicy { return c.opts.ttl }

// Unwrap returns the wrapped repository.
func (c *CachedRepository[T]) Unwrap() repository.Repository[T] { return c.base }

// Find retrieves a record by ID, with caching
func (c *CachedRepository[T]) Find(ctx context.Context, id int) (T, error) {
	item, err := remember(ctx, c, MethodFind, func(ctx context.Context, base repository.Repository[T]) (T, error) {
		return base.Find(ctx, id)
	}, id)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.hydrate(ctx, []T{item}); err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// FindMany retrieves records by ID, with caching
func (c *CachedRepository[T]) FindMany(ctx context.Context, ids ...int) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	items, err := remember(ctx, c, MethodFindMany, func(ctx context.Context, base repository.Repository[T]) ([]T, error) {
		return base.FindMany(ctx, ids...)
	}, ids)
	if err != nil {
		return nil, err
	}
	return c.hydrated(ctx, items)
}

// Search retrieves the records matching criteria, with caching
func (c *CachedRepository[T]) Search(ctx context.Context, criteria repository.Criteria) ([]T, error) {
	items, err := remember(ctx, c, MethodSearch, func(ctx context.Context, base repository.Repository[T]) ([]T, error) {
		return base.Search(ctx, criteria)
	}, criteria)
	if err != nil {
		return nil, err
	}
	return c.hydrated(ctx, items)
}

// SearchBy retrieves the records whose field is one of values, with caching
func (c *CachedRepository[T]) SearchBy(ctx context.Context, field string, values []int) ([]T, error) {
	if len(values) == 0 {
		return []T{}, nil
	}

	items, err := remember(ctx, c, MethodSearchBy, func(ctx context.Context, base repository.Repository[T]) ([]T, error) {
		return base.SearchBy(ctx, field, values)
	}, field, values)
	if err != nil {
		return nil, err
	}
	return c.hydrated(ctx, items)
}

// Create creates a new record. Write operations pass through to base repository
func (c *CachedRepository[T]) Create(ctx context.Context, item T) (T, error) {
	w, err := c.writer("create")
	if err != nil {
		var zero T
		return zero, err
	}
	return w.Create(ctx, item)
}

// Update updates a record. Write operations pass through to base repository
func (c *CachedRepository[T]) Update(ctx context.Context, item T) (T, error) {
	w, err := c.writer("update")
	if err != nil {
		var zero T
		return zero, err
	}
	return w.Update(ctx, item)
}

// Delete deletes a record. Write operations pass through to base repository
func (c *CachedRepository[T]) Delete(ctx context.Context, id int) error {
	w, err := c.writer("delete")
	if err != nil {
		return err
	}
	return w.Delete(ctx, id)
}

// Activate sets the active flag through the base repository. Like the other
// writes it leaves the cache untouched.
func (c *CachedRepository[T]) Activate(ctx context.Context, id int) error {
	a, err := c.activator("activate")
	if err != nil {
		return err
	}
	return a.Activate(ctx, id)
}

// Deactivate clears the active flag through the base repository.
func (c *CachedRepository[T]) Deactivate(ctx context.Context, id int) error {
	a, err := c.activator("deactivate")
	if err != nil {
		return err
	}
	return a.Deactivate(ctx, id)
}

// Office implements repository.Repository.
func (c *CachedRepository[T]) Office(officeID int) repository.Repository[T] {
	return c.wrap(c.base.Office(officeID))
}

// Paginate implements repository.Repository.
func (c *CachedRepository[T]) Paginate(page, pageSize int) repository.Repository[T] {
	return c.wrap(c.base.Paginate(page, pageSize))
}

// WithRelated implements repository.Repository.
func (c *CachedRepository[T]) WithRelated(names ...string) repository.Repository[T] {
	return c.wrap(c.base.WithRelated(names...))
}

// DenyLazyLoad implements repository.Repository.
func (c *CachedRepository[T]) DenyLazyLoad() repository.Repository[T] {
	return c.wrap(c.base.DenyLazyLoad())
}

// CurrentContext implements repository.Repository.
func (c *CachedRepository[T]) CurrentContext() repository.Context {
	return c.base.CurrentContext()
}

// WithContext implements repository.Repository.
func (c *CachedRepository[T]) WithContext(rc repository.Context) repository.Repository[T] {
	return c.wrap(c.base.WithContext(rc))
}

// LoadAllRelations implements repository.Repository.
func (c *CachedRepository[T]) LoadAllRelations(ctx context.Context, items []T) error {
	return c.base.LoadAllRelations(ctx, items)
}

// IsLazyLoadDenied implements repository.Repository.
func (c *CachedRepository[T]) IsLazyLoadDenied() bool {
	return c.base.IsLazyLoadDenied()
}

// Invalidate flushes the tags of methods, or of every read method when none
// is given. Entries tagged by TagFunc or WithCacheTags are flushed through
// InvalidateTags.
func (c *CachedRepository[T]) Invalidate(ctx context.Context, methods ...Method) error {
	if len(methods) == 0 {
		methods = ReadMethods()
	}
	tags := make([]string, len(methods))
	for i, m := range methods {
		tags[i] = c.keys.Tag(m)
	}
	return c.InvalidateTags(ctx, tags...)
}

// InvalidateTags flushes arbitrary tags.
func (c *CachedRepository[T]) InvalidateTags(ctx context.Context, tags ...string) error {
	tags = dedupeStrings(tags)
	if len(tags) == 0 {
		return nil
	}
	if err := c.cache.Tags(tags...).Flush(ctx); err != nil {
		c.opts.logger.ErrorContext(ctx, "cache flush failed", "tags", tags, "error", err)
		return err
	}
	c.opts.logger.DebugContext(ctx, "cache flushed", "tags", tags)
	return nil
}

func (c *CachedRepository[T]) wrap(base repository.Repository[T]) *CachedRepository[T] {
	return &CachedRepository[T]{
		base:  base,
		cache: c.cache,
		keys:  c.keys,
		opts:  c.opts,
	}
}

func (c *CachedRepository[T]) writer(op string) (repository.Writer[T], error) {
	w, ok := c.base.(repository.Writer[T])
	if !ok {
		return nil, notWritable(c.keys.Namespace, op)
	}
	return w, nil
}

func (c *CachedRepository[T]) activator(op string) (repository.Activator, error) {
	a, ok := c.base.(repository.Activator)
	if !ok {
		return nil, notWritable(c.keys.Namespace, op)
	}
	return a, nil
}

// hydrate loads the relations requested by the current context.
func (c *CachedRepository[T]) hydrate(ctx context.Context, items []T) error {
	if len(items) == 0 || !c.base.CurrentContext().HasRelations() {
		return nil
	}
	return c.base.LoadAllRelations(ctx, items)
}

func (c *CachedRepository[T]) hydrated(ctx context.Context, items []T) ([]T, error) {
	if err := c.hydrate(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// remember reads method through the cache. fetch receives the base
// repository with relations stripped from its context so cached values never
// depend on the relations a caller asked for.
func remember[T entity.Entity, V any](
	ctx context.Context,
	c *CachedRepository[T],
	method Method,
	fetch func(ctx context.Context, base repository.Repository[T]) (V, error),
	args ...any,
) (V, error) {
	rc := c.base.CurrentContext()
	plain := c.base.WithContext(rc.WithoutRelations())
	load := func(ctx context.Context) (V, error) {
		return fetch(ctx, plain)
	}

	key := c.keys.Key(rc, method, args...)
	tags := c.readTags(ctx, method, args...)
	ttl := c.opts.ttl.For(method)

	value, outcome, err := cache.Remember(ctx, c.cache.Tags(tags...), c.opts.codec, key, ttl, load)
	switch {
	case err == nil:
		if outcome.WriteErr != nil {
			c.opts.metrics.failure(c.keys.Namespace, method)
			c.opts.logger.WarnContext(ctx, "cache write failure", "method", method, "key", key, "error", outcome.WriteErr)
		}
		if outcome.Hit {
			c.opts.metrics.hit(c.keys.Namespace, method)
		} else {
			c.opts.metrics.miss(c.keys.Namespace, method)
		}
		c.opts.logger.DebugContext(ctx, "cache read", "method", method, "key", key, "hit", outcome.Hit, "shared", outcome.Shared)
		return value, nil

	case cache.IsBackendError(err):
		c.opts.metrics.failure(c.keys.Namespace, method)
		c.opts.logger.ErrorContext(ctx, "cache backend failure", "method", method, "key", key, "error", err)
		if c.opts.failOpen {
			return load(ctx)
		}
		var zero V
		return zero, err

	default:
		var zero V
		return zero, err
	}
}
