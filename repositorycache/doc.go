// Package repositorycache provides the caching decorator for repositories of
// remote entities.
//
// # Overview
//
// CachedRepository[T] wraps any repository.Repository[T] and implements the
// same interface, so it can replace the wrapped repository anywhere,
// including as a relation source in a repository.Registry. Read methods
// (Find, FindMany, Search, SearchBy) go through a tagged cache.CacheService;
// write methods (Create, Update, Delete) call the wrapped repository
// directly and never touch the cache.
//
// # Basic Usage
//
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	customers := repositorycache.New[*crm.Customer](remote, svc,
//		repositorycache.WithTTL(repositorycache.DefaultTTLPolicy().
//			With(repositorycache.MethodSearch, 5*time.Minute)),
//	)
//
//	c, err := customers.Office(1).WithRelated("appointments").Find(ctx, 42)
//
// # Keys and Tags
//
// A read is stored under namespace::method::digest where namespace is the
// snake cased entity type (or WithNamespace), method is one of the Method
// constants and digest hashes the office, the page and the call arguments.
// Requested relations are not part of the key.
//
// Every entry carries the tag namespace::method, plus the tags returned by a
// TagFunc and the tags attached to the request with WithCacheTags.
// Invalidate flushes method tags and InvalidateTags flushes any tag. The
// decorator itself never invalidates: entries expire after the TTL of their
// method or when a collaborator flushes them.
//
// # Relations
//
// Values are fetched with relations stripped from the context and stored
// encoded. After every read, hit or miss, the relations requested by the
// current context are loaded through the wrapped repository. A cached value
// therefore never carries the relations asked for by an earlier caller.
//
// # Errors
//
// Errors of the wrapped repository are propagated unchanged and never
// cached. Cache backend failures are returned as *cache.BackendError unless
// WithFailOpen is set, in which case the read bypasses the cache. Either way
// the failure is logged and counted in Metrics.
package repositorycache
