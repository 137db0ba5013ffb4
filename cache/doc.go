// Package cache provides the tagged cache and key serialization used by the
// repository decorators.
//
// # Overview
//
// The package exports:
//
//   - CacheService: a tagged read-through cache over one of the backends in
//     internal/cacheinfra (sturdyc in process, Redis or Memcached)
//   - KeySerializer: builds stable cache keys from method names and arguments
//   - Codec: encodes values before they are stored (msgpack by default)
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	tagged := svc.Tags("customer::find")
//	customer, outcome, err := cache.Remember(ctx, tagged, nil, "customer::find::42", 10*time.Minute,
//		func(ctx context.Context) (*crm.Customer, error) {
//			return repo.Find(ctx, 42)
//		})
//
//	// Later, drop every entry written under the tag.
//	err = svc.Tags("customer::find").Flush(ctx)
//
// # Stored values
//
// Values are stored encoded. A miss returns the value produced by the fetch
// function; a hit decodes a new copy. Readers never share instances, so state
// attached to a value after it was read (resolved relations for example)
// never reaches another reader.
//
// # Errors
//
// Errors returned by fetch functions pass through unchanged and nothing is
// stored. Failures of the cache itself are reported as *BackendError; use
// IsBackendError to tell them apart.
//
// # Keys
//
// NewDefaultKeySerializer renders method::arg1::arg2. Ints and []int, the
// arguments of most CRM lookups, are written directly. Strings are quoted so
// 7 and "7" differ. KeyPart values contribute their CacheKey. Maps are
// written with sorted keys and structs with their exported fields only.
// Function and channel arguments render as addresses and are only stable
// inside one process.
//
// NewHashedKeySerializer keeps the method readable and replaces the
// arguments with an xxhash digest, which keeps Memcached keys under its
// length limit.
package cache
