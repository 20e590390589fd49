// Package cache implements the fingerprint-keyed record cache from spec.md
// §4.9: bounded capacity, absolute per-entry TTL, and a hard contract that
// any internal failure is treated as a miss rather than surfaced to the
// caller. Two backends are provided: an in-memory LRU (internal/cache/memory.go)
// and an optional Redis-backed store (internal/cache/redis.go), matching the
// teacher's Cache interface in internal/registrydata/cache.go: a generic
// Get(key, dst)/Set(key, value, ttl) pair rather than a CanonicalRecord-typed
// one, so this package stays free of any dependency on the root package
// (which must import this one to build the lookup coordinator).
package cache

import "time"

// Cache is the fingerprint -> record mapping the lookup coordinator reads
// and writes. Implementations never return an error from Get/Invalidate in
// a way that should abort a lookup: a backend failure is reported as a
// miss (the implementations here do no logging of their own), per spec.md
// §4.9's "the cache never fails fatally" contract. Set's error is informational only; callers are
// expected to log and continue rather than fail the lookup that produced
// the value being cached.
type Cache interface {
	// Get decodes the value stored for key into dst (a pointer), returning
	// found=false on a miss, an expired entry, or a decode failure. A
	// decode failure additionally removes the corrupt entry.
	Get(key string, dst any) (found bool, err error)

	// Set stores value (JSON-encoded) under key with the given ttl,
	// superseding any existing entry, subject to the cache's configured
	// capacity bound.
	Set(key string, value any, ttl time.Duration) error

	// Invalidate removes key, if present. A no-op on a miss.
	Invalidate(key string) error
}
