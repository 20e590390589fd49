package cache

import (
	"encoding/json"
	"time"

	redis "github.com/go-redis/redis/v7"
)

// Redis is an optional cache backend, adapted from the teacher's
// redisCache (internal/registrydata/cache_redis.go) and extended with a
// sorted-set insertion-order index so capacity eviction (spec.md §4.9's
// cache_max_entries) is enforced server-side rather than relying solely on
// Redis's own maxmemory-policy.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	maxEntries int
}

// NewRedis constructs a Redis-backed cache. client must be non-nil. prefix
// namespaces every key (including the sorted-set index). maxEntries <= 0
// falls back to DefaultMaxEntries.
func NewRedis(client redis.UniversalClient, prefix string, maxEntries int) *Redis {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Redis{client: client, prefix: prefix, maxEntries: maxEntries}
}

func (r *Redis) key(k string) string {
	return r.prefix + "e:" + k
}

func (r *Redis) indexKey() string {
	return r.prefix + "idx"
}

// Get decodes the value stored for key into dst, treating a missing key, a
// decode failure, or a transport error alike as a miss, per spec.md §4.9's
// "cache never fails fatally" contract. A decode failure also deletes the
// corrupt value, matching the teacher's redisCache.Get behavior.
func (r *Redis) Get(key string, dst any) (bool, error) {
	val, err := r.client.Get(r.key(key)).Bytes()
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(val, dst); err != nil {
		_ = r.client.Del(r.key(key)).Err()
		_ = r.client.ZRem(r.indexKey(), key).Err()
		return false, nil
	}
	return true, nil
}

// Set JSON-encodes value and stores it under key with the given ttl,
// records key in the insertion-order index, and trims the index (and the
// entries it names) down to maxEntries, approximating LRU via insertion
// order. A transport error is returned to the caller to log, but is never
// fatal to the lookup that produced value.
func (r *Redis) Set(key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(r.key(key), b, ttl).Err(); err != nil {
		return err
	}
	_ = r.client.ZAdd(r.indexKey(), &redis.Z{Score: float64(timeNowUnixNano()), Member: key}).Err()
	r.trim()
	return nil
}

// Invalidate removes key from both the entry store and the index.
func (r *Redis) Invalidate(key string) error {
	_ = r.client.Del(r.key(key)).Err()
	_ = r.client.ZRem(r.indexKey(), key).Err()
	return nil
}

func (r *Redis) trim() {
	count, err := r.client.ZCard(r.indexKey()).Result()
	if err != nil || count <= int64(r.maxEntries) {
		return
	}
	excess := count - int64(r.maxEntries)
	oldest, err := r.client.ZRange(r.indexKey(), 0, excess-1).Result()
	if err != nil || len(oldest) == 0 {
		return
	}
	for _, k := range oldest {
		_ = r.client.Del(r.key(k)).Err()
	}
	_ = r.client.ZRemRangeByRank(r.indexKey(), 0, excess-1).Err()
}

// timeNowUnixNano is a var so tests can make insertion order deterministic
// without sleeping between Set calls.
var timeNowUnixNano = func() int64 { return time.Now().UnixNano() }
