// Package cache implements the batch info cache (spec §4.4): per-batch
// counters, a per-event-status histogram, and bounded time-sorted recency
// sets, built on top of a narrow Driver contract modeled directly on the
// Redis command families spec §6 calls out ("string get/set/incrby, hash
// field set/incrby/getall, set add/remove/ismember, sorted set
// add/zrange/zremrangebyrank").
package cache

import "context"

// Driver is the cache store contract. Two implementations are provided:
// MemoryDriver (in-process, for tests and single-node deployments) and
// RedisDriver (github.com/redis/go-redis/v9, for everything else).
type Driver interface {
	// Get returns a string value, or found=false if key is unset.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set unconditionally sets a string value.
	Set(ctx context.Context, key, value string) error
	// IncrBy atomically adds delta to the integer at key (default 0) and
	// returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// HIncrBy atomically adds delta to hash field key[field] (default 0)
	// and returns the new value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// HSetIfAbsent sets key[field] to value only if the field doesn't
	// already exist; reports whether it set anything.
	HSetIfAbsent(ctx context.Context, key, field, value string) (set bool, err error)
	// HGetAll returns every field in the hash at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// SAdd adds members to the set at key.
	SAdd(ctx context.Context, key string, members ...string) error
	// SRem removes members from the set at key.
	SRem(ctx context.Context, key string, members ...string) error
	// SIsMember reports whether member is in the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)
	// SMembers returns every member of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// ZAdd adds member to the sorted set at key with the given score,
	// replacing member's score if it's already present. added reports
	// whether member was newly added to the set, atomically with the
	// score write — callers use this instead of a separate existence
	// check to avoid a check-then-act race under concurrent callers.
	ZAdd(ctx context.Context, key string, score float64, member string) (added bool, err error)
	// ZRange returns members ranked [start, stop] (inclusive, 0-based,
	// negative indices count from the end — Redis semantics), in
	// ascending score order.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRevRange is ZRange in descending score order.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZCard returns the number of members in the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRemRangeByRank removes members ranked [start, stop] (ascending,
	// inclusive), used to trim recency sets back to T entries.
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	// Del deletes every key given, ignoring ones that don't exist.
	Del(ctx context.Context, keys ...string) error
}
