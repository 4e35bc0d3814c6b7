// Package msgstore is the public API surface for the persistent message
// store: a dual-store data plane (an authoritative content-addressed
// object store plus a derivative batch info cache) for recording every
// inbound/outbound message and delivery-lifecycle event flowing through a
// messaging platform, grouped into operator-defined batches.
//
// Most callers only need Open and the three façades it returns
// (BatchManager, Operational, Query); the internal/ packages are not part
// of the supported API.
package msgstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vumi/msgstore/internal/authority"
	"github.com/vumi/msgstore/internal/cache"
	"github.com/vumi/msgstore/internal/envelope"
	facade "github.com/vumi/msgstore/internal/msgstore"
	"github.com/vumi/msgstore/internal/objectstore"
)

// Domain types re-exported from internal/authority and internal/envelope.
type (
	Tag            = authority.Tag
	Batch          = authority.Batch
	CurrentTag     = authority.CurrentTag
	Inbound        = envelope.Inbound
	Outbound       = envelope.Outbound
	Event          = envelope.Event
	KeyPage        = authority.KeyPage
	TimestampPage  = authority.TimestampPage
	AddressPage    = authority.AddressPage
	StatusPage     = authority.StatusPage
	TimestampEntry = authority.TimestampEntry
	AddressEntry   = authority.AddressEntry
	StatusEntry    = authority.StatusEntry
)

// Delivery-status and event-type constants (spec §6).
const (
	DeliveryDelivered = envelope.DeliveryDelivered
	DeliveryFailed    = envelope.DeliveryFailed
	DeliveryPending   = envelope.DeliveryPending

	EventTypeAck            = envelope.EventTypeAck
	EventTypeNack           = envelope.EventTypeNack
	EventTypeDeliveryReport = envelope.EventTypeDeliveryReport
)

// The three role-limited façades (spec §4.5).
type (
	BatchManager = facade.BatchManager
	Operational  = facade.Operational
	Query        = facade.Query
)

// CacheDriver is the batch info cache's backing store contract. Use
// NewMemoryCacheDriver for tests and single-node deployments, or wrap a
// *redis.Client with NewRedisCacheDriver for anything that needs the
// cache to outlive a process.
type CacheDriver = cache.Driver

// NewMemoryCacheDriver returns an in-process CacheDriver.
func NewMemoryCacheDriver() CacheDriver {
	return cache.NewMemoryDriver()
}

// NewRedisCacheDriver wraps client as a CacheDriver.
func NewRedisCacheDriver(client *redis.Client) CacheDriver {
	return cache.NewRedisDriver(client)
}

// Store bundles the object store and the three façades that share it.
type Store struct {
	BatchManager *BatchManager
	Operational  *Operational
	Query        *Query

	objects objectstore.Adapter
}

// Open opens (creating if needed) a SQLite-backed object store at
// sqlitePath and wires it to a batch info cache backed by cacheDriver,
// whose recency sets are capped at recencyLimit entries (<=0 for the
// spec default of 2000).
func Open(ctx context.Context, sqlitePath string, cacheDriver CacheDriver, recencyLimit int64) (*Store, error) {
	store, err := objectstore.Open(ctx, sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("msgstore: open: %w", err)
	}
	backend := authority.NewBackend(store)
	bic := cache.NewBatchInfoCache(cacheDriver, recencyLimit)

	return &Store{
		BatchManager: facade.NewBatchManager(backend, bic),
		Operational:  facade.NewOperational(backend, bic),
		Query:        facade.NewQuery(backend, bic),
		objects:      store,
	}, nil
}

// Close releases the object store's underlying resources.
func (s *Store) Close() error {
	return s.objects.Close()
}
