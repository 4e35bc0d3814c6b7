// Package objectstore is the narrow façade over the external KV store that
// the authoritative backend (internal/authority) is built on: it persists
// versioned JSON records in named buckets and maintains per-object
// secondary index entries, and it exposes the paginated range-scan
// abstraction those indexes are queried through (spec §4.1, §4.2).
//
// The adapter itself is a plain SQL table pair (objects, object_index)
// served by an embedded SQLite engine, in the spirit of the teacher's
// internal/storage/sqlite package — but genericized to the bucket/key/
// index-term shape spec.md requires rather than a fixed issue schema.
package objectstore

import (
	"context"
)

// IndexEntry is one secondary-index contribution an object makes. An
// object may contribute any number of entries to any number of named
// indexes; Put replaces the object's *entire* contribution to every index
// on each write (spec §4.1: "the stored index set is the authoritative set
// for that object").
type IndexEntry struct {
	Index string
	Term  string
}

// Record is the full row a Get returns.
type Record struct {
	Payload     []byte
	ContentType string
	Indexes     []IndexEntry
}

// RangeQuery describes one page request against a secondary index.
type RangeQuery struct {
	Bucket string
	Index  string
	// Start is the lower bound term (inclusive). If End is empty, this is
	// an exact-match query: only entries with Term == Start are returned.
	Start string
	// End is the upper bound term (inclusive), or "" for an exact match on
	// Start.
	End string
	// MaxResults caps the page size. Zero means "return everything in one
	// page" (no continuation is ever produced).
	MaxResults int
	// Continuation resumes a prior scan; pass the value from Page.Token().
	Continuation string
	// ReturnTerms requests the matched index term alongside each key.
	ReturnTerms bool
}

// Adapter is the object-store driver contract (spec §4.1).
type Adapter interface {
	// Put persists payload under (bucket, key) and atomically replaces the
	// object's contribution to every index named in indexes.
	Put(ctx context.Context, bucket, key, contentType string, payload []byte, indexes []IndexEntry) error

	// Get returns the most recently committed record for (bucket, key), or
	// found=false if no such object exists ("absent", never an error).
	Get(ctx context.Context, bucket, key string) (rec Record, found bool, err error)

	// RangePage runs one page of a secondary-index range scan, in
	// ascending (term, key) order.
	RangePage(ctx context.Context, q RangeQuery) (*Page, error)

	// Close releases the adapter's underlying resources.
	Close() error
}
