package authority

import (
	"context"
	"fmt"

	"github.com/vumi/msgstore/internal/objectstore"
	"github.com/vumi/msgstore/internal/vtime"
)

// KeyPage is a listing page of bare keys (spec §4.3's list_batch_*_keys and
// list_message_event_keys variants).
type KeyPage struct {
	raw  *objectstore.Page
	keys []string
}

func newKeyPage(raw *objectstore.Page) *KeyPage {
	return &KeyPage{raw: raw, keys: raw.Keys()}
}

func (p *KeyPage) Keys() []string { return p.keys }
func (p *KeyPage) HasNext() bool  { return p.raw.HasNext() }

// Token returns the page's opaque continuation, or "" if there is none,
// so a caller can persist a scan position across process boundaries
// (spec §9: "continuation tokens are opaque to callers").
func (p *KeyPage) Token() string { return p.raw.Token() }

func (p *KeyPage) NextPage(ctx context.Context) (*KeyPage, error) {
	next, err := p.raw.NextPage(ctx)
	if err != nil {
		return nil, err
	}
	return newKeyPage(next), nil
}

// TimestampEntry is one (key, timestamp) result.
type TimestampEntry struct {
	Key       string
	Timestamp string
}

// TimestampPage is a listing page of (key, timestamp) pairs (the
// "_with_timestamps" variants).
type TimestampPage struct {
	raw   *objectstore.Page
	items []TimestampEntry
}

func newTimestampPage(raw *objectstore.Page) (*TimestampPage, error) {
	items := make([]TimestampEntry, 0, len(raw.Items()))
	for _, it := range raw.Items() {
		ts, err := parseTimestampTerm(it.Term)
		if err != nil {
			return nil, err
		}
		items = append(items, TimestampEntry{Key: it.Key, Timestamp: ts})
	}
	return &TimestampPage{raw: raw, items: items}, nil
}

func (p *TimestampPage) Items() []TimestampEntry { return p.items }
func (p *TimestampPage) HasNext() bool           { return p.raw.HasNext() }
func (p *TimestampPage) Token() string           { return p.raw.Token() }
func (p *TimestampPage) NextPage(ctx context.Context) (*TimestampPage, error) {
	next, err := p.raw.NextPage(ctx)
	if err != nil {
		return nil, err
	}
	return newTimestampPage(next)
}

// AddressEntry is one (key, timestamp, address) result.
type AddressEntry struct {
	Key       string
	Timestamp string
	Address   string
}

// AddressPage is a listing page of (key, timestamp, address) triples (the
// "_with_addresses" variants).
type AddressPage struct {
	raw   *objectstore.Page
	items []AddressEntry
}

func newAddressPage(raw *objectstore.Page) (*AddressPage, error) {
	items := make([]AddressEntry, 0, len(raw.Items()))
	for _, it := range raw.Items() {
		ts, addr, err := parseAddressTerm(it.Term)
		if err != nil {
			return nil, err
		}
		items = append(items, AddressEntry{Key: it.Key, Timestamp: ts, Address: addr})
	}
	return &AddressPage{raw: raw, items: items}, nil
}

func (p *AddressPage) Items() []AddressEntry { return p.items }
func (p *AddressPage) HasNext() bool         { return p.raw.HasNext() }
func (p *AddressPage) Token() string         { return p.raw.Token() }
func (p *AddressPage) NextPage(ctx context.Context) (*AddressPage, error) {
	next, err := p.raw.NextPage(ctx)
	if err != nil {
		return nil, err
	}
	return newAddressPage(next)
}

// StatusEntry is one (key, timestamp, status) result.
type StatusEntry struct {
	Key       string
	Timestamp string
	Status    string
}

// StatusPage is a listing page of (key, timestamp, status) triples
// (list_message_event_keys_with_statuses).
type StatusPage struct {
	raw   *objectstore.Page
	items []StatusEntry
}

func newStatusPage(raw *objectstore.Page) (*StatusPage, error) {
	items := make([]StatusEntry, 0, len(raw.Items()))
	for _, it := range raw.Items() {
		ts, status, err := parseStatusTerm(it.Term)
		if err != nil {
			return nil, err
		}
		items = append(items, StatusEntry{Key: it.Key, Timestamp: ts, Status: status})
	}
	return &StatusPage{raw: raw, items: items}, nil
}

func (p *StatusPage) Items() []StatusEntry { return p.items }
func (p *StatusPage) HasNext() bool        { return p.raw.HasNext() }
func (p *StatusPage) Token() string        { return p.raw.Token() }
func (p *StatusPage) NextPage(ctx context.Context) (*StatusPage, error) {
	next, err := p.raw.NextPage(ctx)
	if err != nil {
		return nil, err
	}
	return newStatusPage(next)
}

func normalizeMaxResults(maxResults int) int {
	if maxResults <= 0 {
		return DefaultMaxResults
	}
	return maxResults
}

func (b *Backend) listKeys(ctx context.Context, bucket, index, term string, maxResults int, continuation string) (*KeyPage, error) {
	raw, err := b.store.RangePage(ctx, objectstore.RangeQuery{
		Bucket:       bucket,
		Index:        index,
		Start:        term,
		MaxResults:   normalizeMaxResults(maxResults),
		Continuation: continuation,
	})
	if err != nil {
		return nil, fmt.Errorf("authority: list %s/%s: %w", bucket, index, err)
	}
	return newKeyPage(raw), nil
}

// ListBatchInboundKeys lists inbound message keys associated with batchID,
// with no ordering guarantee beyond the object store's natural key order.
func (b *Backend) ListBatchInboundKeys(ctx context.Context, batchID string, maxResults int, continuation string) (*KeyPage, error) {
	term, err := batchesTerm(batchID)
	if err != nil {
		return nil, err
	}
	return b.listKeys(ctx, BucketInboundMessage, IndexBatches, term, maxResults, continuation)
}

// ListBatchOutboundKeys is ListBatchInboundKeys's outbound mirror.
func (b *Backend) ListBatchOutboundKeys(ctx context.Context, batchID string, maxResults int, continuation string) (*KeyPage, error) {
	term, err := batchesTerm(batchID)
	if err != nil {
		return nil, err
	}
	return b.listKeys(ctx, BucketOutboundMessage, IndexBatches, term, maxResults, continuation)
}

// ListMessageEventKeys lists event keys owned by messageID.
func (b *Backend) ListMessageEventKeys(ctx context.Context, messageID string, maxResults int, continuation string) (*KeyPage, error) {
	term, err := batchesTerm(messageID)
	if err != nil {
		return nil, err
	}
	return b.listKeys(ctx, BucketEvent, IndexMessage, term, maxResults, continuation)
}

func (b *Backend) listTimestamps(ctx context.Context, bucket, batchID, start, end string, maxResults int, continuation string) (*TimestampPage, error) {
	if err := validateComponent("batch_id", batchID); err != nil {
		return nil, err
	}
	lower, upper := rangeBounds(batchID, start, end, vtime.MaxSuffix)
	raw, err := b.store.RangePage(ctx, objectstore.RangeQuery{
		Bucket:       bucket,
		Index:        IndexBatchesWithTimestamps,
		Start:        lower,
		End:          upper,
		MaxResults:   normalizeMaxResults(maxResults),
		Continuation: continuation,
		ReturnTerms:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("authority: list %s/%s: %w", bucket, IndexBatchesWithTimestamps, err)
	}
	return newTimestampPage(raw)
}

// ListBatchInboundKeysWithTimestamps lists (key, timestamp) pairs for
// batchID's inbound messages, optionally bounded to [start, end].
func (b *Backend) ListBatchInboundKeysWithTimestamps(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*TimestampPage, error) {
	return b.listTimestamps(ctx, BucketInboundMessage, batchID, start, end, maxResults, continuation)
}

// ListBatchOutboundKeysWithTimestamps is the outbound mirror.
func (b *Backend) ListBatchOutboundKeysWithTimestamps(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*TimestampPage, error) {
	return b.listTimestamps(ctx, BucketOutboundMessage, batchID, start, end, maxResults, continuation)
}

func (b *Backend) listAddresses(ctx context.Context, bucket, batchID, start, end string, maxResults int, continuation string) (*AddressPage, error) {
	if err := validateComponent("batch_id", batchID); err != nil {
		return nil, err
	}
	lower, upper := rangeBounds(batchID, start, end, vtime.MaxSuffix)
	raw, err := b.store.RangePage(ctx, objectstore.RangeQuery{
		Bucket:       bucket,
		Index:        IndexBatchesWithAddresses,
		Start:        lower,
		End:          upper,
		MaxResults:   normalizeMaxResults(maxResults),
		Continuation: continuation,
		ReturnTerms:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("authority: list %s/%s: %w", bucket, IndexBatchesWithAddresses, err)
	}
	return newAddressPage(raw)
}

// ListBatchInboundKeysWithAddresses lists (key, timestamp, from_addr)
// triples for batchID's inbound messages.
func (b *Backend) ListBatchInboundKeysWithAddresses(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*AddressPage, error) {
	return b.listAddresses(ctx, BucketInboundMessage, batchID, start, end, maxResults, continuation)
}

// ListBatchOutboundKeysWithAddresses is the outbound mirror (to_addr).
func (b *Backend) ListBatchOutboundKeysWithAddresses(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*AddressPage, error) {
	return b.listAddresses(ctx, BucketOutboundMessage, batchID, start, end, maxResults, continuation)
}

// ListMessageEventKeysWithStatuses lists (key, timestamp, status) triples
// for messageID's events.
func (b *Backend) ListMessageEventKeysWithStatuses(ctx context.Context, messageID, start, end string, maxResults int, continuation string) (*StatusPage, error) {
	if err := validateComponent("message_id", messageID); err != nil {
		return nil, err
	}
	lower, upper := rangeBounds(messageID, start, end, vtime.MaxSuffix)
	raw, err := b.store.RangePage(ctx, objectstore.RangeQuery{
		Bucket:       BucketEvent,
		Index:        IndexMessageWithStatus,
		Start:        lower,
		End:          upper,
		MaxResults:   normalizeMaxResults(maxResults),
		Continuation: continuation,
		ReturnTerms:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("authority: list %s/%s: %w", BucketEvent, IndexMessageWithStatus, err)
	}
	return newStatusPage(raw)
}
