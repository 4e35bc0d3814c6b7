package authority

import (
	"context"
	"fmt"
	"sort"

	"github.com/vumi/msgstore/internal/envelope"
	"github.com/vumi/msgstore/internal/idgen"
	"github.com/vumi/msgstore/internal/objectstore"
)

// DefaultMaxResults is the page size every listing uses when the caller
// doesn't specify one (spec §4.3: "Default max_results is 1000 when
// unspecified").
const DefaultMaxResults = 1000

// Backend implements the domain operations of spec §4.3 over a single
// objectstore.Adapter. It has no cache awareness — that fan-out lives one
// layer up, in internal/msgstore's façades (spec §4.5).
type Backend struct {
	store objectstore.Adapter
}

// NewBackend wraps store with the authoritative domain operations.
func NewBackend(store objectstore.Adapter) *Backend {
	return &Backend{store: store}
}

func union(existing []string, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, b := range existing {
		set[b] = struct{}{}
	}
	for _, b := range added {
		set[b] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// BatchStart generates a fresh batch_id, persists a Batch record with the
// given tags and metadata, and points every tag's CurrentTag at the new
// batch (spec §4.3).
func (b *Backend) BatchStart(ctx context.Context, tags []Tag, metadata map[string]string) (string, error) {
	batchID := idgen.NewBatchID()

	batch := Batch{BatchID: batchID, Tags: tags, Metadata: metadata}
	payload, err := encodeRecord(batch)
	if err != nil {
		return "", err
	}
	if err := b.store.Put(ctx, BucketBatch, batchID, contentTypeJSON, payload, nil); err != nil {
		return "", fmt.Errorf("authority: batch_start: %w", err)
	}

	for _, tag := range tags {
		if err := b.setCurrentBatch(ctx, tag.Key(), batchID); err != nil {
			return "", fmt.Errorf("authority: batch_start: %w", err)
		}
	}
	return batchID, nil
}

func (b *Backend) setCurrentBatch(ctx context.Context, tagKey, batchID string) error {
	ct := CurrentTag{Tag: tagKey, CurrentBatch: batchID}
	return b.putCurrentTag(ctx, ct)
}

func (b *Backend) putCurrentTag(ctx context.Context, ct CurrentTag) error {
	var indexes []objectstore.IndexEntry
	if ct.CurrentBatch != "" {
		indexes = []objectstore.IndexEntry{{Index: IndexCurrentBatch, Term: ct.CurrentBatch}}
	}
	payload, err := encodeRecord(ct)
	if err != nil {
		return err
	}
	return b.store.Put(ctx, BucketCurrentTag, ct.Tag, contentTypeJSON, payload, indexes)
}

// BatchDone follows the current_batch back-link index to find every
// CurrentTag pointed at batchID and clears it. The Batch object and the
// messages/events associated with it are untouched (spec §4.3).
func (b *Backend) BatchDone(ctx context.Context, batchID string) error {
	page, err := b.store.RangePage(ctx, objectstore.RangeQuery{
		Bucket: BucketCurrentTag,
		Index:  IndexCurrentBatch,
		Start:  batchID,
	})
	if err != nil {
		return fmt.Errorf("authority: batch_done: %w", err)
	}
	for {
		for _, key := range page.Keys() {
			if err := b.setCurrentBatch(ctx, key, ""); err != nil {
				return fmt.Errorf("authority: batch_done: %w", err)
			}
		}
		if !page.HasNext() {
			break
		}
		page, err = page.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("authority: batch_done: %w", err)
		}
	}
	return nil
}

// GetBatch returns the Batch record, or nil if batchID is unknown.
func (b *Backend) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	rec, found, err := b.store.Get(ctx, BucketBatch, batchID)
	if err != nil {
		return nil, fmt.Errorf("authority: get_batch: %w", err)
	}
	if !found {
		return nil, nil
	}
	var batch Batch
	if err := decodeRecord(rec.Payload, batchMigrators, &batch); err != nil {
		return nil, fmt.Errorf("authority: get_batch: %w", err)
	}
	return &batch, nil
}

// GetTagInfo returns the CurrentTag for tag, synthesizing an empty,
// unpersisted one if it doesn't exist yet (spec §4.3, §9 open question:
// "must not persist unless the caller explicitly saves").
func (b *Backend) GetTagInfo(ctx context.Context, tag string) (*CurrentTag, error) {
	rec, found, err := b.store.Get(ctx, BucketCurrentTag, tag)
	if err != nil {
		return nil, fmt.Errorf("authority: get_tag_info: %w", err)
	}
	if !found {
		return &CurrentTag{Tag: tag}, nil
	}
	var ct CurrentTag
	if err := decodeRecord(rec.Payload, currentTagMigrators, &ct); err != nil {
		return nil, fmt.Errorf("authority: get_tag_info: %w", err)
	}
	return &ct, nil
}

// SaveTagInfo persists a CurrentTag explicitly. It exists for callers that
// mutate the value GetTagInfo handed them and want it to stick (spec §9).
func (b *Backend) SaveTagInfo(ctx context.Context, ct CurrentTag) error {
	if err := b.putCurrentTag(ctx, ct); err != nil {
		return fmt.Errorf("authority: save_tag_info: %w", err)
	}
	return nil
}

// AddInboundMessage loads-or-creates the InboundMessage for msg.MessageID,
// unions batchIDs into its batch set, recomputes every compound index
// entry from that full set, and persists (spec §4.3).
func (b *Backend) AddInboundMessage(ctx context.Context, msg envelope.Inbound, batchIDs []string) error {
	rec, found, err := b.store.Get(ctx, BucketInboundMessage, msg.MessageID)
	if err != nil {
		return fmt.Errorf("authority: add_inbound_message: %w", err)
	}
	var existing InboundMessage
	if found {
		if err := decodeRecord(rec.Payload, inboundMessageMigrators, &existing); err != nil {
			return fmt.Errorf("authority: add_inbound_message: %w", err)
		}
	}
	existing.MessageID = msg.MessageID
	existing.Envelope = msg
	existing.BatchIDs = union(existing.BatchIDs, batchIDs)

	indexes, err := messageIndexes(existing.BatchIDs, msg.Timestamp, msg.FromAddr)
	if err != nil {
		return fmt.Errorf("authority: add_inbound_message: %w", err)
	}
	payload, err := encodeRecord(existing)
	if err != nil {
		return fmt.Errorf("authority: add_inbound_message: %w", err)
	}
	if err := b.store.Put(ctx, BucketInboundMessage, msg.MessageID, contentTypeJSON, payload, indexes); err != nil {
		return fmt.Errorf("authority: add_inbound_message: %w", err)
	}
	return nil
}

// AddOutboundMessage is AddInboundMessage's mirror, indexing by to_addr.
func (b *Backend) AddOutboundMessage(ctx context.Context, msg envelope.Outbound, batchIDs []string) error {
	rec, found, err := b.store.Get(ctx, BucketOutboundMessage, msg.MessageID)
	if err != nil {
		return fmt.Errorf("authority: add_outbound_message: %w", err)
	}
	var existing OutboundMessage
	if found {
		if err := decodeRecord(rec.Payload, outboundMessageMigrators, &existing); err != nil {
			return fmt.Errorf("authority: add_outbound_message: %w", err)
		}
	}
	existing.MessageID = msg.MessageID
	existing.Envelope = msg
	existing.BatchIDs = union(existing.BatchIDs, batchIDs)

	indexes, err := messageIndexes(existing.BatchIDs, msg.Timestamp, msg.ToAddr)
	if err != nil {
		return fmt.Errorf("authority: add_outbound_message: %w", err)
	}
	payload, err := encodeRecord(existing)
	if err != nil {
		return fmt.Errorf("authority: add_outbound_message: %w", err)
	}
	if err := b.store.Put(ctx, BucketOutboundMessage, msg.MessageID, contentTypeJSON, payload, indexes); err != nil {
		return fmt.Errorf("authority: add_outbound_message: %w", err)
	}
	return nil
}

func messageIndexes(batchIDs []string, timestamp, address string) ([]objectstore.IndexEntry, error) {
	indexes := make([]objectstore.IndexEntry, 0, len(batchIDs)*3)
	for _, batchID := range batchIDs {
		bt, err := batchesTerm(batchID)
		if err != nil {
			return nil, err
		}
		tt, err := timestampTerm(batchID, timestamp)
		if err != nil {
			return nil, err
		}
		at, err := addressTerm(batchID, timestamp, address)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes,
			objectstore.IndexEntry{Index: IndexBatches, Term: bt},
			objectstore.IndexEntry{Index: IndexBatchesWithTimestamps, Term: tt},
			objectstore.IndexEntry{Index: IndexBatchesWithAddresses, Term: at},
		)
	}
	return indexes, nil
}

// AddEvent loads-or-creates the Event for ev.EventID, sets its owning
// message id, recomputes the message/message_with_status indexes, and
// persists (spec §4.3).
func (b *Backend) AddEvent(ctx context.Context, ev envelope.Event) error {
	rec, found, err := b.store.Get(ctx, BucketEvent, ev.EventID)
	if err != nil {
		return fmt.Errorf("authority: add_event: %w", err)
	}
	var existing EventRecord
	if found {
		if err := decodeRecord(rec.Payload, eventMigrators, &existing); err != nil {
			return fmt.Errorf("authority: add_event: %w", err)
		}
	}
	existing.EventID = ev.EventID
	existing.Envelope = ev
	existing.UserMessageID = ev.UserMessageID

	mt, err := batchesTerm(ev.UserMessageID)
	if err != nil {
		return fmt.Errorf("authority: add_event: %w", err)
	}
	st, err := statusTerm(ev.UserMessageID, ev.Timestamp, ev.Status())
	if err != nil {
		return fmt.Errorf("authority: add_event: %w", err)
	}
	indexes := []objectstore.IndexEntry{
		{Index: IndexMessage, Term: mt},
		{Index: IndexMessageWithStatus, Term: st},
	}

	payload, err := encodeRecord(existing)
	if err != nil {
		return fmt.Errorf("authority: add_event: %w", err)
	}
	if err := b.store.Put(ctx, BucketEvent, ev.EventID, contentTypeJSON, payload, indexes); err != nil {
		return fmt.Errorf("authority: add_event: %w", err)
	}
	return nil
}

// GetRawInboundMessage returns the full InboundMessage record (envelope
// plus batch set), or nil if unknown.
func (b *Backend) GetRawInboundMessage(ctx context.Context, messageID string) (*InboundMessage, error) {
	rec, found, err := b.store.Get(ctx, BucketInboundMessage, messageID)
	if err != nil {
		return nil, fmt.Errorf("authority: get_raw_inbound_message: %w", err)
	}
	if !found {
		return nil, nil
	}
	var msg InboundMessage
	if err := decodeRecord(rec.Payload, inboundMessageMigrators, &msg); err != nil {
		return nil, fmt.Errorf("authority: get_raw_inbound_message: %w", err)
	}
	return &msg, nil
}

// GetInboundMessage returns just the envelope, or nil if unknown.
func (b *Backend) GetInboundMessage(ctx context.Context, messageID string) (*envelope.Inbound, error) {
	msg, err := b.GetRawInboundMessage(ctx, messageID)
	if err != nil || msg == nil {
		return nil, err
	}
	return &msg.Envelope, nil
}

// GetRawOutboundMessage returns the full OutboundMessage record, or nil.
func (b *Backend) GetRawOutboundMessage(ctx context.Context, messageID string) (*OutboundMessage, error) {
	rec, found, err := b.store.Get(ctx, BucketOutboundMessage, messageID)
	if err != nil {
		return nil, fmt.Errorf("authority: get_raw_outbound_message: %w", err)
	}
	if !found {
		return nil, nil
	}
	var msg OutboundMessage
	if err := decodeRecord(rec.Payload, outboundMessageMigrators, &msg); err != nil {
		return nil, fmt.Errorf("authority: get_raw_outbound_message: %w", err)
	}
	return &msg, nil
}

// GetOutboundMessage returns just the envelope, or nil if unknown.
func (b *Backend) GetOutboundMessage(ctx context.Context, messageID string) (*envelope.Outbound, error) {
	msg, err := b.GetRawOutboundMessage(ctx, messageID)
	if err != nil || msg == nil {
		return nil, err
	}
	return &msg.Envelope, nil
}

// GetRawEvent returns the full EventRecord, or nil if unknown.
func (b *Backend) GetRawEvent(ctx context.Context, eventID string) (*EventRecord, error) {
	rec, found, err := b.store.Get(ctx, BucketEvent, eventID)
	if err != nil {
		return nil, fmt.Errorf("authority: get_raw_event: %w", err)
	}
	if !found {
		return nil, nil
	}
	var ev EventRecord
	if err := decodeRecord(rec.Payload, eventMigrators, &ev); err != nil {
		return nil, fmt.Errorf("authority: get_raw_event: %w", err)
	}
	return &ev, nil
}

// GetEvent returns just the envelope, or nil if unknown.
func (b *Backend) GetEvent(ctx context.Context, eventID string) (*envelope.Event, error) {
	ev, err := b.GetRawEvent(ctx, eventID)
	if err != nil || ev == nil {
		return nil, err
	}
	return &ev.Envelope, nil
}
