// Package msgstore implements the three role-limited façades of spec §4.5
// that multiplex operations across the authoritative backend
// (internal/authority) and the batch info cache (internal/cache).
package msgstore

import (
	"context"
	"fmt"

	"github.com/vumi/msgstore/internal/authority"
	"github.com/vumi/msgstore/internal/cache"
	"github.com/vumi/msgstore/internal/envelope"
)

// BatchManager creates and closes batches and owns cache reconciliation
// (spec §4.5).
type BatchManager struct {
	backend *authority.Backend
	cache   *cache.BatchInfoCache
}

// NewBatchManager wraps backend and batchCache with the batch-lifecycle
// façade.
func NewBatchManager(backend *authority.Backend, batchCache *cache.BatchInfoCache) *BatchManager {
	return &BatchManager{backend: backend, cache: batchCache}
}

// BatchStart creates the Batch authoritatively, then initializes its cache
// counters, fanning out to both stores (spec §4.5).
func (m *BatchManager) BatchStart(ctx context.Context, tags []authority.Tag, metadata map[string]string) (string, error) {
	batchID, err := m.backend.BatchStart(ctx, tags, metadata)
	if err != nil {
		return "", err
	}
	if err := m.cache.BatchStart(ctx, batchID); err != nil {
		return "", fmt.Errorf("msgstore: batch_start cache fan-out: %w", err)
	}
	return batchID, nil
}

// BatchDone clears the batch's CurrentTag back-references authoritatively.
// It deliberately does not touch the cache (spec §9 open question: callers
// must call RebuildCache explicitly if they want the cache reset too).
func (m *BatchManager) BatchDone(ctx context.Context, batchID string) error {
	return m.backend.BatchDone(ctx, batchID)
}

// GetBatch delegates to the authoritative backend.
func (m *BatchManager) GetBatch(ctx context.Context, batchID string) (*authority.Batch, error) {
	return m.backend.GetBatch(ctx, batchID)
}

// GetTagInfo delegates to the authoritative backend.
func (m *BatchManager) GetTagInfo(ctx context.Context, tag string) (*authority.CurrentTag, error) {
	return m.backend.GetTagInfo(ctx, tag)
}

// RebuildCache is reconciliation (spec GLOSSARY): it clears batchID's
// cache state and replays the authoritative listings to restore counters
// and recency sets. Events aren't indexed by batch directly, so they're
// reached by walking each of the batch's outbound messages and listing
// that message's events.
func (m *BatchManager) RebuildCache(ctx context.Context, batchID string) error {
	if err := m.cache.ClearBatch(ctx, batchID); err != nil {
		return fmt.Errorf("msgstore: rebuild_cache: %w", err)
	}
	if err := m.cache.BatchStart(ctx, batchID); err != nil {
		return fmt.Errorf("msgstore: rebuild_cache: %w", err)
	}

	page, err := m.backend.ListBatchInboundKeysWithTimestamps(ctx, batchID, "", "", 0, "")
	if err != nil {
		return fmt.Errorf("msgstore: rebuild_cache: %w", err)
	}
	for {
		for _, entry := range page.Items() {
			if err := m.cache.AddInboundMessage(ctx, batchID, entry.Key, entry.Timestamp); err != nil {
				return fmt.Errorf("msgstore: rebuild_cache: %w", err)
			}
		}
		if !page.HasNext() {
			break
		}
		if page, err = page.NextPage(ctx); err != nil {
			return fmt.Errorf("msgstore: rebuild_cache: %w", err)
		}
	}

	outPage, err := m.backend.ListBatchOutboundKeysWithTimestamps(ctx, batchID, "", "", 0, "")
	if err != nil {
		return fmt.Errorf("msgstore: rebuild_cache: %w", err)
	}
	for {
		for _, entry := range outPage.Items() {
			if err := m.cache.AddOutboundMessage(ctx, batchID, entry.Key, entry.Timestamp); err != nil {
				return fmt.Errorf("msgstore: rebuild_cache: %w", err)
			}
			if err := m.replayEvents(ctx, batchID, entry.Key); err != nil {
				return err
			}
		}
		if !outPage.HasNext() {
			break
		}
		if outPage, err = outPage.NextPage(ctx); err != nil {
			return fmt.Errorf("msgstore: rebuild_cache: %w", err)
		}
	}
	return nil
}

func (m *BatchManager) replayEvents(ctx context.Context, batchID, outboundMessageID string) error {
	evPage, err := m.backend.ListMessageEventKeysWithStatuses(ctx, outboundMessageID, "", "", 0, "")
	if err != nil {
		return fmt.Errorf("msgstore: rebuild_cache: %w", err)
	}
	for {
		for _, ev := range evPage.Items() {
			if err := m.cache.AddEvent(ctx, batchID, ev.Key, ev.Timestamp, ev.Status); err != nil {
				return fmt.Errorf("msgstore: rebuild_cache: %w", err)
			}
		}
		if !evPage.HasNext() {
			return nil
		}
		if evPage, err = evPage.NextPage(ctx); err != nil {
			return fmt.Errorf("msgstore: rebuild_cache: %w", err)
		}
	}
}

// Operational is the write path façade: every add writes authoritative
// first, then fans out to the cache for each associated batch (spec §4.5).
type Operational struct {
	backend *authority.Backend
	cache   *cache.BatchInfoCache
}

// NewOperational wraps backend and batchCache with the write-path façade.
func NewOperational(backend *authority.Backend, batchCache *cache.BatchInfoCache) *Operational {
	return &Operational{backend: backend, cache: batchCache}
}

// AddInboundMessage writes the message authoritatively, then records it in
// every associated batch's cache.
func (o *Operational) AddInboundMessage(ctx context.Context, msg envelope.Inbound, batchIDs []string) error {
	if err := o.backend.AddInboundMessage(ctx, msg, batchIDs); err != nil {
		return err
	}
	for _, batchID := range batchIDs {
		if err := o.cache.AddInboundMessage(ctx, batchID, msg.MessageID, msg.Timestamp); err != nil {
			return fmt.Errorf("msgstore: add_inbound_message cache fan-out: %w", err)
		}
	}
	return nil
}

// AddOutboundMessage is AddInboundMessage's mirror.
func (o *Operational) AddOutboundMessage(ctx context.Context, msg envelope.Outbound, batchIDs []string) error {
	if err := o.backend.AddOutboundMessage(ctx, msg, batchIDs); err != nil {
		return err
	}
	for _, batchID := range batchIDs {
		if err := o.cache.AddOutboundMessage(ctx, batchID, msg.MessageID, msg.Timestamp); err != nil {
			return fmt.Errorf("msgstore: add_outbound_message cache fan-out: %w", err)
		}
	}
	return nil
}

// AddEvent writes the event authoritatively, then fans out to the cache
// for every batch its owning outbound message belongs to (events carry no
// batch_ids of their own — they inherit their message's).
func (o *Operational) AddEvent(ctx context.Context, ev envelope.Event) error {
	if err := o.backend.AddEvent(ctx, ev); err != nil {
		return err
	}
	msg, err := o.backend.GetRawOutboundMessage(ctx, ev.UserMessageID)
	if err != nil {
		return fmt.Errorf("msgstore: add_event: %w", err)
	}
	if msg == nil {
		return nil
	}
	status := ev.Status()
	for _, batchID := range msg.BatchIDs {
		if err := o.cache.AddEvent(ctx, batchID, ev.EventID, ev.Timestamp, status); err != nil {
			return fmt.Errorf("msgstore: add_event cache fan-out: %w", err)
		}
	}
	return nil
}

// GetInboundMessage delegates to the authoritative backend.
func (o *Operational) GetInboundMessage(ctx context.Context, messageID string) (*envelope.Inbound, error) {
	return o.backend.GetInboundMessage(ctx, messageID)
}

// GetOutboundMessage delegates to the authoritative backend.
func (o *Operational) GetOutboundMessage(ctx context.Context, messageID string) (*envelope.Outbound, error) {
	return o.backend.GetOutboundMessage(ctx, messageID)
}

// GetEvent delegates to the authoritative backend.
func (o *Operational) GetEvent(ctx context.Context, eventID string) (*envelope.Event, error) {
	return o.backend.GetEvent(ctx, eventID)
}

// Query is the read path façade: single-record getters and paginated
// listings delegate to the authoritative backend; counters and status
// reads delegate to the cache (spec §4.5).
type Query struct {
	backend *authority.Backend
	cache   *cache.BatchInfoCache
}

// NewQuery wraps backend and batchCache with the read-path façade.
func NewQuery(backend *authority.Backend, batchCache *cache.BatchInfoCache) *Query {
	return &Query{backend: backend, cache: batchCache}
}

func (q *Query) GetInboundMessage(ctx context.Context, messageID string) (*envelope.Inbound, error) {
	return q.backend.GetInboundMessage(ctx, messageID)
}

func (q *Query) GetOutboundMessage(ctx context.Context, messageID string) (*envelope.Outbound, error) {
	return q.backend.GetOutboundMessage(ctx, messageID)
}

func (q *Query) GetEvent(ctx context.Context, eventID string) (*envelope.Event, error) {
	return q.backend.GetEvent(ctx, eventID)
}

func (q *Query) ListBatchInboundKeys(ctx context.Context, batchID string, maxResults int, continuation string) (*authority.KeyPage, error) {
	return q.backend.ListBatchInboundKeys(ctx, batchID, maxResults, continuation)
}

func (q *Query) ListBatchOutboundKeys(ctx context.Context, batchID string, maxResults int, continuation string) (*authority.KeyPage, error) {
	return q.backend.ListBatchOutboundKeys(ctx, batchID, maxResults, continuation)
}

func (q *Query) ListMessageEventKeys(ctx context.Context, messageID string, maxResults int, continuation string) (*authority.KeyPage, error) {
	return q.backend.ListMessageEventKeys(ctx, messageID, maxResults, continuation)
}

func (q *Query) ListBatchInboundKeysWithTimestamps(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*authority.TimestampPage, error) {
	return q.backend.ListBatchInboundKeysWithTimestamps(ctx, batchID, start, end, maxResults, continuation)
}

func (q *Query) ListBatchOutboundKeysWithTimestamps(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*authority.TimestampPage, error) {
	return q.backend.ListBatchOutboundKeysWithTimestamps(ctx, batchID, start, end, maxResults, continuation)
}

func (q *Query) ListBatchInboundKeysWithAddresses(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*authority.AddressPage, error) {
	return q.backend.ListBatchInboundKeysWithAddresses(ctx, batchID, start, end, maxResults, continuation)
}

func (q *Query) ListBatchOutboundKeysWithAddresses(ctx context.Context, batchID, start, end string, maxResults int, continuation string) (*authority.AddressPage, error) {
	return q.backend.ListBatchOutboundKeysWithAddresses(ctx, batchID, start, end, maxResults, continuation)
}

func (q *Query) ListMessageEventKeysWithStatuses(ctx context.Context, messageID, start, end string, maxResults int, continuation string) (*authority.StatusPage, error) {
	return q.backend.ListMessageEventKeysWithStatuses(ctx, messageID, start, end, maxResults, continuation)
}

func (q *Query) GetInboundCount(ctx context.Context, batchID string) (int64, error) {
	return q.cache.GetInboundCount(ctx, batchID)
}

func (q *Query) GetOutboundCount(ctx context.Context, batchID string) (int64, error) {
	return q.cache.GetOutboundCount(ctx, batchID)
}

func (q *Query) GetEventCount(ctx context.Context, batchID string) (int64, error) {
	return q.cache.GetEventCount(ctx, batchID)
}

func (q *Query) GetBatchStatus(ctx context.Context, batchID string) (map[string]int64, error) {
	return q.cache.GetBatchStatus(ctx, batchID)
}

// ListInboundMessageKeys returns the recency-ordered (newest-first) inbound
// keys for a batch. limit <= 0 returns the whole recency set (up to T).
// It reads the cache's recency set, not the authoritative store's
// paginated index that ListBatchInboundKeys scans (S5's
// "list_outbound_message_keys" scenario exercises this read path).
func (q *Query) ListInboundMessageKeys(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return q.cache.RecentInbound(ctx, batchID, limit)
}

func (q *Query) ListOutboundMessageKeys(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return q.cache.RecentOutbound(ctx, batchID, limit)
}

func (q *Query) ListEventKeys(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return q.cache.RecentEvents(ctx, batchID, limit)
}

func (q *Query) BatchExists(ctx context.Context, batchID string) (bool, error) {
	return q.cache.BatchExists(ctx, batchID)
}
