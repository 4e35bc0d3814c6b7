package cache

import (
	"context"
	"fmt"

	"github.com/vumi/msgstore/internal/envelope"
	"github.com/vumi/msgstore/internal/vtime"
)

// DefaultRecencyLimit is T from spec §3/§4.4: the maximum number of keys
// kept per (batch, resource-type) recency set.
const DefaultRecencyLimit = 2000

const knownBatchesKey = "known_batches"

func counterKey(batchID, kind string) string  { return "batch:" + batchID + ":count:" + kind }
func histogramKey(batchID string) string      { return "batch:" + batchID + ":status" }
func recencyKey(batchID, kind string) string  { return "batch:" + batchID + ":recency:" + kind }

const (
	kindInbound  = "inbound"
	kindOutbound = "outbound"
	kindEvent    = "event"
)

// BatchInfoCache is the per-batch counters/histogram/recency-sets layer of
// spec §4.4, built over a Driver.
type BatchInfoCache struct {
	driver        Driver
	recencyLimit  int64
}

// NewBatchInfoCache wraps driver with the batch info cache's operations.
// recencyLimit <= 0 defaults to DefaultRecencyLimit.
func NewBatchInfoCache(driver Driver, recencyLimit int64) *BatchInfoCache {
	if recencyLimit <= 0 {
		recencyLimit = DefaultRecencyLimit
	}
	return &BatchInfoCache{driver: driver, recencyLimit: recencyLimit}
}

// BatchStart adds batchID to the known-batches set, zeroes its three
// counters (only the first time — re-calling after messages have already
// been added leaves counts untouched), and ensures every histogram bucket
// exists without clobbering an existing value (spec §4.4).
func (c *BatchInfoCache) BatchStart(ctx context.Context, batchID string) error {
	exists, err := c.driver.SIsMember(ctx, knownBatchesKey, batchID)
	if err != nil {
		return fmt.Errorf("cache: batch_start: %w", err)
	}
	if !exists {
		if err := c.driver.SAdd(ctx, knownBatchesKey, batchID); err != nil {
			return fmt.Errorf("cache: batch_start: %w", err)
		}
		for _, kind := range []string{kindInbound, kindOutbound, kindEvent} {
			if err := c.driver.Set(ctx, counterKey(batchID, kind), "0"); err != nil {
				return fmt.Errorf("cache: batch_start: %w", err)
			}
		}
	}

	hkey := histogramKey(batchID)
	seed := func(field string) error {
		_, err := c.driver.HSetIfAbsent(ctx, hkey, field, "0")
		return err
	}
	for _, et := range envelope.KnownEventTypes {
		if et == envelope.EventTypeDeliveryReport {
			for _, ds := range envelope.KnownDeliveryStatuses {
				if err := seed(envelope.EventTypeDeliveryReport + "." + ds); err != nil {
					return fmt.Errorf("cache: batch_start: %w", err)
				}
			}
			if err := seed(envelope.EventTypeDeliveryReport); err != nil {
				return fmt.Errorf("cache: batch_start: %w", err)
			}
			continue
		}
		if err := seed(et); err != nil {
			return fmt.Errorf("cache: batch_start: %w", err)
		}
	}
	if err := seed("sent"); err != nil {
		return fmt.Errorf("cache: batch_start: %w", err)
	}
	return nil
}

// BatchExists reports whether batchID is in the known-batches set.
func (c *BatchInfoCache) BatchExists(ctx context.Context, batchID string) (bool, error) {
	return c.driver.SIsMember(ctx, knownBatchesKey, batchID)
}

// ClearBatch deletes every cache key for batchID and removes it from the
// known-batches set (spec §4.4; this is reconciliation's first step).
func (c *BatchInfoCache) ClearBatch(ctx context.Context, batchID string) error {
	keys := []string{
		counterKey(batchID, kindInbound),
		counterKey(batchID, kindOutbound),
		counterKey(batchID, kindEvent),
		histogramKey(batchID),
		recencyKey(batchID, kindInbound),
		recencyKey(batchID, kindOutbound),
		recencyKey(batchID, kindEvent),
	}
	if err := c.driver.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache: clear_batch: %w", err)
	}
	if err := c.driver.SRem(ctx, knownBatchesKey, batchID); err != nil {
		return fmt.Errorf("cache: clear_batch: %w", err)
	}
	return nil
}

// addToRecency inserts key into the recency set, scored by timestamp. It
// reports whether key was new to the set, using ZAdd's own atomic
// newly-added count rather than a separate existence check beforehand —
// under concurrent duplicate delivery of the same message/event, a
// check-then-act pair can have both callers observe "not present" before
// either's write commits, double-counting a duplicate (spec §5: "cache
// counters are incremented only on first-time insertion... providing
// idempotence under duplicate delivery"). Callers only bump their counter
// when isNew is true.
func (c *BatchInfoCache) addToRecency(ctx context.Context, batchID, kind, key, timestamp string) (isNew bool, err error) {
	score, err := vtime.ToScore(timestamp)
	if err != nil {
		return false, fmt.Errorf("cache: %w", err)
	}
	zkey := recencyKey(batchID, kind)
	isNew, err = c.driver.ZAdd(ctx, zkey, score, key)
	if err != nil {
		return false, fmt.Errorf("cache: %w", err)
	}
	if isNew {
		if err := c.trimRecency(ctx, zkey); err != nil {
			return false, err
		}
	}
	return isNew, nil
}

// trimRecency removes the lowest-ranked entries beyond the recency limit
// in one "remove by rank" call. Its stop rank counts back from the newest
// end of the set, so the call keeps the newest recencyLimit entries
// whatever the set's size is when it runs, and concurrent adders can't
// race each other into over-trimming (spec §5).
func (c *BatchInfoCache) trimRecency(ctx context.Context, zkey string) error {
	n, err := c.driver.ZCard(ctx, zkey)
	if err != nil {
		return fmt.Errorf("cache: trim recency: %w", err)
	}
	if n <= c.recencyLimit {
		return nil
	}
	if err := c.driver.ZRemRangeByRank(ctx, zkey, 0, -c.recencyLimit-1); err != nil {
		return fmt.Errorf("cache: trim recency: %w", err)
	}
	return nil
}

// AddInboundMessage records msg's key in batchID's inbound recency set,
// bumping inbound_count on first-time insertion.
func (c *BatchInfoCache) AddInboundMessage(ctx context.Context, batchID, messageID, timestamp string) error {
	isNew, err := c.addToRecency(ctx, batchID, kindInbound, messageID, timestamp)
	if err != nil {
		return fmt.Errorf("cache: add_inbound_message: %w", err)
	}
	if isNew {
		if _, err := c.driver.IncrBy(ctx, counterKey(batchID, kindInbound), 1); err != nil {
			return fmt.Errorf("cache: add_inbound_message: %w", err)
		}
	}
	return nil
}

// AddOutboundMessage is AddInboundMessage's mirror. "sent" is bumped on
// the same first-time-insertion condition as outbound_count (spec §4.4,
// §8 law 1: duplicate delivery of the same message must be idempotent).
func (c *BatchInfoCache) AddOutboundMessage(ctx context.Context, batchID, messageID, timestamp string) error {
	isNew, err := c.addToRecency(ctx, batchID, kindOutbound, messageID, timestamp)
	if err != nil {
		return fmt.Errorf("cache: add_outbound_message: %w", err)
	}
	if isNew {
		if _, err := c.driver.IncrBy(ctx, counterKey(batchID, kindOutbound), 1); err != nil {
			return fmt.Errorf("cache: add_outbound_message: %w", err)
		}
		if _, err := c.driver.HIncrBy(ctx, histogramKey(batchID), "sent", 1); err != nil {
			return fmt.Errorf("cache: add_outbound_message: %w", err)
		}
	}
	return nil
}

// AddEvent records event's key in batchID's event recency set. On
// first-time insertion it bumps event_count and the status histogram
// (event_type, plus the rolled-up delivery_report bucket for delivery
// reports) — gating the histogram on first-time insertion too keeps
// duplicate delivery of the same event idempotent (spec §8 laws 1, 8).
func (c *BatchInfoCache) AddEvent(ctx context.Context, batchID, eventID, timestamp, status string) error {
	isNew, err := c.addToRecency(ctx, batchID, kindEvent, eventID, timestamp)
	if err != nil {
		return fmt.Errorf("cache: add_event: %w", err)
	}
	if !isNew {
		return nil
	}
	if _, err := c.driver.IncrBy(ctx, counterKey(batchID, kindEvent), 1); err != nil {
		return fmt.Errorf("cache: add_event: %w", err)
	}
	hkey := histogramKey(batchID)
	if _, err := c.driver.HIncrBy(ctx, hkey, status, 1); err != nil {
		return fmt.Errorf("cache: add_event: %w", err)
	}
	if isDeliveryReportStatus(status) {
		if _, err := c.driver.HIncrBy(ctx, hkey, envelope.EventTypeDeliveryReport, 1); err != nil {
			return fmt.Errorf("cache: add_event: %w", err)
		}
	}
	return nil
}

func isDeliveryReportStatus(status string) bool {
	return len(status) > len(envelope.EventTypeDeliveryReport) &&
		status[:len(envelope.EventTypeDeliveryReport)+1] == envelope.EventTypeDeliveryReport+"."
}

// AddInboundMessageCount bulk-adds to inbound_count, for reconciliation's
// replay of the authoritative listing (spec §4.4: "bulk counter adders
// used by reconciliation").
func (c *BatchInfoCache) AddInboundMessageCount(ctx context.Context, batchID string, delta int64) error {
	_, err := c.driver.IncrBy(ctx, counterKey(batchID, kindInbound), delta)
	return err
}

// AddOutboundMessageCount is AddInboundMessageCount's outbound mirror.
func (c *BatchInfoCache) AddOutboundMessageCount(ctx context.Context, batchID string, delta int64) error {
	_, err := c.driver.IncrBy(ctx, counterKey(batchID, kindOutbound), delta)
	return err
}

// AddEventCount is AddInboundMessageCount's event mirror.
func (c *BatchInfoCache) AddEventCount(ctx context.Context, batchID string, delta int64) error {
	_, err := c.driver.IncrBy(ctx, counterKey(batchID, kindEvent), delta)
	return err
}

func (c *BatchInfoCache) getCount(ctx context.Context, batchID, kind string) (int64, error) {
	v, found, err := c.driver.Get(ctx, counterKey(batchID, kind))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return parseInt(v), nil
}

// GetInboundCount returns batchID's inbound_count.
func (c *BatchInfoCache) GetInboundCount(ctx context.Context, batchID string) (int64, error) {
	return c.getCount(ctx, batchID, kindInbound)
}

// GetOutboundCount returns batchID's outbound_count.
func (c *BatchInfoCache) GetOutboundCount(ctx context.Context, batchID string) (int64, error) {
	return c.getCount(ctx, batchID, kindOutbound)
}

// GetEventCount returns batchID's event_count.
func (c *BatchInfoCache) GetEventCount(ctx context.Context, batchID string) (int64, error) {
	return c.getCount(ctx, batchID, kindEvent)
}

// GetBatchStatus returns the status histogram as an integer-valued map
// (spec §4.4).
func (c *BatchInfoCache) GetBatchStatus(ctx context.Context, batchID string) (map[string]int64, error) {
	raw, err := c.driver.HGetAll(ctx, histogramKey(batchID))
	if err != nil {
		return nil, fmt.Errorf("cache: get_batch_status: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		out[k] = parseInt(v)
	}
	return out, nil
}

// RecentInbound returns up to limit of the most recent inbound keys,
// newest first. limit <= 0 means "no cap" (the whole recency set).
func (c *BatchInfoCache) RecentInbound(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return c.recent(ctx, batchID, kindInbound, limit)
}

// RecentOutbound is RecentInbound's outbound mirror.
func (c *BatchInfoCache) RecentOutbound(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return c.recent(ctx, batchID, kindOutbound, limit)
}

// RecentEvents is RecentInbound's event mirror.
func (c *BatchInfoCache) RecentEvents(ctx context.Context, batchID string, limit int64) ([]string, error) {
	return c.recent(ctx, batchID, kindEvent, limit)
}

func (c *BatchInfoCache) recent(ctx context.Context, batchID, kind string, limit int64) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	keys, err := c.driver.ZRevRange(ctx, recencyKey(batchID, kind), 0, stop)
	if err != nil {
		return nil, fmt.Errorf("cache: recent %s: %w", kind, err)
	}
	return keys, nil
}

// KnownBatchIDs returns every batch_id in the known-batches set.
func (c *BatchInfoCache) KnownBatchIDs(ctx context.Context) ([]string, error) {
	return c.driver.SMembers(ctx, knownBatchesKey)
}
