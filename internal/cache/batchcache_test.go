package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, recencyLimit int64) *BatchInfoCache {
	t.Helper()
	return NewBatchInfoCache(NewMemoryDriver(), recencyLimit)
}

func TestBatchStartSeedsCountersAndHistogramOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)

	require.NoError(t, c.BatchStart(ctx, "b1"))

	exists, err := c.BatchExists(ctx, "b1")
	require.NoError(t, err)
	require.True(t, exists)

	n, err := c.GetInboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	status, err := c.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	require.Contains(t, status, "ack")
	require.Contains(t, status, "sent")
	require.Contains(t, status, "delivery_report")
	require.Contains(t, status, "delivery_report.delivered")

	// A second BatchStart after traffic has arrived must not clobber
	// existing counts back to zero.
	require.NoError(t, c.AddInboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))
	require.NoError(t, c.BatchStart(ctx, "b1"))
	n, err = c.GetInboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAddInboundMessageIsIdempotentOnDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	require.NoError(t, c.AddInboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))
	require.NoError(t, c.AddInboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))

	n, err := c.GetInboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAddOutboundMessageBumpsSentOnceOnly(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	require.NoError(t, c.AddOutboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))
	require.NoError(t, c.AddOutboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))

	n, err := c.GetOutboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	status, err := c.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, status["sent"])
}

func TestAddEventRollsUpDeliveryReportStatuses(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	require.NoError(t, c.AddEvent(ctx, "b1", "e1", "2014-01-01 00:00:00.000", "ack"))
	require.NoError(t, c.AddEvent(ctx, "b1", "e2", "2014-01-01 00:00:01.000", "delivery_report.delivered"))
	require.NoError(t, c.AddEvent(ctx, "b1", "e3", "2014-01-01 00:00:02.000", "delivery_report.failed"))

	status, err := c.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, status["ack"])
	require.EqualValues(t, 1, status["delivery_report.delivered"])
	require.EqualValues(t, 1, status["delivery_report.failed"])
	require.EqualValues(t, 2, status["delivery_report"])

	n, err := c.GetEventCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestAddEventDuplicateDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	require.NoError(t, c.AddEvent(ctx, "b1", "e1", "2014-01-01 00:00:00.000", "delivery_report.delivered"))
	require.NoError(t, c.AddEvent(ctx, "b1", "e1", "2014-01-01 00:00:00.000", "delivery_report.delivered"))

	status, err := c.GetBatchStatus(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 1, status["delivery_report.delivered"])
	require.EqualValues(t, 1, status["delivery_report"])
}

func TestRecencySetIsCappedAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 2)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	ts := []string{
		"2014-01-01 00:00:00.000",
		"2014-01-01 00:00:01.000",
		"2014-01-01 00:00:02.000",
	}
	ids := []string{"o1", "o2", "o3"}
	for i := range ts {
		require.NoError(t, c.AddOutboundMessage(ctx, "b1", ids[i], ts[i]))
	}

	recent, err := c.RecentOutbound(ctx, "b1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"o3", "o2"}, recent)
}

func TestRecentRespectsLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	for i, ts := range []string{
		"2014-01-01 00:00:00.000",
		"2014-01-01 00:00:01.000",
		"2014-01-01 00:00:02.000",
	} {
		require.NoError(t, c.AddInboundMessage(ctx, "b1", []string{"i1", "i2", "i3"}[i], ts))
	}

	recent, err := c.RecentInbound(ctx, "b1", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"i3"}, recent)
}

func TestClearBatchRemovesAllState(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))
	require.NoError(t, c.AddInboundMessage(ctx, "b1", "m1", "2014-01-01 00:00:00.000"))

	require.NoError(t, c.ClearBatch(ctx, "b1"))

	exists, err := c.BatchExists(ctx, "b1")
	require.NoError(t, err)
	require.False(t, exists)

	n, err := c.GetInboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestBulkCountAddersForReconciliation(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))

	require.NoError(t, c.AddInboundMessageCount(ctx, "b1", 5))
	require.NoError(t, c.AddOutboundMessageCount(ctx, "b1", 3))
	require.NoError(t, c.AddEventCount(ctx, "b1", 7))

	in, err := c.GetInboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 5, in)

	out, err := c.GetOutboundCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 3, out)

	ev, err := c.GetEventCount(ctx, "b1")
	require.NoError(t, err)
	require.EqualValues(t, 7, ev)
}

func TestKnownBatchIDs(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.BatchStart(ctx, "b1"))
	require.NoError(t, c.BatchStart(ctx, "b2"))

	ids, err := c.KnownBatchIDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b1", "b2"}, ids)
}
