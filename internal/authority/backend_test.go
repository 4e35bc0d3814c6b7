package authority

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vumi/msgstore/internal/envelope"
	"github.com/vumi/msgstore/internal/objectstore"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()
	store, err := objectstore.Open(ctx, filepath.Join(t.TempDir(), "authority.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBackend(store)
}

func TestBatchAssociationOnlyGrows(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	b1, err := b.BatchStart(ctx, nil, nil)
	require.NoError(t, err)
	b2, err := b.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	msg := envelope.Inbound{MessageID: "m1", Timestamp: "2014-01-01 00:00:00.000", FromAddr: "+1", Body: json.RawMessage(`{}`)}
	require.NoError(t, b.AddInboundMessage(ctx, msg, []string{b1}))
	require.NoError(t, b.AddInboundMessage(ctx, msg, []string{b2}))

	got, err := b.GetRawInboundMessage(ctx, "m1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{b1, b2}, got.BatchIDs)

	// Re-adding an already-associated batch must not shrink the set.
	require.NoError(t, b.AddInboundMessage(ctx, msg, []string{b1}))
	got, err = b.GetRawInboundMessage(ctx, "m1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{b1, b2}, got.BatchIDs)
}

func TestGetTagInfoDoesNotPersistUntilSaved(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	ct, err := b.GetTagInfo(ctx, "scope:name")
	require.NoError(t, err)
	require.Equal(t, "scope:name", ct.Tag)
	require.Empty(t, ct.CurrentBatch)

	_, found, err := b.store.Get(ctx, BucketCurrentTag, "scope:name")
	require.NoError(t, err)
	require.False(t, found)

	ct.CurrentBatch = "b1"
	require.NoError(t, b.SaveTagInfo(ctx, *ct))

	_, found, err = b.store.Get(ctx, BucketCurrentTag, "scope:name")
	require.NoError(t, err)
	require.True(t, found)
}

func TestBatchDoneClearsCurrentTagButKeepsMessages(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	tag := Tag{Scope: "size", Name: "large"}
	batchID, err := b.BatchStart(ctx, []Tag{tag}, nil)
	require.NoError(t, err)

	before, err := b.GetTagInfo(ctx, tag.Key())
	require.NoError(t, err)
	require.Equal(t, batchID, before.CurrentBatch)

	msg := envelope.Inbound{MessageID: "m1", Timestamp: "2014-01-01 00:00:00.000", FromAddr: "+1", Body: json.RawMessage(`{}`)}
	require.NoError(t, b.AddInboundMessage(ctx, msg, []string{batchID}))

	require.NoError(t, b.BatchDone(ctx, batchID))

	after, err := b.GetTagInfo(ctx, tag.Key())
	require.NoError(t, err)
	require.Empty(t, after.CurrentBatch)

	batch, err := b.GetBatch(ctx, batchID)
	require.NoError(t, err)
	require.NotNil(t, batch)

	page, err := b.ListBatchInboundKeys(ctx, batchID, 0, "")
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, page.Keys())
}

func TestListBatchInboundKeysWithTimestampsRespectsRangeBounds(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	batchID, err := b.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	ts := []string{
		"2014-01-01 00:00:00.000",
		"2014-01-01 00:00:01.000",
		"2014-01-01 00:00:02.000",
		"2014-01-01 00:00:03.000",
	}
	ids := []string{"i0", "i1", "i2", "i3"}
	for i, t0 := range ts {
		msg := envelope.Inbound{MessageID: ids[i], Timestamp: t0, FromAddr: "+1", Body: json.RawMessage(`{}`)}
		require.NoError(t, b.AddInboundMessage(ctx, msg, []string{batchID}))
	}

	page, err := b.ListBatchInboundKeysWithTimestamps(ctx, batchID, ts[1], ts[2], 0, "")
	require.NoError(t, err)
	require.Equal(t, []TimestampEntry{
		{Key: "i1", Timestamp: ts[1]},
		{Key: "i2", Timestamp: ts[2]},
	}, page.Items())
}

func TestListMessageEventKeysWithStatusesReturnsTermAndToken(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for i, status := range []string{"ack", "delivery_report.delivered"} {
		ev := envelope.Event{
			EventID:       idOfEv(i),
			UserMessageID: "m1",
			Timestamp:     []string{"2014-01-01 00:00:00.000", "2014-01-01 00:00:01.000"}[i],
		}
		if status == "ack" {
			ev.EventType = envelope.EventTypeAck
		} else {
			ev.EventType = envelope.EventTypeDeliveryReport
			ev.DeliveryStatus = envelope.DeliveryDelivered
		}
		require.NoError(t, b.AddEvent(ctx, ev))
	}

	page, err := b.ListMessageEventKeysWithStatuses(ctx, "m1", "", "", 1, "")
	require.NoError(t, err)
	require.Equal(t, []StatusEntry{
		{Key: "e1", Timestamp: "2014-01-01 00:00:00.000", Status: "ack"},
	}, page.Items())
	require.True(t, page.HasNext())
	require.NotEmpty(t, page.Token())

	next, err := page.NextPage(ctx)
	require.NoError(t, err)
	require.Equal(t, []StatusEntry{
		{Key: "e2", Timestamp: "2014-01-01 00:00:01.000", Status: "delivery_report.delivered"},
	}, next.Items())
	require.False(t, next.HasNext())
}

func TestInboundMessageBodyRoundTrips(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	msg := envelope.Inbound{
		MessageID: "m1",
		Timestamp: "2014-01-01 00:00:00.000",
		FromAddr:  "+1",
		Body:      json.RawMessage(`{"content":"hello"}`),
	}
	require.NoError(t, b.AddInboundMessage(ctx, msg, nil))

	got, err := b.GetRawInboundMessage(ctx, "m1")
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"hello"}`, string(got.Envelope.Body))
}

func idOfEv(i int) string {
	return []string{"e1", "e2"}[i]
}
