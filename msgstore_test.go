package msgstore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vumi/msgstore"
)

func openStore(t *testing.T) *msgstore.Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "msgstore.db")
	store, err := msgstore.Open(ctx, dbPath, msgstore.NewMemoryCacheDriver(), 2000)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func inbound(id, ts, from string) msgstore.Inbound {
	return msgstore.Inbound{MessageID: id, Timestamp: ts, FromAddr: from, Body: json.RawMessage(`{}`)}
}

func outbound(id, ts, to string) msgstore.Outbound {
	return msgstore.Outbound{MessageID: id, Timestamp: ts, ToAddr: to, Body: json.RawMessage(`{}`)}
}

// S1 — Ingest & list.
func TestScenario_IngestAndList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	b1, err := store.BatchManager.BatchStart(ctx, []msgstore.Tag{{Scope: "size", Name: "large"}}, nil)
	require.NoError(t, err)

	m1 := inbound("m1", "2014-01-01 00:00:00.000", "+111")
	m2 := inbound("m2", "2014-01-01 00:00:01.000", "+222")
	require.NoError(t, store.Operational.AddInboundMessage(ctx, m1, []string{b1}))
	require.NoError(t, store.Operational.AddInboundMessage(ctx, m2, []string{b1}))

	got, err := store.Operational.GetInboundMessage(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, m1.MessageID, got.MessageID)
	require.Equal(t, m1.Timestamp, got.Timestamp)

	page, err := store.Query.ListBatchInboundKeysWithTimestamps(ctx, b1, "", "", 0, "")
	require.NoError(t, err)
	require.False(t, page.HasNext())
	require.Equal(t, []msgstore.TimestampEntry{
		{Key: "m1", Timestamp: "2014-01-01 00:00:00.000"},
		{Key: "m2", Timestamp: "2014-01-01 00:00:01.000"},
	}, page.Items())
}

// S2 — Re-batch.
func TestScenario_Rebatch(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	b1, err := store.BatchManager.BatchStart(ctx, []msgstore.Tag{{Scope: "size", Name: "large"}}, nil)
	require.NoError(t, err)
	b2, err := store.BatchManager.BatchStart(ctx, []msgstore.Tag{{Scope: "size", Name: "large"}}, nil)
	require.NoError(t, err)

	m1 := inbound("m1", "2014-01-01 00:00:00.000", "+111")
	require.NoError(t, store.Operational.AddInboundMessage(ctx, m1, []string{b1}))
	require.NoError(t, store.Operational.AddInboundMessage(ctx, inbound("m1", "2014-01-01 00:00:00.000", "+111"), []string{b2}))

	page, err := store.Query.ListBatchInboundKeys(ctx, b2, 0, "")
	require.NoError(t, err)
	require.Contains(t, page.Keys(), "m1")
}

// S3 — Duplicate suppression.
func TestScenario_DuplicateSuppression(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	b, err := store.BatchManager.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	m := outbound("m", "2014-01-01 00:00:00.000", "+111")
	require.NoError(t, store.Operational.AddOutboundMessage(ctx, m, []string{b}))
	require.NoError(t, store.Operational.AddOutboundMessage(ctx, m, []string{b}))

	count, err := store.Query.GetOutboundCount(ctx, b)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	status, err := store.Query.GetBatchStatus(ctx, b)
	require.NoError(t, err)
	require.EqualValues(t, 1, status["sent"])
}

// S4 — Delivery-report rollup.
func TestScenario_DeliveryReportRollup(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	b, err := store.BatchManager.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	m := outbound("m", "2014-01-01 00:00:00.000", "+111")
	require.NoError(t, store.Operational.AddOutboundMessage(ctx, m, []string{b}))

	require.NoError(t, store.Operational.AddEvent(ctx, msgstore.Event{
		EventID: "e0", UserMessageID: "m", Timestamp: "2014-01-01 00:00:01.000",
		EventType: msgstore.EventTypeAck,
	}))
	for i, ts := range []string{"2014-01-01 00:00:02.000", "2014-01-01 00:00:03.000", "2014-01-01 00:00:04.000"} {
		require.NoError(t, store.Operational.AddEvent(ctx, msgstore.Event{
			EventID: idOf(i), UserMessageID: "m", Timestamp: ts,
			EventType: msgstore.EventTypeDeliveryReport, DeliveryStatus: msgstore.DeliveryDelivered,
		}))
	}

	status, err := store.Query.GetBatchStatus(ctx, b)
	require.NoError(t, err)
	require.EqualValues(t, 1, status["ack"])
	require.EqualValues(t, 3, status["delivery_report.delivered"])
	require.EqualValues(t, 3, status["delivery_report"])
}

func idOf(i int) string {
	return []string{"e1", "e2", "e3"}[i]
}

// S5 — Recency cap.
func TestScenario_RecencyCap(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "msgstore.db")
	store, err := msgstore.Open(ctx, dbPath, msgstore.NewMemoryCacheDriver(), 2)
	require.NoError(t, err)
	defer store.Close()

	b, err := store.BatchManager.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	ts := []string{"2014-01-01 00:00:00.000", "2014-01-01 00:00:01.000", "2014-01-01 00:00:02.000"}
	ids := []string{"o1", "o2", "o3"}
	for i := range ts {
		require.NoError(t, store.Operational.AddOutboundMessage(ctx, outbound(ids[i], ts[i], "+1"), []string{b}))
	}

	keys, err := store.Query.ListOutboundMessageKeys(ctx, b, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"o3", "o2"}, keys)
}

// S6 — Pagination resume.
func TestScenario_PaginationResume(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	b, err := store.BatchManager.BatchStart(ctx, nil, nil)
	require.NoError(t, err)

	ts := []string{
		"2014-01-01 00:00:00.000",
		"2014-01-01 00:00:01.000",
		"2014-01-01 00:00:02.000",
		"2014-01-01 00:00:03.000",
		"2014-01-01 00:00:04.000",
	}
	for i, t0 := range ts {
		require.NoError(t, store.Operational.AddInboundMessage(ctx, inbound(idOfN(i), t0, "+1"), []string{b}))
	}

	p1, err := store.Query.ListBatchInboundKeys(ctx, b, 3, "")
	require.NoError(t, err)
	require.Len(t, p1.Keys(), 3)
	require.True(t, p1.HasNext())

	p2, err := p1.NextPage(ctx)
	require.NoError(t, err)
	require.Len(t, p2.Keys(), 2)
	require.False(t, p2.HasNext())

	all := append(append([]string{}, p1.Keys()...), p2.Keys()...)
	require.ElementsMatch(t, []string{"i0", "i1", "i2", "i3", "i4"}, all)
}

func idOfN(i int) string {
	return []string{"i0", "i1", "i2", "i3", "i4"}[i]
}
