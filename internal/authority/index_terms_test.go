package authority

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vumi/msgstore/internal/storeerr"
)

func TestTermBuildersRejectEmbeddedDelimiter(t *testing.T) {
	cases := []struct {
		name string
		fn   func() error
	}{
		{"batchesTerm/batch_id", func() error { _, err := batchesTerm("b$1"); return err }},
		{"timestampTerm/batch_id", func() error { _, err := timestampTerm("b$1", "ts"); return err }},
		{"timestampTerm/timestamp", func() error { _, err := timestampTerm("b1", "t$s"); return err }},
		{"addressTerm/address", func() error { _, err := addressTerm("b1", "ts", "+1$2"); return err }},
		{"statusTerm/status", func() error { _, err := statusTerm("m1", "ts", "delivery_report$x"); return err }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.fn()
			require.Error(t, err)
			require.True(t, errors.Is(err, storeerr.ErrInvalidTerm))
		})
	}
}

func TestStatusTermAllowsDotInStatus(t *testing.T) {
	term, err := statusTerm("m1", "2014-01-01 00:00:00.000", "delivery_report.delivered")
	require.NoError(t, err)
	require.Equal(t, "m1$2014-01-01 00:00:00.000$delivery_report.delivered", term)
}

func TestTimestampTermRoundTrip(t *testing.T) {
	term, err := timestampTerm("b1", "2014-01-01 00:00:00.000")
	require.NoError(t, err)

	ts, err := parseTimestampTerm(term)
	require.NoError(t, err)
	require.Equal(t, "2014-01-01 00:00:00.000", ts)
}

func TestAddressTermRoundTrip(t *testing.T) {
	term, err := addressTerm("b1", "2014-01-01 00:00:00.000", "+12345")
	require.NoError(t, err)

	ts, addr, err := parseAddressTerm(term)
	require.NoError(t, err)
	require.Equal(t, "2014-01-01 00:00:00.000", ts)
	require.Equal(t, "+12345", addr)
}

func TestStatusTermRoundTrip(t *testing.T) {
	term, err := statusTerm("m1", "2014-01-01 00:00:00.000", "delivery_report.delivered")
	require.NoError(t, err)

	ts, status, err := parseStatusTerm(term)
	require.NoError(t, err)
	require.Equal(t, "2014-01-01 00:00:00.000", ts)
	require.Equal(t, "delivery_report.delivered", status)
}

// rangeBounds must produce a lower bound that sorts at or before every term
// whose timestamp is >= start, and an upper bound that sorts after every
// term whose timestamp is <= end, so a lexicographic range scan returns
// exactly the terms in [start, end].
func TestRangeBoundsOrdering(t *testing.T) {
	lower, upper := rangeBounds("b1", "2014-01-01 00:00:01.000", "2014-01-01 00:00:02.000", "￿")

	inRange, err := timestampTerm("b1", "2014-01-01 00:00:01.500")
	require.NoError(t, err)
	before, err := timestampTerm("b1", "2014-01-01 00:00:00.500")
	require.NoError(t, err)
	after, err := timestampTerm("b1", "2014-01-01 00:00:02.500")
	require.NoError(t, err)

	require.True(t, lower <= inRange && inRange <= upper)
	require.False(t, lower <= before)
	require.False(t, after <= upper)
}

func TestRangeBoundsUnboundedWhenEmpty(t *testing.T) {
	lower, upper := rangeBounds("b1", "", "", "￿")
	require.Equal(t, "b1$", lower)
	require.Equal(t, "b1$￿", upper)
}
