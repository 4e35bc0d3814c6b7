package vtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []string{
		"2014-01-01 00:00:00.000",
		"2014-01-01 00:00:00.001",
		"2099-12-31 23:59:59.999",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			parsed, err := Parse(s)
			require.NoError(t, err)
			require.Equal(t, s, Format(parsed))
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("not-a-timestamp")
	require.Error(t, err)
}

func TestParseNormalizesToUTC(t *testing.T) {
	parsed, err := Parse("2014-01-01 00:00:00.000")
	require.NoError(t, err)
	require.Equal(t, time.UTC, parsed.Location())
}

// lexicographic ordering of the wire format must match chronological
// ordering, since it backs compound index term sort order.
func TestFormatIsLexicographicallySortable(t *testing.T) {
	earlier := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(1500 * time.Millisecond)
	require.Less(t, Format(earlier), Format(later))
}

func TestToScoreOrdersWithTime(t *testing.T) {
	a, err := ToScore("2014-01-01 00:00:00.000")
	require.NoError(t, err)
	b, err := ToScore("2014-01-01 00:00:00.500")
	require.NoError(t, err)
	require.Less(t, a, b)
}

func TestMaxSuffixSortsAfterAnyTimestamp(t *testing.T) {
	require.Less(t, "2099-12-31 23:59:59.999", "2099-12-31 23:59:59.999"+MaxSuffix)
}
