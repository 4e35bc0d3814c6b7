// Package vtime encodes and decodes the platform's standard message
// timestamp format.
//
// The format ("2006-01-02 15:04:05.000") is fixed-width and
// lexicographically sortable, which is what lets compound index terms like
// "batch_id$timestamp" sort correctly as plain strings in the authoritative
// store (spec §6: "the timestamp component must use a fixed-width
// lexicographically sortable representation").
package vtime

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format used for every message/event timestamp.
const Layout = "2006-01-02 15:04:05.000"

// MaxSuffix is appended to a timestamp to build an inclusive upper bound for
// a compound index range scan, per spec §4.3 ("{id}${end}￿").
const MaxSuffix = "￿"

// Format renders t in the wire format, always in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse parses the wire format into a time.Time in UTC.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("vtime: invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ToScore converts a wire-format timestamp into the floating point score
// used by the batch info cache's recency sorted sets (spec §3: "seconds,
// floating-point").
func ToScore(s string) (float64, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return float64(t.UnixNano()) / 1e9, nil
}
