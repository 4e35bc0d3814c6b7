// Package storeerr defines the error kinds shared across the message store,
// following the teacher's sentinel-error convention
// (storage.ErrDBNotInitialized in internal/storage/storage.go) so callers
// can branch with errors.Is instead of matching strings.
package storeerr

import "errors"

// ErrNotFound is a soft error: single-record getters never return it
// directly, they return (nil, nil) instead (spec §7). It exists so
// lower-level adapter code has a sentinel to signal "absent" up through
// wrapping layers that do want to surface it as an error.
var ErrNotFound = errors.New("storeerr: record not found")

// ErrStoreUnavailable marks a transient, retryable I/O failure from the
// object store or cache adapter.
var ErrStoreUnavailable = errors.New("storeerr: store unavailable")

// ErrMigrationFailed marks a fatal schema error: the on-disk $VERSION has no
// registered migrator path to the current model version.
var ErrMigrationFailed = errors.New("storeerr: migration failed")

// ErrInvalidTerm marks a programmer error: a compound index term component
// contains the reserved delimiter.
var ErrInvalidTerm = errors.New("storeerr: invalid index term")

// ErrCacheInconsistent is advisory: it is only ever surfaced by
// reconciliation's sanity checks, never from normal reads.
var ErrCacheInconsistent = errors.New("storeerr: cache inconsistent")
