// Package schema implements the forward/reverse migrator walk that keeps
// on-disk record versions compatible with the in-process model version
// (spec §3: "each entity carries an integer version tag... reads apply
// forward migrators... writes may optionally apply reverse migrators").
//
// It is deliberately generic over map[string]any rather than any one
// entity's Go struct, mirroring the teacher's migration files
// (internal/storage/sqlite/migrations/*.go), which operate on raw rows
// rather than typed models.
package schema

import (
	"fmt"

	"github.com/vumi/msgstore/internal/storeerr"
)

// VersionField is the JSON key every persisted record carries its schema
// version under.
const VersionField = "$VERSION"

// Step converts a record one version forward (or backward). It receives
// and returns the record's raw field map; it must not set VersionField —
// the caller bumps it.
type Step func(raw map[string]any) (map[string]any, error)

// Migrators holds the per-entity forward and reverse step functions, keyed
// by the version they step away from (Forward[v] takes v -> v+1,
// Reverse[v] takes v -> v-1).
type Migrators struct {
	Forward map[int]Step
	Reverse map[int]Step
}

// VersionOf reads VersionField out of a raw record, defaulting to 0 for
// records written before versioning existed.
func VersionOf(raw map[string]any) int {
	v, ok := raw[VersionField]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// ApplyForward walks raw forward to targetVersion, applying one
// Migrators.Forward step at a time. It returns storeerr.ErrMigrationFailed
// if no registered step exists for some intermediate version — this is
// the fatal "schema-shape error" case from spec §7.
func (m Migrators) ApplyForward(raw map[string]any, targetVersion int) (map[string]any, error) {
	cur := VersionOf(raw)
	for cur < targetVersion {
		step, ok := m.Forward[cur]
		if !ok {
			return nil, fmt.Errorf("%w: no forward migrator from version %d to %d", storeerr.ErrMigrationFailed, cur, cur+1)
		}
		next, err := step(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: migrating version %d: %v", storeerr.ErrMigrationFailed, cur, err)
		}
		cur++
		next[VersionField] = cur
		raw = next
	}
	if cur > targetVersion {
		return nil, fmt.Errorf("%w: on-disk version %d is newer than model version %d", storeerr.ErrMigrationFailed, cur, targetVersion)
	}
	return raw, nil
}

// ApplyReverse walks raw backward to targetVersion, used when a deployment
// is pinned to an older store format and wants to down-convert on write.
func (m Migrators) ApplyReverse(raw map[string]any, targetVersion int) (map[string]any, error) {
	cur := VersionOf(raw)
	for cur > targetVersion {
		step, ok := m.Reverse[cur]
		if !ok {
			return nil, fmt.Errorf("%w: no reverse migrator from version %d to %d", storeerr.ErrMigrationFailed, cur, cur-1)
		}
		prev, err := step(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: reverse migrating version %d: %v", storeerr.ErrMigrationFailed, cur, err)
		}
		cur--
		prev[VersionField] = cur
		raw = prev
	}
	return raw, nil
}
