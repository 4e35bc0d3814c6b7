// Package authority implements the domain operations on the five record
// types the message store owns — Batch, CurrentTag, InboundMessage,
// OutboundMessage, Event — on top of the generic object store
// (internal/objectstore). It is the "backend" of spec §4.3: every write
// recomputes the record's compound index terms from scratch and persists
// them alongside the envelope, and every listing is a paginated range scan
// over one of those indexes.
package authority

import (
	"encoding/json"
	"fmt"

	"github.com/vumi/msgstore/internal/envelope"
	"github.com/vumi/msgstore/internal/schema"
)

// Bucket names, one per entity, mirroring the teacher's one-table-per-kind
// layout in internal/storage/sqlite/schema.go but generalized to the
// object store's bucket/key shape.
const (
	BucketBatch           = "batch"
	BucketCurrentTag      = "current_tag"
	BucketInboundMessage  = "inbound_message"
	BucketOutboundMessage = "outbound_message"
	BucketEvent           = "event"
)

// Index names (spec §3's "Secondary indexes written" column).
const (
	IndexBatches               = "batches"
	IndexBatchesWithTimestamps = "batches_with_timestamps"
	IndexBatchesWithAddresses  = "batches_with_addresses"
	IndexMessage               = "message"
	IndexMessageWithStatus     = "message_with_status"
	// IndexCurrentBatch is CurrentTag's back-link to the batch it's
	// currently pointed at, used by batch_done to find every tag that
	// needs clearing (spec §4.3: "by following the CurrentTag→Batch
	// back-link index").
	IndexCurrentBatch = "current_batch"
)

const contentTypeJSON = "application/json"

// modelVersion is the current in-process schema version for every entity
// in this package. There is only one version today; migrators.go carries
// the (currently empty) forward/reverse tables each entity would extend
// as the schema evolves.
const modelVersion = 1

// Batch is a named grouping of messages/events (spec GLOSSARY).
type Batch struct {
	BatchID  string            `json:"batch_id"`
	Tags     []Tag             `json:"tags"`
	Metadata map[string]string `json:"metadata"`
}

// Tag is a (scope, name) pair, flattened to "scope:name" as a CurrentTag
// key (spec GLOSSARY).
type Tag struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

// Key returns the flattened "scope:name" CurrentTag key for t.
func (t Tag) Key() string {
	return t.Scope + ":" + t.Name
}

// CurrentTag holds a pointer to the currently-open batch for one tag, if
// any (spec GLOSSARY).
type CurrentTag struct {
	Tag          string `json:"tag"`
	CurrentBatch string `json:"current_batch"`
}

// InboundMessage is a user-originated message plus the set of batches it
// has been associated with.
type InboundMessage struct {
	MessageID string            `json:"message_id"`
	Envelope  envelope.Inbound  `json:"envelope"`
	BatchIDs  []string          `json:"batch_ids"`
}

// OutboundMessage is a platform-originated message plus its batch set.
type OutboundMessage struct {
	MessageID string           `json:"message_id"`
	Envelope  envelope.Outbound `json:"envelope"`
	BatchIDs  []string         `json:"batch_ids"`
}

// EventRecord is a delivery-lifecycle event plus its owning message id.
type EventRecord struct {
	EventID       string          `json:"event_id"`
	Envelope      envelope.Event  `json:"envelope"`
	UserMessageID string          `json:"user_message_id"`
}

// encodeRecord marshals v to JSON and stamps it with the current
// schema.VersionField, in the teacher's "raw map" migration style (spec
// §3: "each entity carries an integer version tag").
func encodeRecord(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("authority: encode record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("authority: encode record: %w", err)
	}
	m[schema.VersionField] = modelVersion
	return json.Marshal(m)
}

// decodeRecord walks payload forward to modelVersion using migrators, then
// unmarshals the result into out.
func decodeRecord(payload []byte, migrators schema.Migrators, out any) error {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("authority: decode record: %w", err)
	}
	m, err := migrators.ApplyForward(m, modelVersion)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("authority: decode record: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("authority: decode record: %w", err)
	}
	return nil
}
