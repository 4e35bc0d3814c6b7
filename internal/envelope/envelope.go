// Package envelope defines the minimal transport envelope types the
// message store needs to see. Per spec design note 1, these are "supplied"
// by the transport in a real deployment; here they are tagged structs with
// a typed header and an opaque JSON body, so fields the store doesn't care
// about round-trip untouched.
package envelope

import "encoding/json"

// Inbound is a user-originated message moving into the platform.
type Inbound struct {
	MessageID string          `json:"message_id"`
	Timestamp string          `json:"timestamp"` // vtime.Layout
	FromAddr  string          `json:"from_addr"`
	ToAddr    string          `json:"to_addr,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Outbound is a platform-originated message moving out to a user.
type Outbound struct {
	MessageID string          `json:"message_id"`
	Timestamp string          `json:"timestamp"` // vtime.Layout
	FromAddr  string          `json:"from_addr,omitempty"`
	ToAddr    string          `json:"to_addr"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Delivery report sub-statuses, per spec §6.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliveryPending   = "pending"
)

// Event types, per spec §6. EventTypeDeliveryReport events additionally
// carry a DeliveryStatus.
const (
	EventTypeAck            = "ack"
	EventTypeNack           = "nack"
	EventTypeDeliveryReport = "delivery_report"
)

// Event is a delivery-lifecycle event (ack/nack/delivery report) for an
// outbound message.
type Event struct {
	EventID        string          `json:"event_id"`
	UserMessageID  string          `json:"user_message_id"`
	Timestamp      string          `json:"timestamp"` // vtime.Layout
	EventType      string          `json:"event_type"`
	DeliveryStatus string          `json:"delivery_status,omitempty"`
	Body           json.RawMessage `json:"body,omitempty"`
}

// Status encodes the event's compound-index status component, per spec §3:
// event_type for acks/naks/pending, "delivery_report.<status>" for delivery
// reports.
func (e *Event) Status() string {
	if e.EventType == EventTypeDeliveryReport {
		return EventTypeDeliveryReport + "." + e.DeliveryStatus
	}
	return e.EventType
}

// KnownEventTypes lists the event_type values the batch info cache
// pre-seeds a histogram entry for on batch_start (spec §4.4), mirroring
// TransportEvent.EVENT_TYPES in the original implementation.
var KnownEventTypes = []string{EventTypeAck, EventTypeNack, EventTypeDeliveryReport}

// KnownDeliveryStatuses lists the delivery_status values pre-seeded as
// "delivery_report.<status>" histogram entries.
var KnownDeliveryStatuses = []string{DeliveryDelivered, DeliveryFailed, DeliveryPending}
