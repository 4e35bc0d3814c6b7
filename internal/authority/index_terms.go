package authority

import (
	"fmt"
	"strings"

	"github.com/vumi/msgstore/internal/storeerr"
)

// delimiter joins compound index term components (spec §6: "a $-joined
// string"). It is forbidden inside any individual component.
const delimiter = "$"

func validateComponent(name, value string) error {
	if strings.Contains(value, delimiter) {
		return fmt.Errorf("%w: %s %q contains %q", storeerr.ErrInvalidTerm, name, value, delimiter)
	}
	return nil
}

// batchesTerm builds the bare-batch_id index term used by the "batches"
// and "message" indexes.
func batchesTerm(batchID string) (string, error) {
	if err := validateComponent("batch_id", batchID); err != nil {
		return "", err
	}
	return batchID, nil
}

// timestampTerm builds "batch_id$timestamp".
func timestampTerm(batchID, timestamp string) (string, error) {
	if err := validateComponent("batch_id", batchID); err != nil {
		return "", err
	}
	if err := validateComponent("timestamp", timestamp); err != nil {
		return "", err
	}
	return batchID + delimiter + timestamp, nil
}

// addressTerm builds "batch_id$timestamp$address".
func addressTerm(batchID, timestamp, address string) (string, error) {
	if err := validateComponent("batch_id", batchID); err != nil {
		return "", err
	}
	if err := validateComponent("timestamp", timestamp); err != nil {
		return "", err
	}
	if err := validateComponent("address", address); err != nil {
		return "", err
	}
	return batchID + delimiter + timestamp + delimiter + address, nil
}

// statusTerm builds "message_id$timestamp$status". Status may legitimately
// contain a "." (e.g. "delivery_report.delivered") but never a "$".
func statusTerm(messageID, timestamp, status string) (string, error) {
	if err := validateComponent("message_id", messageID); err != nil {
		return "", err
	}
	if err := validateComponent("timestamp", timestamp); err != nil {
		return "", err
	}
	if err := validateComponent("status", status); err != nil {
		return "", err
	}
	return messageID + delimiter + timestamp + delimiter + status, nil
}

// parseTimestampTerm splits a "batch_id$timestamp" term back into its
// timestamp component (the caller already knows the batch_id it queried
// for).
func parseTimestampTerm(term string) (timestamp string, err error) {
	parts := strings.SplitN(term, delimiter, 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("authority: malformed timestamp term %q", term)
	}
	return parts[1], nil
}

// parseAddressTerm splits a "batch_id$timestamp$address" term into its
// timestamp and address components.
func parseAddressTerm(term string) (timestamp, address string, err error) {
	parts := strings.SplitN(term, delimiter, 3)
	if len(parts) != 3 {
		return "", "", fmt.Errorf("authority: malformed address term %q", term)
	}
	return parts[1], parts[2], nil
}

// parseStatusTerm splits a "message_id$timestamp$status" term into its
// timestamp and status components.
func parseStatusTerm(term string) (timestamp, status string, err error) {
	parts := strings.SplitN(term, delimiter, 3)
	if len(parts) != 3 {
		return "", "", fmt.Errorf("authority: malformed status term %q", term)
	}
	return parts[1], parts[2], nil
}

// rangeBounds converts optional start/end timestamps into the inclusive
// "{id}${start}".."{id}${end}{MaxSuffix}" compound bounds a prefix range
// scan needs (spec §4.3). Empty start/end mean unbounded on that side.
func rangeBounds(id, start, end, maxSuffix string) (lower, upper string) {
	lower = id + delimiter + start
	upper = id + delimiter + end + maxSuffix
	return lower, upper
}
