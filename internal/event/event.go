// Package event defines the normalized, immutable event record the
// correlation engine consumes.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Event is an immutable, timestamped field map with a stable identifier.
type Event struct {
	ID        string
	Timestamp time.Time
	Fields    map[string]any
}

// New builds an Event from external fields. When ts is nil the engine's
// ingestion-time wall clock (UTC) is assigned. When id is nil, the ID is
// derived as a SHA-256 digest of the canonical (sorted-keys) JSON
// serialization of fields — encoding/json sorts map[string]any keys when
// marshaling, so this is a direct canonicalization with no extra work.
func New(fields map[string]any, ts *time.Time, id *string) *Event {
	timestamp := time.Now().UTC()
	if ts != nil {
		timestamp = *ts
	}

	eventID := ""
	if id != nil && *id != "" {
		eventID = *id
	} else {
		eventID = Digest(fields)
	}

	return &Event{ID: eventID, Timestamp: timestamp, Fields: fields}
}

// Digest computes the stable content-addressed identifier for a field map.
func Digest(fields map[string]any) string {
	// encoding/json marshals map[string]any keys in sorted order, so the
	// canonical serialization needs no custom encoder.
	data, err := json.Marshal(fields)
	if err != nil {
		// fields containing only JSON-marshalable scalars/maps/lists (the
		// event model's contract) cannot fail to marshal; fall back to a
		// stable-but-degenerate digest rather than panicking on ingestion.
		data = []byte("\x00invalid-event-fields")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
