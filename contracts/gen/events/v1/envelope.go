// Package v1 is the versioned wire contract for events leaving stornet.
package v1

import (
	"encoding/json"
	"time"
)

// Envelope wraps every marketplace event appended to the transactional
// outbox and relayed to the bus: grants issued, listings created, requests
// created/accepted, rentals completed. Consumers key ordering off
// PartitionKey; the shape must stay backward compatible across schema
// versions.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}
