package models

import (
	"encoding/json"
	"time"
)

// Record is one opaque, immutable JSON payload appended to a project.
// Payload is stored and replayed verbatim; the storage layer never inspects
// it. StoredAt is assigned at append time and is never caller-supplied.
type Record struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}
