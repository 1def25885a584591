package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicProjectCreated = "datatops.project.created"
	TopicRecordStored   = "datatops.record.stored"
)

// Event types. Credentials never ride the bus: events carry project names
// and metadata only.

type ProjectCreated struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordStored struct {
	Project  string    `json:"project"`
	StoredAt time.Time `json:"stored_at"`
	Bytes    int       `json:"bytes"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
