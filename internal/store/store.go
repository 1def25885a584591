package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/datatops/datatops/pkg/models"
)

var (
	// ErrNotFound is returned when a project name is unknown.
	ErrNotFound = errors.New("project not found")
	// ErrAlreadyExists is returned when project creation collides on a name.
	ErrAlreadyExists = errors.New("project already exists")
	// ErrUnavailable wraps I/O failures talking to the underlying storage.
	ErrUnavailable = errors.New("storage backend unavailable")
)

// Store is the storage capability behind the registry and the handlers.
// All implementations must be safe for concurrent use; appends to the same
// project serialize, appends to different projects do not block each other.
type Store interface {
	// CreateProject persists a new project atomically (create-if-absent,
	// never check-then-write). Returns ErrAlreadyExists on a name collision.
	CreateProject(ctx context.Context, p *models.Project) error
	// GetProject resolves a project by name. Returns ErrNotFound when absent.
	GetProject(ctx context.Context, name string) (*models.Project, error)
	// AppendRecord stores one payload verbatim, assigns its StoredAt, and
	// returns the stored record. Returns ErrNotFound if the project vanished
	// between resolution and write.
	AppendRecord(ctx context.Context, project string, payload json.RawMessage) (*models.Record, error)
	// ListRecords returns records in append order, oldest first. A positive
	// limit caps the result to the first limit records.
	ListRecords(ctx context.Context, project string, limit int) ([]*models.Record, error)
	// ListProjects returns every project. Ops and backup surface only; this
	// is never exposed over HTTP.
	ListProjects(ctx context.Context) ([]*models.Project, error)

	Ping(ctx context.Context) error
	Close() error
}
