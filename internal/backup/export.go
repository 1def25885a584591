// Package backup exports the full contents of a store as JSONL and ships the
// snapshots to an object store on a cron schedule.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/datatops/datatops/internal/store"
	"github.com/datatops/datatops/pkg/models"
)

// header is the first JSONL line written by Export.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProjectCount int       `json:"project_count"`
	RecordCount  int       `json:"record_count"`
}

// line wraps a single JSONL line with a type discriminator.
type line struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type recordLine struct {
	Project  string          `json:"project"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// Export writes every project and record in s as JSONL to w. Projects are
// sorted by name; records keep their append order. Credentials are included:
// a backup must be able to restore a working deployment.
func Export(ctx context.Context, s store.Store, w io.Writer) error {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })

	recordsByProject := make(map[string][]*models.Record, len(projects))
	total := 0
	for _, p := range projects {
		records, err := s.ListRecords(ctx, p.Name, 0)
		if err != nil {
			return fmt.Errorf("list records for %s: %w", p.Name, err)
		}
		recordsByProject[p.Name] = records
		total += len(records)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ProjectCount: len(projects),
		RecordCount:  total,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, p := range projects {
		if err := enc.Encode(line{Type: "project", Data: p}); err != nil {
			return fmt.Errorf("encode project %s: %w", p.Name, err)
		}
	}
	for _, p := range projects {
		for _, r := range recordsByProject[p.Name] {
			if err := enc.Encode(line{Type: "record", Data: recordLine{
				Project:  p.Name,
				Payload:  r.Payload,
				StoredAt: r.StoredAt,
			}}); err != nil {
				return fmt.Errorf("encode record for %s: %w", p.Name, err)
			}
		}
	}
	return nil
}
