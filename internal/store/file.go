package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datatops/datatops/pkg/models"
)

// projectFile is the durable unit for one project: credentials plus every
// record, in a single JSON document under the data root.
type projectFile struct {
	Name      string           `json:"name"`
	UserKey   string           `json:"user_key"`
	AdminKey  string           `json:"admin_key"`
	CreatedAt time.Time        `json:"created_at"`
	Records   []*models.Record `json:"records"`
}

// FileStore persists each project as one JSON file. Writes go to a temp
// file and are committed by rename, so readers never observe a partial
// document. Appends to the same project serialize on a per-project mutex;
// distinct projects do not contend.
type FileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the data root if needed and returns a FileStore.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// lockFor returns the mutex guarding one project's read-modify-write cycle,
// creating it on first use.
func (s *FileStore) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.root, name+".json")
}

func (s *FileStore) CreateProject(ctx context.Context, p *models.Project) error {
	tmp, err := s.writeTemp(&projectFile{
		Name:      p.Name,
		UserKey:   p.UserKey,
		AdminKey:  p.AdminKey,
		CreatedAt: p.CreatedAt,
		Records:   []*models.Record{},
	})
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	// Link is an atomic create-if-absent: it fails when the target already
	// exists, so two racing creations resolve to exactly one winner.
	if err := os.Link(tmp, s.path(p.Name)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: create project file: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStore) GetProject(ctx context.Context, name string) (*models.Project, error) {
	doc, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return &models.Project{
		Name:      doc.Name,
		UserKey:   doc.UserKey,
		AdminKey:  doc.AdminKey,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *FileStore) AppendRecord(ctx context.Context, project string, payload json.RawMessage) (*models.Record, error) {
	lock := s.lockFor(project)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.read(project)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	// StoredAt never goes backwards within a project, even if the wall clock does.
	if n := len(doc.Records); n > 0 && doc.Records[n-1].StoredAt.After(now) {
		now = doc.Records[n-1].StoredAt
	}
	rec := &models.Record{Payload: payload, StoredAt: now}
	doc.Records = append(doc.Records, rec)

	tmp, err := s.writeTemp(doc)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.path(project)); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: commit project file: %v", ErrUnavailable, err)
	}
	return rec, nil
}

func (s *FileStore) ListRecords(ctx context.Context, project string, limit int) ([]*models.Record, error) {
	doc, err := s.read(project)
	if err != nil {
		return nil, err
	}
	records := doc.Records
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (s *FileStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read data dir: %v", ErrUnavailable, err)
	}
	var projects []*models.Project
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		doc, err := s.read(strings.TrimSuffix(name, ".json"))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		projects = append(projects, &models.Project{
			Name:      doc.Name,
			UserKey:   doc.UserKey,
			AdminKey:  doc.AdminKey,
			CreatedAt: doc.CreatedAt,
		})
	}
	return projects, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, s.root)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// read loads a project document. Reads take no lock: rename commits are
// atomic, so a reader sees either the previous or the new version.
func (s *FileStore) read(name string) (*projectFile, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read project file: %v", ErrUnavailable, err)
	}
	var doc projectFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode project file: %v", ErrUnavailable, err)
	}
	return &doc, nil
}

// writeTemp marshals doc into a fresh temp file inside the root and returns
// its path. Temp names start with a dot so directory scans skip them.
func (s *FileStore) writeTemp(doc *projectFile) (string, error) {
	f, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	if err := json.NewEncoder(f).Encode(doc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write temp file: %v", ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: close temp file: %v", ErrUnavailable, err)
	}
	return f.Name(), nil
}
