// Package registry owns the project namespace: it mints credentials for new
// projects, enforces name uniqueness, and guards creation behind an optional
// shared secret.
package registry

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/datatops/datatops/internal/auth"
	"github.com/datatops/datatops/pkg/models"
)

// ErrInvalidName is returned when a project name fails validation.
var ErrInvalidName = errors.New("invalid project name")

// Project names double as storage keys (file names, partition keys), so the
// charset is restricted to characters safe in all backends.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ProjectStore is the slice of the storage layer the registry needs.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, name string) (*models.Project, error)
}

// KeyGenerator mints credentials for new projects.
type KeyGenerator interface {
	UserKey() (string, error)
	AdminKey() (string, error)
}

// Registry coordinates project creation and lookup.
type Registry struct {
	store          ProjectStore
	keys           KeyGenerator
	creationSecret string
}

// New creates a Registry. An empty creationSecret leaves project creation
// open to anyone.
func New(store ProjectStore, keys KeyGenerator, creationSecret string) *Registry {
	return &Registry{store: store, keys: keys, creationSecret: creationSecret}
}

// Create registers a new project under name and returns it with freshly
// minted credentials. The admin key is only ever available in this return
// value; callers must hand it to the creator now or never.
func (r *Registry) Create(ctx context.Context, name, suppliedSecret string) (*models.Project, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if r.creationSecret != "" {
		if subtle.ConstantTimeCompare([]byte(suppliedSecret), []byte(r.creationSecret)) != 1 {
			return nil, fmt.Errorf("%w: creation secret mismatch", auth.ErrForbidden)
		}
	}

	userKey, err := r.keys.UserKey()
	if err != nil {
		return nil, err
	}
	adminKey, err := r.keys.AdminKey()
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:      name,
		UserKey:   userKey,
		AdminKey:  adminKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Resolve looks up an existing project. Invalid names are rejected before
// they reach the storage layer, where they could be misread as paths.
func (r *Registry) Resolve(ctx context.Context, name string) (*models.Project, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return r.store.GetProject(ctx, name)
}
