// Package auth classifies a supplied credential against a project's stored
// keys. The check is a pure function: no state, no side effects, one
// verdict per request.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/datatops/datatops/pkg/models"
)

var (
	// ErrUnauthorized means the credential is missing or matches neither key.
	ErrUnauthorized = errors.New("invalid or missing credential")
	// ErrForbidden means the caller is known but not allowed: a user-level
	// key on an admin-only operation, or a creation-secret mismatch.
	ErrForbidden = errors.New("insufficient permissions")
)

// Role is the caller's access level for one project. The ordering is
// deliberate: a higher role grants everything a lower one does.
type Role int

const (
	RoleUnauthorized Role = iota
	RoleUser
	RoleAdmin
)

// Authorize compares suppliedKey against the project's admin key first,
// then its user key. Both comparisons are constant-time; the admin prefix
// is never consulted.
func Authorize(p *models.Project, suppliedKey string) Role {
	if suppliedKey == "" {
		return RoleUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(suppliedKey), []byte(p.AdminKey)) == 1 {
		return RoleAdmin
	}
	if subtle.ConstantTimeCompare([]byte(suppliedKey), []byte(p.UserKey)) == 1 {
		return RoleUser
	}
	return RoleUnauthorized
}

// CanStore reports whether the role may append records.
func (r Role) CanStore() bool {
	return r >= RoleUser
}

// CanList reports whether the role may read records back.
func (r Role) CanList() bool {
	return r >= RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "unauthorized"
	}
}
