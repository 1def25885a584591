package models

import "time"

// Project is a named, isolated bucket of records with its own credential pair.
// The admin key is disclosed exactly once, in the creation response; after
// that, neither key ever appears in an API response again.
type Project struct {
	Name      string    `json:"name"`
	UserKey   string    `json:"user_key"`
	AdminKey  string    `json:"admin_key"`
	CreatedAt time.Time `json:"created_at"`
}
