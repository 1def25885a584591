package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/datatops/datatops/internal/api/middleware"
	"github.com/datatops/datatops/internal/api/response"
	"github.com/datatops/datatops/internal/auth"
	"github.com/datatops/datatops/internal/events"
	"github.com/datatops/datatops/pkg/models"
)

// HeaderCreationSecret optionally guards project creation.
const HeaderCreationSecret = "X-Project-Creation-Secret"

// maxBodyBytes caps request bodies. Payloads are small telemetry and survey
// blobs, not uploads.
const maxBodyBytes = 1 << 20

// Registry is the slice of the project registry the handlers depend on.
type Registry interface {
	Create(ctx context.Context, name, suppliedSecret string) (*models.Project, error)
	Resolve(ctx context.Context, name string) (*models.Project, error)
}

// RecordStore is the slice of the storage layer the record handlers depend on.
type RecordStore interface {
	AppendRecord(ctx context.Context, project string, payload json.RawMessage) (*models.Record, error)
	ListRecords(ctx context.Context, project string, limit int) ([]*models.Record, error)
}

// NewProjectPostHandler dispatches POST /api/v1/projects/{name} on credential
// presence: a request carrying X-User-Key or X-Admin-Key appends a record, a
// bare one creates the project.
func NewProjectPostHandler(create, storeRecord http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetCredential(r); ok {
			storeRecord(w, r)
			return
		}
		create(w, r)
	}
}

// NewCreateProjectHandler returns the handler for credential-less
// POST /api/v1/projects/{name}. The admin key appears in this response and
// nowhere else; there is no recovery path for a lost key.
func NewCreateProjectHandler(reg Registry, baseURL string, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		secret := r.Header.Get(HeaderCreationSecret)
		if secret == "" {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Could not read request body", nil)
				return
			}
			if len(bytes.TrimSpace(body)) > 0 {
				var req struct {
					CreationSecret string `json:"creation_secret"`
				}
				if err := json.Unmarshal(body, &req); err != nil {
					response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
					return
				}
				secret = req.CreationSecret
			}
		}

		p, err := reg.Create(r.Context(), name, secret)
		if err != nil {
			writeError(w, err)
			return
		}

		publish(r.Context(), pub, events.TopicProjectCreated, events.ProjectCreated{
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})

		response.Created(w, createProjectResponse{
			Name:      p.Name,
			URL:       strings.TrimSuffix(baseURL, "/") + "/api/v1/projects/" + p.Name,
			UserKey:   p.UserKey,
			AdminKey:  p.AdminKey,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
}

// NewStoreRecordHandler returns the handler for credentialed
// POST /api/v1/projects/{name}: append one JSON payload to the project.
func NewStoreRecordHandler(reg Registry, st RecordStore, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		p, err := reg.Resolve(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}

		key, _ := mw.GetCredential(r)
		if !auth.Authorize(p, key).CanStore() {
			writeError(w, auth.ErrUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Could not read request body", nil)
			return
		}
		if len(body) > maxBodyBytes {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body too large", nil)
			return
		}
		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is required", nil)
			return
		}
		if !json.Valid(body) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be valid JSON", nil)
			return
		}

		rec, err := st.AppendRecord(r.Context(), name, json.RawMessage(body))
		if err != nil {
			writeError(w, err)
			return
		}

		publish(r.Context(), pub, events.TopicRecordStored, events.RecordStored{
			Project:  name,
			StoredAt: rec.StoredAt,
			Bytes:    len(body),
		})

		response.NoContent(w)
	}
}

// NewListRecordsHandler returns the handler for GET /api/v1/projects/{name}.
// Listing exposes every stored payload, so it requires the admin key.
func NewListRecordsHandler(reg Registry, st RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		p, err := reg.Resolve(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}

		key, _ := mw.GetCredential(r)
		role := auth.Authorize(p, key)
		if !role.CanList() {
			if role == auth.RoleUser {
				writeError(w, auth.ErrForbidden)
			} else {
				writeError(w, auth.ErrUnauthorized)
			}
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer", nil)
				return
			}
		}

		records, err := st.ListRecords(r.Context(), name, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []*models.Record{}
		}

		response.Collection(w, records, response.ListMeta{Count: len(records), Limit: limit})
	}
}

type createProjectResponse struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	UserKey   string `json:"user_key"`
	AdminKey  string `json:"admin_key"`
	CreatedAt string `json:"created_at"`
}
