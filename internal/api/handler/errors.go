package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/datatops/datatops/internal/api/response"
	"github.com/datatops/datatops/internal/auth"
	"github.com/datatops/datatops/internal/events"
	"github.com/datatops/datatops/internal/registry"
	"github.com/datatops/datatops/internal/store"
)

// writeError maps domain sentinels onto the boundary's stable error codes.
// Anything unrecognized becomes an opaque 500; storage paths and stack
// detail never reach the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidName):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Project names must start with a letter or digit and may contain letters, digits, '-' and '_' (max 64 characters)", nil)
	case errors.Is(err, auth.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED",
			"Invalid or missing credential", nil)
	case errors.Is(err, auth.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN",
			"Insufficient permissions for this operation", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND",
			"Project not found", nil)
	case errors.Is(err, store.ErrAlreadyExists):
		response.Error(w, http.StatusConflict, "ALREADY_EXISTS",
			"A project with this name already exists", nil)
	case errors.Is(err, store.ErrUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE",
			"The storage backend is unavailable", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// publish emits an event without letting the bus affect the request outcome:
// failures are logged and dropped.
func publish(ctx context.Context, pub events.Publisher, topic string, event any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}
