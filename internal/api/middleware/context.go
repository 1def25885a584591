package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	credentialKey contextKey = "credential"
	requestIDKey  contextKey = "request_id"
)

// WithCredential returns a context carrying a supplied project credential.
// Exported so handler tests can inject credentials without a full router.
func WithCredential(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, credentialKey, key)
}

// GetCredential returns the credential the Credentials middleware extracted
// from the request headers. ok is false when no credential header was sent.
func GetCredential(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(credentialKey).(string)
	return key, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the ID assigned by the RequestID middleware, or ""
// outside of it.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
