package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID is read from the inbound request when present and always
// echoed on the response.
const HeaderRequestID = "X-Request-Id"

// RequestID gives every request a stable ID: the inbound X-Request-Id if the
// client sent one, otherwise a fresh UUID. The ID rides the request context
// for the logger and is echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}
