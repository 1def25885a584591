package middleware

import "net/http"

// Header names carrying project credentials, kept compatible with existing
// datatops clients.
const (
	HeaderAdminKey = "X-Admin-Key"
	HeaderUserKey  = "X-User-Key"
)

// Credentials copies the project credential headers into the request
// context. When both headers are present the admin key wins. Whether the
// credential actually grants anything is decided later, against the
// resolved project; this middleware only records what the caller supplied.
func Credentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(HeaderAdminKey); key != "" {
			r = r.WithContext(WithCredential(r.Context(), key))
		} else if key := r.Header.Get(HeaderUserKey); key != "" {
			r = r.WithContext(WithCredential(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}
