package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"repairchat/internal/httputil"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// RequestID tags every request with an ID, reusing the caller's when it
// sends a usable one, and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, httputil.WithRequestID(r, id))
	})
}
