package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/ftsql/ftsql/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns each request an identifier, propagates it through the
// context for correlated logging, and echoes it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithQueryID(r.Context(), id)))
	})
}

func newRequestID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}
