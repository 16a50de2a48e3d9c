package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/streamkit/logger"
)

var quietPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// RequestLogger logs each request with its status, size and duration.
// Health probes are not logged. Event streams are logged when the client
// disconnects.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := record(w)
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.Status(),
				"bytes", rw.bytes,
				"duration_ms", duration.Milliseconds(),
			)
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields["request_id"] = id
			}
			logByStatus(log, fields, rw.Status())
		})
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
