package middleware

import (
	"log"
	"net/http"
	"time"
)

// Logging logs one line per request with the calling user and request id.
// Successful health probes are not logged. Event streams are logged when
// they end.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if isProbe(r.URL.Path) && wrapped.statusCode < http.StatusBadRequest {
			return
		}

		user := r.Header.Get(HeaderUserID)
		if user == "" {
			user = "-"
		}
		log.Printf("[HTTP] %s %s %d %dB %s user=%s ip=%s rid=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			wrapped.bytes,
			time.Since(start).Round(time.Microsecond),
			user,
			r.RemoteAddr,
			GetRequestID(r.Context()),
		)
	})
}

func isProbe(path string) bool {
	return path == "/api/v1/health" || path == "/api/v1/ready" || path == "/api/status"
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush keeps the wrapped writer usable for event streams.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
