package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/gamebot/pkg/metrics"
)

// errorClasses maps the statuses the handlers emit to the error_type label.
var errorClasses = map[int]string{
	http.StatusBadRequest:            "client_error",
	http.StatusUnauthorized:          "unauthorized",
	http.StatusNotFound:              "not_found",
	http.StatusMethodNotAllowed:      "client_error",
	http.StatusRequestEntityTooLarge: "too_large",
	http.StatusTooManyRequests:       "rate_limit",
	http.StatusServiceUnavailable:    "unavailable",
}

func errorClass(status int) string {
	if c, ok := errorClasses[status]; ok {
		return c
	}
	if status >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// instrument records count, latency and error class for one route.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		code := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(route, r.Method, code)
		metrics.RecordHTTPRequestDuration(route, r.Method, code, float64(time.Since(start).Milliseconds()))
		if sw.status >= http.StatusBadRequest {
			metrics.RecordErrorByEndpoint(route, r.Method, errorClass(sw.status))
		}
	}
}

// statusWriter remembers the first status written.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status, w.wrote = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
