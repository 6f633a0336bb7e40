package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggedResponse records the status and body size a handler produced.
type loggedResponse struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lr *loggedResponse) WriteHeader(code int) {
	if lr.status == 0 {
		lr.status = code
	}
	lr.ResponseWriter.WriteHeader(code)
}

func (lr *loggedResponse) Write(p []byte) (int, error) {
	if lr.status == 0 {
		lr.status = http.StatusOK
	}
	n, err := lr.ResponseWriter.Write(p)
	lr.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the WebSocket upgrade path depends on.
func (lr *loggedResponse) Unwrap() http.ResponseWriter {
	return lr.ResponseWriter
}

// RequestLogger logs one line per request. Server errors log at error
// level, client errors at warn, everything else at info.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lr := &loggedResponse{ResponseWriter: w}

			next.ServeHTTP(lr, r)

			if lr.status == 0 {
				lr.status = http.StatusOK
			}

			level := slog.LevelInfo
			switch {
			case lr.status >= 500:
				level = slog.LevelError
			case lr.status >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", lr.status,
				"bytes", lr.bytes,
				"duration", time.Since(start),
				"remote", RealIP(r),
			)
		})
	}
}
