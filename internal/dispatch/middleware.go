package dispatch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/jobs"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request log middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withRequestLog assigns a request id, attaches a request-scoped logger to
// the context, and logs one line per completed request.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if !jobs.ValidJobID(id) {
			id = jobs.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := log.With().Str("requestId", id).Logger()
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx)

		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r.WithContext(ctx))

		level := zerolog.InfoLevel
		if sr.statusCode >= 500 {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// withOriginVerify rejects requests lacking the X-Origin-Verify header the
// CDN injects, so the API cannot be called around it. Health checks pass.
func (s *Server) withOriginVerify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.originSecret == "" || r.URL.Path == apimodel.PathHealth {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-Origin-Verify") != s.originSecret {
			zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Blocked request: missing or invalid x-origin-verify header")
			httpError(w, http.StatusForbidden, apimodel.CodeUnauthorized, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withMetrics reports each request to the configured observer.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	if s.observer == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.observer.ObserveRequest(routeName(r.URL.Path), r.Method, sr.statusCode, time.Since(start))
	})
}

// routeName maps a request path to a low-cardinality route label.
func routeName(path string) string {
	switch path {
	case apimodel.PathHealth, apimodel.PathLighting, apimodel.PathEdit, apimodel.PathIdeaSpark:
		return path
	}
	if strings.HasPrefix(path, apimodel.PathJobs) {
		return apimodel.PathJobs + "{jobId}"
	}
	return "other"
}
