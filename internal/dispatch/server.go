// Package dispatch serves the edit API: the lighting and hotspot edit
// dispatchers, the job status endpoint, idea spark and health.
//
// Every handler answers with the JSON shapes in apimodel. Failures always
// carry ok=false, a client-safe error and a machine-readable code; provider
// and storage details go to the log only.
package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/auth"
	"github.com/devello/devello-studios/internal/metrics"
	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "devello-studios"

// OutputPublisher hosts inline provider output and returns a URL for it.
// *s3util.OutputStore implements it.
type OutputPublisher interface {
	Publish(ctx context.Context, owner string, data []byte, mimeType string) (string, error)
}

// Server holds the dependencies shared by all handlers. The zero values of
// the optional fields disable the matching feature.
type Server struct {
	provider provider.Provider
	status   provider.StatusChecker
	text     provider.TextGenerator

	verifier *auth.Verifier
	jobs     store.JobStore
	outputs  OutputPublisher

	imageMode       action.ImageMode
	limits          action.Limits
	maxBodyBytes    int64
	providerTimeout time.Duration

	originSecret string
	observer     metrics.RequestObserver
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires a valid bearer token on the edit and job endpoints.
func WithAuth(v *auth.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithJobStore records pending jobs and replays terminal results.
func WithJobStore(js store.JobStore) Option {
	return func(s *Server) { s.jobs = js }
}

// WithOutputPublisher uploads inline output instead of returning data URLs.
func WithOutputPublisher(p OutputPublisher) Option {
	return func(s *Server) { s.outputs = p }
}

// WithTextGenerator overrides the idea spark backend.
func WithTextGenerator(t provider.TextGenerator) Option {
	return func(s *Server) { s.text = t }
}

// WithImageMode restricts requests to one image representation.
func WithImageMode(m action.ImageMode) Option {
	return func(s *Server) { s.imageMode = m }
}

// WithLimits sets the validation limits.
func WithLimits(l action.Limits) Option {
	return func(s *Server) { s.limits = l }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Server) { s.providerTimeout = d }
}

// WithOriginVerify requires the X-Origin-Verify header to equal secret.
func WithOriginVerify(secret string) Option {
	return func(s *Server) { s.originSecret = secret }
}

// WithObserver records per-request metrics.
func WithObserver(o metrics.RequestObserver) Option {
	return func(s *Server) { s.observer = o }
}

// New creates a Server around p. Status queries and idea spark use p when it
// implements the matching interface.
func New(p provider.Provider, opts ...Option) *Server {
	s := &Server{
		provider:     p,
		limits:       action.DefaultLimits,
		maxBodyBytes: int64(action.DefaultLimits.MaxBase64Chars) + 64*1024,
		now:          time.Now,
	}
	if sc, ok := p.(provider.StatusChecker); ok {
		s.status = sc
	}
	if tg, ok := p.(provider.TextGenerator); ok {
		s.text = tg
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(apimodel.PathHealth, s.handleHealth)
	mux.HandleFunc(apimodel.PathLighting, s.handleLighting)
	mux.HandleFunc(apimodel.PathEdit, s.handleEdit)
	mux.HandleFunc(apimodel.PathJobs, s.handleJobStatus)
	mux.HandleFunc(apimodel.PathIdeaSpark, s.handleIdeaSpark)

	var h http.Handler = mux
	h = s.withOriginVerify(h)
	h = s.withMetrics(h)
	h = withRequestLog(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  ServiceName,
		"provider": s.provider.Name(),
	})
}

// authenticate returns r with the verified claims on its context, or false
// with the response already written. With auth disabled the claims are empty.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	claims := &auth.Claims{}
	if s.verifier != nil {
		var err error
		claims, err = s.verifier.Authenticate(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Request not authenticated")
			httpError(w, http.StatusUnauthorized, apimodel.CodeUnauthorized, err.Error())
			return r, false
		}
	}
	ctx := auth.WithClaims(r.Context(), claims)
	if claims.Subject != "" {
		logger := zerolog.Ctx(ctx).With().Str("subject", claims.Subject).Logger()
		ctx = logger.WithContext(ctx)
	}
	return r.WithContext(ctx), true
}

func (s *Server) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.providerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.providerTimeout)
}
