package lambdaboot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/auth"
	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/dispatch"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/metrics"
	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/s3util"
	"github.com/devello/devello-studios/internal/store"
	"github.com/devello/devello-studios/internal/webhook"
)

// NewProvider builds the configured image provider. Missing credentials are
// fatal here, unlike at secret loading time.
func NewProvider(ctx context.Context, cfg config.Config) (provider.Provider, error) {
	fetcher := &provider.ImageFetcher{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxBytes:   int64(cfg.MaxBase64Chars),
	}
	switch cfg.Provider {
	case provider.NameReplicate:
		if cfg.ReplicateToken == "" {
			return nil, fmt.Errorf("REPLICATE_API_TOKEN is required for provider %q", cfg.Provider)
		}
		opts := []provider.ReplicateOption{provider.WithReplicateVersion(cfg.ReplicateVersion)}
		if cfg.ReplicateBaseURL != "" {
			opts = append(opts, provider.WithReplicateBaseURL(cfg.ReplicateBaseURL))
		}
		if cfg.ReplicateWebhookURL != "" {
			opts = append(opts, provider.WithReplicateWebhook(cfg.ReplicateWebhookURL))
		}
		r, err := provider.NewReplicate(cfg.ReplicateToken, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider %q", cfg.Provider)
		}
		return provider.NewGemini(ctx, cfg.GeminiAPIKey,
			provider.WithGeminiModels(cfg.GeminiImageModel, cfg.GeminiTextModel),
			provider.WithImageFetcher(fetcher),
		)
	}
}

// ServerDeps are the optional backends a dispatch.Server can use.
type ServerDeps struct {
	Jobs    store.JobStore
	Outputs *s3util.OutputStore
	// Text overrides the idea spark backend, e.g. Gemini when images go to
	// Replicate.
	Text     provider.TextGenerator
	Observer metrics.RequestObserver
}

// NewServer assembles the dispatcher from cfg and deps.
func NewServer(p provider.Provider, cfg config.Config, deps ServerDeps) *dispatch.Server {
	opts := []dispatch.Option{
		dispatch.WithImageMode(cfg.ImageMode),
		dispatch.WithLimits(cfg.Limits()),
		dispatch.WithMaxBodyBytes(cfg.MaxBodyBytes),
		dispatch.WithProviderTimeout(cfg.ProviderTimeout),
		dispatch.WithOriginVerify(cfg.OriginVerifySecret),
	}
	if cfg.AuthRequired {
		if cfg.JWTSecret == "" {
			log.Warn().Msg("AUTH_REQUIRED is set but SUPABASE_JWT_SECRET is empty, every request will be rejected")
		}
		opts = append(opts, dispatch.WithAuth(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)))
	}
	if deps.Jobs != nil {
		opts = append(opts, dispatch.WithJobStore(deps.Jobs))
	}
	if deps.Outputs != nil {
		opts = append(opts, dispatch.WithOutputPublisher(deps.Outputs))
	}
	if deps.Text != nil {
		opts = append(opts, dispatch.WithTextGenerator(deps.Text))
	}
	if deps.Observer != nil {
		opts = append(opts, dispatch.WithObserver(deps.Observer))
	}
	return dispatch.New(p, opts...)
}

// SparkGenerator returns a Gemini text generator for idea spark when the
// image provider cannot produce text but a Gemini key is configured.
func SparkGenerator(ctx context.Context, p provider.Provider, cfg config.Config) provider.TextGenerator {
	if _, ok := p.(provider.TextGenerator); ok || cfg.GeminiAPIKey == "" {
		return nil
	}
	g, err := provider.NewGemini(ctx, cfg.GeminiAPIKey, provider.WithGeminiModels(cfg.GeminiImageModel, cfg.GeminiTextModel))
	if err != nil {
		log.Warn().Err(err).Msg("Idea spark disabled: failed to create Gemini client")
		return nil
	}
	return g
}

// DescribeConfig adds the dispatcher settings to a startup log.
func DescribeConfig(sl *logging.StartupLogger, cfg config.Config) *logging.StartupLogger {
	model := cfg.GeminiImageModel
	if cfg.Provider == provider.NameReplicate {
		model = cfg.ReplicateVersion
	}
	sl.Provider("image", cfg.Provider+"/"+model).
		Feature("auth", cfg.AuthRequired).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Feature("replicateWebhook", cfg.ReplicateWebhookURL != "").
		Config("imageMode", string(cfg.ImageMode)).
		Config("providerTimeout", cfg.ProviderTimeout.String())
	if cfg.OutputBucket != "" {
		sl.S3Bucket("output", cfg.OutputBucket)
	}
	if cfg.JobsTable != "" {
		sl.DynamoTable("jobs", cfg.JobsTable)
	}
	for _, s := range Secrets {
		sl.SSMParam(s.EnvVar, s.Param())
	}
	return sl
}

// NewWebhookHandler builds the Replicate webhook receiver. It needs both
// the signing secret and a job store to write results to.
func NewWebhookHandler(cfg config.Config, jobs store.JobStore) (*webhook.Handler, error) {
	if cfg.ReplicateWebhookSecret == "" {
		return nil, fmt.Errorf("REPLICATE_WEBHOOK_SECRET is required for the webhook receiver")
	}
	if jobs == nil {
		return nil, fmt.Errorf("a job store (JOBS_TABLE_NAME or REDIS_URL) is required for the webhook receiver")
	}
	return webhook.NewHandler(cfg.ReplicateWebhookSecret, jobs)
}
