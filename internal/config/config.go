// Package config reads the API's deployment settings from the environment.
//
// Settings are read once at cold start into a Config that is passed to
// constructors; nothing else in the module calls os.Getenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/provider"
)

// Config is the full set of deployment settings.
type Config struct {
	// Provider selects the image backend: "gemini" or "replicate".
	Provider string
	// ImageMode is how clients send the source image: "base64" or "url".
	ImageMode action.ImageMode

	// AuthRequired enables bearer token checks on the edit endpoints.
	AuthRequired bool
	JWTSecret    string
	JWTIssuer    string

	GeminiAPIKey     string
	GeminiImageModel string
	GeminiTextModel  string

	ReplicateToken   string
	ReplicateVersion string
	// ReplicateBaseURL overrides the API root, version path included
	// ("https://api.replicate.com/v1").
	ReplicateBaseURL string
	// ReplicateWebhookURL, when set, is sent with each prediction so Replicate
	// reports completion; ReplicateWebhookSecret verifies those deliveries.
	ReplicateWebhookURL    string
	ReplicateWebhookSecret string

	// OutputBucket, when set, receives inline provider output; clients then
	// get a presigned URL instead of a data URL.
	OutputBucket string
	OutputPrefix string

	// JobsTable enables the DynamoDB job store; RedisURL the Redis one.
	JobsTable string
	RedisURL  string

	// OriginVerifySecret, when set, must match the X-Origin-Verify header
	// injected by the CDN in front of the API.
	OriginVerifySecret string
	// AllowedOrigins lists CORS origins for the local server.
	AllowedOrigins []string

	MaxBase64Chars int
	MaxPromptChars int
	MaxBodyBytes   int64
	// ProviderTimeout bounds a single provider call.
	ProviderTimeout time.Duration
}

// Default values.
const (
	DefaultProvider        = provider.NameGemini
	DefaultProviderTimeout = 110 * time.Second
	// bodyOverhead allows for JSON framing around the base64 image.
	bodyOverhead = 64 * 1024
)

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Provider:               strings.ToLower(getEnv("PROVIDER", DefaultProvider)),
		ImageMode:              action.ImageMode(strings.ToLower(getEnv("IMAGE_MODE", ""))),
		AuthRequired:           getEnvBool("AUTH_REQUIRED", true),
		JWTSecret:              os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:              getEnv("SUPABASE_JWT_ISSUER", issuerFromURL(os.Getenv("SUPABASE_URL"))),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiImageModel:       getEnv("GEMINI_IMAGE_MODEL", provider.ModelGeminiImage),
		GeminiTextModel:        getEnv("GEMINI_TEXT_MODEL", provider.ModelGeminiText),
		ReplicateToken:         os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateVersion:       getEnv("REPLICATE_MODEL_VERSION", provider.FluxKontextMaxVersion),
		ReplicateBaseURL:       os.Getenv("REPLICATE_BASE_URL"),
		ReplicateWebhookURL:    os.Getenv("REPLICATE_WEBHOOK_URL"),
		ReplicateWebhookSecret: os.Getenv("REPLICATE_WEBHOOK_SECRET"),
		OutputBucket:           os.Getenv("OUTPUT_BUCKET"),
		OutputPrefix:           getEnv("OUTPUT_PREFIX", "ios"),
		JobsTable:              os.Getenv("JOBS_TABLE_NAME"),
		RedisURL:               os.Getenv("REDIS_URL"),
		OriginVerifySecret:     os.Getenv("ORIGIN_VERIFY_SECRET"),
		AllowedOrigins:         splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		MaxBase64Chars:         getEnvInt("MAX_BASE64_CHARS", action.DefaultLimits.MaxBase64Chars),
		MaxPromptChars:         getEnvInt("MAX_PROMPT_CHARS", action.DefaultLimits.MaxPromptChars),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
	}
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", cfg.MaxBase64Chars+bodyOverhead))

	if cfg.ImageMode == "" {
		cfg.ImageMode = defaultImageMode(cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file for local binaries. A missing file is fine.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to load env file")
			continue
		}
		log.Debug().Str("path", p).Msg("Loaded env file")
	}
}

// Validate checks cross-field consistency. Missing secrets are not errors
// here: Lambda loads them from SSM after Load.
func (c Config) Validate() error {
	switch c.Provider {
	case provider.NameGemini, provider.NameReplicate:
	default:
		return fmt.Errorf("PROVIDER must be %q or %q, got %q", provider.NameGemini, provider.NameReplicate, c.Provider)
	}
	switch c.ImageMode {
	case action.ImageModeBase64, action.ImageModeURL:
	default:
		return fmt.Errorf("IMAGE_MODE must be %q or %q, got %q", action.ImageModeBase64, action.ImageModeURL, c.ImageMode)
	}
	if c.MaxBase64Chars <= 0 || c.MaxPromptChars <= 0 {
		return fmt.Errorf("MAX_BASE64_CHARS and MAX_PROMPT_CHARS must be positive")
	}
	if c.MaxBodyBytes < int64(c.MaxBase64Chars) {
		return fmt.Errorf("MAX_BODY_BYTES (%d) must be at least MAX_BASE64_CHARS (%d)", c.MaxBodyBytes, c.MaxBase64Chars)
	}
	return nil
}

// Limits returns the request limits the builder and dispatcher enforce.
func (c Config) Limits() action.Limits {
	return action.Limits{MaxBase64Chars: c.MaxBase64Chars, MaxPromptChars: c.MaxPromptChars}
}

// defaultImageMode follows what each provider consumes natively: Gemini
// takes inline bytes, Replicate takes a URL.
func defaultImageMode(p string) action.ImageMode {
	if p == provider.NameReplicate {
		return action.ImageModeURL
	}
	return action.ImageModeBase64
}

// issuerFromURL derives the Supabase auth issuer from the project URL.
func issuerFromURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u == "" {
		return ""
	}
	return u + "/auth/v1"
}

// --- env helpers ---

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer, using default")
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid boolean, using default")
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
