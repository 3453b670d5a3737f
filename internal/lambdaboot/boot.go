// Package lambdaboot provides the cold-start bootstrap shared by the API
// binaries: AWS config, SSM secrets, the optional output bucket, the optional
// job store, and startup logging.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/s3util"
	"github.com/devello/devello-studios/internal/store"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// Secret names an environment variable that may instead be loaded from SSM.
type Secret struct {
	// EnvVar receives the value, e.g. GEMINI_API_KEY.
	EnvVar string
	// ParamEnvVar optionally overrides the parameter path, e.g. SSM_GEMINI_KEY_PARAM.
	ParamEnvVar string
	// DefaultParam is the parameter path used when ParamEnvVar is unset.
	DefaultParam string
}

// Param returns the SSM parameter path for s.
func (s Secret) Param() string {
	if v := os.Getenv(s.ParamEnvVar); s.ParamEnvVar != "" && v != "" {
		return v
	}
	return s.DefaultParam
}

// Secrets are the credentials the API may pull from Parameter Store.
var Secrets = []Secret{
	{EnvVar: "GEMINI_API_KEY", ParamEnvVar: "SSM_GEMINI_KEY_PARAM", DefaultParam: "/devello/prod/gemini-api-key"},
	{EnvVar: "REPLICATE_API_TOKEN", ParamEnvVar: "SSM_REPLICATE_TOKEN_PARAM", DefaultParam: "/devello/prod/replicate-api-token"},
	{EnvVar: "SUPABASE_JWT_SECRET", ParamEnvVar: "SSM_JWT_SECRET_PARAM", DefaultParam: "/devello/prod/supabase-jwt-secret"},
}

// WebhookSecrets are the credentials the webhook receiver needs.
var WebhookSecrets = []Secret{
	{EnvVar: "REPLICATE_WEBHOOK_SECRET", ParamEnvVar: "SSM_WEBHOOK_SECRET_PARAM", DefaultParam: "/devello/prod/replicate-webhook-secret"},
}

// ParameterGetter is the subset of the SSM client used for secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets fills each secret's environment variable from SSM unless it is
// already set. Missing parameters are logged and skipped: which secrets are
// required depends on the configured provider, and config validation or the
// first request reports what is actually missing.
func LoadSecrets(ctx context.Context, client ParameterGetter, secrets []Secret) {
	for _, s := range secrets {
		if os.Getenv(s.EnvVar) != "" {
			continue
		}
		param := s.Param()
		start := time.Now()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &param,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Warn().Err(err).Str("param", param).Str("envVar", s.EnvVar).Msg("Secret not loaded from SSM")
			continue
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			log.Warn().Str("param", param).Msg("SSM parameter has no value")
			continue
		}
		os.Setenv(s.EnvVar, *result.Parameter.Value)
		log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Secret loaded from SSM")
	}
}

// InitOutputStore creates the S3 output store when OUTPUT_BUCKET is
// configured. Returns nil (with a log line) otherwise.
func InitOutputStore(awsCfg aws.Config, cfg config.Config) *s3util.OutputStore {
	if cfg.OutputBucket == "" {
		log.Info().Msg("OUTPUT_BUCKET not set, inline outputs returned as data URLs")
		return nil
	}
	client := s3.NewFromConfig(awsCfg)
	return s3util.NewOutputStore(client, s3.NewPresignClient(client), cfg.OutputBucket, cfg.OutputPrefix)
}

// InitJobStore picks the job store: DynamoDB when JOBS_TABLE_NAME is set,
// then Redis when REDIS_URL is set. Returns nil (with a warning) when neither
// is configured; ownership checks and terminal replay are then disabled.
func InitJobStore(ctx context.Context, awsCfg *aws.Config, cfg config.Config) (store.JobStore, error) {
	switch {
	case cfg.JobsTable != "" && awsCfg != nil:
		return store.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.JobsTable), nil
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return store.NewRedisStore(client, ""), nil
	default:
		log.Warn().Msg("No job store configured, job status is not persisted")
		return nil, nil
	}
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
