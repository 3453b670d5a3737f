// Package main provides a Lambda entry point for the Replicate prediction
// webhook.
//
// This is a small Lambda (128 MB, 10s timeout) that handles:
//   - POST /api/webhooks/replicate: signed completion deliveries
//
// It writes terminal results to the job table so the job status endpoint
// can answer without polling Replicate. The signing secret is loaded from
// SSM Parameter Store at cold start:
//   - /devello/prod/replicate-webhook-secret
//
// This Lambda has no access to S3 or the image providers.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/lambdaboot"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/webhook"
)

var webhookHandler *webhook.Handler

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients, err := lambdaboot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	lambdaboot.LoadSecrets(ctx, clients.SSM, lambdaboot.WebhookSecrets)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	jobs, err := lambdaboot.InitJobStore(ctx, &clients.Config, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize job store")
	}
	webhookHandler, err = lambdaboot.NewWebhookHandler(cfg, jobs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize webhook handler")
	}

	sl := lambdaboot.StartupLog("webhook-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		DynamoTable("jobs", cfg.JobsTable)
	for _, s := range lambdaboot.WebhookSecrets {
		sl.SSMParam(s.EnvVar, s.Param())
	}
	sl.Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle(webhook.Path, webhookHandler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
