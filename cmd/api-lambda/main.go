// Package main is the Lambda entry point for the edit API.
//
// API Gateway (HTTP API, payload v2) events are adapted to net/http by
// httpadapter so the same dispatch.Server runs here and in api-local.
//
// Endpoints:
//
//	GET  /api/health            health check (no auth)
//	POST /api/ios/lighting      relight a photo with a style preset
//	POST /api/ios/edit          hotspot edit with a text prompt
//	GET  /api/ios/jobs/{jobId}  poll an asynchronous edit
//	POST /api/ideas/spark       expand an idea into a draft
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/dispatch"
	"github.com/devello/devello-studios/internal/lambdaboot"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/metrics"
	"github.com/devello/devello-studios/internal/provider"
)

var server *dispatch.Server

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients, err := lambdaboot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AWS")
	}
	lambdaboot.LoadSecrets(ctx, clients.SSM, lambdaboot.Secrets)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	p, err := lambdaboot.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create provider")
	}
	jobs, err := lambdaboot.InitJobStore(ctx, &clients.Config, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize job store")
	}

	server = lambdaboot.NewServer(p, cfg, lambdaboot.ServerDeps{
		Jobs:     jobs,
		Outputs:  lambdaboot.InitOutputStore(clients.Config, cfg),
		Text:     lambdaboot.SparkGenerator(ctx, p, cfg),
		Observer: metrics.EMFObserver{Namespace: provider.MetricsNamespace},
	})

	lambdaboot.DescribeConfig(lambdaboot.StartupLog("api-lambda", initStart), cfg).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(server.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
