// Package main runs the edit API as a local HTTP server for development and
// for driving the devello CLI without AWS.
//
// Settings come from the environment (optionally a .env file). Jobs are kept
// in Redis when REDIS_URL is set and in memory otherwise; /metrics exposes
// Prometheus request metrics. With REPLICATE_WEBHOOK_SECRET set, Replicate
// completions are also accepted on /api/webhooks/replicate.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devello/devello-studios/internal/config"
	"github.com/devello/devello-studios/internal/lambdaboot"
	"github.com/devello/devello-studios/internal/logging"
	"github.com/devello/devello-studios/internal/metrics"
	"github.com/devello/devello-studios/internal/s3util"
	"github.com/devello/devello-studios/internal/store"
	"github.com/devello/devello-studios/internal/webhook"
)

// CLI flags
var (
	portFlag    int
	envFileFlag string
	noAuthFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "api-local",
	Short: "Run the Devello Studios edit API locally",
	Long: `api-local serves the same endpoints as the Lambda deployment on a local port.

Examples:
  api-local
  api-local --port 9090 --env-file .env.local
  api-local --no-auth`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", ".env", "Environment file to load before reading settings")
	rootCmd.Flags().BoolVar(&noAuthFlag, "no-auth", false, "Disable bearer token checks (overrides AUTH_REQUIRED)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()
	config.LoadDotEnv(envFileFlag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if noAuthFlag {
		cfg.AuthRequired = false
	}

	p, err := lambdaboot.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var awsCfg *aws.Config
	var outputs *s3util.OutputStore
	if cfg.OutputBucket != "" || cfg.JobsTable != "" {
		clients, err := lambdaboot.InitAWS(ctx)
		if err != nil {
			return err
		}
		awsCfg = &clients.Config
		outputs = lambdaboot.InitOutputStore(clients.Config, cfg)
	}
	jobs, err := lambdaboot.InitJobStore(ctx, awsCfg, cfg)
	if err != nil {
		return err
	}
	if jobs == nil {
		log.Info().Msg("Using in-memory job store")
		jobs = store.NewMemoryStore()
	}

	reg := prometheus.NewRegistry()
	observer := metrics.NewPrometheusObserver(reg)
	metrics.SetEnabled(false)

	server := lambdaboot.NewServer(p, cfg, lambdaboot.ServerDeps{
		Jobs:     jobs,
		Outputs:  outputs,
		Text:     lambdaboot.SparkGenerator(ctx, p, cfg),
		Observer: observer,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", observer.Handler())
	if cfg.ReplicateWebhookSecret != "" {
		wh, err := lambdaboot.NewWebhookHandler(cfg, jobs)
		if err != nil {
			return err
		}
		mux.Handle(webhook.Path, wh)
	}
	mux.Handle("/", server.Handler())

	handler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	}).Handler(gzhttp.GzipHandler(mux))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", portFlag),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lambdaboot.DescribeConfig(lambdaboot.StartupLog("api-local", initStart), cfg).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Config("port", fmt.Sprint(portFlag)).
		Log()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", portFlag).Msg("Starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// allowedOrigins defaults to the usual local front-end dev servers.
func allowedOrigins(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}
