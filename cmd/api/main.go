// Package main is the entry point for the RainCheck API server.
//
// It loads configuration, connects the PostgreSQL pool and the AWS clients,
// wires the evaluation pipeline, and serves the HTTP API until SIGINT or
// SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"raincheck/internal/api"
	"raincheck/internal/config"
	"raincheck/internal/db"
	"raincheck/internal/decision"
	"raincheck/internal/external"
	"raincheck/internal/forecast"
	"raincheck/internal/geo"
	"raincheck/internal/queue"
	"raincheck/internal/reschedule"
	"raincheck/internal/staffing"
	"raincheck/internal/telemetry"
	"raincheck/internal/types"
	"raincheck/internal/workhours"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("raincheck API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	orchestrator, forecasts, scheduler, store, err := buildEngine(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(orchestrator, forecasts, store.Staff, scheduler, types.RealClock{}, logger)
	srv := api.NewServer(cfg.Server, handler, pool, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildEngine wires the evaluation pipeline behind the HTTP handlers.
func buildEngine(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*reschedule.Orchestrator, *forecast.Service, *workhours.Scheduler, *db.Store, error) {
	store := db.NewStore(pool)
	clock := types.RealClock{}

	weatherClient := external.NewOpenMeteoClient(external.OpenMeteoConfig{
		BaseURL:   cfg.Weather.BaseURL,
		Timeout:   cfg.Weather.RequestTimeout,
		UserAgent: cfg.Weather.UserAgent,
	})
	geocodeClient := external.NewGeocodeClient(external.GeocodeConfig{
		BaseURL:   cfg.Geocoding.BaseURL,
		Timeout:   cfg.Geocoding.RequestTimeout,
		UserAgent: cfg.Weather.UserAgent,
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	notifier := queue.NewSQSNotifier(sqsClient, cfg.AWS.NotificationQueue, clock, logger)
	metrics := telemetry.NewPublisher(cwClient, cfg.AWS.MetricNamespace, logger)

	forecasts := forecast.NewService(weatherClient, store.Forecasts, clock, cfg.Weather.CacheTTL, metrics, logger)
	resolver := geo.NewResolver(store.Localities, geocodeClient, clock, geo.Config{
		DefaultLat:  cfg.Geocoding.DefaultLat,
		DefaultLon:  cfg.Geocoding.DefaultLon,
		DefaultName: cfg.Geocoding.DefaultName,
		CacheTTL:    cfg.Geocoding.CacheTTL,
	}, logger)

	engine := decision.NewEngine(decision.Thresholds{
		KillSwitchCodes:     cfg.Decision.KillSwitchCodes,
		DrizzleMM:           cfg.Decision.DrizzleMM,
		ReassignMM:          cfg.Decision.ReassignMM,
		LowProbability:      cfg.Decision.LowProbability,
		ReassignProbability: cfg.Decision.ReassignProbability,
	})

	finder := staffing.NewFinder(store.Staff, staffing.FinderConfig{
		MaxSearchDays:   cfg.Scheduling.MaxSearchDays,
		WeatherLeadDays: cfg.Scheduling.WeatherLeadDays,
		DefaultCrewSize: cfg.Scheduling.DefaultCrewSize,
	}, logger)

	scheduler, err := workhours.NewSchedulerFromSpecs(cfg.Scheduling.WorkingWindows)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("parsing working windows: %w", err)
	}

	orchestrator := reschedule.NewOrchestrator(reschedule.Deps{
		Appointments: store.Appointments,
		Alerts:       store.Alerts,
		Writer:       store,
		Forecasts:    forecasts,
		Resolver:     resolver,
		Engine:       engine,
		Finder:       finder,
		Notifier:     notifier,
		Metrics:      metrics,
		Clock:        clock,
		Logger:       logger,
	}, reschedule.Config{
		DedupeWindow: cfg.Decision.DedupeWindow,
	})

	return orchestrator, forecasts, scheduler, store, nil
}

// newPool creates the pgx connection pool with the configured tuning.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// newLogger builds the JSON structured logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
