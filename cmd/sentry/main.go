// Package main is the entry point for the RainCheck sentry worker: a
// periodic sweep that re-evaluates the weather for every active appointment
// in the lookahead window and raises reschedule alerts where the forecast
// demands it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

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
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("raincheck sentry starting",
		"environment", cfg.Environment,
		"interval", cfg.Sentry.Interval.String(),
		"lookahead_days", cfg.Sentry.LookaheadDays,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	orchestrator, err := buildOrchestrator(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	worker := &sentry{
		orchestrator: orchestrator,
		cfg:          cfg.Sentry,
		clock:        types.RealClock{},
		logger:       logger,
	}
	return worker.runLoop(ctx)
}

// sentry owns the periodic sweep loop.
type sentry struct {
	orchestrator *reschedule.Orchestrator
	cfg          config.SentryConfig
	clock        types.Clock
	logger       *slog.Logger
}

// runLoop sweeps once immediately, then on every tick until the context is
// cancelled.
func (s *sentry) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sentry stopping")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep evaluates every active appointment scheduled within the lookahead
// window, one goroutine per date. A failed date is logged and does not stop
// the other dates.
func (s *sentry) sweep(ctx context.Context) {
	start := s.clock.Now()
	today := types.CivilDate(start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for offset := 0; offset <= s.cfg.LookaheadDays; offset++ {
		date := today.AddDate(0, 0, offset)
		g.Go(func() error {
			results, err := s.orchestrator.EvaluateActiveOnDate(gctx, date)
			if err != nil {
				s.logger.ErrorContext(gctx, "sweep date failed",
					"date", date.Format("2006-01-02"),
					"error", err,
				)
				return nil
			}

			alerts := 0
			for _, r := range results {
				if r.AlertID != "" {
					alerts++
				}
			}
			s.logger.InfoContext(gctx, "sweep date completed",
				"date", date.Format("2006-01-02"),
				"evaluated", len(results),
				"alerts", alerts,
			)
			return nil
		})
	}

	_ = g.Wait()
	s.logger.InfoContext(ctx, "sweep completed", "duration_ms", time.Since(start).Milliseconds())
}

// buildOrchestrator wires the evaluation pipeline for the worker.
func buildOrchestrator(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*reschedule.Orchestrator, error) {
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
		return nil, fmt.Errorf("loading AWS config: %w", err)
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

	return reschedule.NewOrchestrator(reschedule.Deps{
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
	}), nil
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
