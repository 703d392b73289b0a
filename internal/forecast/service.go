// Package forecast implements cached retrieval of daily precipitation
// forecasts. The Service fronts an external provider with two TTL caches
// (single-day and multi-day) and persists every fetched sample keyed on
// (date, lat, lon, source), so repeated fetches update the stored row
// instead of duplicating it.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"raincheck/internal/types"
)

// Provider fetches forecasts from the external weather API.
// Implemented by external.OpenMeteoClient.
type Provider interface {
	FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (*types.ForecastSample, error)
	FetchMultiDay(ctx context.Context, lat, lon float64, startDate time.Time, days int) ([]types.DailyForecastSummary, error)
}

// FetchMetrics receives the wall time of each provider fetch.
// Implemented by telemetry.Publisher.
type FetchMetrics interface {
	RecordFetchLatency(ctx context.Context, duration time.Duration)
}

// Multi-day requests are clamped to this range.
const (
	minMultiDays = 1
	maxMultiDays = 7
)

// Service is the forecast cache & client. All fields are constructor-injected
// so tests can substitute fakes and multiple configurations can coexist.
type Service struct {
	provider Provider
	samples  types.SampleStore
	clock    types.Clock
	metrics  FetchMetrics
	logger   *slog.Logger

	dailyCache *ttlCache[*types.ForecastSample]
	multiCache *ttlCache[[]types.DailyForecastSummary]
}

// NewService creates a forecast Service with the given provider, sample
// store, and cache TTL (both caches share it). A nil metrics sink disables
// latency reporting.
func NewService(provider Provider, samples types.SampleStore, clock types.Clock, ttl time.Duration, metrics FetchMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		provider:   provider,
		samples:    samples,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		dailyCache: newTTLCache[*types.ForecastSample](clock, ttl),
		multiCache: newTTLCache[[]types.DailyForecastSummary](clock, ttl),
	}
}

// GetDailyForecast returns the precipitation forecast for one civil date at
// the given coordinate. Within the TTL window repeated calls for the same
// (lat, lon, date) issue no provider call; after expiry the provider is
// queried again and the stored sample's mutable fields are updated in place.
func (s *Service) GetDailyForecast(ctx context.Context, lat, lon float64, date time.Time) (*types.ForecastSample, error) {
	key := dailyKey(lat, lon, date)
	if sample, ok := s.dailyCache.Get(key); ok {
		return sample, nil
	}

	fetchStart := s.clock.Now()
	sample, err := s.provider.FetchDaily(ctx, lat, lon, date)
	if err != nil {
		return nil, err
	}
	s.recordLatency(ctx, fetchStart)

	if err := s.samples.Upsert(ctx, sample); err != nil {
		return nil, err
	}

	s.dailyCache.Set(key, sample)
	s.logger.InfoContext(ctx, "forecast fetched",
		"lat", lat,
		"lon", lon,
		"date", date.Format("2006-01-02"),
		"precipitation_mm", sample.PrecipitationMM.String(),
	)
	return sample, nil
}

// GetMultiDayForecast returns per-day summaries for up to 7 days starting at
// startDate. The days argument is clamped to [1, 7].
func (s *Service) GetMultiDayForecast(ctx context.Context, lat, lon float64, startDate time.Time, days int) ([]types.DailyForecastSummary, error) {
	if days < minMultiDays {
		days = minMultiDays
	}
	if days > maxMultiDays {
		days = maxMultiDays
	}

	key := multiKey(lat, lon, startDate, days)
	if summaries, ok := s.multiCache.Get(key); ok {
		return summaries, nil
	}

	fetchStart := s.clock.Now()
	summaries, err := s.provider.FetchMultiDay(ctx, lat, lon, startDate, days)
	if err != nil {
		return nil, err
	}
	s.recordLatency(ctx, fetchStart)

	s.multiCache.Set(key, summaries)
	return summaries, nil
}

// RecordSimulated persists a synthesized sample through the same keyed upsert
// as live fetches. The simulated source tag keeps it from colliding with
// provider rows for the same date and coordinate.
func (s *Service) RecordSimulated(ctx context.Context, sample *types.ForecastSample) error {
	return s.samples.Upsert(ctx, sample)
}

func (s *Service) recordLatency(ctx context.Context, fetchStart time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordFetchLatency(ctx, s.clock.Now().Sub(fetchStart))
}

func dailyKey(lat, lon float64, date time.Time) string {
	return fmt.Sprintf("%.4f|%.4f|%s", lat, lon, date.Format("2006-01-02"))
}

func multiKey(lat, lon float64, startDate time.Time, days int) string {
	return fmt.Sprintf("%.4f|%.4f|%s|%d", lat, lon, startDate.Format("2006-01-02"), days)
}
