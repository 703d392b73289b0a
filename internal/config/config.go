// Package config defines the global configuration structure for the RainCheck
// engine. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the top-level configuration struct for the RainCheck engine.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"raincheck"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Weather    WeatherConfig
	Geocoding  GeocodingConfig
	Decision   DecisionConfig
	Scheduling SchedulingConfig
	Sentry     SentryConfig
	AWS        AWSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the forecast provider endpoint and cache tuning.
type WeatherConfig struct {
	BaseURL        string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com/v1"`
	RequestTimeout time.Duration `envconfig:"WEATHER_REQUEST_TIMEOUT" default:"10s"`
	CacheTTL       time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"1h"`
	UserAgent      string        `envconfig:"WEATHER_USER_AGENT" default:"RainCheck/1.0"`
}

// GeocodingConfig holds the geocoding provider endpoint, cache tuning, and
// the hard-coded default coordinate for the business's home region.
type GeocodingConfig struct {
	BaseURL        string        `envconfig:"GEOCODING_BASE_URL" default:"https://geocoding-api.open-meteo.com/v1"`
	RequestTimeout time.Duration `envconfig:"GEOCODING_REQUEST_TIMEOUT" default:"10s"`
	CacheTTL       time.Duration `envconfig:"GEOCODING_CACHE_TTL" default:"24h"`

	DefaultLat  float64 `envconfig:"GEOCODING_DEFAULT_LAT" default:"-34.9215"`
	DefaultLon  float64 `envconfig:"GEOCODING_DEFAULT_LON" default:"-57.9545"`
	DefaultName string  `envconfig:"GEOCODING_DEFAULT_NAME" default:"La Plata"`
}

// DecisionConfig holds the weather decision thresholds. All values are
// overridable per deployment; the defaults reproduce the reference behavior.
// Precipitation thresholds are decimal to keep comparisons exact.
type DecisionConfig struct {
	// KillSwitchCodes force rescheduling regardless of precipitation values.
	KillSwitchCodes []int `envconfig:"DECISION_KILL_SWITCH_CODES" default:"95,96,99"`
	// DrizzleMM: precipitation strictly below this is ignorable light rain.
	DrizzleMM decimal.Decimal `envconfig:"DECISION_DRIZZLE_MM" default:"0.5"`
	// ReassignMM: precipitation strictly above this (with sufficient
	// probability) forces rescheduling.
	ReassignMM decimal.Decimal `envconfig:"DECISION_REASSIGN_MM" default:"2.0"`
	// LowProbability: probability strictly below this is ignorable.
	LowProbability int `envconfig:"DECISION_LOW_PROBABILITY" default:"40"`
	// ReassignProbability: probability at or above this satisfies the
	// heavy-rain rule.
	ReassignProbability int `envconfig:"DECISION_REASSIGN_PROBABILITY" default:"50"`
	// DedupeWindow suppresses duplicate alert rows for the same appointment
	// and alert date within the window. Zero disables deduplication, which
	// matches the reference behavior of one alert per evaluation.
	DedupeWindow time.Duration `envconfig:"DECISION_DEDUPE_WINDOW" default:"0"`
}

// SchedulingConfig holds slot-search and working-hours parameters.
type SchedulingConfig struct {
	MaxSearchDays   int `envconfig:"SCHEDULING_MAX_SEARCH_DAYS" default:"30"`
	WeatherLeadDays int `envconfig:"SCHEDULING_WEATHER_LEAD_DAYS" default:"7"`
	DefaultCrewSize int `envconfig:"SCHEDULING_DEFAULT_CREW_SIZE" default:"2"`
	// WorkingWindows are daily clock-time ranges during which labor hours may
	// be scheduled, formatted HH:MM-HH:MM.
	WorkingWindows []string `envconfig:"SCHEDULING_WORKING_WINDOWS" default:"08:00-12:00,16:00-20:00"`
}

// SentryConfig tunes the periodic evaluation worker.
type SentryConfig struct {
	// Interval between sweeps of upcoming appointments.
	Interval time.Duration `envconfig:"SENTRY_INTERVAL" default:"1h"`
	// LookaheadDays is how many days ahead of today each sweep covers.
	LookaheadDays int `envconfig:"SENTRY_LOOKAHEAD_DAYS" default:"7"`
	// Concurrency bounds the number of dates evaluated in parallel.
	Concurrency int `envconfig:"SENTRY_CONCURRENCY" default:"4"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS"`
	MetricNamespace   string `envconfig:"METRIC_NAMESPACE" default:"RainCheck"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
