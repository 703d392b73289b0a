package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coordinates is a geographic point with an optional human-readable name.
type Coordinates struct {
	Lat         float64 `json:"lat" db:"lat"`
	Lon         float64 `json:"lon" db:"lon"`
	DisplayName string  `json:"display_name,omitempty" db:"-"`
}

// ForecastSample is a cached precipitation forecast for one civil date at one
// coordinate, from one provider. The tuple (Date, Lat, Lon, Source) is unique;
// re-fetching the same key updates the mutable fields (Summary, RawPayload,
// PrecipitationMM, PrecipitationProb, WeatherCode) in place rather than
// creating a duplicate row.
type ForecastSample struct {
	ID     int64          `json:"id" db:"id"`
	Date   time.Time      `json:"date" db:"forecast_date"`
	Lat    float64        `json:"lat" db:"lat"`
	Lon    float64        `json:"lon" db:"lon"`
	Source ForecastSource `json:"source" db:"source"`

	// PrecipitationMM is decimal-typed so threshold comparisons in the
	// decision engine are exact.
	PrecipitationMM   decimal.Decimal `json:"precipitation_mm" db:"precipitation_mm"`
	PrecipitationProb *int            `json:"precipitation_probability,omitempty" db:"precipitation_probability"`
	WeatherCode       *int            `json:"weather_code,omitempty" db:"weather_code"`
	Summary           string          `json:"summary,omitempty" db:"summary"`
	RawPayload        RawPayload      `json:"raw_payload" db:"raw_payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RawPayload is the typed snapshot of the provider response attached to a
// forecast sample. Known fields are first-class; anything else the provider
// returned is preserved under Extra.
type RawPayload struct {
	Provider        string         `json:"provider,omitempty"`
	TemperatureMaxC *float64       `json:"temperature_max_c,omitempty"`
	TemperatureMinC *float64       `json:"temperature_min_c,omitempty"`
	WindSpeedMaxKmh *float64       `json:"wind_speed_max_kmh,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// DailyForecastSummary is one day of a multi-day forecast. Entries the
// provider omitted stay nil rather than defaulting to zero.
type DailyForecastSummary struct {
	Date              time.Time        `json:"date"`
	TemperatureMaxC   *float64         `json:"temperature_max_c,omitempty"`
	TemperatureMinC   *float64         `json:"temperature_min_c,omitempty"`
	PrecipitationProb *int             `json:"precipitation_probability,omitempty"`
	PrecipitationSum  *decimal.Decimal `json:"precipitation_sum_mm,omitempty"`
	WeatherCode       *int             `json:"weather_code,omitempty"`
}

// Decision is the outcome of evaluating one forecast sample against the
// configured thresholds. Exactly one trigger fires per evaluation.
type Decision struct {
	ShouldReassign bool            `json:"should_reassign"`
	Trigger        DecisionTrigger `json:"trigger"`
	Reason         string          `json:"reason"`
	WeatherCode    *int            `json:"weather_code,omitempty"`
}

// AlertPayload is the structured decision snapshot stored on a
// RescheduleAlert and copied onto the affected appointment.
type AlertPayload struct {
	Trigger           DecisionTrigger `json:"trigger"`
	Reason            string          `json:"reason"`
	PrecipitationMM   decimal.Decimal `json:"precipitation_mm"`
	ThresholdMM       decimal.Decimal `json:"threshold_mm"`
	PrecipitationProb *int            `json:"precipitation_probability,omitempty"`
	WeatherCode       *int            `json:"weather_code,omitempty"`
	Source            ForecastSource  `json:"source"`
	SuggestedDate     *time.Time      `json:"suggested_date,omitempty"`
	Coordinates       Coordinates     `json:"coordinates"`
	EvaluatedAt       time.Time       `json:"evaluated_at"`
}

// RescheduleAlert records one reassign decision. Alerts are created only when
// the decision engine says to reassign and the appointment's service allows
// weather rescheduling; they are resolved by operators and never auto-deleted.
type RescheduleAlert struct {
	ID            string     `json:"id" db:"id"`
	AppointmentID *string    `json:"appointment_id,omitempty" db:"appointment_id"`
	SampleID      *int64     `json:"sample_id,omitempty" db:"sample_id"`
	AlertDate     time.Time  `json:"alert_date" db:"alert_date"`
	Lat           float64    `json:"lat" db:"lat"`
	Lon           float64    `json:"lon" db:"lon"`

	PrecipitationMM   decimal.Decimal `json:"precipitation_mm" db:"precipitation_mm"`
	ThresholdMM       decimal.Decimal `json:"threshold_mm" db:"threshold_mm"`
	PrecipitationProb *int            `json:"precipitation_probability,omitempty" db:"precipitation_probability"`

	Simulated             bool            `json:"is_simulated" db:"is_simulated"`
	RequiresReprogramming bool            `json:"requires_reprogramming" db:"requires_reprogramming"`
	Reason                string          `json:"reason" db:"reason"`
	Trigger               DecisionTrigger `json:"trigger" db:"trigger"`
	Status                AlertStatus     `json:"status" db:"status"`
	Payload               AlertPayload    `json:"payload" db:"payload"`
	TriggeredBy           string          `json:"triggered_by" db:"triggered_by"`

	ResolvedBy *string    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// ServiceDefinition is the slice of the externally-owned service catalog
// record this engine reads: whether weather may reschedule its appointments.
type ServiceDefinition struct {
	ID                   string `json:"id" db:"id"`
	Name                 string `json:"name" db:"name"`
	WeatherReschedulable bool   `json:"weather_reschedulable" db:"weather_reschedulable"`
}

// Assignment links a staff member to an appointment in a given role.
type Assignment struct {
	StaffID string         `json:"staff_id" db:"staff_id"`
	Role    AssignmentRole `json:"role" db:"role"`
}

// Appointment is the externally-owned record this engine evaluates. Only the
// Reprogramming block is ever mutated here, and always as one atomic update.
type Appointment struct {
	ID          string            `json:"id" db:"id"`
	ScheduledAt time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Status      AppointmentStatus `json:"status" db:"status"`
	Service     ServiceDefinition `json:"service" db:"-"`

	LocalityID         *string `json:"locality_id,omitempty" db:"locality_id"`
	CustomerLocalityID *string `json:"customer_locality_id,omitempty" db:"customer_locality_id"`

	Assignments []Assignment `json:"assignments,omitempty" db:"-"`

	Reprogramming ReprogrammingState `json:"reprogramming" db:"-"`
}

// ReprogrammingState is the block of appointment fields owned by this engine.
type ReprogrammingState struct {
	Required        bool            `json:"requires_reprogramming" db:"requires_reprogramming"`
	Reason          string          `json:"reprogramming_reason,omitempty" db:"reprogramming_reason"`
	SuggestedDate   *time.Time      `json:"suggested_reprogram_date,omitempty" db:"suggested_reprogram_date"`
	ConfirmedDate   *time.Time      `json:"confirmed_reprogram_date,omitempty" db:"confirmed_reprogram_date"`
	Source          ReprogramSource `json:"reprogramming_source,omitempty" db:"reprogramming_source"`
	WeatherAlertID  *string         `json:"weather_alert_id,omitempty" db:"weather_alert_id"`
	PayloadSnapshot *AlertPayload   `json:"weather_payload_snapshot,omitempty" db:"weather_payload_snapshot"`
}

// ReprogrammingUpdate carries the full replacement value for an appointment's
// reprogramming block. All fields are applied together in a single write so
// the appointment can never hold a partial rescheduling state.
type ReprogrammingUpdate struct {
	AppointmentID   string
	Required        bool
	Reason          string
	SuggestedDate   *time.Time
	Source          ReprogramSource
	WeatherAlertID  *string
	PayloadSnapshot *AlertPayload
}

// Locality is the externally-owned place record. Coordinates are optional;
// the geocoder fills them in lazily and persists them back for reuse.
type Locality struct {
	ID       string   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Province string   `json:"province,omitempty" db:"province"`
	Country  string   `json:"country,omitempty" db:"country"`
	Lat      *float64 `json:"lat,omitempty" db:"lat"`
	Lon      *float64 `json:"lon,omitempty" db:"lon"`
}

// StaffCandidate is the read-only staff projection used for ranking and
// availability counting. This engine never mutates staff records.
type StaffCandidate struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name,omitempty" db:"name"`
	AverageScore     float64    `json:"average_score" db:"average_score"`
	EvaluationCount  int        `json:"evaluation_count" db:"evaluation_count"`
	AccumulatedScore float64    `json:"accumulated_score" db:"accumulated_score"`
	LastScoredAt     *time.Time `json:"last_scored_at,omitempty" db:"last_scored_at"`
}

// StaffRanking is one row of the deterministic staff ordering exposed to
// callers.
type StaffRanking struct {
	StaffID         string     `json:"staff_id"`
	Rank            int        `json:"rank"`
	Score           float64    `json:"score"`
	EvaluationCount int        `json:"evaluation_count"`
	LastScoredAt    *time.Time `json:"last_scored_at,omitempty"`
}

// WorkScheduleResult maps a raw labor duration onto real calendar time
// respecting the daily working windows. Derived, never persisted.
type WorkScheduleResult struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours int       `json:"duration_hours"`
}

// EvaluationResult is the full outcome of one weather evaluation, returned to
// the caller whether or not an alert was created.
type EvaluationResult struct {
	AppointmentID     string          `json:"appointment_id,omitempty"`
	RainExpected      bool            `json:"rain_expected"`
	Trigger           DecisionTrigger `json:"trigger"`
	Reason            string          `json:"reason"`
	PrecipitationMM   decimal.Decimal `json:"precipitation_mm"`
	PrecipitationProb *int            `json:"precipitation_probability,omitempty"`
	WeatherCode       *int            `json:"weather_code,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	Coordinates       Coordinates     `json:"coordinates"`
	SuggestedDate     *time.Time      `json:"suggested_reprogram_date,omitempty"`
	SlotConfidence    bool            `json:"slot_confidence"`
	AlertID           string          `json:"alert_id,omitempty"`
	Simulated         bool            `json:"is_simulated"`
	EvaluatedAt       time.Time       `json:"evaluated_at"`
}

// CivilDate truncates an instant to its civil date in the instant's location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
