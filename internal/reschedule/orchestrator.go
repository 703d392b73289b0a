// Package reschedule composes the weather evaluation pipeline: resolve the
// appointment's coordinates, fetch the forecast, run the decision rules, and
// on a reassign decision find a replacement slot, persist the alert together
// with the appointment mutation, and notify.
package reschedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"raincheck/internal/decision"
	"raincheck/internal/forecast"
	"raincheck/internal/geo"
	"raincheck/internal/staffing"
	"raincheck/internal/types"
)

// Metrics records evaluation outcomes. Implemented by telemetry.Publisher;
// NopMetrics satisfies it for tests and local runs without CloudWatch.
type Metrics interface {
	RecordEvaluation(ctx context.Context, trigger types.DecisionTrigger, simulated bool)
	RecordAlertCreated(ctx context.Context, simulated bool)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordEvaluation(context.Context, types.DecisionTrigger, bool) {}
func (NopMetrics) RecordAlertCreated(context.Context, bool)                      {}

// Config holds orchestrator-level policy knobs.
type Config struct {
	// DedupeWindow suppresses a second alert for the same appointment and
	// alert date when an open one was created within the window. Zero keeps
	// the reference behavior of one alert row per evaluation.
	DedupeWindow time.Duration
	// SimulatedPrecipitationMM is the default precipitation injected by
	// SimulateAlert when the caller gives no override.
	SimulatedPrecipitationMM decimal.Decimal
}

// Orchestrator drives one evaluation end to end. All collaborators are
// constructor-injected; it holds no per-appointment state and may be called
// concurrently for different appointments.
type Orchestrator struct {
	appointments types.AppointmentStore
	alerts       types.AlertStore
	writer       types.ReassignmentWriter
	forecasts    *forecast.Service
	resolver     *geo.Resolver
	engine       *decision.Engine
	finder       *staffing.Finder
	notifier     types.Notifier
	metrics      Metrics
	clock        types.Clock
	logger       *slog.Logger
	cfg          Config
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Appointments types.AppointmentStore
	Alerts       types.AlertStore
	Writer       types.ReassignmentWriter
	Forecasts    *forecast.Service
	Resolver     *geo.Resolver
	Engine       *decision.Engine
	Finder       *staffing.Finder
	Notifier     types.Notifier
	Metrics      Metrics
	Clock        types.Clock
	Logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Metrics, Clock, and Logger default
// to no-op, real time, and slog.Default respectively.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.SimulatedPrecipitationMM.IsZero() {
		cfg.SimulatedPrecipitationMM = decimal.RequireFromString("10.0")
	}
	return &Orchestrator{
		appointments: deps.Appointments,
		alerts:       deps.Alerts,
		writer:       deps.Writer,
		forecasts:    deps.Forecasts,
		resolver:     deps.Resolver,
		engine:       deps.Engine,
		finder:       deps.Finder,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		logger:       deps.Logger,
		cfg:          cfg,
	}
}

// EvaluateOptions tune a single evaluation. The zero value evaluates at the
// appointment's own locality and creates an alert on a reassign decision.
type EvaluateOptions struct {
	// ExplicitCoords overrides the locality resolution chain.
	ExplicitCoords *types.Coordinates
	// SkipAlertCreation reports the decision without persisting anything.
	SkipAlertCreation bool
}

// EvaluateAppointment runs the full pipeline for one appointment. The caller
// always receives the decision; an alert is created and the appointment
// mutated only when the decision says reassign, alert creation is enabled,
// and the appointment's service allows weather rescheduling.
func (o *Orchestrator) EvaluateAppointment(ctx context.Context, appointmentID string, opts EvaluateOptions) (*types.EvaluationResult, error) {
	appt, err := o.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	coords := o.resolver.ResolveForAppointment(ctx, appt, opts.ExplicitCoords)
	alertDate := types.CivilDate(appt.ScheduledAt)

	sample, err := o.forecasts.GetDailyForecast(ctx, coords.Lat, coords.Lon, alertDate)
	if err != nil {
		return nil, err
	}

	d := o.engine.Evaluate(sample)
	o.metrics.RecordEvaluation(ctx, d.Trigger, false)

	result := o.buildResult(appt.ID, sample, d, coords)

	if !d.ShouldReassign || opts.SkipAlertCreation {
		return result, nil
	}

	if !appt.Service.WeatherReschedulable {
		o.logger.InfoContext(ctx, "reassign decision suppressed, service not weather-reschedulable",
			"appointment_id", appt.ID,
			"service_id", appt.Service.ID,
			"trigger", d.Trigger,
		)
		return result, nil
	}

	if existing, err := o.findDuplicate(ctx, appt.ID, alertDate); err != nil {
		return nil, err
	} else if existing != nil {
		result.AlertID = existing.ID
		result.SuggestedDate = existing.Payload.SuggestedDate
		result.SlotConfidence = true
		o.logger.InfoContext(ctx, "open alert reused within dedupe window",
			"appointment_id", appt.ID,
			"alert_id", existing.ID,
		)
		return result, nil
	}

	suggested, found, err := o.finder.NextWeatherSlot(ctx, appt.ScheduledAt, o.finder.RequiredHeadcount(appt))
	if err != nil {
		return nil, err
	}
	result.SuggestedDate = &suggested
	result.SlotConfidence = found

	alert := o.buildAlert(appt, sample, d, coords, &suggested, false, "weather-engine")
	if err := o.writer.ApplyReassignment(ctx, alert, reprogrammingUpdate(appt.ID, alert, types.ReprogramSourceWeather)); err != nil {
		return nil, err
	}
	result.AlertID = alert.ID
	o.metrics.RecordAlertCreated(ctx, false)

	o.notifyReschedule(ctx, appt, alert)
	return result, nil
}

// EvaluateActiveOnDate evaluates every active appointment scheduled on the
// given civil date. Per-appointment failures are logged and skipped so one
// bad record cannot stall a sweep; the successful results are returned.
func (o *Orchestrator) EvaluateActiveOnDate(ctx context.Context, date time.Time) ([]*types.EvaluationResult, error) {
	appts, err := o.appointments.ListActiveOnDate(ctx, types.CivilDate(date), types.ActiveAppointmentStatuses)
	if err != nil {
		return nil, err
	}

	results := make([]*types.EvaluationResult, 0, len(appts))
	for _, appt := range appts {
		result, err := o.EvaluateAppointment(ctx, appt.ID, EvaluateOptions{})
		if err != nil {
			o.logger.ErrorContext(ctx, "appointment evaluation failed",
				"appointment_id", appt.ID,
				"error", err,
			)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// SimulateRequest describes a synthetic weather alert.
type SimulateRequest struct {
	// AlertDate defaults to the appointment's scheduled date. Past dates are
	// rejected.
	AlertDate *time.Time
	// PrecipitationMM defaults to the configured simulated precipitation.
	PrecipitationMM *decimal.Decimal
	// Message overrides the generated decision reason on the alert.
	Message string
	// TriggeredBy identifies the requester, defaulting to "simulation".
	TriggeredBy string
}

// SimulateAlert synthesizes a forecast sample (probability fixed at 100,
// simulated source), persists it, and runs the same decision and
// reassignment pipeline as a live evaluation. The appointment's service must
// allow weather rescheduling; the alert date must not be in the past.
//
// The alert row is created even when the synthetic precipitation does not
// trigger a reassign decision, so operators can see the outcome of a dry-run;
// the appointment is mutated only on a reassign.
func (o *Orchestrator) SimulateAlert(ctx context.Context, appointmentID string, req SimulateRequest) (*types.RescheduleAlert, error) {
	appt, err := o.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !appt.Service.WeatherReschedulable {
		return nil, types.NewAppError(types.ErrCodeServiceNotReprogrammable,
			fmt.Sprintf("service %q does not allow weather rescheduling", appt.Service.Name), nil)
	}

	now := o.clock.Now()
	alertDate := types.CivilDate(appt.ScheduledAt)
	if req.AlertDate != nil {
		alertDate = types.CivilDate(*req.AlertDate)
	}
	if alertDate.Before(types.CivilDate(now)) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidAlertDate,
			fmt.Sprintf("alert date %s is in the past", alertDate.Format("2006-01-02")), nil)
	}

	precipitation := o.cfg.SimulatedPrecipitationMM
	if req.PrecipitationMM != nil {
		precipitation = *req.PrecipitationMM
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "simulation"
	}

	coords := o.resolver.ResolveForAppointment(ctx, appt, nil)

	probability := 100
	sample := &types.ForecastSample{
		Date:              alertDate,
		Lat:               coords.Lat,
		Lon:               coords.Lon,
		Source:            types.SourceSimulated,
		PrecipitationMM:   precipitation,
		PrecipitationProb: &probability,
		Summary:           "simulated precipitation",
		RawPayload: types.RawPayload{
			Provider: string(types.SourceSimulated),
		},
	}
	if err := o.forecasts.RecordSimulated(ctx, sample); err != nil {
		return nil, err
	}

	d := o.engine.Evaluate(sample)
	o.metrics.RecordEvaluation(ctx, d.Trigger, true)
	if req.Message != "" {
		d.Reason = req.Message
	}

	if !d.ShouldReassign {
		alert := o.buildAlert(appt, sample, d, coords, nil, true, req.TriggeredBy)
		if err := o.alerts.Create(ctx, alert); err != nil {
			return nil, err
		}
		o.metrics.RecordAlertCreated(ctx, true)
		return alert, nil
	}

	suggested, _, err := o.finder.NextWeatherSlot(ctx, appt.ScheduledAt, o.finder.RequiredHeadcount(appt))
	if err != nil {
		return nil, err
	}

	alert := o.buildAlert(appt, sample, d, coords, &suggested, true, req.TriggeredBy)
	if err := o.writer.ApplyReassignment(ctx, alert, reprogrammingUpdate(appt.ID, alert, types.ReprogramSourceSimulation)); err != nil {
		return nil, err
	}
	o.metrics.RecordAlertCreated(ctx, true)

	o.notifyReschedule(ctx, appt, alert)
	return alert, nil
}

// ResolveAlert marks a pending or acknowledged alert as resolved and sends
// the dismissal notice. Resolving twice is a precondition failure.
func (o *Orchestrator) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (*types.RescheduleAlert, error) {
	alert, err := o.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status == types.AlertStatusResolved {
		return nil, types.NewAppError(types.ErrCodeAlertAlreadyResolved,
			fmt.Sprintf("alert %s is already resolved", alertID), nil)
	}

	resolved, err := o.alerts.Resolve(ctx, alertID, resolvedBy)
	if err != nil {
		return nil, err
	}

	if err := o.notifier.NotifyAlertDismissed(ctx, resolved, resolvedBy); err != nil {
		// Best effort: the alert is resolved regardless.
		o.logger.WarnContext(ctx, "alert dismissal notification failed",
			"alert_id", resolved.ID,
			"error", err,
		)
	}
	return resolved, nil
}

// findDuplicate returns an open alert created within the dedupe window, or
// nil when deduplication is disabled or no match exists.
func (o *Orchestrator) findDuplicate(ctx context.Context, appointmentID string, alertDate time.Time) (*types.RescheduleAlert, error) {
	if o.cfg.DedupeWindow <= 0 {
		return nil, nil
	}
	return o.alerts.FindOpenForAppointment(ctx, appointmentID, alertDate, o.clock.Now().Add(-o.cfg.DedupeWindow))
}

// notifyReschedule sends the reschedule notice. Failures are logged and
// intentionally discarded: the alert and appointment mutation are already
// committed and must not be rolled back by a delivery problem.
func (o *Orchestrator) notifyReschedule(ctx context.Context, appt *types.Appointment, alert *types.RescheduleAlert) {
	if err := o.notifier.NotifyWeatherReschedule(ctx, appt, alert); err != nil {
		o.logger.WarnContext(ctx, "reschedule notification failed",
			"appointment_id", appt.ID,
			"alert_id", alert.ID,
			"error", err,
		)
	}
}

func (o *Orchestrator) buildResult(appointmentID string, sample *types.ForecastSample, d types.Decision, coords types.Coordinates) *types.EvaluationResult {
	return &types.EvaluationResult{
		AppointmentID:     appointmentID,
		RainExpected:      d.ShouldReassign,
		Trigger:           d.Trigger,
		Reason:            d.Reason,
		PrecipitationMM:   sample.PrecipitationMM,
		PrecipitationProb: sample.PrecipitationProb,
		WeatherCode:       sample.WeatherCode,
		Summary:           sample.Summary,
		Coordinates:       coords,
		Simulated:         sample.Source == types.SourceSimulated,
		EvaluatedAt:       o.clock.Now(),
	}
}

func (o *Orchestrator) buildAlert(appt *types.Appointment, sample *types.ForecastSample, d types.Decision, coords types.Coordinates, suggested *time.Time, simulated bool, triggeredBy string) *types.RescheduleAlert {
	now := o.clock.Now()
	appointmentID := appt.ID
	alert := &types.RescheduleAlert{
		ID:                    uuid.NewString(),
		AppointmentID:         &appointmentID,
		AlertDate:             sample.Date,
		Lat:                   coords.Lat,
		Lon:                   coords.Lon,
		PrecipitationMM:       sample.PrecipitationMM,
		ThresholdMM:           o.engine.Thresholds().ReassignMM,
		PrecipitationProb:     sample.PrecipitationProb,
		Simulated:             simulated,
		RequiresReprogramming: d.ShouldReassign,
		Reason:                d.Reason,
		Trigger:               d.Trigger,
		Status:                types.AlertStatusPending,
		TriggeredBy:           triggeredBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if sample.ID != 0 {
		sampleID := sample.ID
		alert.SampleID = &sampleID
	}
	alert.Payload = types.AlertPayload{
		Trigger:           d.Trigger,
		Reason:            d.Reason,
		PrecipitationMM:   sample.PrecipitationMM,
		ThresholdMM:       alert.ThresholdMM,
		PrecipitationProb: sample.PrecipitationProb,
		WeatherCode:       d.WeatherCode,
		Source:            sample.Source,
		SuggestedDate:     suggested,
		Coordinates:       coords,
		EvaluatedAt:       now,
	}
	return alert
}

// reprogrammingUpdate derives the atomic appointment mutation paired with an
// alert insert.
func reprogrammingUpdate(appointmentID string, alert *types.RescheduleAlert, source types.ReprogramSource) types.ReprogrammingUpdate {
	payload := alert.Payload
	return types.ReprogrammingUpdate{
		AppointmentID:   appointmentID,
		Required:        true,
		Reason:          alert.Reason,
		SuggestedDate:   alert.Payload.SuggestedDate,
		Source:          source,
		WeatherAlertID:  &alert.ID,
		PayloadSnapshot: &payload,
	}
}
