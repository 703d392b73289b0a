package reschedule

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/decision"
	"raincheck/internal/forecast"
	"raincheck/internal/geo"
	"raincheck/internal/staffing"
	"raincheck/internal/types"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

type mockAppointmentStore struct {
	appts      map[string]*types.Appointment
	activeList []*types.Appointment
}

func (m *mockAppointmentStore) Get(_ context.Context, id string) (*types.Appointment, error) {
	appt, ok := m.appts[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
	}
	return appt, nil
}

func (m *mockAppointmentStore) SaveReprogramming(_ context.Context, _ types.ReprogrammingUpdate) error {
	return nil
}

func (m *mockAppointmentStore) ListActiveOnDate(_ context.Context, _ time.Time, _ []types.AppointmentStatus) ([]*types.Appointment, error) {
	return m.activeList, nil
}

type mockAlertStore struct {
	created      []*types.RescheduleAlert
	alerts       map[string]*types.RescheduleAlert
	openAlert    *types.RescheduleAlert
	lastSince    time.Time
	resolveCalls int
}

func (m *mockAlertStore) Create(_ context.Context, alert *types.RescheduleAlert) error {
	m.created = append(m.created, alert)
	return nil
}

func (m *mockAlertStore) Get(_ context.Context, id string) (*types.RescheduleAlert, error) {
	alert, ok := m.alerts[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return alert, nil
}

func (m *mockAlertStore) FindOpenForAppointment(_ context.Context, _ string, _, since time.Time) (*types.RescheduleAlert, error) {
	m.lastSince = since
	return m.openAlert, nil
}

func (m *mockAlertStore) Resolve(_ context.Context, id, resolvedBy string) (*types.RescheduleAlert, error) {
	m.resolveCalls++
	alert, ok := m.alerts[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	resolved := *alert
	resolved.Status = types.AlertStatusResolved
	resolved.ResolvedBy = &resolvedBy
	return &resolved, nil
}

type appliedReassignment struct {
	alert  *types.RescheduleAlert
	update types.ReprogrammingUpdate
}

type mockWriter struct {
	applied []appliedReassignment
	err     error
}

func (m *mockWriter) ApplyReassignment(_ context.Context, alert *types.RescheduleAlert, update types.ReprogrammingUpdate) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, appliedReassignment{alert: alert, update: update})
	return nil
}

type mockNotifier struct {
	rescheduleCalls int
	dismissCalls    int
	err             error
}

func (m *mockNotifier) NotifyWeatherReschedule(_ context.Context, _ *types.Appointment, _ *types.RescheduleAlert) error {
	m.rescheduleCalls++
	return m.err
}

func (m *mockNotifier) NotifyAlertDismissed(_ context.Context, _ *types.RescheduleAlert, _ string) error {
	m.dismissCalls++
	return m.err
}

type countingMetrics struct {
	evaluations   int
	alertsCreated int
}

func (m *countingMetrics) RecordEvaluation(_ context.Context, _ types.DecisionTrigger, _ bool) {
	m.evaluations++
}

func (m *countingMetrics) RecordAlertCreated(_ context.Context, _ bool) {
	m.alertsCreated++
}

// mockProvider returns one configurable daily sample; the multi-day path is
// unused by the orchestrator.
type mockProvider struct {
	precip string
	prob   *int
	err    error
}

func (m *mockProvider) FetchDaily(_ context.Context, lat, lon float64, date time.Time) (*types.ForecastSample, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &types.ForecastSample{
		Date:              date,
		Lat:               lat,
		Lon:               lon,
		Source:            types.SourceOpenMeteo,
		PrecipitationMM:   decimal.RequireFromString(m.precip),
		PrecipitationProb: m.prob,
	}, nil
}

func (m *mockProvider) FetchMultiDay(_ context.Context, _, _ float64, _ time.Time, _ int) ([]types.DailyForecastSummary, error) {
	return nil, nil
}

type mockSampleStore struct {
	nextID int64
}

func (m *mockSampleStore) Upsert(_ context.Context, sample *types.ForecastSample) error {
	m.nextID++
	sample.ID = m.nextID
	return nil
}

type emptyLocalityStore struct{}

func (emptyLocalityStore) Get(_ context.Context, _ string) (*types.Locality, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundLocality, "locality not found", nil)
}

func (emptyLocalityStore) SaveCoordinates(_ context.Context, _ string, _, _ float64) error {
	return nil
}

type nopGeocoder struct{}

func (nopGeocoder) Lookup(_ context.Context, _, _, _ string) (*types.Coordinates, error) {
	return nil, nil
}

type mockStaffStore struct {
	active []types.StaffCandidate
}

func (m *mockStaffStore) ListActive(_ context.Context) ([]types.StaffCandidate, error) {
	return m.active, nil
}

func (m *mockStaffStore) ListAssignedOnDate(_ context.Context, _ time.Time, _ types.AssignmentRole) ([]string, error) {
	return nil, nil
}

type fixture struct {
	appointments *mockAppointmentStore
	alerts       *mockAlertStore
	writer       *mockWriter
	notifier     *mockNotifier
	metrics      *countingMetrics
	provider     *mockProvider
	clock        *mockClock
	orch         *Orchestrator
}

// Fixed evaluation time two days before the appointment so simulated alert
// dates default into the future.
var (
	fixedNow    = time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	scheduledAt = time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
)

func testAppointment() *types.Appointment {
	return &types.Appointment{
		ID:          "apt_1",
		ScheduledAt: scheduledAt,
		Status:      types.AppointmentConfirmed,
		Service:     types.ServiceDefinition{ID: "svc_1", Name: "garden maintenance", WeatherReschedulable: true},
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		appointments: &mockAppointmentStore{appts: map[string]*types.Appointment{"apt_1": testAppointment()}},
		alerts:       &mockAlertStore{alerts: map[string]*types.RescheduleAlert{}},
		writer:       &mockWriter{},
		notifier:     &mockNotifier{},
		metrics:      &countingMetrics{},
		provider:     &mockProvider{precip: "5.0", prob: intPtr(80)},
		clock:        &mockClock{now: fixedNow},
	}

	resolver := geo.NewResolver(emptyLocalityStore{}, nopGeocoder{}, f.clock, geo.Config{
		DefaultLat:  -34.9215,
		DefaultLon:  -57.9545,
		DefaultName: "La Plata",
	}, nil)
	forecasts := forecast.NewService(f.provider, &mockSampleStore{}, f.clock, time.Hour, nil, nil)
	finder := staffing.NewFinder(&mockStaffStore{active: staffPool(3)}, staffing.FinderConfig{}, nil)

	f.orch = NewOrchestrator(Deps{
		Appointments: f.appointments,
		Alerts:       f.alerts,
		Writer:       f.writer,
		Forecasts:    forecasts,
		Resolver:     resolver,
		Engine:       decision.NewEngine(decision.DefaultThresholds()),
		Finder:       finder,
		Notifier:     f.notifier,
		Metrics:      f.metrics,
		Clock:        f.clock,
	}, cfg)
	return f
}

func staffPool(n int) []types.StaffCandidate {
	pool := make([]types.StaffCandidate, n)
	for i := range pool {
		pool[i] = types.StaffCandidate{ID: string(rune('a' + i))}
	}
	return pool
}

func intPtr(v int) *int { return &v }

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireErrCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestEvaluateAppointment_ReassignAppliesAlertAndUpdateTogether(t *testing.T) {
	f := newFixture(t, Config{})

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	require.NoError(t, err)

	assert.True(t, result.RainExpected)
	assert.Equal(t, types.TriggerHeavyRain, result.Trigger)
	assert.NotEmpty(t, result.AlertID)
	assert.True(t, result.SlotConfidence)
	// Lead time pushes the suggested slot a week past the scheduled date.
	require.NotNil(t, result.SuggestedDate)
	assert.Equal(t, time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC), *result.SuggestedDate)

	require.Len(t, f.writer.applied, 1)
	applied := f.writer.applied[0]
	assert.Equal(t, result.AlertID, applied.alert.ID)
	assert.True(t, applied.alert.RequiresReprogramming)
	assert.Equal(t, types.AlertStatusPending, applied.alert.Status)
	assert.False(t, applied.alert.Simulated)

	assert.Equal(t, "apt_1", applied.update.AppointmentID)
	assert.True(t, applied.update.Required)
	assert.Equal(t, types.ReprogramSourceWeather, applied.update.Source)
	require.NotNil(t, applied.update.WeatherAlertID)
	assert.Equal(t, applied.alert.ID, *applied.update.WeatherAlertID)
	require.NotNil(t, applied.update.PayloadSnapshot)
	assert.Equal(t, applied.alert.Payload, *applied.update.PayloadSnapshot)

	// The live path persists only through the atomic writer.
	assert.Empty(t, f.alerts.created)
	assert.Equal(t, 1, f.notifier.rescheduleCalls)
	assert.Equal(t, 1, f.metrics.evaluations)
	assert.Equal(t, 1, f.metrics.alertsCreated)
}

func TestEvaluateAppointment_KeepDecisionPersistsNothing(t *testing.T) {
	f := newFixture(t, Config{})
	f.provider.precip = "0.3"

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	require.NoError(t, err)

	assert.False(t, result.RainExpected)
	assert.Equal(t, types.TriggerLightRain, result.Trigger)
	assert.Empty(t, result.AlertID)
	assert.Empty(t, f.writer.applied)
	assert.Zero(t, f.notifier.rescheduleCalls)
	assert.Equal(t, 1, f.metrics.evaluations)
	assert.Zero(t, f.metrics.alertsCreated)
}

func TestEvaluateAppointment_SkipAlertCreationReportsOnly(t *testing.T) {
	f := newFixture(t, Config{})

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{SkipAlertCreation: true})
	require.NoError(t, err)

	assert.True(t, result.RainExpected)
	assert.Empty(t, result.AlertID)
	assert.Empty(t, f.writer.applied)
	assert.Zero(t, f.notifier.rescheduleCalls)
}

func TestEvaluateAppointment_NonReschedulableServiceSuppressesAlert(t *testing.T) {
	f := newFixture(t, Config{})
	f.appointments.appts["apt_1"].Service.WeatherReschedulable = false

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	require.NoError(t, err)

	assert.True(t, result.RainExpected, "the decision is still reported to the caller")
	assert.Empty(t, result.AlertID)
	assert.Empty(t, f.writer.applied)
}

func TestEvaluateAppointment_WriterFailurePropagates(t *testing.T) {
	f := newFixture(t, Config{})
	f.writer.err = types.NewAppError(types.ErrCodeInternalDB, "tx aborted", nil)

	_, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	requireErrCode(t, err, types.ErrCodeInternalDB)
	assert.Zero(t, f.notifier.rescheduleCalls, "no notice when nothing was committed")
}

func TestEvaluateAppointment_NotificationFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.notifier.err = types.NewAppError(types.ErrCodeUpstreamUnavailable, "sqs unreachable", nil)

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AlertID)
	require.Len(t, f.writer.applied, 1)
}

func TestEvaluateAppointment_DedupeWindowReusesOpenAlert(t *testing.T) {
	f := newFixture(t, Config{DedupeWindow: 6 * time.Hour})
	existingDate := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	f.alerts.openAlert = &types.RescheduleAlert{
		ID:      "alr_open",
		Status:  types.AlertStatusPending,
		Payload: types.AlertPayload{SuggestedDate: &existingDate},
	}

	result, err := f.orch.EvaluateAppointment(context.Background(), "apt_1", EvaluateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "alr_open", result.AlertID)
	require.NotNil(t, result.SuggestedDate)
	assert.Equal(t, existingDate, *result.SuggestedDate)
	assert.True(t, result.SlotConfidence)
	assert.Empty(t, f.writer.applied, "no second alert within the window")
	assert.Equal(t, fixedNow.Add(-6*time.Hour), f.alerts.lastSince)
}

func TestEvaluateActiveOnDate_SkipsFailedAppointments(t *testing.T) {
	f := newFixture(t, Config{})
	missing := testAppointment()
	missing.ID = "apt_gone"
	f.appointments.activeList = []*types.Appointment{missing, testAppointment()}

	results, err := f.orch.EvaluateActiveOnDate(context.Background(), scheduledAt)
	require.NoError(t, err)
	require.Len(t, results, 1, "the unloadable appointment is skipped, not fatal")
	assert.Equal(t, "apt_1", results[0].AppointmentID)
}

func TestSimulateAlert_Defaults(t *testing.T) {
	f := newFixture(t, Config{})

	alert, err := f.orch.SimulateAlert(context.Background(), "apt_1", SimulateRequest{})
	require.NoError(t, err)

	assert.True(t, alert.Simulated)
	assert.True(t, alert.RequiresReprogramming)
	assert.Equal(t, "simulation", alert.TriggeredBy)
	assert.True(t, alert.PrecipitationMM.Equal(decimal.RequireFromString("10.0")))
	require.NotNil(t, alert.PrecipitationProb)
	assert.Equal(t, 100, *alert.PrecipitationProb)
	assert.Equal(t, types.SourceSimulated, alert.Payload.Source)
	assert.Equal(t, types.CivilDate(scheduledAt), alert.AlertDate)
	require.NotNil(t, alert.SampleID, "the synthetic sample is persisted first")

	require.Len(t, f.writer.applied, 1)
	assert.Equal(t, types.ReprogramSourceSimulation, f.writer.applied[0].update.Source)
	assert.Equal(t, 1, f.notifier.rescheduleCalls)
}

func TestSimulateAlert_MessageOverridesReason(t *testing.T) {
	f := newFixture(t, Config{})

	alert, err := f.orch.SimulateAlert(context.Background(), "apt_1", SimulateRequest{
		Message:     "storm drill for the ops team",
		TriggeredBy: "ops@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "storm drill for the ops team", alert.Reason)
	assert.Equal(t, "ops@example.com", alert.TriggeredBy)
}

func TestSimulateAlert_KeepDecisionStillRecordsAlert(t *testing.T) {
	f := newFixture(t, Config{})

	alert, err := f.orch.SimulateAlert(context.Background(), "apt_1", SimulateRequest{
		PrecipitationMM: decimalPtr("0.2"),
	})
	require.NoError(t, err)

	assert.False(t, alert.RequiresReprogramming)
	assert.Equal(t, types.TriggerLightRain, alert.Trigger)
	require.Len(t, f.alerts.created, 1, "the dry-run outcome is recorded")
	assert.Empty(t, f.writer.applied, "the appointment is never mutated on a keep")
	assert.Zero(t, f.notifier.rescheduleCalls)
}

func TestSimulateAlert_PastDateRejected(t *testing.T) {
	f := newFixture(t, Config{})
	yesterday := fixedNow.AddDate(0, 0, -1)

	_, err := f.orch.SimulateAlert(context.Background(), "apt_1", SimulateRequest{AlertDate: &yesterday})
	requireErrCode(t, err, types.ErrCodeValidationInvalidAlertDate)
}

func TestSimulateAlert_NonReschedulableServiceFails(t *testing.T) {
	f := newFixture(t, Config{})
	f.appointments.appts["apt_1"].Service.WeatherReschedulable = false

	_, err := f.orch.SimulateAlert(context.Background(), "apt_1", SimulateRequest{})
	requireErrCode(t, err, types.ErrCodeServiceNotReprogrammable)
}

func TestResolveAlert(t *testing.T) {
	f := newFixture(t, Config{})
	f.alerts.alerts["alr_1"] = &types.RescheduleAlert{ID: "alr_1", Status: types.AlertStatusPending}

	resolved, err := f.orch.ResolveAlert(context.Background(), "alr_1", "dispatcher")
	require.NoError(t, err)

	assert.Equal(t, types.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "dispatcher", *resolved.ResolvedBy)
	assert.Equal(t, 1, f.notifier.dismissCalls)
}

func TestResolveAlert_AlreadyResolved(t *testing.T) {
	f := newFixture(t, Config{})
	f.alerts.alerts["alr_1"] = &types.RescheduleAlert{ID: "alr_1", Status: types.AlertStatusResolved}

	_, err := f.orch.ResolveAlert(context.Background(), "alr_1", "dispatcher")
	requireErrCode(t, err, types.ErrCodeAlertAlreadyResolved)
	assert.Zero(t, f.alerts.resolveCalls)
}

func TestResolveAlert_NotificationFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.alerts.alerts["alr_1"] = &types.RescheduleAlert{ID: "alr_1", Status: types.AlertStatusAcknowledged}
	f.notifier.err = types.NewAppError(types.ErrCodeUpstreamUnavailable, "sqs unreachable", nil)

	resolved, err := f.orch.ResolveAlert(context.Background(), "alr_1", "dispatcher")
	require.NoError(t, err)
	assert.Equal(t, types.AlertStatusResolved, resolved.Status)
}
