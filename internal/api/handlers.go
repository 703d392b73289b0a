package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"raincheck/internal/reschedule"
	"raincheck/internal/staffing"
	"raincheck/internal/types"
	"raincheck/internal/workhours"
)

// EvaluationService defines the orchestrator contract the handlers depend on.
// Defined locally to avoid tight coupling per the handler injection pattern.
type EvaluationService interface {
	EvaluateAppointment(ctx context.Context, appointmentID string, opts reschedule.EvaluateOptions) (*types.EvaluationResult, error)
	SimulateAlert(ctx context.Context, appointmentID string, req reschedule.SimulateRequest) (*types.RescheduleAlert, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy string) (*types.RescheduleAlert, error)
}

// ForecastService defines the forecast read contract the handlers depend on.
type ForecastService interface {
	GetMultiDayForecast(ctx context.Context, lat, lon float64, startDate time.Time, days int) ([]types.DailyForecastSummary, error)
}

// Handler maps HTTP requests onto the domain services.
type Handler struct {
	evaluations EvaluationService
	forecasts   ForecastService
	staff       types.StaffStore
	scheduler   *workhours.Scheduler
	clock       types.Clock
	logger      *slog.Logger
}

// NewHandler creates a Handler with the provided dependencies.
func NewHandler(evaluations EvaluationService, forecasts ForecastService, staff types.StaffStore, scheduler *workhours.Scheduler, clock types.Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		evaluations: evaluations,
		forecasts:   forecasts,
		staff:       staff,
		scheduler:   scheduler,
		clock:       clock,
		logger:      logger,
	}
}

// RegisterRoutes mounts the endpoints onto the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/appointments/{id}/weather-evaluation", h.HandleEvaluate)
	r.Post("/appointments/{id}/weather-simulation", h.HandleSimulate)
	r.Post("/alerts/{id}/resolve", h.HandleResolveAlert)
	r.Get("/forecasts", h.HandleForecast)
	r.Get("/staffing/ranking", h.HandleStaffRanking)
	r.Post("/jobs/schedule", h.HandleJobSchedule)
}

// evaluateRequest is the body of POST /v1/appointments/{id}/weather-evaluation.
// Explicit coordinates override the appointment's locality chain; both must be
// given together.
type evaluateRequest struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	SkipAlert bool     `json:"skip_alert,omitempty"`
}

// HandleEvaluate handles POST /v1/appointments/{id}/weather-evaluation.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "id")

	var req evaluateRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			Error(w, r, err)
			return
		}
	}

	opts := reschedule.EvaluateOptions{SkipAlertCreation: req.SkipAlert}
	if req.Lat != nil || req.Lon != nil {
		coords, err := parseCoordinates(req.Lat, req.Lon)
		if err != nil {
			Error(w, r, err)
			return
		}
		opts.ExplicitCoords = coords
	}

	result, err := h.evaluations.EvaluateAppointment(r.Context(), appointmentID, opts)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// simulateRequest is the body of POST /v1/appointments/{id}/weather-simulation.
type simulateRequest struct {
	AlertDate       string           `json:"alert_date,omitempty"`
	PrecipitationMM *decimal.Decimal `json:"precipitation_mm,omitempty"`
	Message         string           `json:"message,omitempty"`
	TriggeredBy     string           `json:"triggered_by,omitempty"`
}

// HandleSimulate handles POST /v1/appointments/{id}/weather-simulation.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "id")

	var req simulateRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			Error(w, r, err)
			return
		}
	}

	simReq := reschedule.SimulateRequest{
		PrecipitationMM: req.PrecipitationMM,
		Message:         req.Message,
		TriggeredBy:     req.TriggeredBy,
	}
	if req.AlertDate != "" {
		parsed, err := time.Parse("2006-01-02", req.AlertDate)
		if err != nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidAlertDate,
				"alert_date must be formatted YYYY-MM-DD",
				err,
			))
			return
		}
		simReq.AlertDate = &parsed
	}

	alert, err := h.evaluations.SimulateAlert(r.Context(), appointmentID, simReq)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusCreated, APIResponse{Data: alert})
}

// resolveRequest is the body of POST /v1/alerts/{id}/resolve.
type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// HandleResolveAlert handles POST /v1/alerts/{id}/resolve.
func (h *Handler) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	var req resolveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if req.ResolvedBy == "" {
		Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"resolved_by is required",
			nil,
		))
		return
	}

	alert, err := h.evaluations.ResolveAlert(r.Context(), alertID, req.ResolvedBy)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: alert})
}

// forecastResponse is the payload of GET /v1/forecasts.
type forecastResponse struct {
	Lat  float64                      `json:"lat"`
	Lon  float64                      `json:"lon"`
	Days []types.DailyForecastSummary `json:"days"`
}

// HandleForecast handles GET /v1/forecasts?lat=&lon=&date=&days=. The start
// date defaults to today and days to the provider's maximum horizon.
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	coords, err := parseCoordinateParams(q.Get("lat"), q.Get("lon"))
	if err != nil {
		Error(w, r, err)
		return
	}

	start := types.CivilDate(h.clock.Now())
	if dateStr := q.Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"date must be formatted YYYY-MM-DD",
				err,
			))
			return
		}
		start = parsed
	}

	days := 7
	if daysStr := q.Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDuration,
				"days must be a positive integer",
				err,
			))
			return
		}
		days = parsed
	}

	summaries, err := h.forecasts.GetMultiDayForecast(r.Context(), coords.Lat, coords.Lon, start, days)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: forecastResponse{
		Lat:  coords.Lat,
		Lon:  coords.Lon,
		Days: summaries,
	}})
}

// staffRankingResponse is the payload of GET /v1/staffing/ranking.
type staffRankingResponse struct {
	Date    string               `json:"date"`
	Ranking []types.StaffRanking `json:"ranking"`
}

// HandleStaffRanking handles GET /v1/staffing/ranking?date=YYYY-MM-DD. The
// date defaults to today; it labels the response so callers can pair the
// ranking with an assignment day.
func (h *Handler) HandleStaffRanking(w http.ResponseWriter, r *http.Request) {
	date := types.CivilDate(h.clock.Now())
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"date must be formatted YYYY-MM-DD",
				err,
			))
			return
		}
		date = parsed
	}

	candidates, err := h.staff.ListActive(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: staffRankingResponse{
		Date:    date.Format("2006-01-02"),
		Ranking: staffing.RankWithPositions(candidates),
	}})
}

// jobScheduleRequest is the body of POST /v1/jobs/schedule.
type jobScheduleRequest struct {
	Start           string `json:"start,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// HandleJobSchedule handles POST /v1/jobs/schedule: it maps a labor duration
// onto the working windows, starting at the given instant or now.
func (h *Handler) HandleJobSchedule(w http.ResponseWriter, r *http.Request) {
	var req jobScheduleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if req.DurationMinutes < 0 {
		Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidDuration,
			"duration_minutes must not be negative",
			nil,
		))
		return
	}

	start := h.clock.Now()
	if req.Start != "" {
		parsed, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"start must be a valid RFC3339 timestamp",
				err,
			))
			return
		}
		start = parsed.UTC()
	}

	result := h.scheduler.ComputeSchedule(start, time.Duration(req.DurationMinutes)*time.Minute)
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// parseCoordinateParams validates coordinates supplied as query parameters.
func parseCoordinateParams(latStr, lonStr string) (*types.Coordinates, error) {
	if latStr == "" || lonStr == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat and lon query parameters are required",
			nil,
		)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be a number",
			err,
		)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be a number",
			err,
		)
	}
	return parseCoordinates(&lat, &lon)
}

// parseCoordinates validates an explicit coordinate override.
func parseCoordinates(lat, lon *float64) (*types.Coordinates, error) {
	if lat == nil || lon == nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat and lon must be provided together",
			nil,
		)
	}
	if *lat < -90 || *lat > 90 {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be between -90 and 90",
			nil,
		)
	}
	if *lon < -180 || *lon > 180 {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be between -180 and 180",
			nil,
		)
	}
	return &types.Coordinates{Lat: *lat, Lon: *lon}, nil
}
