package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"raincheck/internal/types"
)

// AlertRepository provides data access for the reschedule_alerts table.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates an AlertRepository backed by the given database
// connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

// alertColumns defines the standard set of columns selected for alert queries.
const alertColumns = `a.id, a.appointment_id, a.sample_id, a.alert_date,
	a.lat, a.lon,
	a.precipitation_mm, a.threshold_mm, a.precipitation_probability,
	a.is_simulated, a.requires_reprogramming, a.reason, a.trigger,
	a.status, a.payload, a.triggered_by,
	a.resolved_by, a.resolved_at, a.created_at, a.updated_at`

// scanAlert scans a single alert row. The columns must match the order
// defined in alertColumns.
func scanAlert(row pgx.Row) (*types.RescheduleAlert, error) {
	var alert types.RescheduleAlert
	err := row.Scan(
		&alert.ID,
		&alert.AppointmentID,
		&alert.SampleID,
		&alert.AlertDate,
		&alert.Lat,
		&alert.Lon,
		&alert.PrecipitationMM,
		&alert.ThresholdMM,
		&alert.PrecipitationProb,
		&alert.Simulated,
		&alert.RequiresReprogramming,
		&alert.Reason,
		&alert.Trigger,
		&alert.Status,
		&alert.Payload,
		&alert.TriggeredBy,
		&alert.ResolvedBy,
		&alert.ResolvedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create inserts a new alert record. The caller must set the ID and all
// decision fields before calling.
func (r *AlertRepository) Create(ctx context.Context, alert *types.RescheduleAlert) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reschedule_alerts (
			id, appointment_id, sample_id, alert_date,
			lat, lon,
			precipitation_mm, threshold_mm, precipitation_probability,
			is_simulated, requires_reprogramming, reason, trigger,
			status, payload, triggered_by,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16,
			COALESCE($17, NOW()), COALESCE($18, NOW())
		)`,
		alert.ID,
		alert.AppointmentID,
		alert.SampleID,
		alert.AlertDate,
		alert.Lat,
		alert.Lon,
		alert.PrecipitationMM,
		alert.ThresholdMM,
		alert.PrecipitationProb,
		alert.Simulated,
		alert.RequiresReprogramming,
		alert.Reason,
		alert.Trigger,
		alert.Status,
		alert.Payload,
		alert.TriggeredBy,
		nilIfZeroTime(alert.CreatedAt),
		nilIfZeroTime(alert.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create reschedule alert", err)
	}
	return nil
}

// Get retrieves an alert by ID. Returns ErrCodeNotFoundAlert if no row exists.
func (r *AlertRepository) Get(ctx context.Context, id string) (*types.RescheduleAlert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+`
		 FROM reschedule_alerts a
		 WHERE a.id = $1`,
		id,
	)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve alert", err)
	}
	return alert, nil
}

// FindOpenForAppointment returns the most recent unresolved alert for the
// appointment and alert date created at or after since, or nil when none
// matches.
func (r *AlertRepository) FindOpenForAppointment(ctx context.Context, appointmentID string, alertDate, since time.Time) (*types.RescheduleAlert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+`
		 FROM reschedule_alerts a
		 WHERE a.appointment_id = $1
		   AND a.alert_date = $2
		   AND a.status != 'resolved'
		   AND a.created_at >= $3
		 ORDER BY a.created_at DESC
		 LIMIT 1`,
		appointmentID, alertDate, since,
	)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to find open alert", err)
	}
	return alert, nil
}

// Resolve marks the alert resolved and records who resolved it. Already
// resolved alerts are not modified and surface as a precondition failure.
func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string) (*types.RescheduleAlert, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE reschedule_alerts a SET
			status = 'resolved',
			resolved_by = $1,
			resolved_at = NOW(),
			updated_at = NOW()
		 WHERE a.id = $2 AND a.status != 'resolved'
		 RETURNING `+alertColumns,
		resolvedBy, id,
	)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either missing or already resolved; disambiguate for the caller.
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, types.NewAppError(types.ErrCodeAlertAlreadyResolved, "alert is already resolved", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve alert", err)
	}
	return alert, nil
}
