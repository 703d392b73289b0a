package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"raincheck/internal/types"
)

// AppointmentRepository provides data access for the appointments table and
// its assignment rows. Appointments are owned by the wider field-service
// system; this engine reads them and writes only the reprogramming block.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates an AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const apptColumns = `ap.id, ap.scheduled_at, ap.status,
	ap.locality_id, ap.customer_locality_id,
	s.id, s.name, s.weather_reschedulable,
	ap.requires_reprogramming, ap.reprogramming_reason,
	ap.suggested_reprogram_date, ap.confirmed_reprogram_date,
	ap.reprogramming_source, ap.weather_alert_id, ap.weather_payload_snapshot`

func scanAppointment(row pgx.Row) (*types.Appointment, error) {
	var appt types.Appointment
	var (
		reason  *string
		source  *string
		payload *types.AlertPayload
	)

	err := row.Scan(
		&appt.ID,
		&appt.ScheduledAt,
		&appt.Status,
		&appt.LocalityID,
		&appt.CustomerLocalityID,
		&appt.Service.ID,
		&appt.Service.Name,
		&appt.Service.WeatherReschedulable,
		&appt.Reprogramming.Required,
		&reason,
		&appt.Reprogramming.SuggestedDate,
		&appt.Reprogramming.ConfirmedDate,
		&source,
		&appt.Reprogramming.WeatherAlertID,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	if reason != nil {
		appt.Reprogramming.Reason = *reason
	}
	if source != nil {
		appt.Reprogramming.Source = types.ReprogramSource(*source)
	}
	appt.Reprogramming.PayloadSnapshot = payload

	return &appt, nil
}

// Get retrieves an appointment with its service definition and staff
// assignments hydrated. Returns ErrCodeNotFoundAppointment if no row exists.
func (r *AppointmentRepository) Get(ctx context.Context, id string) (*types.Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+apptColumns+`
		 FROM appointments ap
		 JOIN services s ON s.id = ap.service_id
		 WHERE ap.id = $1`,
		id,
	)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve appointment", err)
	}

	if err := r.hydrateAssignments(ctx, []*types.Appointment{appt}); err != nil {
		return nil, err
	}
	return appt, nil
}

// SaveReprogramming applies the full reprogramming block in a single UPDATE.
// All fields are written together so the appointment can never hold a partial
// rescheduling state.
func (r *AppointmentRepository) SaveReprogramming(ctx context.Context, update types.ReprogrammingUpdate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET
			requires_reprogramming = $1,
			reprogramming_reason = $2,
			suggested_reprogram_date = $3,
			reprogramming_source = $4,
			weather_alert_id = $5,
			weather_payload_snapshot = $6,
			updated_at = NOW()
		 WHERE id = $7`,
		update.Required,
		nilIfEmpty(update.Reason),
		update.SuggestedDate,
		nilIfEmpty(string(update.Source)),
		update.WeatherAlertID,
		update.PayloadSnapshot,
		update.AppointmentID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save appointment reprogramming", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
	}
	return nil
}

// ListActiveOnDate returns appointments scheduled on the given civil date in
// any of the provided statuses, with assignments hydrated.
func (r *AppointmentRepository) ListActiveOnDate(ctx context.Context, date time.Time, statuses []types.AppointmentStatus) ([]*types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+apptColumns+`
		 FROM appointments ap
		 JOIN services s ON s.id = ap.service_id
		 WHERE ap.scheduled_at::date = $1::date
		   AND ap.status = ANY($2)
		 ORDER BY ap.scheduled_at, ap.id`,
		date, statuses,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list appointments", err)
	}
	defer rows.Close()

	var results []*types.Appointment
	for rows.Next() {
		appt, scanErr := scanAppointment(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment row", scanErr)
		}
		results = append(results, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating appointment rows", err)
	}

	if err := r.hydrateAssignments(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// hydrateAssignments loads the staff assignments for the given appointments
// in one query.
func (r *AppointmentRepository) hydrateAssignments(ctx context.Context, appts []*types.Appointment) error {
	if len(appts) == 0 {
		return nil
	}

	ids := make([]string, len(appts))
	byID := make(map[string]*types.Appointment, len(appts))
	for i, appt := range appts {
		ids[i] = appt.ID
		byID[appt.ID] = appt
	}

	rows, err := r.db.Query(ctx,
		`SELECT appointment_id, staff_id, role
		 FROM appointment_assignments
		 WHERE appointment_id = ANY($1)
		 ORDER BY appointment_id, staff_id`,
		ids,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to load appointment assignments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var appointmentID string
		var assignment types.Assignment
		if err := rows.Scan(&appointmentID, &assignment.StaffID, &assignment.Role); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to scan assignment row", err)
		}
		if appt, ok := byID[appointmentID]; ok {
			appt.Assignments = append(appt.Assignments, assignment)
		}
	}
	if err := rows.Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "error iterating assignment rows", err)
	}
	return nil
}
