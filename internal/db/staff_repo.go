package db

import (
	"context"
	"time"

	"raincheck/internal/types"
)

// StaffRepository provides read-only access to the staff pool. Score fields
// are maintained by the evaluation subsystem; this engine only ranks and
// counts.
type StaffRepository struct {
	db DBTX
}

// NewStaffRepository creates a StaffRepository backed by the given database
// connection (pool or transaction).
func NewStaffRepository(db DBTX) *StaffRepository {
	return &StaffRepository{db: db}
}

// ListActive returns every active staff member with their evaluation scores.
func (r *StaffRepository) ListActive(ctx context.Context) ([]types.StaffCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, average_score, evaluation_count, accumulated_score, last_scored_at
		 FROM staff
		 WHERE active
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active staff", err)
	}
	defer rows.Close()

	var results []types.StaffCandidate
	for rows.Next() {
		var c types.StaffCandidate
		if err := rows.Scan(&c.ID, &c.Name, &c.AverageScore, &c.EvaluationCount, &c.AccumulatedScore, &c.LastScoredAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan staff row", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating staff rows", err)
	}
	return results, nil
}

// ListAssignedOnDate returns the IDs of staff holding an assignment in the
// given role on any active appointment of that civil date.
func (r *StaffRepository) ListAssignedOnDate(ctx context.Context, date time.Time, role types.AssignmentRole) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT aa.staff_id
		 FROM appointment_assignments aa
		 JOIN appointments ap ON ap.id = aa.appointment_id
		 WHERE ap.scheduled_at::date = $1::date
		   AND ap.status = ANY($2)
		   AND aa.role = $3`,
		date, types.ActiveAppointmentStatuses, role,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list assigned staff", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan assigned staff row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating assigned staff rows", err)
	}
	return ids, nil
}
