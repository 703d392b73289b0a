package types

import (
	"context"
	"time"
)

// Clock abstracts time for deterministic tests of the scheduling logic.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// AppointmentStore is the externally-owned appointment persistence this
// engine consumes. SaveReprogramming must apply the whole update as a single
// write; partial application is a defect.
type AppointmentStore interface {
	Get(ctx context.Context, id string) (*Appointment, error)
	SaveReprogramming(ctx context.Context, update ReprogrammingUpdate) error
	// ListActiveOnDate returns appointments scheduled on the given civil date
	// in any of the provided statuses, with assignments hydrated.
	ListActiveOnDate(ctx context.Context, date time.Time, statuses []AppointmentStatus) ([]*Appointment, error)
}

// StaffStore exposes the staff pool for ranking and availability counting.
type StaffStore interface {
	ListActive(ctx context.Context) ([]StaffCandidate, error)
	// ListAssignedOnDate returns the IDs of staff holding an assignment in the
	// given role on any active appointment of that civil date.
	ListAssignedOnDate(ctx context.Context, date time.Time, role AssignmentRole) ([]string, error)
}

// LocalityStore reads locality records and persists geocoded coordinates
// back onto them for future reuse.
type LocalityStore interface {
	Get(ctx context.Context, id string) (*Locality, error)
	SaveCoordinates(ctx context.Context, id string, lat, lon float64) error
}

// SampleStore persists forecast samples. Upsert is keyed on
// (date, lat, lon, source): an existing row has its mutable fields updated
// and its ID returned, never duplicated.
type SampleStore interface {
	Upsert(ctx context.Context, sample *ForecastSample) error
}

// AlertStore persists reschedule alerts.
type AlertStore interface {
	Create(ctx context.Context, alert *RescheduleAlert) error
	Get(ctx context.Context, id string) (*RescheduleAlert, error)
	// FindOpenForAppointment returns the most recent unresolved alert for the
	// appointment and alert date created at or after since, or nil.
	FindOpenForAppointment(ctx context.Context, appointmentID string, alertDate time.Time, since time.Time) (*RescheduleAlert, error)
	Resolve(ctx context.Context, id, resolvedBy string) (*RescheduleAlert, error)
}

// ReassignmentWriter applies an alert insert and the matching appointment
// reprogramming update as one atomic unit.
type ReassignmentWriter interface {
	ApplyReassignment(ctx context.Context, alert *RescheduleAlert, update ReprogrammingUpdate) error
}

// Notifier delivers outbound notices. Calls are fire-and-forget from the
// engine's perspective: failures are logged by the caller and never roll back
// state mutations.
type Notifier interface {
	NotifyWeatherReschedule(ctx context.Context, appointment *Appointment, alert *RescheduleAlert) error
	NotifyAlertDismissed(ctx context.Context, alert *RescheduleAlert, resolvedBy string) error
}
