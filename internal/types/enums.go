package types

// DecisionTrigger identifies which rule of the weather decision engine fired.
// Exactly one trigger is produced per evaluation.
type DecisionTrigger string

const (
	// TriggerKillSwitch fires when the coded weather condition is in the
	// configured severe-weather set, regardless of precipitation values.
	TriggerKillSwitch DecisionTrigger = "kill_switch"
	// TriggerHeavyRain fires when precipitation and probability both exceed
	// the reassignment thresholds.
	TriggerHeavyRain DecisionTrigger = "heavy_rain"
	// TriggerLightRain fires when precipitation is below the drizzle threshold.
	TriggerLightRain DecisionTrigger = "light_rain"
	// TriggerLowProbability fires when rain is forecast but unlikely.
	TriggerLowProbability DecisionTrigger = "low_probability"
	// TriggerAcceptable is the residual no-action outcome.
	TriggerAcceptable DecisionTrigger = "acceptable"
)

// AlertStatus represents the lifecycle state of a RescheduleAlert.
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// AppointmentStatus represents the scheduling state of an appointment.
// Only confirmed and in-progress appointments consume staff capacity.
type AppointmentStatus string

const (
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
)

// ActiveAppointmentStatuses is the set of statuses that occupy staff on a
// given day for availability counting.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentConfirmed,
	AppointmentInProgress,
}

// AssignmentRole categorizes a staff assignment on an appointment.
type AssignmentRole string

const (
	// RoleOperator assignments are the ones consumed for headcount and
	// availability counting.
	RoleOperator   AssignmentRole = "operator"
	RoleSupervisor AssignmentRole = "supervisor"
)

// ForecastSource tags the provider a forecast sample came from.
type ForecastSource string

const (
	SourceOpenMeteo ForecastSource = "open-meteo"
	SourceSimulated ForecastSource = "simulated"
)

// ReprogramSource tags what initiated an appointment's rescheduling flag.
type ReprogramSource string

const (
	ReprogramSourceWeather    ReprogramSource = "weather"
	ReprogramSourceSimulation ReprogramSource = "weather_simulation"
	ReprogramSourceOperator   ReprogramSource = "operator"
)
