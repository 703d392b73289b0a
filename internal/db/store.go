package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"raincheck/internal/types"
)

// txBeginner starts transactions. Satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store bundles the repositories over one connection pool and carries the
// operations that must span more than one of them transactionally.
type Store struct {
	db txBeginner

	Appointments *AppointmentRepository
	Alerts       *AlertRepository
	Forecasts    *ForecastRepository
	Staff        *StaffRepository
	Localities   *LocalityRepository
}

// NewStore creates a Store and its repositories over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		db:           pool,
		Appointments: NewAppointmentRepository(pool),
		Alerts:       NewAlertRepository(pool),
		Forecasts:    NewForecastRepository(pool),
		Staff:        NewStaffRepository(pool),
		Localities:   NewLocalityRepository(pool),
	}
}

// ApplyReassignment inserts the alert and applies the appointment
// reprogramming update inside one transaction. Either both land or neither
// does; an appointment can never point at a missing alert or carry
// requires_reprogramming without its alert row.
func (s *Store) ApplyReassignment(ctx context.Context, alert *types.RescheduleAlert, update types.ReprogrammingUpdate) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := NewAlertRepository(tx).Create(ctx, alert); err != nil {
			return err
		}
		return NewAppointmentRepository(tx).SaveReprogramming(ctx, update)
	})
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok {
			return appErr
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply reassignment transaction", err)
	}
	return nil
}
