package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"raincheck/internal/types"
)

// LocalityRepository provides data access for the localities table.
type LocalityRepository struct {
	db DBTX
}

// NewLocalityRepository creates a LocalityRepository backed by the given
// database connection (pool or transaction).
func NewLocalityRepository(db DBTX) *LocalityRepository {
	return &LocalityRepository{db: db}
}

// Get retrieves a locality by ID. Returns ErrCodeNotFoundLocality if no row
// exists.
func (r *LocalityRepository) Get(ctx context.Context, id string) (*types.Locality, error) {
	var loc types.Locality
	err := r.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(province, ''), COALESCE(country, ''), lat, lon
		 FROM localities
		 WHERE id = $1`,
		id,
	).Scan(&loc.ID, &loc.Name, &loc.Province, &loc.Country, &loc.Lat, &loc.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundLocality, "locality not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve locality", err)
	}
	return &loc, nil
}

// SaveCoordinates persists geocoded coordinates onto the locality record so
// future resolutions skip the geocoder.
func (r *LocalityRepository) SaveCoordinates(ctx context.Context, id string, lat, lon float64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE localities SET lat = $1, lon = $2, updated_at = NOW()
		 WHERE id = $3`,
		lat, lon, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save locality coordinates", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundLocality, "locality not found", nil)
	}
	return nil
}
