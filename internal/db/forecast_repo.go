package db

import (
	"context"

	"raincheck/internal/types"
)

// ForecastRepository provides data access for the forecast_samples table.
// The table carries a unique constraint on (forecast_date, lat, lon, source);
// Upsert leans on it so a re-fetch updates the existing row in place.
type ForecastRepository struct {
	db DBTX
}

// NewForecastRepository creates a ForecastRepository backed by the given
// database connection (pool or transaction).
func NewForecastRepository(db DBTX) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Upsert inserts the sample or, when a row already exists for the same
// (forecast_date, lat, lon, source) key, updates its mutable fields. The
// sample's ID and timestamps are populated from the resulting row either way.
func (r *ForecastRepository) Upsert(ctx context.Context, sample *types.ForecastSample) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO forecast_samples (
			forecast_date, lat, lon, source,
			precipitation_mm, precipitation_probability, weather_code,
			summary, raw_payload,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			NOW(), NOW()
		)
		ON CONFLICT (forecast_date, lat, lon, source) DO UPDATE SET
			precipitation_mm = EXCLUDED.precipitation_mm,
			precipitation_probability = EXCLUDED.precipitation_probability,
			weather_code = EXCLUDED.weather_code,
			summary = EXCLUDED.summary,
			raw_payload = EXCLUDED.raw_payload,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		sample.Date,
		sample.Lat,
		sample.Lon,
		sample.Source,
		sample.PrecipitationMM,
		sample.PrecipitationProb,
		sample.WeatherCode,
		sample.Summary,
		sample.RawPayload,
	)

	if err := row.Scan(&sample.ID, &sample.CreatedAt, &sample.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert forecast sample", err)
	}
	return nil
}
