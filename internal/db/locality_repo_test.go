package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

// Note: mockDBTX, mockRow, and requireDBErrCode are defined in
// alert_repo_test.go.

func TestLocalityRepository_Get(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocalityRepository(db)
	ctx := context.Background()

	lat := -34.9215
	lon := -57.9545
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "loc_001"
			*dest[1].(*string) = "La Plata"
			*dest[2].(*string) = "Buenos Aires"
			*dest[3].(*string) = "Argentina"
			*dest[4].(**float64) = &lat
			*dest[5].(**float64) = &lon
			return nil
		}})

	loc, err := repo.Get(ctx, "loc_001")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "La Plata", loc.Name)
	assert.Equal(t, "Buenos Aires", loc.Province)
	require.NotNil(t, loc.Lat)
	assert.Equal(t, -34.9215, *loc.Lat)
	db.AssertExpectations(t)
}

func TestLocalityRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocalityRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "loc_missing")
	requireDBErrCode(t, err, types.ErrCodeNotFoundLocality)
}

func TestLocalityRepository_SaveCoordinates(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocalityRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.SaveCoordinates(ctx, "loc_001", -34.9215, -57.9545)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestLocalityRepository_SaveCoordinates_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocalityRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.SaveCoordinates(ctx, "loc_missing", -34.9215, -57.9545)
	requireDBErrCode(t, err, types.ErrCodeNotFoundLocality)
}

func TestLocalityRepository_SaveCoordinates_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocalityRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.SaveCoordinates(ctx, "loc_001", -34.9215, -57.9545)
	requireDBErrCode(t, err, types.ErrCodeInternalDB)
}
