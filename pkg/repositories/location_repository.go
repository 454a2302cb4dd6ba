// Package repositories contains the PostgreSQL data access layer.
package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/database"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

// LocationRepository provides read access to the registered locations.
// Locations are seeded by migration and never written at runtime.
type LocationRepository interface {
	GetByName(ctx context.Context, name string) (*models.Location, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	List(ctx context.Context) ([]*models.Location, error)
}

type locationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *database.DB) LocationRepository {
	return &locationRepository{db: db}
}

var _ LocationRepository = (*locationRepository)(nil)

func (r *locationRepository) GetByName(ctx context.Context, name string) (*models.Location, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at
		FROM locations
		WHERE name = $1`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, name))
}

func (r *locationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at
		FROM locations
		WHERE id = $1`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *locationRepository) List(ctx context.Context) ([]*models.Location, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at
		FROM locations
		ORDER BY name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, &apperrors.StorageError{Op: "list locations", Err: err}
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.CreatedAt); err != nil {
			return nil, &apperrors.StorageError{Op: "scan location", Err: err}
		}
		locations = append(locations, &loc)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StorageError{Op: "iterate locations", Err: err}
	}

	return locations, nil
}

func (r *locationRepository) scanOne(row pgx.Row) (*models.Location, error) {
	var loc models.Location
	err := row.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.StorageError{Op: "get location", Err: err}
	}
	return &loc, nil
}
