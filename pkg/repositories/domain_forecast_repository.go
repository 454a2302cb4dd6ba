package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/database"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

// DomainForecastRepository persists validated per-kind daily records, upserted
// on (location_id, kind, forecast_date) so a second refresh for the same day
// overwrites rather than duplicates.
type DomainForecastRepository interface {
	Upsert(ctx context.Context, f *models.DomainForecast) error
	Get(ctx context.Context, locationID uuid.UUID, kind models.ForecastKind, date time.Time) (*models.DomainForecast, error)
	GetLatest(ctx context.Context, locationID uuid.UUID, kind models.ForecastKind) (*models.DomainForecast, error)
}

type domainForecastRepository struct {
	db *database.DB
}

// NewDomainForecastRepository creates a new domain forecast repository.
func NewDomainForecastRepository(db *database.DB) DomainForecastRepository {
	return &domainForecastRepository{db: db}
}

var _ DomainForecastRepository = (*domainForecastRepository)(nil)

func (r *domainForecastRepository) Upsert(ctx context.Context, f *models.DomainForecast) error {
	now := time.Now()

	query := `
		INSERT INTO domain_forecasts (location_id, kind, forecast_date, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (location_id, kind, forecast_date) DO UPDATE
		SET fields = EXCLUDED.fields,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Pool.Exec(ctx, query,
		f.LocationID,
		string(f.Kind),
		f.Date,
		f.Fields,
		now,
		now,
	)
	if err != nil {
		return &apperrors.StorageError{Op: "upsert domain forecast", Err: err}
	}

	return nil
}

func (r *domainForecastRepository) Get(ctx context.Context, locationID uuid.UUID, kind models.ForecastKind, date time.Time) (*models.DomainForecast, error) {
	query := `
		SELECT location_id, kind, forecast_date, fields, created_at, updated_at
		FROM domain_forecasts
		WHERE location_id = $1 AND kind = $2 AND forecast_date = $3`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, locationID, string(kind), date))
}

func (r *domainForecastRepository) GetLatest(ctx context.Context, locationID uuid.UUID, kind models.ForecastKind) (*models.DomainForecast, error) {
	query := `
		SELECT location_id, kind, forecast_date, fields, created_at, updated_at
		FROM domain_forecasts
		WHERE location_id = $1 AND kind = $2
		ORDER BY forecast_date DESC
		LIMIT 1`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, locationID, string(kind)))
}

func (r *domainForecastRepository) scanOne(row pgx.Row) (*models.DomainForecast, error) {
	var f models.DomainForecast
	err := row.Scan(&f.LocationID, &f.Kind, &f.Date, &f.Fields, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.StorageError{Op: "get domain forecast", Err: err}
	}
	return &f, nil
}
