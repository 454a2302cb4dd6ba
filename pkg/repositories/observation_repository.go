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

// ObservationRepository persists the latest current-conditions row per
// location. The table holds at most one row per location_id; Upsert replaces
// the values in place, never accumulating history.
type ObservationRepository interface {
	Upsert(ctx context.Context, obs *models.CurrentObservation) error
	GetByLocation(ctx context.Context, locationID uuid.UUID) (*models.CurrentObservation, error)
}

type observationRepository struct {
	db *database.DB
}

// NewObservationRepository creates a new observation repository.
func NewObservationRepository(db *database.DB) ObservationRepository {
	return &observationRepository{db: db}
}

var _ ObservationRepository = (*observationRepository)(nil)

func (r *observationRepository) Upsert(ctx context.Context, obs *models.CurrentObservation) error {
	query := `
		INSERT INTO current_observations (
			location_id, temperature_c, apparent_temp_c, humidity_pct,
			pressure_hpa, wind_speed_kmh, wind_direction_deg, precipitation_mm,
			cloud_cover_pct, weather_code, is_day, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (location_id) DO UPDATE
		SET temperature_c = EXCLUDED.temperature_c,
		    apparent_temp_c = EXCLUDED.apparent_temp_c,
		    humidity_pct = EXCLUDED.humidity_pct,
		    pressure_hpa = EXCLUDED.pressure_hpa,
		    wind_speed_kmh = EXCLUDED.wind_speed_kmh,
		    wind_direction_deg = EXCLUDED.wind_direction_deg,
		    precipitation_mm = EXCLUDED.precipitation_mm,
		    cloud_cover_pct = EXCLUDED.cloud_cover_pct,
		    weather_code = EXCLUDED.weather_code,
		    is_day = EXCLUDED.is_day,
		    last_updated = EXCLUDED.last_updated`

	_, err := r.db.Pool.Exec(ctx, query,
		obs.LocationID,
		obs.TemperatureC,
		obs.ApparentTempC,
		obs.HumidityPct,
		obs.PressureHpa,
		obs.WindSpeedKmh,
		obs.WindDirectionDeg,
		obs.PrecipitationMM,
		obs.CloudCoverPct,
		obs.WeatherCode,
		obs.IsDay,
		obs.LastUpdated,
	)
	if err != nil {
		return &apperrors.StorageError{Op: "upsert current observation", Err: err}
	}

	return nil
}

func (r *observationRepository) GetByLocation(ctx context.Context, locationID uuid.UUID) (*models.CurrentObservation, error) {
	query := `
		SELECT location_id, temperature_c, apparent_temp_c, humidity_pct,
		       pressure_hpa, wind_speed_kmh, wind_direction_deg, precipitation_mm,
		       cloud_cover_pct, weather_code, is_day, last_updated
		FROM current_observations
		WHERE location_id = $1`

	var obs models.CurrentObservation
	err := r.db.Pool.QueryRow(ctx, query, locationID).Scan(
		&obs.LocationID,
		&obs.TemperatureC,
		&obs.ApparentTempC,
		&obs.HumidityPct,
		&obs.PressureHpa,
		&obs.WindSpeedKmh,
		&obs.WindDirectionDeg,
		&obs.PrecipitationMM,
		&obs.CloudCoverPct,
		&obs.WeatherCode,
		&obs.IsDay,
		&obs.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.StorageError{Op: "get current observation", Err: err}
	}

	return &obs, nil
}
