package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/database"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

// ForecastRepository stores a location's forecast window. Windows shift start
// day on every refresh, so ReplaceWindow swaps the whole set inside one
// transaction - a partial upsert would leave orphaned past-window rows.
type ForecastRepository interface {
	ReplaceWindow(ctx context.Context, locationID uuid.UUID, days []*models.ForecastDay) error
	GetWindow(ctx context.Context, locationID uuid.UUID) ([]*models.ForecastDay, error)
}

type forecastRepository struct {
	db *database.DB
}

// NewForecastRepository creates a new forecast repository.
func NewForecastRepository(db *database.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

var _ ForecastRepository = (*forecastRepository)(nil)

const insertForecastDay = `
		INSERT INTO daily_forecasts (
			location_id, forecast_day, forecast_date, temp_min_c, temp_max_c,
			precipitation_sum_mm, precipitation_prob_max, wind_speed_max_kmh,
			uv_index_max, weather_code, sunrise, sunset,
			hourly_temperature_c, hourly_precipitation, hourly_wind_speed_kmh
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// ReplaceWindow deletes the location's existing window and inserts the fresh
// one atomically.
func (r *forecastRepository) ReplaceWindow(ctx context.Context, locationID uuid.UUID, days []*models.ForecastDay) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &apperrors.StorageError{Op: "begin window replace", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = &apperrors.StorageError{Op: "commit window replace", Err: e}
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM daily_forecasts WHERE location_id = $1`, locationID); err != nil {
		return &apperrors.StorageError{Op: "delete forecast window", Err: err}
	}

	for _, d := range days {
		if _, err = tx.Exec(ctx, insertForecastDay,
			d.LocationID,
			d.Day,
			d.Date,
			d.TempMinC,
			d.TempMaxC,
			d.PrecipitationSumMM,
			d.PrecipitationProb,
			d.WindSpeedMaxKmh,
			d.UVIndexMax,
			d.WeatherCode,
			d.Sunrise,
			d.Sunset,
			d.HourlyTemperatureC,
			d.HourlyPrecipitation,
			d.HourlyWindSpeedKmh,
		); err != nil {
			return &apperrors.StorageError{Op: "insert forecast day", Err: err}
		}
	}

	return nil
}

// GetWindow returns the stored window ordered by forecast day.
func (r *forecastRepository) GetWindow(ctx context.Context, locationID uuid.UUID) ([]*models.ForecastDay, error) {
	query := `
		SELECT location_id, forecast_day, forecast_date, temp_min_c, temp_max_c,
		       precipitation_sum_mm, precipitation_prob_max, wind_speed_max_kmh,
		       uv_index_max, weather_code, sunrise, sunset,
		       hourly_temperature_c, hourly_precipitation, hourly_wind_speed_kmh
		FROM daily_forecasts
		WHERE location_id = $1
		ORDER BY forecast_day`

	rows, err := r.db.Pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, &apperrors.StorageError{Op: "get forecast window", Err: err}
	}
	defer rows.Close()

	var days []*models.ForecastDay
	for rows.Next() {
		var d models.ForecastDay
		if err := rows.Scan(
			&d.LocationID,
			&d.Day,
			&d.Date,
			&d.TempMinC,
			&d.TempMaxC,
			&d.PrecipitationSumMM,
			&d.PrecipitationProb,
			&d.WindSpeedMaxKmh,
			&d.UVIndexMax,
			&d.WeatherCode,
			&d.Sunrise,
			&d.Sunset,
			&d.HourlyTemperatureC,
			&d.HourlyPrecipitation,
			&d.HourlyWindSpeedKmh,
		); err != nil {
			return nil, &apperrors.StorageError{Op: "scan forecast day", Err: err}
		}
		days = append(days, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StorageError{Op: "iterate forecast window", Err: err}
	}

	return days, nil
}
