package models

import (
	"time"

	"github.com/google/uuid"
)

// CurrentObservation holds the most recently fetched instantaneous weather
// values for one location. At most one row exists per location; every refresh
// replaces the values in place.
type CurrentObservation struct {
	LocationID       uuid.UUID `json:"location_id"`
	TemperatureC     float64   `json:"temperature_c"`
	ApparentTempC    float64   `json:"apparent_temperature_c"`
	HumidityPct      float64   `json:"humidity_pct"`
	PressureHpa      float64   `json:"pressure_hpa"`
	WindSpeedKmh     float64   `json:"wind_speed_kmh"`
	WindDirectionDeg float64   `json:"wind_direction_deg"`
	PrecipitationMM  float64   `json:"precipitation_mm"`
	CloudCoverPct    float64   `json:"cloud_cover_pct"`
	WeatherCode      int       `json:"weather_code"`
	IsDay            bool      `json:"is_day"`
	LastUpdated      time.Time `json:"last_updated"`
}
