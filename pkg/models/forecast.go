package models

import (
	"time"

	"github.com/google/uuid"
)

// HoursPerDay is the length of every embedded hourly slice on a forecast day.
const HoursPerDay = 24

// ForecastDay is one day of a location's forecast window. Day is 1-based
// within the window; the hourly slices always carry exactly HoursPerDay
// entries aligned to the day's local hours.
type ForecastDay struct {
	LocationID          uuid.UUID `json:"location_id"`
	Day                 int       `json:"forecast_day"`
	Date                time.Time `json:"forecast_date"`
	TempMinC            float64   `json:"temp_min_c"`
	TempMaxC            float64   `json:"temp_max_c"`
	PrecipitationSumMM  float64   `json:"precipitation_sum_mm"`
	PrecipitationProb   float64   `json:"precipitation_probability_max"`
	WindSpeedMaxKmh     float64   `json:"wind_speed_max_kmh"`
	UVIndexMax          float64   `json:"uv_index_max"`
	WeatherCode         int       `json:"weather_code"`
	Sunrise             string    `json:"sunrise"`
	Sunset              string    `json:"sunset"`
	HourlyTemperatureC  []float64 `json:"hourly_temperature_c"`
	HourlyPrecipitation []float64 `json:"hourly_precipitation_mm"`
	HourlyWindSpeedKmh  []float64 `json:"hourly_wind_speed_kmh"`
}
