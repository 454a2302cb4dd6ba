// Package weather is the HTTP client for the upstream weather and
// air-quality data provider. Every outbound call carries a bounded timeout,
// a single transient-failure retry, and runs through a circuit breaker.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/retry"
)

// Config holds client endpoints and resilience settings.
type Config struct {
	WeatherBaseURL    string
	AirQualityBaseURL string
	Timeout           time.Duration
	MaxRetries        int
}

// Client fetches current, forecast, and air-quality data.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   *retry.Config
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a provider client. The http.Client is shared so tests can
// substitute a transport; its timeout is governed per call via context.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-provider",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		retryCfg:   retryCfg,
		breaker:    cb,
		logger:     logger,
	}
}

// CurrentData is the flattened current-conditions block. Optional fields the
// provider omits decode as nil and default to 0 downstream.
type CurrentData struct {
	Time             string   `json:"time"`
	TemperatureC     *float64 `json:"temperature_2m"`
	ApparentTempC    *float64 `json:"apparent_temperature"`
	HumidityPct      *float64 `json:"relative_humidity_2m"`
	PressureHpa      *float64 `json:"surface_pressure"`
	WindSpeedKmh     *float64 `json:"wind_speed_10m"`
	WindDirectionDeg *float64 `json:"wind_direction_10m"`
	PrecipitationMM  *float64 `json:"precipitation"`
	CloudCoverPct    *float64 `json:"cloud_cover"`
	WeatherCode      *int     `json:"weather_code"`
	IsDay            *int     `json:"is_day"`
}

// ForecastData carries the daily window plus hour-resolution series. The
// hourly slices hold days*24 entries, array-index-aligned with Hourly.Time.
type ForecastData struct {
	Daily struct {
		Time                 []string   `json:"time"`
		TempMinC             []*float64 `json:"temperature_2m_min"`
		TempMaxC             []*float64 `json:"temperature_2m_max"`
		PrecipitationSum     []*float64 `json:"precipitation_sum"`
		PrecipitationProbMax []*float64 `json:"precipitation_probability_max"`
		WindSpeedMaxKmh      []*float64 `json:"wind_speed_10m_max"`
		UVIndexMax           []*float64 `json:"uv_index_max"`
		WeatherCode          []*int     `json:"weather_code"`
		Sunrise              []string   `json:"sunrise"`
		Sunset               []string   `json:"sunset"`
	} `json:"daily"`
	Hourly struct {
		Time            []string   `json:"time"`
		TemperatureC    []*float64 `json:"temperature_2m"`
		PrecipitationMM []*float64 `json:"precipitation"`
		WindSpeedKmh    []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// AirQualityData carries hour-resolution pollen concentrations (grains/m3)
// and air-quality indices.
type AirQualityData struct {
	Hourly struct {
		Time          []string   `json:"time"`
		AlderPollen   []*float64 `json:"alder_pollen"`
		BirchPollen   []*float64 `json:"birch_pollen"`
		GrassPollen   []*float64 `json:"grass_pollen"`
		HazelPollen   []*float64 `json:"hazel_pollen"`
		MugwortPollen []*float64 `json:"mugwort_pollen"`
		RagweedPollen []*float64 `json:"ragweed_pollen"`
		Ozone         []*float64 `json:"ozone"`
		EuropeanAQI   []*float64 `json:"european_aqi"`
		UVIndex       []*float64 `json:"uv_index"`
	} `json:"hourly"`
}

// FetchCurrent retrieves the current conditions for a coordinate pair.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (*CurrentData, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,surface_pressure,wind_speed_10m,wind_direction_10m,precipitation,cloud_cover,weather_code,is_day")
	values.Set("timezone", "auto")

	var payload struct {
		Current CurrentData `json:"current"`
	}
	if err := c.getJSON(ctx, c.cfg.WeatherBaseURL, values, &payload); err != nil {
		return nil, err
	}
	return &payload.Current, nil
}

// FetchForecast retrieves a days-long daily forecast window with embedded
// hourly series.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, days int) (*ForecastData, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("daily", "temperature_2m_min,temperature_2m_max,precipitation_sum,precipitation_probability_max,wind_speed_10m_max,uv_index_max,weather_code,sunrise,sunset")
	values.Set("hourly", "temperature_2m,precipitation,wind_speed_10m")
	values.Set("forecast_days", strconv.Itoa(days))
	values.Set("timezone", "auto")

	var payload ForecastData
	if err := c.getJSON(ctx, c.cfg.WeatherBaseURL, values, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchAirQuality retrieves hourly pollen and air-quality series for today.
func (c *Client) FetchAirQuality(ctx context.Context, lat, lon float64) (*AirQualityData, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("hourly", "alder_pollen,birch_pollen,grass_pollen,hazel_pollen,mugwort_pollen,ragweed_pollen,ozone,european_aqi,uv_index")
	values.Set("forecast_days", "1")
	// Pinned to UTC so hourly indices line up with the UTC clock hour used
	// when a single hour is picked out of the series.
	values.Set("timezone", "UTC")

	var payload AirQualityData
	if err := c.getJSON(ctx, c.cfg.AirQualityBaseURL, values, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// getJSON performs one GET with timeout, breaker, and transient retry, then
// decodes the body into out.
func (c *Client) getJSON(ctx context.Context, baseURL string, values url.Values, out any) error {
	u := fmt.Sprintf("%s?%s", baseURL, values.Encode())

	return retry.Do(ctx, c.retryCfg, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, execErr := c.httpClient.Do(req)
			if execErr != nil {
				return nil, &apperrors.ProviderError{
					Provider: "weather",
					Err:      execErr,
					Timeout:  isTimeout(execErr),
				}
			}
			return resp, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return &apperrors.ProviderError{Provider: "weather", Err: err}
			}
			return err
		}

		resp := result.(*http.Response)
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &apperrors.ProviderError{Provider: "weather", StatusCode: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
		return nil
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// HourValue selects the entry at the given hour from an hourly series,
// defaulting to 0 when the index is out of range or the entry is null.
func HourValue(values []*float64, hour int) float64 {
	if hour < 0 || hour >= len(values) || values[hour] == nil {
		return 0
	}
	return *values[hour]
}
