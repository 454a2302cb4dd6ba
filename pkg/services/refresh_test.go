package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/weather"
)

// memoryLocationRepo serves one fixed location by name.
type memoryLocationRepo struct {
	location *models.Location
}

func (r *memoryLocationRepo) GetByName(_ context.Context, name string) (*models.Location, error) {
	if r.location == nil || r.location.Name != name {
		return nil, apperrors.ErrNotFound
	}
	return r.location, nil
}

func (r *memoryLocationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Location, error) {
	if r.location == nil || r.location.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return r.location, nil
}

func (r *memoryLocationRepo) List(_ context.Context) ([]*models.Location, error) {
	if r.location == nil {
		return nil, nil
	}
	return []*models.Location{r.location}, nil
}

type memoryObservationRepo struct {
	stored *models.CurrentObservation
}

func (r *memoryObservationRepo) Upsert(_ context.Context, obs *models.CurrentObservation) error {
	copied := *obs
	r.stored = &copied
	return nil
}

func (r *memoryObservationRepo) GetByLocation(_ context.Context, locationID uuid.UUID) (*models.CurrentObservation, error) {
	if r.stored == nil || r.stored.LocationID != locationID {
		return nil, apperrors.ErrNotFound
	}
	return r.stored, nil
}

type memoryForecastRepo struct {
	window   []*models.ForecastDay
	replaces int
}

func (r *memoryForecastRepo) ReplaceWindow(_ context.Context, _ uuid.UUID, days []*models.ForecastDay) error {
	r.window = days
	r.replaces++
	return nil
}

func (r *memoryForecastRepo) GetWindow(_ context.Context, _ uuid.UUID) ([]*models.ForecastDay, error) {
	return r.window, nil
}

type memoryDomainRepo struct {
	stored *models.DomainForecast
}

func (r *memoryDomainRepo) Upsert(_ context.Context, f *models.DomainForecast) error {
	copied := *f
	r.stored = &copied
	return nil
}

func (r *memoryDomainRepo) Get(_ context.Context, _ uuid.UUID, _ models.ForecastKind, _ time.Time) (*models.DomainForecast, error) {
	if r.stored == nil {
		return nil, apperrors.ErrNotFound
	}
	return r.stored, nil
}

func (r *memoryDomainRepo) GetLatest(_ context.Context, _ uuid.UUID, _ models.ForecastKind) (*models.DomainForecast, error) {
	if r.stored == nil {
		return nil, apperrors.ErrNotFound
	}
	return r.stored, nil
}

// refreshFixture wires a refresh service against a stub provider server.
type refreshFixture struct {
	service      *refreshService
	locations    *memoryLocationRepo
	observations *memoryObservationRepo
	forecasts    *memoryForecastRepo
	domain       *memoryDomainRepo
}

func newRefreshFixture(t *testing.T, handler http.HandlerFunc) *refreshFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := weather.NewClient(weather.Config{
		WeatherBaseURL:    server.URL + "/forecast",
		AirQualityBaseURL: server.URL + "/air-quality",
		Timeout:           5 * time.Second,
	}, server.Client(), zap.NewNop())

	f := &refreshFixture{
		locations: &memoryLocationRepo{location: &models.Location{
			ID:        uuid.New(),
			Name:      "Hohenmölsen",
			Latitude:  51.1577,
			Longitude: 12.0953,
		}},
		observations: &memoryObservationRepo{},
		forecasts:    &memoryForecastRepo{},
		domain:       &memoryDomainRepo{},
	}
	f.service = NewRefreshService(client, f.locations, f.observations, f.forecasts, f.domain, zap.NewNop()).(*refreshService)
	f.service.now = func() time.Time {
		return time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	}
	return f
}

func writeProviderJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestRefreshCurrent_StoresFlattenedObservation(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, map[string]any{
			"current": map[string]any{
				"temperature_2m":       18.6,
				"apparent_temperature": 17.2,
				"relative_humidity_2m": 61.0,
				"surface_pressure":     1009.4,
				"wind_speed_10m":       14.0,
				"wind_direction_10m":   250.0,
				"precipitation":        nil, // omitted by provider
				"cloud_cover":          45.0,
				"weather_code":         3,
				"is_day":               1,
			},
		})
	})

	obs, err := f.service.RefreshCurrent(context.Background(), "Hohenmölsen")
	require.NoError(t, err)

	require.Equal(t, f.locations.location.ID, obs.LocationID)
	require.Equal(t, 18.6, obs.TemperatureC)
	require.Equal(t, 0.0, obs.PrecipitationMM, "missing provider field defaults to 0")
	require.True(t, obs.IsDay)
	require.NotNil(t, f.observations.stored)
	require.Equal(t, obs.TemperatureC, f.observations.stored.TemperatureC)
}

func TestRefreshCurrent_UnknownLocation(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called for an unknown location")
	})

	_, err := f.service.RefreshCurrent(context.Background(), "Atlantis")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Nil(t, f.observations.stored)
}

func TestRefreshCurrent_ProviderFailure(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := f.service.RefreshCurrent(context.Background(), "Hohenmölsen")

	var providerErr *apperrors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, http.StatusNotFound, providerErr.StatusCode)
	require.Nil(t, f.observations.stored, "a failed fetch keeps the stored row untouched")
}

func forecastPayload(days int) map[string]any {
	dates := make([]string, days)
	mins := make([]any, days)
	for i := range dates {
		dates[i] = time.Date(2026, 8, 29+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		mins[i] = 10.0 + float64(i)
	}

	hourlyTemps := make([]any, days*24)
	for i := range hourlyTemps {
		hourlyTemps[i] = float64(i)
	}
	// Hour 14 of day 1 arrives null, the provider's way of saying "unknown".
	hourlyTemps[14] = nil

	return map[string]any{
		"daily": map[string]any{
			"time":               dates,
			"temperature_2m_min": mins,
		},
		"hourly": map[string]any{
			"temperature_2m": hourlyTemps,
		},
	}
}

func TestRefreshForecastWindow_SlicesHourlySeriesPerDay(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, forecastPayload(2))
	})

	days, err := f.service.RefreshForecastWindow(context.Background(), "Hohenmölsen", 2)
	require.NoError(t, err)
	require.Len(t, days, 2)

	require.Equal(t, 1, days[0].Day)
	require.Equal(t, 2, days[1].Day)
	require.Len(t, days[0].HourlyTemperatureC, models.HoursPerDay)
	require.Len(t, days[1].HourlyTemperatureC, models.HoursPerDay)

	// Day 2's first hour is the flat series' entry 24.
	require.Equal(t, 24.0, days[1].HourlyTemperatureC[0])
	// The null at hour 14 becomes 0, not a shifted series.
	require.Equal(t, 0.0, days[0].HourlyTemperatureC[14])
	require.Equal(t, 15.0, days[0].HourlyTemperatureC[15])

	require.Equal(t, 1, f.forecasts.replaces)
}

func TestRefreshForecastWindow_ShortProviderWindow(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, forecastPayload(2))
	})

	_, err := f.service.RefreshForecastWindow(context.Background(), "Hohenmölsen", 7)

	var providerErr *apperrors.ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Zero(t, f.forecasts.replaces)
}

func airQualityPayload() map[string]any {
	hours := make([]any, 24)
	for i := range hours {
		hours[i] = 0.0
	}
	birch := make([]any, 24)
	copy(birch, hours)
	birch[14] = 95.0 // high load at the fixture's injected hour

	return map[string]any{
		"hourly": map[string]any{
			"alder_pollen":   hours,
			"birch_pollen":   birch,
			"grass_pollen":   hours,
			"hazel_pollen":   hours,
			"mugwort_pollen": hours,
			"ragweed_pollen": hours,
			"ozone":          hours,
			"european_aqi":   hours,
			"uv_index":       hours,
		},
	}
}

func TestRefreshDomainForecast_PollenStoredAndValidated(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, airQualityPayload())
	})

	forecast, err := f.service.RefreshDomainForecast(context.Background(), models.KindPollen, "Hohenmölsen", FaultNone)
	require.NoError(t, err)
	require.Equal(t, models.KindPollen, forecast.Kind)
	require.NotNil(t, f.domain.stored)

	var rec models.PollenRecord
	require.NoError(t, json.Unmarshal(f.domain.stored.Fields, &rec))
	require.Equal(t, models.RiskHigh, rec.Birch)
	require.Equal(t, models.RiskNone, rec.Grass)
	require.NotEmpty(t, rec.Recommendations)
}

func TestRefreshDomainForecast_TimeoutFaultSkipsProvider(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called when a timeout is injected")
	})

	_, err := f.service.RefreshDomainForecast(context.Background(), models.KindPollen, "Hohenmölsen", FaultTimeout)
	require.True(t, apperrors.IsTimeout(err))
	require.Nil(t, f.domain.stored)
}

func TestRefreshDomainForecast_InvalidFaultFailsValidationWithoutWrite(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, airQualityPayload())
	})

	_, err := f.service.RefreshDomainForecast(context.Background(), models.KindPollen, "Hohenmölsen", FaultInvalid)

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "birch", validationErr.Field)
	require.Nil(t, f.domain.stored, "nothing may be written after a validation failure")
}

func TestRefreshDomainForecast_DatabaseFault(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, airQualityPayload())
	})

	_, err := f.service.RefreshDomainForecast(context.Background(), models.KindPollen, "Hohenmölsen", FaultDatabase)

	var storageErr *apperrors.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Nil(t, f.domain.stored)
}

func TestRefreshDomainForecast_HealthUsesCurrentConditions(t *testing.T) {
	f := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderJSON(t, w, map[string]any{
			"current": map[string]any{
				"temperature_2m":       -2.0,
				"apparent_temperature": -6.0,
				"relative_humidity_2m": 90.0,
				"surface_pressure":     985.0,
			},
		})
	})

	forecast, err := f.service.RefreshDomainForecast(context.Background(), models.KindHealth, "Hohenmölsen", FaultNone)
	require.NoError(t, err)

	var rec models.HealthRecord
	require.NoError(t, json.Unmarshal(forecast.Fields, &rec))
	require.Greater(t, rec.ColdRisk, 0)
	require.Greater(t, rec.MigraineRisk, 0)
	require.NoError(t, ValidateRecord(&rec))
}

func TestParseFaultMode(t *testing.T) {
	require.Equal(t, FaultTimeout, ParseFaultMode("timeout"))
	require.Equal(t, FaultInvalid, ParseFaultMode("invalid"))
	require.Equal(t, FaultDatabase, ParseFaultMode("database"))
	require.Equal(t, FaultNone, ParseFaultMode(""))
	require.Equal(t, FaultNone, ParseFaultMode("bogus"))
}
