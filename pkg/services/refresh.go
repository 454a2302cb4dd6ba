package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/repositories"
	"github.com/Zutavern/apo-sub001/pkg/weather"
)

// FaultMode selects a failure to inject into a domain-forecast refresh via
// the ?test= query parameter. Only available on the refresh endpoints.
type FaultMode string

const (
	FaultNone     FaultMode = ""
	FaultTimeout  FaultMode = "timeout"
	FaultInvalid  FaultMode = "invalid"
	FaultDatabase FaultMode = "database"
)

// ParseFaultMode maps a query parameter value onto a FaultMode. Unknown
// values behave as no fault.
func ParseFaultMode(s string) FaultMode {
	switch FaultMode(s) {
	case FaultTimeout, FaultInvalid, FaultDatabase:
		return FaultMode(s)
	default:
		return FaultNone
	}
}

// RefreshService reconciles stored weather data against the upstream
// provider: it fetches, derives, validates, and upserts, keeping the tables
// convergent under repeated runs.
type RefreshService interface {
	RefreshCurrent(ctx context.Context, locationName string) (*models.CurrentObservation, error)
	RefreshForecastWindow(ctx context.Context, locationName string, windowDays int) ([]*models.ForecastDay, error)
	RefreshDomainForecast(ctx context.Context, kind models.ForecastKind, locationName string, fault FaultMode) (*models.DomainForecast, error)
	StoreDomainForecast(ctx context.Context, kind models.ForecastKind, locationID uuid.UUID, date time.Time, record any) (*models.DomainForecast, error)
}

type refreshService struct {
	client       *weather.Client
	locations    repositories.LocationRepository
	observations repositories.ObservationRepository
	forecasts    repositories.ForecastRepository
	domain       repositories.DomainForecastRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewRefreshService creates a refresh service over the provider client and
// the persistence layer.
func NewRefreshService(
	client *weather.Client,
	locations repositories.LocationRepository,
	observations repositories.ObservationRepository,
	forecasts repositories.ForecastRepository,
	domain repositories.DomainForecastRepository,
	logger *zap.Logger,
) RefreshService {
	return &refreshService{
		client:       client,
		locations:    locations,
		observations: observations,
		forecasts:    forecasts,
		domain:       domain,
		logger:       logger,
		now:          time.Now,
	}
}

var _ RefreshService = (*refreshService)(nil)

// RefreshCurrent fetches the location's current conditions and replaces its
// single observation row. Missing provider fields persist as zero values.
func (s *refreshService) RefreshCurrent(ctx context.Context, locationName string) (*models.CurrentObservation, error) {
	loc, err := s.locations.GetByName(ctx, locationName)
	if err != nil {
		return nil, err
	}

	data, err := s.client.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}

	obs := &models.CurrentObservation{
		LocationID:       loc.ID,
		TemperatureC:     floatOrZero(data.TemperatureC),
		ApparentTempC:    floatOrZero(data.ApparentTempC),
		HumidityPct:      floatOrZero(data.HumidityPct),
		PressureHpa:      floatOrZero(data.PressureHpa),
		WindSpeedKmh:     floatOrZero(data.WindSpeedKmh),
		WindDirectionDeg: floatOrZero(data.WindDirectionDeg),
		PrecipitationMM:  floatOrZero(data.PrecipitationMM),
		CloudCoverPct:    floatOrZero(data.CloudCoverPct),
		WeatherCode:      intOrZero(data.WeatherCode),
		IsDay:            intOrZero(data.IsDay) == 1,
		LastUpdated:      s.now().UTC(),
	}

	if err := s.observations.Upsert(ctx, obs); err != nil {
		return nil, err
	}

	s.logger.Info("refreshed current observation",
		zap.String("location", loc.Name),
		zap.Float64("temperature_c", obs.TemperatureC))

	return obs, nil
}

// RefreshForecastWindow fetches a windowDays-long forecast and atomically
// replaces the location's stored window. Day indices are 1-based; day i's
// hourly values are the provider's flat hourly series sliced per 24 hours.
func (s *refreshService) RefreshForecastWindow(ctx context.Context, locationName string, windowDays int) ([]*models.ForecastDay, error) {
	loc, err := s.locations.GetByName(ctx, locationName)
	if err != nil {
		return nil, err
	}

	data, err := s.client.FetchForecast(ctx, loc.Latitude, loc.Longitude, windowDays)
	if err != nil {
		return nil, err
	}

	if len(data.Daily.Time) < windowDays {
		return nil, &apperrors.ProviderError{
			Provider: "weather",
			Err:      fmt.Errorf("provider returned %d forecast days, expected %d", len(data.Daily.Time), windowDays),
		}
	}

	days := make([]*models.ForecastDay, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		date, err := time.Parse("2006-01-02", data.Daily.Time[i])
		if err != nil {
			return nil, &apperrors.ProviderError{
				Provider: "weather",
				Err:      fmt.Errorf("malformed forecast date %q: %w", data.Daily.Time[i], err),
			}
		}

		day := &models.ForecastDay{
			LocationID:          loc.ID,
			Day:                 i + 1,
			Date:                date,
			TempMinC:            dayValue(data.Daily.TempMinC, i),
			TempMaxC:            dayValue(data.Daily.TempMaxC, i),
			PrecipitationSumMM:  dayValue(data.Daily.PrecipitationSum, i),
			PrecipitationProb:   dayValue(data.Daily.PrecipitationProbMax, i),
			WindSpeedMaxKmh:     dayValue(data.Daily.WindSpeedMaxKmh, i),
			UVIndexMax:          dayValue(data.Daily.UVIndexMax, i),
			WeatherCode:         dayIntValue(data.Daily.WeatherCode, i),
			Sunrise:             stringValue(data.Daily.Sunrise, i),
			Sunset:              stringValue(data.Daily.Sunset, i),
			HourlyTemperatureC:  hourSlice(data.Hourly.TemperatureC, i),
			HourlyPrecipitation: hourSlice(data.Hourly.PrecipitationMM, i),
			HourlyWindSpeedKmh:  hourSlice(data.Hourly.WindSpeedKmh, i),
		}
		days = append(days, day)
	}

	if err := s.forecasts.ReplaceWindow(ctx, loc.ID, days); err != nil {
		return nil, err
	}

	s.logger.Info("replaced forecast window",
		zap.String("location", loc.Name),
		zap.Int("days", len(days)))

	return days, nil
}

// RefreshDomainForecast derives today's record of the given kind for the
// location, validates it against the kind's schema, and upserts it. A fault
// mode short-circuits at the matching stage so error paths stay reachable
// from the outside.
func (s *refreshService) RefreshDomainForecast(ctx context.Context, kind models.ForecastKind, locationName string, fault FaultMode) (*models.DomainForecast, error) {
	if fault == FaultTimeout {
		return nil, &apperrors.ProviderError{
			Provider: "weather",
			Timeout:  true,
			Err:      context.DeadlineExceeded,
		}
	}

	loc, err := s.locations.GetByName(ctx, locationName)
	if err != nil {
		return nil, err
	}

	record, err := s.deriveRecord(ctx, kind, loc)
	if err != nil {
		return nil, err
	}

	if fault == FaultInvalid {
		corruptRecord(record)
	}

	stored, err := s.storeDomainForecast(ctx, kind, loc.ID, s.today(), record, fault)
	if err != nil {
		return nil, err
	}

	s.logger.Info("refreshed domain forecast",
		zap.String("location", loc.Name),
		zap.String("kind", string(kind)))

	return stored, nil
}

// StoreDomainForecast validates a record and upserts it for the given
// location and date. Nothing is written when validation fails.
func (s *refreshService) StoreDomainForecast(ctx context.Context, kind models.ForecastKind, locationID uuid.UUID, date time.Time, record any) (*models.DomainForecast, error) {
	return s.storeDomainForecast(ctx, kind, locationID, date, record, FaultNone)
}

func (s *refreshService) storeDomainForecast(ctx context.Context, kind models.ForecastKind, locationID uuid.UUID, date time.Time, record any, fault FaultMode) (*models.DomainForecast, error) {
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}

	if fault == FaultDatabase {
		return nil, &apperrors.StorageError{
			Op:  "upsert domain forecast",
			Err: fmt.Errorf("injected database failure"),
		}
	}

	fields, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}

	forecast := &models.DomainForecast{
		LocationID: locationID,
		Kind:       kind,
		Date:       date,
		Fields:     fields,
	}
	if err := s.domain.Upsert(ctx, forecast); err != nil {
		return nil, err
	}

	return forecast, nil
}

// deriveRecord builds the kind's record from fresh provider data. Kinds that
// need current conditions fetch them alongside the air-quality series.
func (s *refreshService) deriveRecord(ctx context.Context, kind models.ForecastKind, loc *models.Location) (any, error) {
	// The air-quality series is requested in UTC, so the index must be the
	// UTC hour regardless of the server's local zone.
	hour := s.now().UTC().Hour()

	switch kind {
	case models.KindPollen:
		aq, err := s.client.FetchAirQuality(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return nil, err
		}
		return buildPollenRecord(aq, hour), nil

	case models.KindAllergy:
		aq, err := s.client.FetchAirQuality(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return nil, err
		}
		return buildAllergyRecord(aq, hour), nil

	case models.KindBiometeorology:
		aq, err := s.client.FetchAirQuality(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return nil, err
		}
		current, err := s.currentConditions(ctx, loc)
		if err != nil {
			return nil, err
		}
		return buildBiometeorologyRecord(aq, current, hour), nil

	case models.KindHealth:
		current, err := s.currentConditions(ctx, loc)
		if err != nil {
			return nil, err
		}
		return buildHealthRecord(current), nil

	default:
		return nil, fmt.Errorf("unknown forecast kind %q", kind)
	}
}

// currentConditions fetches a fresh current-conditions snapshot for record
// derivation without touching the stored observation row.
func (s *refreshService) currentConditions(ctx context.Context, loc *models.Location) (*models.CurrentObservation, error) {
	data, err := s.client.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}
	return &models.CurrentObservation{
		LocationID:    loc.ID,
		TemperatureC:  floatOrZero(data.TemperatureC),
		ApparentTempC: floatOrZero(data.ApparentTempC),
		HumidityPct:   floatOrZero(data.HumidityPct),
		PressureHpa:   floatOrZero(data.PressureHpa),
	}, nil
}

// corruptRecord pushes one field of the record outside its schema so the
// validation rejection path is exercised end to end.
func corruptRecord(record any) {
	switch r := record.(type) {
	case *models.AllergyRecord:
		r.OverallRisk = "catastrophic"
	case *models.BiometeorologyRecord:
		r.UVIndex = 99
	case *models.HealthRecord:
		r.MigraineRisk = 42
	case *models.PollenRecord:
		r.Birch = "extreme"
	}
}

func (s *refreshService) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func dayValue(values []*float64, i int) float64 {
	if i < 0 || i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func dayIntValue(values []*int, i int) int {
	if i < 0 || i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func stringValue(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

// hourSlice extracts day i's 24 hourly values from the provider's flat
// series, padding short or null tails with zeros.
func hourSlice(values []*float64, day int) []float64 {
	out := make([]float64, models.HoursPerDay)
	for h := 0; h < models.HoursPerDay; h++ {
		out[h] = weather.HourValue(values, day*models.HoursPerDay+h)
	}
	return out
}
