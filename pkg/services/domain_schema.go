package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/weather"
)

// recordValidator checks domain-forecast records against the declarative
// field specs on the model structs. Error messages use JSON field names so
// the offending field is recognizable to API callers.
var recordValidator = newRecordValidator()

func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRecord runs a record through its schema and reports the first
// failing field as a ValidationError. With a nil error the record is safe to
// persist; otherwise nothing may be written.
func ValidateRecord(record any) error {
	err := recordValidator.Struct(record)
	if err == nil {
		return nil
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		first := errs[0]
		return &apperrors.ValidationError{
			Field:  first.Field(),
			Value:  first.Value(),
			Reason: first.Tag(),
		}
	}
	return err
}

// DecodeRecord unmarshals a raw JSON payload into the record type of the
// given kind. Type mismatches surface as ValidationErrors so callers map
// them the same way as schema failures.
func DecodeRecord(kind models.ForecastKind, raw []byte) (any, error) {
	var record any
	switch kind {
	case models.KindAllergy:
		record = &models.AllergyRecord{}
	case models.KindBiometeorology:
		record = &models.BiometeorologyRecord{}
	case models.KindHealth:
		record = &models.HealthRecord{}
	case models.KindPollen:
		record = &models.PollenRecord{}
	default:
		return nil, fmt.Errorf("no record schema for kind %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(record); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &apperrors.ValidationError{
				Field:  typeErr.Field,
				Value:  typeErr.Value,
				Reason: "type",
			}
		}
		return nil, err
	}
	return record, nil
}

// Pollen concentration thresholds in grains/m3, following the coarse
// four-step scale the kiosk pages display.
const (
	pollenLowThreshold    = 1.0
	pollenMediumThreshold = 20.0
	pollenHighThreshold   = 80.0
)

func pollenLevel(grainsPerM3 float64) models.RiskLevel {
	switch {
	case grainsPerM3 < pollenLowThreshold:
		return models.RiskNone
	case grainsPerM3 < pollenMediumThreshold:
		return models.RiskLow
	case grainsPerM3 < pollenHighThreshold:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func maxLevel(levels ...models.RiskLevel) models.RiskLevel {
	rank := map[models.RiskLevel]int{
		models.RiskNone:   0,
		models.RiskLow:    1,
		models.RiskMedium: 2,
		models.RiskHigh:   3,
	}
	max := models.RiskNone
	for _, l := range levels {
		if rank[l] > rank[max] {
			max = l
		}
	}
	return max
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildPollenRecord derives the per-species pollen levels from the provider's
// hourly concentrations at the given hour. Missing or null entries count as
// zero load.
func buildPollenRecord(aq *weather.AirQualityData, hour int) *models.PollenRecord {
	rec := &models.PollenRecord{
		Alder:   pollenLevel(weather.HourValue(aq.Hourly.AlderPollen, hour)),
		Birch:   pollenLevel(weather.HourValue(aq.Hourly.BirchPollen, hour)),
		Grass:   pollenLevel(weather.HourValue(aq.Hourly.GrassPollen, hour)),
		Hazel:   pollenLevel(weather.HourValue(aq.Hourly.HazelPollen, hour)),
		Mugwort: pollenLevel(weather.HourValue(aq.Hourly.MugwortPollen, hour)),
		Ragweed: pollenLevel(weather.HourValue(aq.Hourly.RagweedPollen, hour)),
	}
	rec.Recommendations = pollenAdvice(maxLevel(rec.Alder, rec.Birch, rec.Grass, rec.Hazel, rec.Mugwort, rec.Ragweed))
	return rec
}

func buildAllergyRecord(aq *weather.AirQualityData, hour int) *models.AllergyRecord {
	rec := &models.AllergyRecord{
		BirchPollen:   pollenLevel(weather.HourValue(aq.Hourly.BirchPollen, hour)),
		GrassPollen:   pollenLevel(weather.HourValue(aq.Hourly.GrassPollen, hour)),
		MugwortPollen: pollenLevel(weather.HourValue(aq.Hourly.MugwortPollen, hour)),
		RagweedPollen: pollenLevel(weather.HourValue(aq.Hourly.RagweedPollen, hour)),
	}
	rec.OverallRisk = maxLevel(rec.BirchPollen, rec.GrassPollen, rec.MugwortPollen, rec.RagweedPollen)
	rec.Recommendations = pollenAdvice(rec.OverallRisk)
	return rec
}

func buildBiometeorologyRecord(aq *weather.AirQualityData, current *models.CurrentObservation, hour int) *models.BiometeorologyRecord {
	rec := &models.BiometeorologyRecord{
		ThermalLoad:     thermalLoad(current.ApparentTempC),
		UVIndex:         clampFloat(weather.HourValue(aq.Hourly.UVIndex, hour), 0, 12),
		OzoneLevel:      clampInt(int(weather.HourValue(aq.Hourly.Ozone, hour)), 0, 500),
		AirQualityIndex: clampInt(int(weather.HourValue(aq.Hourly.EuropeanAQI, hour)), 0, 500),
		HeatStress:      current.ApparentTempC >= 30,
		ColdStress:      current.ApparentTempC <= -5,
	}
	rec.Recommendations = biometeorologyAdvice(rec)
	return rec
}

func buildHealthRecord(current *models.CurrentObservation) *models.HealthRecord {
	rec := &models.HealthRecord{
		ColdRisk:      coldRisk(current.TemperatureC, current.HumidityPct),
		AsthmaRisk:    asthmaRisk(current.HumidityPct, current.TemperatureC),
		MigraineRisk:  migraineRisk(current.PressureHpa),
		JointPainRisk: jointPainRisk(current.TemperatureC, current.HumidityPct),
	}
	rec.Recommendations = healthAdvice(rec)
	return rec
}

// thermalLoad maps apparent temperature onto the -3 (extreme cold stress) to
// +3 (extreme heat stress) scale used by biometeorology bulletins.
func thermalLoad(apparentTempC float64) int {
	switch {
	case apparentTempC <= -15:
		return -3
	case apparentTempC <= -5:
		return -2
	case apparentTempC <= 5:
		return -1
	case apparentTempC < 26:
		return 0
	case apparentTempC < 32:
		return 1
	case apparentTempC < 38:
		return 2
	default:
		return 3
	}
}

func coldRisk(tempC, humidityPct float64) int {
	risk := 0
	if tempC < 10 {
		risk += int((10 - tempC) / 3)
	}
	if humidityPct > 80 {
		risk += 2
	}
	return clampInt(risk, 0, 10)
}

func asthmaRisk(humidityPct, tempC float64) int {
	risk := 1
	if humidityPct > 85 {
		risk += 3
	}
	if tempC < 0 {
		risk += 3
	}
	return clampInt(risk, 0, 10)
}

// migraineRisk rises as surface pressure departs from the 1013 hPa norm.
func migraineRisk(pressureHpa float64) int {
	if pressureHpa == 0 {
		return 0
	}
	delta := pressureHpa - 1013
	if delta < 0 {
		delta = -delta
	}
	return clampInt(int(delta/4), 0, 10)
}

func jointPainRisk(tempC, humidityPct float64) int {
	risk := 0
	if tempC < 8 {
		risk += 3
	}
	if humidityPct > 75 {
		risk += 3
	}
	return clampInt(risk, 0, 10)
}

func pollenAdvice(level models.RiskLevel) string {
	switch level {
	case models.RiskHigh:
		return "Sehr hohe Pollenbelastung. Allergiker sollten Aufenthalte im Freien meiden und Fenster geschlossen halten."
	case models.RiskMedium:
		return "Erhöhte Pollenbelastung. Lüften Sie bevorzugt nach Regenfällen."
	case models.RiskLow:
		return "Geringe Pollenbelastung. Empfindliche Personen sollten Medikamente bereithalten."
	default:
		return "Keine nennenswerte Pollenbelastung."
	}
}

func biometeorologyAdvice(rec *models.BiometeorologyRecord) string {
	switch {
	case rec.HeatStress:
		return "Starke Wärmebelastung. Ausreichend trinken und die Mittagssonne meiden."
	case rec.ColdStress:
		return "Starke Kältebelastung. Warme Kleidung in mehreren Schichten tragen."
	case rec.UVIndex >= 8:
		return "Sehr hoher UV-Index. Sonnenschutz verwenden und Schatten aufsuchen."
	case rec.AirQualityIndex >= 100:
		return "Beeinträchtigte Luftqualität. Anstrengende Aktivitäten im Freien einschränken."
	default:
		return "Keine besondere Wetterbelastung zu erwarten."
	}
}

func healthAdvice(rec *models.HealthRecord) string {
	worst := rec.ColdRisk
	for _, r := range []int{rec.AsthmaRisk, rec.MigraineRisk, rec.JointPainRisk} {
		if r > worst {
			worst = r
		}
	}
	switch {
	case worst >= 7:
		return "Deutlich erhöhtes Beschwerderisiko für wetterfühlige Personen. Belastungen reduzieren."
	case worst >= 4:
		return "Leicht erhöhtes Beschwerderisiko für wetterfühlige Personen."
	default:
		return "Geringes wetterbedingtes Beschwerderisiko."
	}
}
