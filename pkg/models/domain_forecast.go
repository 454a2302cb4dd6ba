package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ForecastKind names one of the derived daily forecast datasets the portal
// publishes alongside raw weather data.
type ForecastKind string

const (
	KindAllergy        ForecastKind = "allergy"
	KindBiometeorology ForecastKind = "biometeorology"
	KindHealth         ForecastKind = "health"
	KindPollen         ForecastKind = "pollen"
)

// ForecastKinds lists all supported kinds in a stable order.
var ForecastKinds = []ForecastKind{KindAllergy, KindBiometeorology, KindHealth, KindPollen}

// ParseForecastKind maps a path segment to a ForecastKind.
func ParseForecastKind(s string) (ForecastKind, error) {
	k := ForecastKind(s)
	for _, known := range ForecastKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown forecast kind %q", s)
}

// RiskLevel is the categorical severity used by pollen and allergy fields.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AllergyRecord is the daily allergy outlook derived from pollen
// concentrations. All level fields share one categorical scale.
type AllergyRecord struct {
	BirchPollen     RiskLevel `json:"birch_pollen" validate:"oneof=none low medium high"`
	GrassPollen     RiskLevel `json:"grass_pollen" validate:"oneof=none low medium high"`
	MugwortPollen   RiskLevel `json:"mugwort_pollen" validate:"oneof=none low medium high"`
	RagweedPollen   RiskLevel `json:"ragweed_pollen" validate:"oneof=none low medium high"`
	OverallRisk     RiskLevel `json:"overall_risk" validate:"oneof=none low medium high"`
	Recommendations string    `json:"recommendations" validate:"required"`
}

// BiometeorologyRecord is the daily environmental-stress outlook.
type BiometeorologyRecord struct {
	ThermalLoad     int     `json:"thermal_load" validate:"gte=-3,lte=3"`
	UVIndex         float64 `json:"uv_index" validate:"gte=0,lte=12"`
	OzoneLevel      int     `json:"ozone_level" validate:"gte=0,lte=500"`
	AirQualityIndex int     `json:"air_quality_index" validate:"gte=0,lte=500"`
	HeatStress      bool    `json:"heat_stress"`
	ColdStress      bool    `json:"cold_stress"`
	Recommendations string  `json:"recommendations" validate:"required"`
}

// HealthRecord is the daily weather-sensitivity outlook. All risk indices
// use a 0-10 integer scale.
type HealthRecord struct {
	ColdRisk        int    `json:"cold_risk" validate:"gte=0,lte=10"`
	AsthmaRisk      int    `json:"asthma_risk" validate:"gte=0,lte=10"`
	MigraineRisk    int    `json:"migraine_risk" validate:"gte=0,lte=10"`
	JointPainRisk   int    `json:"joint_pain_risk" validate:"gte=0,lte=10"`
	Recommendations string `json:"recommendations" validate:"required"`
}

// PollenRecord is the per-species pollen load for one day.
type PollenRecord struct {
	Alder           RiskLevel `json:"alder" validate:"oneof=none low medium high"`
	Birch           RiskLevel `json:"birch" validate:"oneof=none low medium high"`
	Grass           RiskLevel `json:"grass" validate:"oneof=none low medium high"`
	Hazel           RiskLevel `json:"hazel" validate:"oneof=none low medium high"`
	Mugwort         RiskLevel `json:"mugwort" validate:"oneof=none low medium high"`
	Ragweed         RiskLevel `json:"ragweed" validate:"oneof=none low medium high"`
	Recommendations string    `json:"recommendations" validate:"required"`
}

// DomainForecast is the stored form of a validated per-kind record, upserted
// on (location, kind, date). Fields holds the record's JSON document.
type DomainForecast struct {
	LocationID uuid.UUID       `json:"location_id"`
	Kind       ForecastKind    `json:"kind"`
	Date       time.Time       `json:"forecast_date"`
	Fields     json.RawMessage `json:"fields"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
