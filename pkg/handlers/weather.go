package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/repositories"
	"github.com/Zutavern/apo-sub001/pkg/services"
)

// DefaultLocation is the location assumed when a refresh request names none.
const DefaultLocation = "Hohenmölsen"

// WeatherHandler exposes the refresh endpoints and the kiosk read API.
type WeatherHandler struct {
	cfg          *config.Config
	refresh      services.RefreshService
	locations    repositories.LocationRepository
	observations repositories.ObservationRepository
	forecasts    repositories.ForecastRepository
	domain       repositories.DomainForecastRepository
	logger       *zap.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(
	cfg *config.Config,
	refresh services.RefreshService,
	locations repositories.LocationRepository,
	observations repositories.ObservationRepository,
	forecasts repositories.ForecastRepository,
	domain repositories.DomainForecastRepository,
	logger *zap.Logger,
) *WeatherHandler {
	return &WeatherHandler{
		cfg:          cfg,
		refresh:      refresh,
		locations:    locations,
		observations: observations,
		forecasts:    forecasts,
		domain:       domain,
		logger:       logger,
	}
}

// RegisterRoutes registers the weather handler's routes on the given mux.
func (h *WeatherHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/weather/update", h.UpdateCurrent)
	mux.HandleFunc("GET /api/weather/forecast/update", h.UpdateForecast)
	mux.HandleFunc("GET /api/weather/{kind}", h.UpdateDomain)
	mux.HandleFunc("POST /api/weather/{kind}", h.IngestDomain)
	mux.HandleFunc("GET /api/weather/current/{location}", h.Current)
	mux.HandleFunc("GET /api/weather/forecast/{location}", h.Forecast)
	mux.HandleFunc("GET /api/weather/{kind}/latest/{location}", h.LatestDomain)
}

// UpdateCurrent handles GET /api/weather/update requests. It refreshes the
// current observation for the requested (or default) location and returns the
// stored record.
func (h *WeatherHandler) UpdateCurrent(w http.ResponseWriter, r *http.Request) {
	location := locationParam(r)

	obs, err := h.refresh.RefreshCurrent(r.Context(), location)
	if err != nil {
		h.logger.Warn("Current refresh failed",
			zap.String("location", location),
			zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, obs)
}

// UpdateForecast handles GET /api/weather/forecast/update requests. It
// replaces the location's forecast window and returns the new window.
func (h *WeatherHandler) UpdateForecast(w http.ResponseWriter, r *http.Request) {
	location := locationParam(r)

	days, err := h.refresh.RefreshForecastWindow(r.Context(), location, h.cfg.Scheduler.ForecastDays)
	if err != nil {
		h.logger.Warn("Forecast refresh failed",
			zap.String("location", location),
			zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, days)
}

// UpdateDomain handles GET /api/weather/{kind} requests for the derived
// datasets (allergy, biometeorology, health, pollen). The ?test= parameter
// injects a provider timeout, an invalid record, or a storage failure.
func (h *WeatherHandler) UpdateDomain(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseForecastKind(r.PathValue("kind"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_kind", err.Error())
		return
	}

	location := locationParam(r)
	fault := services.ParseFaultMode(r.URL.Query().Get("test"))

	forecast, err := h.refresh.RefreshDomainForecast(r.Context(), kind, location, fault)
	if err != nil {
		h.logger.Warn("Domain refresh failed",
			zap.String("kind", string(kind)),
			zap.String("location", location),
			zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, forecast)
}

type ingestDomainRequest struct {
	LocationID   uuid.UUID       `json:"location_id"`
	ForecastDate string          `json:"forecast_date"`
	Record       json.RawMessage `json:"record"`
}

// IngestDomain handles POST /api/weather/{kind} requests. It accepts an
// externally produced record, validates it against the kind's schema, and
// stores it for the given location and date. The response is the row as
// persisted.
func (h *WeatherHandler) IngestDomain(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseForecastKind(r.PathValue("kind"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_kind", err.Error())
		return
	}

	var req ingestDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	date, err := time.Parse("2006-01-02", req.ForecastDate)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "forecast_date must be YYYY-MM-DD")
		return
	}

	loc, err := h.locations.GetByID(r.Context(), req.LocationID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	record, err := services.DecodeRecord(kind, req.Record)
	if err != nil {
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			_ = WriteServiceError(w, err)
			return
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	if _, err := h.refresh.StoreDomainForecast(r.Context(), kind, loc.ID, date, record); err != nil {
		h.logger.Warn("Domain ingest failed",
			zap.String("kind", string(kind)),
			zap.String("location", loc.Name),
			zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	stored, err := h.domain.Get(r.Context(), loc.ID, kind, date)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, stored)
}

// Current handles GET /api/weather/current/{location} requests, serving the
// stored observation for kiosk pages without touching the provider.
func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locations.GetByName(r.Context(), r.PathValue("location"))
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	obs, err := h.observations.GetByLocation(r.Context(), loc.ID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, obs)
}

// Forecast handles GET /api/weather/forecast/{location} requests, serving the
// stored forecast window.
func (h *WeatherHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locations.GetByName(r.Context(), r.PathValue("location"))
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	days, err := h.forecasts.GetWindow(r.Context(), loc.ID)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, days)
}

// LatestDomain handles GET /api/weather/{kind}/latest/{location} requests,
// serving the most recent stored record of a kind.
func (h *WeatherHandler) LatestDomain(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseForecastKind(r.PathValue("kind"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_kind", err.Error())
		return
	}

	loc, err := h.locations.GetByName(r.Context(), r.PathValue("location"))
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	forecast, err := h.domain.GetLatest(r.Context(), loc.ID, kind)
	if err != nil {
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, forecast)
}

func locationParam(r *http.Request) string {
	if loc := r.URL.Query().Get("location"); loc != "" {
		return loc
	}
	return DefaultLocation
}
