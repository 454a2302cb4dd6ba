package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/repositories"
)

// LocationHandler serves the registered locations for kiosk configuration.
type LocationHandler struct {
	locations repositories.LocationRepository
	logger    *zap.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(locations repositories.LocationRepository, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{locations: locations, logger: logger}
}

// RegisterRoutes registers the location handler's routes on the given mux.
func (h *LocationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/locations", h.List)
}

// List handles GET /api/locations requests.
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locations.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list locations", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, locations)
}
