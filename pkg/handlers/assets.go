package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/services"
)

// AssetHandler exposes read-only design-asset search for the kiosk editor.
type AssetHandler struct {
	assets services.AssetService
	logger *zap.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assets services.AssetService, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: logger}
}

// RegisterRoutes registers the asset handler's routes on the given mux.
func (h *AssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/assets/search", h.Search)
}

// Search handles GET /api/assets/search?q= requests.
func (h *AssetHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_query", "query parameter q is required")
		return
	}

	assets, err := h.assets.Search(r.Context(), query)
	if err != nil {
		h.logger.Warn("Asset search failed", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteSuccess(w, assets)
}
