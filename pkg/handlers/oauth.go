package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/auth"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/services"
)

// OAuthHandler drives the PKCE authorization flow against the design-tool
// provider: start redirect, provider callback, and disconnect.
type OAuthHandler struct {
	cfg    *config.Config
	oauth  services.OAuthService
	logger *zap.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(cfg *config.Config, oauth services.OAuthService, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{cfg: cfg, oauth: oauth, logger: logger}
}

// RegisterRoutes registers the OAuth handler's routes on the given mux.
func (h *OAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/{provider}", h.Start)
	mux.HandleFunc("GET "+h.cfg.OAuth.RedirectPath, h.Callback)
	mux.HandleFunc("POST /api/auth/{provider}/disconnect", h.Disconnect)
}

// Start handles GET /api/auth/{provider} requests. It generates a fresh code
// verifier, stores it in the short-lived flow session, and redirects the
// browser to the provider's authorize URL with the S256 challenge.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if provider := r.PathValue("provider"); provider != h.cfg.OAuth.ProviderName {
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_provider", fmt.Sprintf("provider %q is not configured", provider))
		return
	}

	verifier, err := auth.GenerateCodeVerifier()
	if err != nil {
		h.logger.Error("Failed to generate code verifier", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "verifier_generation_failed", "could not start authorization flow")
		return
	}

	session, err := auth.GetOAuthSession(r)
	if err != nil {
		h.logger.Error("Failed to open OAuth session", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "session_error", "could not start authorization flow")
		return
	}
	session.Values[auth.SessionKeyCodeVerifier] = verifier
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Error("Failed to save OAuth session", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "session_error", "could not start authorization flow")
		return
	}

	authorizeURL, err := h.oauth.AuthorizationURL(verifier)
	if err != nil {
		h.logger.Error("Failed to build authorize URL", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "authorize_url_invalid", "could not start authorization flow")
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback handles the provider redirect back to us. Provider-reported
// errors pass through to the settings page unchanged, without any token
// exchange. A missing code or missing verifier likewise aborts before any
// exchange happens.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		h.logger.Warn("Provider reported authorization error", zap.String("error", errCode))
		h.redirectSettings(w, r, url.Values{"error": {errCode}})
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("Callback missing authorization code")
		h.redirectSettings(w, r, url.Values{"error": {apperrors.ErrMissingCode.Error()}})
		return
	}

	verifier, ok := auth.ConsumeVerifier(r, w)
	if !ok {
		h.logger.Warn("Callback without stored code verifier")
		h.redirectSettings(w, r, url.Values{"error": {apperrors.ErrMissingVerifier.Error()}})
		return
	}

	userID, ok := auth.CurrentUserID(r)
	if !ok {
		// The kiosk has no login system; an anonymous browser completing
		// the flow gets a fresh id bound to its session cookie.
		userID = uuid.New()
		session, err := auth.GetUserSession(r)
		if err == nil {
			session.Values[auth.SessionKeyUserID] = userID.String()
			_ = auth.SaveSession(r, w, session)
		}
	}

	if _, err := h.oauth.CompleteAuthorization(r.Context(), userID, code, verifier); err != nil {
		h.logger.Error("Token exchange failed", zap.Error(err))
		h.redirectSettings(w, r, url.Values{"error": {"token_exchange_failed"}})
		return
	}

	h.redirectSettings(w, r, url.Values{"success": {"true"}})
}

// Disconnect handles POST /api/auth/{provider}/disconnect requests, deleting
// the signed-in user's stored token. Safe to repeat.
func (h *OAuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if provider := r.PathValue("provider"); provider != h.cfg.OAuth.ProviderName {
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_provider", fmt.Sprintf("provider %q is not configured", provider))
		return
	}

	userID, ok := auth.CurrentUserID(r)
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "not_signed_in", "no active session")
		return
	}

	if err := h.oauth.Disconnect(r.Context(), userID); err != nil {
		h.logger.Error("Disconnect failed", zap.Error(err))
		_ = WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (h *OAuthHandler) redirectSettings(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := h.cfg.OAuth.SettingsPath
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}
