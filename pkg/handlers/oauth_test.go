package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/auth"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

// stubOAuthService records exchange attempts so tests can assert the
// callback never exchanges on error paths.
type stubOAuthService struct {
	exchanges        int
	capturedVerifier string
	exchangeErr      error
	disconnects      int
}

func (s *stubOAuthService) AuthorizationURL(verifier string) (string, error) {
	return "https://provider.example.com/oauth/authorize?code_challenge=" + url.QueryEscape(auth.CodeChallenge(verifier)), nil
}

func (s *stubOAuthService) CompleteAuthorization(_ context.Context, _ uuid.UUID, code, verifier string) (*models.StoredToken, error) {
	s.exchanges++
	s.capturedVerifier = verifier
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return &models.StoredToken{AccessToken: "at"}, nil
}

func (s *stubOAuthService) AccessTokenForUser(_ context.Context, _ uuid.UUID) (string, error) {
	return "at", nil
}

func (s *stubOAuthService) ValidateToken(_ context.Context, _ string) bool { return true }

func (s *stubOAuthService) Disconnect(_ context.Context, _ uuid.UUID) error {
	s.disconnects++
	return nil
}

func newOAuthMux(stub *stubOAuthService) *http.ServeMux {
	auth.InitSessionStore("test-secret", false)

	cfg := &config.Config{
		OAuth: config.OAuthConfig{
			ProviderName: "canva",
			RedirectPath: "/api/auth/callback",
			SettingsPath: "/dashboard/settings",
		},
	}
	mux := http.NewServeMux()
	NewOAuthHandler(cfg, stub, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestOAuthStart_RedirectsWithVerifierSession(t *testing.T) {
	mux := newOAuthMux(&stubOAuthService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/canva", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	require.Contains(t, location, "https://provider.example.com/oauth/authorize")
	require.NotEmpty(t, rec.Result().Cookies(), "flow session cookie must be set before the redirect")
}

func TestOAuthStart_UnknownProvider(t *testing.T) {
	mux := newOAuthMux(&stubOAuthService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/figma", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthCallback_ProviderErrorPassesThroughUnchanged(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback?error=access_denied", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/dashboard/settings", redirect.Path)
	require.Equal(t, "access_denied", redirect.Query().Get("error"))
	require.Zero(t, stub.exchanges, "no token exchange may happen after a provider error")
}

func TestOAuthCallback_MissingCode(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.NotEmpty(t, redirect.Query().Get("error"))
	require.Zero(t, stub.exchanges)
}

func TestOAuthCallback_MissingVerifier(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	// A callback with a code but no flow session: the verifier is gone.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=auth-code", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.NotEmpty(t, redirect.Query().Get("error"))
	require.Zero(t, stub.exchanges, "no exchange without the original verifier")
}

func TestOAuthCallback_SuccessExchangesStoredVerifier(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	// Start the flow to obtain the verifier cookie.
	startRec := httptest.NewRecorder()
	mux.ServeHTTP(startRec, httptest.NewRequest(http.MethodGet, "/api/auth/canva", nil))
	cookies := startRec.Result().Cookies()
	require.NotEmpty(t, cookies)

	cbReq := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=auth-code", nil)
	for _, c := range cookies {
		cbReq.AddCookie(c)
	}
	cbRec := httptest.NewRecorder()
	mux.ServeHTTP(cbRec, cbReq)

	require.Equal(t, http.StatusFound, cbRec.Code)
	redirect, err := url.Parse(cbRec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/dashboard/settings", redirect.Path)
	require.Equal(t, "true", redirect.Query().Get("success"))
	require.Equal(t, 1, stub.exchanges)
	require.Len(t, stub.capturedVerifier, auth.VerifierLength)
}

func TestOAuthDisconnect_RequiresSession(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/canva/disconnect", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, stub.disconnects)
}

func TestOAuthDisconnect_DeletesToken(t *testing.T) {
	stub := &stubOAuthService{}
	mux := newOAuthMux(stub)

	// Seed a user session cookie.
	seedReq := httptest.NewRequest(http.MethodGet, "/", nil)
	seedRec := httptest.NewRecorder()
	session, err := auth.GetUserSession(seedReq)
	require.NoError(t, err)
	session.Values[auth.SessionKeyUserID] = uuid.New().String()
	require.NoError(t, auth.SaveSession(seedReq, seedRec, session))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/canva/disconnect", nil)
	for _, c := range seedRec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, stub.disconnects)
}
