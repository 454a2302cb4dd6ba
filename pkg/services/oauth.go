// Package services contains business logic for portal-engine.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/auth"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/logging"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/repositories"
)

// HTTPClient interface for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuthService performs the PKCE authorization-code exchange against the
// design-tool provider and manages the stored token's lifecycle.
type OAuthService interface {
	// AuthorizationURL builds the provider's authorize URL for a verifier.
	AuthorizationURL(verifier string) (string, error)
	// CompleteAuthorization exchanges a callback code for a token pair and
	// persists it for the user. The verifier must be the original unhashed
	// value issued when the flow started.
	CompleteAuthorization(ctx context.Context, userID uuid.UUID, code, verifier string) (*models.StoredToken, error)
	// AccessTokenForUser returns a usable access token, refreshing an
	// expired one with its refresh token first.
	AccessTokenForUser(ctx context.Context, userID uuid.UUID) (string, error)
	// ValidateToken checks a token against the provider. Transport failures
	// count as invalid (fail-closed).
	ValidateToken(ctx context.Context, accessToken string) bool
	// Disconnect deletes the user's stored token. Idempotent.
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

type oauthService struct {
	cfg        *config.Config
	tokens     repositories.TokenRepository
	httpClient HTTPClient
	logger     *zap.Logger
	now        func() time.Time
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg *config.Config, tokens repositories.TokenRepository, logger *zap.Logger) OAuthService {
	return &oauthService{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// NewOAuthServiceWithClient creates a new OAuth service with a custom HTTP
// client (for testing).
func NewOAuthServiceWithClient(cfg *config.Config, tokens repositories.TokenRepository, httpClient HTTPClient, logger *zap.Logger) OAuthService {
	return &oauthService{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

var _ OAuthService = (*oauthService)(nil)

func (s *oauthService) AuthorizationURL(verifier string) (string, error) {
	base, err := url.Parse(s.cfg.OAuth.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}

	q := base.Query()
	q.Set("response_type", "code")
	q.Set("client_id", s.cfg.OAuth.ClientID)
	q.Set("redirect_uri", s.cfg.RedirectURI())
	q.Set("scope", strings.Join(s.cfg.OAuth.Scopes, " "))
	q.Set("code_challenge", auth.CodeChallenge(verifier))
	q.Set("code_challenge_method", "S256")
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (s *oauthService) CompleteAuthorization(ctx context.Context, userID uuid.UUID, code, verifier string) (*models.StoredToken, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", s.cfg.OAuth.ClientID)
	form.Set("client_secret", s.cfg.OAuth.ClientSecret)
	form.Set("code_verifier", verifier)
	form.Set("redirect_uri", s.cfg.RedirectURI())

	resp, err := s.exchange(ctx, form)
	if err != nil {
		return nil, err
	}

	token := &models.StoredToken{
		UserID:       userID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("OAuth authorization completed",
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

func (s *oauthService) AccessTokenForUser(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if !token.Expired(s.now()) {
		return token.AccessToken, nil
	}

	if token.RefreshToken == "" {
		return "", fmt.Errorf("%w: access token expired and no refresh token stored", apperrors.ErrTokenExchangeFailed)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", token.RefreshToken)
	form.Set("client_id", s.cfg.OAuth.ClientID)
	form.Set("client_secret", s.cfg.OAuth.ClientSecret)

	resp, err := s.exchange(ctx, form)
	if err != nil {
		// A failed refresh leaves the stored row untouched.
		return "", err
	}

	refreshed := &models.StoredToken{
		UserID:       userID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	// Providers may rotate the refresh token or omit it; keep the old one
	// when omitted.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if err := s.tokens.Save(ctx, refreshed); err != nil {
		return "", err
	}

	s.logger.Info("Refreshed expired access token", zap.String("user_id", userID.String()))

	return refreshed.AccessToken, nil
}

func (s *oauthService) ValidateToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.OAuth.ValidateURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (s *oauthService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.Delete(ctx, userID)
}

// exchange issues one form-encoded POST to the token endpoint. A non-2xx
// response fails with the provider's body attached for diagnostics.
func (s *oauthService) exchange(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OAuth.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Token request failed",
			zap.String("token_url", s.cfg.OAuth.TokenURL),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenExchangeFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("Token endpoint error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.SanitizeBody(logging.TruncateString(string(body), 512))))
		return nil, fmt.Errorf("%w: status %d: %s", apperrors.ErrTokenExchangeFailed, resp.StatusCode, logging.TruncateString(string(body), 512))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResp, nil
}
