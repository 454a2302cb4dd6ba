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

	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/logging"
	"github.com/Zutavern/apo-sub001/pkg/retry"
)

// Asset is one design asset returned by the provider's search endpoint.
type Asset struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// AssetService performs read-only asset search against the design-tool
// provider using a cached client-credentials app token.
type AssetService interface {
	Search(ctx context.Context, query string) ([]Asset, error)
}

type assetService struct {
	cfg        *config.Config
	httpClient HTTPClient
	tokens     *AppTokenSource
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewAssetService creates an asset service with its own app-token source.
func NewAssetService(cfg *config.Config, httpClient HTTPClient, logger *zap.Logger) AssetService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	s := &assetService{
		cfg:        cfg,
		httpClient: httpClient,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger,
	}
	s.tokens = NewAppTokenSource(s.fetchAppToken)
	return s
}

var _ AssetService = (*assetService)(nil)

func (s *assetService) Search(ctx context.Context, query string) ([]Asset, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(s.cfg.OAuth.AssetsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid assets URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	// Transient provider failures are retried; a 401 invalidates the cached
	// app token and is permanent for this call.
	return retry.DoWithResult(ctx, s.retryCfg, func() ([]Asset, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create asset request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, &apperrors.ProviderError{Provider: s.cfg.OAuth.ProviderName, Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusUnauthorized {
			// The cached app token was revoked upstream; drop it so the next
			// search fetches fresh.
			s.tokens.Invalidate()
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &apperrors.ProviderError{Provider: s.cfg.OAuth.ProviderName, StatusCode: resp.StatusCode}
		}

		var payload struct {
			Items []Asset `json:"items"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode asset response: %w", err)
		}

		return payload.Items, nil
	})
}

// fetchAppToken performs the client-credentials grant for read-only scopes.
func (s *assetService) fetchAppToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.OAuth.ClientID)
	form.Set("client_secret", s.cfg.OAuth.ClientSecret)
	form.Set("scope", strings.Join(s.cfg.OAuth.Scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OAuth.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", apperrors.ErrTokenExchangeFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("App token request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.SanitizeBody(logging.TruncateString(string(body), 512))))
		return "", 0, fmt.Errorf("%w: status %d", apperrors.ErrTokenExchangeFailed, resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}

	return tokenResp.AccessToken, time.Duration(tokenResp.ExpiresIn) * time.Second, nil
}
