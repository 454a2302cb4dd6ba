package services

import (
	"context"
	"sync"
	"time"
)

// appTokenSkew re-fetches shortly before the provider-reported expiry so a
// token is never presented in its final seconds.
const appTokenSkew = 30 * time.Second

// AppTokenSource caches the client-credentials access token used for
// read-only asset search. The cached value carries an explicit expiry checked
// against a monotonic clock read on every use; an expired entry is replaced
// by a fresh fetch, never served.
type AppTokenSource struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now   func() time.Time
	fetch func(ctx context.Context) (token string, ttl time.Duration, err error)
}

// NewAppTokenSource creates a token source around a fetch function that
// performs the client-credentials grant.
func NewAppTokenSource(fetch func(ctx context.Context) (string, time.Duration, error)) *AppTokenSource {
	return &AppTokenSource{
		now:   time.Now,
		fetch: fetch,
	}
}

// Token returns the cached token, fetching a new one when the cache is empty
// or expired. Concurrent callers serialize on one fetch.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(appTokenSkew).Before(s.expiresAt) {
		return s.token, nil
	}

	token, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = s.now().Add(ttl)
	return s.token, nil
}

// Invalidate drops the cached token so the next call fetches fresh. Used
// after a 401 from the asset endpoint.
func (s *AppTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
