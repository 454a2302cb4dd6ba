package models

import (
	"time"

	"github.com/google/uuid"
)

// StoredToken is the OAuth token pair persisted per portal user after a
// successful authorization-code exchange. One row per user, overwritten on
// re-authorization and removed on disconnect.
type StoredToken struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is past its expiry at the given
// instant.
func (t *StoredToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
