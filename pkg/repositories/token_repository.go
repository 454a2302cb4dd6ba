package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/database"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

// TokenRepository stores one OAuth token pair per user. Save overwrites on
// re-authorization; Delete is idempotent.
type TokenRepository interface {
	Save(ctx context.Context, token *models.StoredToken) error
	Get(ctx context.Context, userID uuid.UUID) (*models.StoredToken, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type tokenRepository struct {
	db *database.DB
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *database.DB) TokenRepository {
	return &tokenRepository{db: db}
}

var _ TokenRepository = (*tokenRepository)(nil)

func (r *tokenRepository) Save(ctx context.Context, token *models.StoredToken) error {
	token.UpdatedAt = time.Now()

	query := `
		INSERT INTO oauth_tokens (user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Pool.Exec(ctx, query,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		token.UpdatedAt,
	)
	if err != nil {
		return &apperrors.StorageError{Op: "save token", Err: err}
	}

	return nil
}

func (r *tokenRepository) Get(ctx context.Context, userID uuid.UUID) (*models.StoredToken, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1`

	var token models.StoredToken
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
		&token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.StorageError{Op: "get token", Err: err}
	}

	return &token, nil
}

// Delete removes the stored token. Deleting an absent token is not an error.
func (r *tokenRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM oauth_tokens WHERE user_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return &apperrors.StorageError{Op: "delete token", Err: err}
	}

	return nil
}
