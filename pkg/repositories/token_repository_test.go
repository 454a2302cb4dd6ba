package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
	"github.com/Zutavern/apo-sub001/pkg/models"
)

func TestTokenRepository_Save_OverwritesOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewTokenRepository(db)

	token := &models.StoredToken{
		UserID:       uuid.New(),
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO oauth_tokens`).
		WithArgs(token.UserID, token.AccessToken, token.RefreshToken, token.ExpiresAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Save(context.Background(), token))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewTokenRepository(db)

	userID := uuid.New()
	mock.ExpectQuery(`SELECT user_id, access_token`).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), userID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTokenRepository_Delete_IdempotentWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewTokenRepository(db)

	userID := uuid.New()

	// Zero rows affected is still success: disconnecting twice must not
	// surface an error to the caller.
	mock.ExpectExec(`DELETE FROM oauth_tokens WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, r.Delete(context.Background(), userID))
	require.NoError(t, mock.ExpectationsWereMet())
}
