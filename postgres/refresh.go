package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praxisauth/identity"
)

func (s *Store) CreateRefreshToken(ctx context.Context, token *identity.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.TokenHash, token.FamilyID,
		token.ExpiresAt, nullTime(token.RevokedAt), token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*identity.RefreshToken, error) {
	var (
		token     identity.RefreshToken
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, family_id, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash).
		Scan(&token.ID, &token.UserID, &token.TokenHash, &token.FamilyID,
			&token.ExpiresAt, &revokedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrRefreshNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	token.RevokedAt = timePtr(revokedAt)
	return &token, nil
}

// RotateRefreshToken revokes the presented token and inserts its successor
// in one transaction. The revoke is conditional on the token still being
// live; when two rotations race, one sees zero rows and reports false.
func (s *Store) RotateRefreshToken(ctx context.Context, presentedHash string, next *identity.RefreshToken) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`,
		presentedHash, now)
	if err != nil {
		return false, fmt.Errorf("revoke presented token: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
		next.ID, next.UserID, next.TokenHash, next.FamilyID,
		next.ExpiresAt, next.CreatedAt); err != nil {
		return false, fmt.Errorf("insert successor token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rotate: %w", err)
	}
	return true, nil
}

func (s *Store) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE family_id = $1 AND revoked_at IS NULL`,
		familyID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke family: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return rowsAffected(res)
}
