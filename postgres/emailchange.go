package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praxisauth/identity"
)

func (s *Store) ReplaceEmailChangeRequest(ctx context.Context, req *identity.EmailChangeRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_changes (id, user_id, new_email, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			id = $1, new_email = $3, token_hash = $4, expires_at = $5, created_at = $6`,
		req.ID, req.UserID, req.NewEmail, req.TokenHash, req.ExpiresAt, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("replace email change: %w", err)
	}
	return nil
}

// ConsumeEmailChangeRequest deletes and returns the row in one statement, so
// a token confirms at most once even under concurrent attempts.
func (s *Store) ConsumeEmailChangeRequest(ctx context.Context, hash string, now time.Time) (*identity.EmailChangeRequest, error) {
	var req identity.EmailChangeRequest
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM email_changes
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING id, user_id, new_email, token_hash, expires_at, created_at`,
		hash, now).
		Scan(&req.ID, &req.UserID, &req.NewEmail, &req.TokenHash, &req.ExpiresAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrEmailChangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume email change: %w", err)
	}
	return &req, nil
}

func (s *Store) PurgeExpiredEmailChanges(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM email_changes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge email changes: %w", err)
	}
	return rowsAffected(res)
}
