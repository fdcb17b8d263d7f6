package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praxisauth/identity"
)

func (s *Store) CreateCrossDomainToken(ctx context.Context, token *identity.CrossDomainToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cross_domain_tokens (id, user_id, token_hash, target, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.TokenHash, string(token.Target),
		token.ExpiresAt, nullTime(token.UsedAt), token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert cross-domain token: %w", err)
	}
	return nil
}

func (s *Store) GetCrossDomainTokenByHash(ctx context.Context, hash string) (*identity.CrossDomainToken, error) {
	var (
		token  identity.CrossDomainToken
		target string
		usedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, target, expires_at, used_at, created_at
		FROM cross_domain_tokens WHERE token_hash = $1`, hash).
		Scan(&token.ID, &token.UserID, &token.TokenHash, &target,
			&token.ExpiresAt, &usedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrCrossDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cross-domain token: %w", err)
	}
	token.Target = identity.Target(target)
	token.UsedAt = timePtr(usedAt)
	return &token, nil
}

// ConsumeCrossDomainToken stamps used_at in a single conditional UPDATE.
// Concurrent redemptions of one token hit the same row and only the first
// matches the used_at IS NULL predicate.
func (s *Store) ConsumeCrossDomainToken(ctx context.Context, hash string, target identity.Target, now time.Time) (*identity.CrossDomainToken, bool, error) {
	var (
		token     identity.CrossDomainToken
		targetCol string
		usedAt    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE cross_domain_tokens SET used_at = $3
		WHERE token_hash = $1 AND target = $2 AND used_at IS NULL AND expires_at > $3
		RETURNING id, user_id, token_hash, target, expires_at, used_at, created_at`,
		hash, string(target), now).
		Scan(&token.ID, &token.UserID, &token.TokenHash, &targetCol,
			&token.ExpiresAt, &usedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("consume cross-domain token: %w", err)
	}
	token.Target = identity.Target(targetCol)
	token.UsedAt = timePtr(usedAt)
	return &token, true, nil
}

func (s *Store) PurgeExpiredCrossDomainTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cross_domain_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge cross-domain tokens: %w", err)
	}
	return rowsAffected(res)
}
