package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praxisauth/identity"
)

func (s *Store) GetRateLimit(ctx context.Context, key string) (*identity.RateLimitRecord, error) {
	var (
		rec     identity.RateLimitRecord
		blocked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, count, window_start, blocked_until
		FROM rate_limits WHERE key = $1`, key).
		Scan(&rec.Key, &rec.Count, &rec.WindowStart, &blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select rate limit: %w", err)
	}
	rec.BlockedUntil = timePtr(blocked)
	return &rec, nil
}

// IncrementRateLimit is an upsert with conditional window reset: a row whose
// window started before the cutoff restarts at one, anything newer counts
// up. The database serializes concurrent upserts on the primary key.
func (s *Store) IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (*identity.RateLimitRecord, error) {
	cutoff := now.Add(-window)

	var (
		rec     identity.RateLimitRecord
		blocked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_limits (key, count, window_start)
		VALUES ($1, 1, $2)
		ON CONFLICT (key) DO UPDATE SET
			count        = CASE WHEN rate_limits.window_start > $3 THEN rate_limits.count + 1 ELSE 1 END,
			window_start = CASE WHEN rate_limits.window_start > $3 THEN rate_limits.window_start ELSE $2 END
		RETURNING key, count, window_start, blocked_until`,
		key, now, cutoff).
		Scan(&rec.Key, &rec.Count, &rec.WindowStart, &blocked)
	if err != nil {
		return nil, fmt.Errorf("increment rate limit: %w", err)
	}
	rec.BlockedUntil = timePtr(blocked)
	return &rec, nil
}

func (s *Store) BlockRateLimit(ctx context.Context, key string, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limits (key, count, window_start, blocked_until)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (key) DO UPDATE SET blocked_until = $3`,
		key, time.Now().UTC(), until)
	if err != nil {
		return fmt.Errorf("block rate limit: %w", err)
	}
	return nil
}

func (s *Store) DeleteRateLimit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}
