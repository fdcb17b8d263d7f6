// Package postgres is the production [identity.Store]. Every atomic
// guarantee the engine relies on is a conditional UPDATE or DELETE here:
// rotation, consumption and window reset all hinge on the WHERE clause, so
// concurrent callers serialize at the database and exactly one wins.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/praxisauth/identity"
)

const uniqueViolation = "23505"

// Store implements identity.Store on database/sql with the pq driver.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle. The caller owns the handle and its
// lifecycle; run [Migrate] before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying handle. Only call it for stores built with
// [Open].
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Users() identity.UserStore                         { return s }
func (s *Store) SigningKeys() identity.SigningKeyStore             { return s }
func (s *Store) RefreshTokens() identity.RefreshTokenStore         { return s }
func (s *Store) CrossDomainTokens() identity.CrossDomainTokenStore { return s }
func (s *Store) RateLimits() identity.RateLimitStore               { return s }
func (s *Store) EmailChanges() identity.EmailChangeStore           { return s }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// nullTime converts between *time.Time fields and nullable columns.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
