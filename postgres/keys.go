package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/praxisauth/identity"
)

func (s *Store) CreateSigningKey(ctx context.Context, key *identity.SigningKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signing_keys (id, algorithm, private_key, public_key, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Algorithm, key.PrivateKey, key.PublicKey, key.Active, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert signing key: %w", err)
	}
	return nil
}

// Ordering is by insertion sequence rather than created_at: two keys minted
// in the same clock tick must still have a well-defined newest.
func (s *Store) ActiveSigningKey(ctx context.Context) (*identity.SigningKey, error) {
	var key identity.SigningKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, algorithm, private_key, public_key, active, created_at
		FROM signing_keys WHERE active ORDER BY seq DESC LIMIT 1`).
		Scan(&key.ID, &key.Algorithm, &key.PrivateKey, &key.PublicKey, &key.Active, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select signing key: %w", err)
	}
	return &key, nil
}

func (s *Store) ActiveSigningKeys(ctx context.Context) ([]identity.SigningKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, algorithm, private_key, public_key, active, created_at
		FROM signing_keys WHERE active ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("select signing keys: %w", err)
	}
	defer rows.Close()

	var keys []identity.SigningKey
	for rows.Next() {
		var key identity.SigningKey
		if err := rows.Scan(&key.ID, &key.Algorithm, &key.PrivateKey, &key.PublicKey,
			&key.Active, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signing key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signing keys: %w", err)
	}
	return keys, nil
}

func (s *Store) DeactivateSigningKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signing_keys SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate signing key: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrKeyNotFound
	}
	return nil
}
