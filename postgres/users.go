package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praxisauth/identity"
)

const userColumns = `id, email, email_verified, password_hash, name, avatar_url, tier, source, created_at, deleted_at`

func (s *Store) CreateUser(ctx context.Context, user *identity.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.EmailVerified, user.PasswordHash,
		user.Name, user.AvatarURL, string(user.Tier), string(user.Source),
		user.CreatedAt, nullTime(user.DeletedAt),
	)
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) scanUser(row *sql.Row) (*identity.User, error) {
	var (
		user      identity.User
		tier      string
		source    string
		deletedAt sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Email, &user.EmailVerified, &user.PasswordHash,
		&user.Name, &user.AvatarURL, &tier, &source, &user.CreatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Tier = identity.Tier(tier)
	user.Source = identity.Source(source)
	user.DeletedAt = timePtr(deletedAt)
	return &user, nil
}

func (s *Store) UpdateUserEmail(ctx context.Context, id, email string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $2, email_verified = $3 WHERE id = $1`,
		id, email, verified)
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user email: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetUserDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = $2 WHERE id = $1`,
		id, nullTime(deletedAt))
	if err != nil {
		return fmt.Errorf("set user deleted_at: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) HardDeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) PurgeUsersDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge users: %w", err)
	}
	return rowsAffected(res)
}
