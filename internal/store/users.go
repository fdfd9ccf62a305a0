// ABOUTME: User account persistence for the auth service
// ABOUTME: Stores credential hashes, salts, roles and the mute flag

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser inserts a new user.
// Returns ErrDuplicate if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	role := user.Role
	if role == "" {
		role = RoleStudent
	}

	query := `
		INSERT INTO users (username, password_hash, salt, role, muted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Salt,
		string(role),
		user.Muted,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "username", user.Username, "role", role)
	return nil
}

// GetUser retrieves a user by username.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT username, password_hash, salt, role, muted, created_at
		FROM users
		WHERE username = ?
	`

	var u User
	var role, createdAt string
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&u.Username,
		&u.PasswordHash,
		&u.Salt,
		&role,
		&u.Muted,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Role = Role(role)
	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}

	return &u, nil
}

// UpdatePassword replaces a user's credential hash and salt.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, username, passwordHash, salt string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, salt = ? WHERE username = ?`,
		passwordHash, salt, username,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Debug("updated password", "username", username)
	return nil
}

// SetMuted sets a user's mute flag.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) SetMuted(ctx context.Context, username string, muted bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET muted = ? WHERE username = ?`,
		muted, username,
	)
	if err != nil {
		return fmt.Errorf("updating muted: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Debug("set muted", "username", username, "muted", muted)
	return nil
}

// requireRow returns ErrNotFound when an UPDATE or DELETE touched no rows.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
