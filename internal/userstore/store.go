// SPDX-License-Identifier: MPL-2.0

// Package userstore persists accounts (username, password hash, role) in
// SQLite.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const usersSchema = `CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
)`

type (
	// Store is the account repository.
	Store interface {
		FindByUsername(ctx context.Context, username Username) (*User, error)
		Insert(ctx context.Context, u *User) error
		Update(ctx context.Context, u *User) error
		Delete(ctx context.Context, username Username) error
		List(ctx context.Context) ([]User, error)
	}

	// SQLite implements Store on a SQLite database.
	SQLite struct {
		db  *sql.DB
		now func() time.Time
	}
)

// NewSQLite creates the users table if needed.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return nil, fmt.Errorf("creating users table: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// FindByUsername returns the account or an error wrapping ErrUserNotFound.
func (s *SQLite) FindByUsername(ctx context.Context, username Username) (*User, error) {
	var (
		u    User
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at, updated_at FROM users WHERE username = ?`,
		string(username),
	).Scan(&u.Username, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", username, err)
	}
	u.Role = Role(role)
	return &u, nil
}

// Insert adds a new account. The username and role are validated first.
func (s *SQLite) Insert(ctx context.Context, u *User) error {
	if err := u.Username.Validate(); err != nil {
		return err
	}
	if err := u.Role.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(u.Username), u.PasswordHash, string(u.Role), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return fmt.Errorf("inserting user %s: %w", u.Username, err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// Update replaces the password hash and role of an existing account.
func (s *SQLite) Update(ctx context.Context, u *User) error {
	if err := u.Role.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, role = ?, updated_at = ? WHERE username = ?`,
		u.PasswordHash, string(u.Role), now, string(u.Username))
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.Username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, u.Username)
	}
	u.UpdatedAt = now
	return nil
}

// Delete removes an account.
func (s *SQLite) Delete(ctx context.Context, username Username) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, string(username))
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return nil
}

// List returns all accounts ordered by username.
func (s *SQLite) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password_hash, role, created_at, updated_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u    User
			role string
		)
		if err := rows.Scan(&u.Username, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}
		u.Role = Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// isUniqueViolation recognizes SQLite's primary key conflict message without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
