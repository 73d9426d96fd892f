package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/adminctl/internal/client/storage"
)

// GetAttempts returns the attempt counter for the login
func (s *Storage) GetAttempts(ctx context.Context, login string) (*storage.LoginAttempts, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT login, failures, locked_until, updated_at
		 FROM login_attempts WHERE login = ?`,
		login,
	)

	var (
		attempts    storage.LoginAttempts
		lockedUntil int64
		updatedAt   int64
	)
	err := row.Scan(&attempts.Login, &attempts.Failures, &lockedUntil, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrAttemptsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read login attempts: %w", err)
	}

	if lockedUntil > 0 {
		attempts.LockedUntil = time.Unix(lockedUntil, 0)
	}
	if updatedAt > 0 {
		attempts.UpdatedAt = time.Unix(updatedAt, 0)
	}

	return &attempts, nil
}

// SaveAttempts upserts the attempt counter
func (s *Storage) SaveAttempts(ctx context.Context, attempts *storage.LoginAttempts) error {
	if attempts == nil {
		return fmt.Errorf("login attempts is nil")
	}

	var lockedUntil int64
	if !attempts.LockedUntil.IsZero() {
		lockedUntil = attempts.LockedUntil.Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO login_attempts (login, failures, locked_until, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (login) DO UPDATE SET
		     failures = excluded.failures,
		     locked_until = excluded.locked_until,
		     updated_at = excluded.updated_at`,
		attempts.Login,
		attempts.Failures,
		lockedUntil,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save login attempts: %w", err)
	}

	return nil
}

// ResetAttempts removes the attempt counter.
// Идемпотентна: сброс отсутствующего счетчика не является ошибкой.
func (s *Storage) ResetAttempts(ctx context.Context, login string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE login = ?`, login)
	if err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}
