package storage

import (
	"context"
	"time"

	"github.com/fieldops/adminctl/pkg/api"
)

// SessionState представляет сохраненное состояние сессии во вторичном
// durable-хранилище (sqlite). Это хранилище независимо от хранилища
// учетных данных: из него восстанавливается сессия при bootstrap.
type SessionState struct {
	// DeviceID - уникальный ID этой установки, назначается при первом открытии
	DeviceID string
	// Authenticated - флаг последней успешной аутентификации (fast path)
	Authenticated bool
	// Profile - профиль пользователя, перезаписывается целиком
	Profile api.User
	// AccessToken / RefreshToken - durable-уровень хранения токенов.
	// Пустая строка означает, что durable-уровень пуст.
	AccessToken  string
	RefreshToken string
	// UpdatedAt - время последней записи
	UpdatedAt time.Time
}

// LoginAttempts представляет счетчик подряд неудачных попыток логина
type LoginAttempts struct {
	Login       string
	Failures    int
	LockedUntil time.Time
	UpdatedAt   time.Time
}

// StateStorage defines the durable session state backend.
// A single state row always exists after Open (with a fresh DeviceID).
type StateStorage interface {
	// GetState returns the current session state
	GetState(ctx context.Context) (*SessionState, error)

	// SaveState replaces the session state wholesale (DeviceID preserved)
	SaveState(ctx context.Context, state *SessionState) error

	// ClearSession drops profile, flag and tokens but keeps the DeviceID
	ClearSession(ctx context.Context) error
}

// AttemptStorage defines persistence for login attempt counters
type AttemptStorage interface {
	// GetAttempts returns the counter for the login.
	// Returns ErrAttemptsNotFound if the login has no recorded failures.
	GetAttempts(ctx context.Context, login string) (*LoginAttempts, error)

	// SaveAttempts upserts the counter
	SaveAttempts(ctx context.Context, attempts *LoginAttempts) error

	// ResetAttempts removes the counter; missing counter is not an error
	ResetAttempts(ctx context.Context, login string) error
}
