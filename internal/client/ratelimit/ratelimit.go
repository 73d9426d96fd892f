// Package ratelimit ограничивает частоту попыток входа.
// Счетчик неудач хранится в постоянном состоянии, чтобы перезапуск
// процесса не сбрасывал блокировку.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldops/adminctl/internal/client/storage"
)

const (
	DefaultMaxFailures = 10
	DefaultCooldown    = 5 * time.Minute
)

// LockedError означает, что вход для логина временно заблокирован.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// Limiter отслеживает последовательные неудачные попытки входа по логину.
type Limiter struct {
	storage     storage.AttemptStorage
	logger      *slog.Logger
	now         func() time.Time
	maxFailures int
	cooldown    time.Duration
}

type Option func(*Limiter)

func WithMaxFailures(n int) Option {
	return func(l *Limiter) { l.maxFailures = n }
}

func WithCooldown(d time.Duration) Option {
	return func(l *Limiter) { l.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(attemptStorage storage.AttemptStorage, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		storage:     attemptStorage,
		logger:      logger,
		now:         time.Now,
		maxFailures: DefaultMaxFailures,
		cooldown:    DefaultCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check возвращает *LockedError, если логин в кулдауне.
// Ошибки хранилища не блокируют вход: лимитер перестраховка,
// а не последняя линия обороны.
func (l *Limiter) Check(ctx context.Context, login string) error {
	attempts, err := l.storage.GetAttempts(ctx, login)
	if err != nil {
		if !errors.Is(err, storage.ErrAttemptsNotFound) {
			l.logger.Warn("failed to read login attempts", "error", err)
		}
		return nil
	}

	now := l.now()
	if attempts.LockedUntil.After(now) {
		return &LockedError{RetryAfter: attempts.LockedUntil.Sub(now)}
	}

	// Кулдаун истек - счетчик начинается заново
	if !attempts.LockedUntil.IsZero() {
		if err := l.storage.ResetAttempts(ctx, login); err != nil {
			l.logger.Warn("failed to reset expired lockout", "error", err)
		}
	}

	return nil
}

// RecordFailure увеличивает счетчик неудач и при достижении порога
// ставит блокировку на cooldown.
func (l *Limiter) RecordFailure(ctx context.Context, login string) {
	now := l.now()

	attempts, err := l.storage.GetAttempts(ctx, login)
	if err != nil {
		if !errors.Is(err, storage.ErrAttemptsNotFound) {
			l.logger.Warn("failed to read login attempts", "error", err)
			return
		}
		attempts = &storage.LoginAttempts{Login: login}
	}

	// Истекшая блокировка не тянет старые неудачи за собой
	if !attempts.LockedUntil.IsZero() && !attempts.LockedUntil.After(now) {
		attempts.Failures = 0
		attempts.LockedUntil = time.Time{}
	}

	attempts.Failures++
	attempts.UpdatedAt = now
	if attempts.Failures >= l.maxFailures {
		attempts.LockedUntil = now.Add(l.cooldown)
		l.logger.Warn("login locked after repeated failures",
			"login", login,
			"failures", attempts.Failures,
			"cooldown", l.cooldown)
	}

	if err := l.storage.SaveAttempts(ctx, attempts); err != nil {
		l.logger.Warn("failed to save login attempts", "error", err)
	}
}

// Reset сбрасывает счетчик после успешного входа.
func (l *Limiter) Reset(ctx context.Context, login string) {
	if err := l.storage.ResetAttempts(ctx, login); err != nil {
		l.logger.Warn("failed to reset login attempts", "error", err)
	}
}
