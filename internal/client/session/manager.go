// Package session содержит менеджер токенов текущей сессии.
//
// Менеджер - единственный источник правды для access/refresh токенов.
// Живая копия всегда в памяти (исходящие запросы читают ее синхронно),
// зеркало пишется ровно в один уровень хранения: durable (sqlite state
// store, при "remember me") или session-уровень (память процесса).
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldops/adminctl/internal/client/storage"
	"github.com/fieldops/adminctl/pkg/api"
)

// DefaultOpTimeout - предел ожидания операций durable-хранилища
const DefaultOpTimeout = 3 * time.Second

// Manager управляет токенами и кэшированным профилем пользователя
type Manager struct {
	storage   storage.StateStorage
	logger    *slog.Logger
	opTimeout time.Duration

	mu sync.RWMutex
	// Живая копия токенов
	access  string
	refresh string
	// Session-уровень хранения (не переживает процесс)
	sessionAccess  string
	sessionRefresh string
	// Кэшированный профиль, перезаписывается целиком
	profile *api.User
}

// NewManager создает менеджер поверх durable-хранилища состояния
func NewManager(stg storage.StateStorage, logger *slog.Logger) *Manager {
	return &Manager{
		storage:   stg,
		logger:    logger,
		opTimeout: DefaultOpTimeout,
	}
}

// AccessToken возвращает текущий access token (пустая строка - токена нет)
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

// RefreshToken возвращает текущий refresh token
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

// Profile возвращает кэшированный профиль или nil
func (m *Manager) Profile() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// SetProfile перезаписывает кэшированный профиль целиком
func (m *Manager) SetProfile(profile api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = &profile
}

// MarkAuthenticated фиксирует подтвержденный профиль: перезаписывает
// кэш и отражает authenticated-флаг с профилем в durable-состояние,
// чтобы следующий запуск прошел по fast path без сети.
func (m *Manager) MarkAuthenticated(ctx context.Context, profile api.User) {
	m.mu.Lock()
	m.profile = &profile
	m.mu.Unlock()

	m.mirrorDurable(ctx, func(state *storage.SessionState) {
		state.Authenticated = true
		state.Profile = profile
	})
}

// SetAccessToken записывает access token: сначала в память (синхронно),
// затем ровно в один уровень хранения по флагу remember.
// Противоположный уровень очищается, чтобы живая копия была ровно в одном.
func (m *Manager) SetAccessToken(ctx context.Context, token string, remember bool) {
	m.mu.Lock()
	m.access = token
	if remember {
		m.sessionAccess = ""
	} else {
		m.sessionAccess = token
	}
	m.mu.Unlock()

	m.mirrorDurable(ctx, func(state *storage.SessionState) {
		if remember {
			state.AccessToken = token
		} else {
			state.AccessToken = ""
		}
	})
}

// SetRefreshToken записывает refresh token, та же дисциплина уровней
func (m *Manager) SetRefreshToken(ctx context.Context, token string, remember bool) {
	m.mu.Lock()
	m.refresh = token
	if remember {
		m.sessionRefresh = ""
	} else {
		m.sessionRefresh = token
	}
	m.mu.Unlock()

	m.mirrorDurable(ctx, func(state *storage.SessionState) {
		if remember {
			state.RefreshToken = token
		} else {
			state.RefreshToken = ""
		}
	})
}

// SetSession атомарно фиксирует успешную аутентификацию:
// профиль (целиком), оба токена и durable-флаг authenticated.
func (m *Manager) SetSession(ctx context.Context, profile api.User, accessToken, refreshToken string, remember bool) {
	m.mu.Lock()
	m.profile = &profile
	m.access = accessToken
	m.refresh = refreshToken
	if remember {
		m.sessionAccess = ""
		m.sessionRefresh = ""
	} else {
		m.sessionAccess = accessToken
		m.sessionRefresh = refreshToken
	}
	m.mu.Unlock()

	m.mirrorDurable(ctx, func(state *storage.SessionState) {
		state.Authenticated = true
		state.Profile = profile
		if remember {
			state.AccessToken = accessToken
			state.RefreshToken = refreshToken
		} else {
			state.AccessToken = ""
			state.RefreshToken = ""
		}
	})
}

// Clear сбрасывает токены и профиль в памяти и безусловно очищает
// оба уровня хранения (защитная очистка вне зависимости от того,
// какой уровень использовался).
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	m.access = ""
	m.refresh = ""
	m.sessionAccess = ""
	m.sessionRefresh = ""
	m.profile = nil
	m.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	if err := m.storage.ClearSession(opCtx); err != nil {
		m.logger.Warn("session: failed to clear durable session state", "error", err)
	}
}

// RestoreDurable поднимает durable-уровень в память (используется
// цепочкой bootstrap при восстановлении сессии). Возвращает true,
// если durable-уровень содержал хотя бы access token.
func (m *Manager) RestoreDurable(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	state, err := m.storage.GetState(opCtx)
	if err != nil {
		m.logger.Debug("session: failed to read durable session state", "error", err)
		return false
	}
	if state.AccessToken == "" && state.RefreshToken == "" {
		return false
	}

	m.mu.Lock()
	m.access = state.AccessToken
	m.refresh = state.RefreshToken
	m.mu.Unlock()
	return true
}

// TokenExpiry извлекает срок действия из claims JWT без проверки подписи.
// Подпись проверяет сервер; клиенту срок нужен только для отображения
// и fast-path проверок. Возвращает false, если токен не разбирается
// или не содержит exp - это не ошибка.
func (m *Manager) TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// mirrorDurable применяет изменение к durable-состоянию с таймаутом
func (m *Manager) mirrorDurable(ctx context.Context, apply func(*storage.SessionState)) {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	state, err := m.storage.GetState(opCtx)
	if err != nil {
		m.logger.Warn("session: failed to read durable session state", "error", err)
		return
	}

	apply(state)

	if err := m.storage.SaveState(opCtx, state); err != nil {
		m.logger.Warn("session: failed to mirror session state", "error", err)
	}
}
