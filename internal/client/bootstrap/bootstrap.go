// Package bootstrap устанавливает, есть ли действующая сессия,
// строго упорядоченной цепочкой fallback-стратегий. Цепочка выполняется
// не более одного раза за запуск процесса и всегда завершается
// терминальным состоянием за ограниченное время.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	clientapi "github.com/fieldops/adminctl/internal/client/api"
	"github.com/fieldops/adminctl/internal/client/credstore"
	"github.com/fieldops/adminctl/internal/client/session"
	"github.com/fieldops/adminctl/internal/client/storage"
	"github.com/fieldops/adminctl/pkg/api"
)

const (
	DefaultOverallTimeout = 10 * time.Second
	DefaultProfileTimeout = 5 * time.Second
	DefaultStorageTimeout = 3 * time.Second
)

// Status описывает состояние цепочки bootstrap.
type Status int32

const (
	StatusIdle Status = iota
	StatusChecking
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Terminal сообщает, достигнуто ли терминальное состояние.
func (s Status) Terminal() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

// Result - зафиксированный исход единственного прогона цепочки.
type Result struct {
	Profile *api.User
	Status  Status
}

// Client покрывает вызовы удаленного API, нужные цепочке.
type Client interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Me(ctx context.Context) (*api.User, error)
	Refresh(ctx context.Context, refreshToken string) (*api.RefreshResponse, error)
}

// Sequencer выполняет цепочку ровно один раз; повторные вызовы Run
// ждут завершения первого и получают мемоизированный результат.
type Sequencer struct {
	client  Client
	session *session.Manager
	state   storage.StateStorage
	creds   *credstore.Store
	logger  *slog.Logger

	overallTimeout time.Duration
	profileTimeout time.Duration
	storageTimeout time.Duration

	once   sync.Once
	done   chan struct{}
	status atomic.Int32
	result Result
}

type Option func(*Sequencer)

// WithAutoLogin включает последний fallback: автологин по сохраненным
// учетным данным. Используется вариантом app shell, но не guard.
func WithAutoLogin(creds *credstore.Store) Option {
	return func(s *Sequencer) { s.creds = creds }
}

func WithOverallTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.overallTimeout = d }
}

func WithProfileTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.profileTimeout = d }
}

func WithStorageTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.storageTimeout = d }
}

func New(client Client, mgr *session.Manager, state storage.StateStorage, logger *slog.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		client:         client,
		session:        mgr,
		state:          state,
		logger:         logger,
		overallTimeout: DefaultOverallTimeout,
		profileTimeout: DefaultProfileTimeout,
		storageTimeout: DefaultStorageTimeout,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status возвращает текущее состояние цепочки.
func (s *Sequencer) Status() Status {
	return Status(s.status.Load())
}

// Run запускает цепочку (при первом вызове) и возвращает терминальный
// результат. Конкурентные и повторные вызовы не порождают второй прогон.
func (s *Sequencer) Run(ctx context.Context) Result {
	s.once.Do(func() {
		defer close(s.done)
		s.status.Store(int32(StatusChecking))

		runCtx, cancel := context.WithTimeout(ctx, s.overallTimeout)
		defer cancel()

		results := make(chan Result, 1)
		go func() {
			results <- s.runChain(runCtx)
		}()

		// Цепочка гонится с верхней границей времени. Сработавший
		// таймер принудительно завершает прогон как unauthenticated,
		// не дожидаясь висящих сетевых вызовов.
		select {
		case res := <-results:
			s.finish(res)
		case <-runCtx.Done():
			s.logger.Warn("bootstrap: deadline reached, forcing unauthenticated")
			s.session.Clear(context.WithoutCancel(ctx))
			s.finish(Result{Status: StatusUnauthenticated})
		}
	})

	<-s.done
	return s.result
}

func (s *Sequencer) finish(res Result) {
	s.result = res
	s.status.Store(int32(res.Status))
}

func (s *Sequencer) runChain(ctx context.Context) Result {
	// Быстрый путь: профиль уже в памяти от предыдущего действия
	if profile := s.session.Profile(); profile != nil {
		return Result{Status: StatusAuthenticated, Profile: profile}
	}

	// Быстрый путь: durable-состояние содержит подтвержденную сессию
	if profile := s.restoreFastPath(ctx); profile != nil {
		return Result{Status: StatusAuthenticated, Profile: profile}
	}

	// Прямая проверка "who am I"
	user, err := s.me(ctx)
	if err == nil {
		s.session.MarkAuthenticated(ctx, *user)
		return Result{Status: StatusAuthenticated, Profile: user}
	}

	if errors.Is(err, clientapi.ErrUnauthorized) {
		// Явный отказ: refresh -> повторный Me -> восстановление
		// durable-токенов -> еще один Me
		if user := s.recoverUnauthorized(ctx); user != nil {
			return Result{Status: StatusAuthenticated, Profile: user}
		}
	} else {
		s.logger.Debug("bootstrap: profile check failed", "error", err)
		// Сеть/таймаут/5xx: автологин по сохраненным учетным данным
		// (только в варианте app shell)
		if s.creds != nil {
			if user := s.autoLogin(ctx); user != nil {
				return Result{Status: StatusAuthenticated, Profile: user}
			}
		}
	}

	// Все стратегии исчерпаны: частичное состояние токенов не должно
	// пережить неудачный прогон
	s.session.Clear(context.WithoutCancel(ctx))
	return Result{Status: StatusUnauthenticated}
}

// restoreFastPath проверяет durable-состояние без сетевых вызовов.
func (s *Sequencer) restoreFastPath(ctx context.Context) *api.User {
	opCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	state, err := s.state.GetState(opCtx)
	if err != nil {
		s.logger.Debug("bootstrap: failed to read durable state", "error", err)
		return nil
	}
	if !state.Authenticated || state.Profile.ID == "" {
		return nil
	}

	s.session.SetProfile(state.Profile)
	s.session.RestoreDurable(ctx)
	profile := state.Profile
	return &profile
}

func (s *Sequencer) recoverUnauthorized(ctx context.Context) *api.User {
	if user := s.tryRefresh(ctx); user != nil {
		return user
	}

	// Последняя попытка: durable-токены могли еще не подниматься в память
	if s.session.RestoreDurable(ctx) {
		if user, err := s.me(ctx); err == nil {
			s.session.MarkAuthenticated(ctx, *user)
			return user
		}
	}
	return nil
}

func (s *Sequencer) tryRefresh(ctx context.Context) *api.User {
	refreshToken := s.session.RefreshToken()
	if refreshToken == "" {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	resp, err := s.client.Refresh(callCtx, refreshToken)
	cancel()
	if err != nil {
		s.logger.Debug("bootstrap: token refresh failed", "error", err)
		return nil
	}

	// Новые токены пишутся в тот же уровень, где жили старые
	remember := s.durableTier(ctx)
	s.session.SetAccessToken(ctx, resp.AccessToken, remember)
	if resp.RefreshToken != "" {
		s.session.SetRefreshToken(ctx, resp.RefreshToken, remember)
	}

	user, err := s.me(ctx)
	if err != nil {
		s.logger.Debug("bootstrap: profile check after refresh failed", "error", err)
		return nil
	}
	s.session.MarkAuthenticated(ctx, *user)
	return user
}

func (s *Sequencer) autoLogin(ctx context.Context) *api.User {
	creds := s.creds.Load(ctx)
	if creds == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	resp, err := s.client.Login(callCtx, api.LoginRequest{Login: creds.Login, Password: creds.Password})
	cancel()
	if err != nil {
		// Сохраненные учетные данные считаются протухшими
		s.logger.Warn("bootstrap: auto-login failed, clearing saved credentials", "error", err)
		s.creds.Clear(context.WithoutCancel(ctx))
		return nil
	}

	// Автологин доступен только при ранее данном согласии "запомнить",
	// поэтому токены уходят в durable-уровень
	s.session.SetSession(ctx, resp.User, resp.AccessToken, resp.RefreshToken, true)
	user := resp.User
	return &user
}

func (s *Sequencer) me(ctx context.Context) (*api.User, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()
	return s.client.Me(callCtx)
}

// durableTier сообщает, живут ли токены сейчас в durable-уровне.
func (s *Sequencer) durableTier(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	state, err := s.state.GetState(opCtx)
	if err != nil {
		return false
	}
	return state.AccessToken != "" || state.RefreshToken != ""
}
