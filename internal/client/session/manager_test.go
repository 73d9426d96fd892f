package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/adminctl/internal/client/storage/sqlite"
	"github.com/fieldops/adminctl/pkg/api"
)

func newTestManager(t *testing.T) (*Manager, *sqlite.Storage) {
	t.Helper()

	stg, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, stg.Close()) })

	return NewManager(stg, slog.New(slog.DiscardHandler)), stg
}

func TestManager_SetAccessToken_DurableTier(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	m.SetAccessToken(ctx, "token-durable", true)

	// Живая копия доступна синхронно
	assert.Equal(t, "token-durable", m.AccessToken())

	// Durable-уровень содержит токен, session-уровень пуст
	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-durable", state.AccessToken)
	assert.Empty(t, m.sessionAccess)
}

func TestManager_SetAccessToken_SessionTier(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	m.SetAccessToken(ctx, "token-session", false)

	assert.Equal(t, "token-session", m.AccessToken())

	// Session-уровень содержит токен, durable-уровень пуст
	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.AccessToken)
	assert.Equal(t, "token-session", m.sessionAccess)
}

func TestManager_SetAccessToken_SwitchingTierClearsOther(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	m.SetAccessToken(ctx, "first", true)
	m.SetAccessToken(ctx, "second", false)

	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.AccessToken)
	assert.Equal(t, "second", m.sessionAccess)
	assert.Equal(t, "second", m.AccessToken())
}

func TestManager_SetRefreshToken_Tiers(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	m.SetRefreshToken(ctx, "refresh-durable", true)

	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-durable", state.RefreshToken)
	assert.Empty(t, m.sessionRefresh)
	assert.Equal(t, "refresh-durable", m.RefreshToken())
}

func TestManager_Clear_BothTiers(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	m.SetSession(ctx, api.User{ID: "u-1", Login: "operator1", Role: "operator"}, "access", "refresh", true)
	m.Clear(ctx)

	assert.Empty(t, m.AccessToken())
	assert.Empty(t, m.RefreshToken())
	assert.Nil(t, m.Profile())

	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.AccessToken)
	assert.Empty(t, state.RefreshToken)
	assert.False(t, state.Authenticated)
}

func TestManager_SetSession(t *testing.T) {
	m, stg := newTestManager(t)
	ctx := context.Background()

	profile := api.User{ID: "u-1", Login: "operator1", Name: "Иван Петров", Role: "operator"}
	m.SetSession(ctx, profile, "access", "refresh", true)

	got := m.Profile()
	require.NotNil(t, got)
	assert.Equal(t, profile, *got)

	state, err := stg.GetState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Authenticated)
	assert.Equal(t, profile, state.Profile)
}

func TestManager_SetProfile_Wholesale(t *testing.T) {
	m, _ := newTestManager(t)

	m.SetProfile(api.User{ID: "u-1", Login: "operator1", Name: "Иван", Role: "operator"})
	m.SetProfile(api.User{ID: "u-2", Login: "admin", Role: "admin"})

	got := m.Profile()
	require.NotNil(t, got)
	assert.Equal(t, "u-2", got.ID)
	// Имя не унаследовано от предыдущего профиля
	assert.Empty(t, got.Name)
}

func TestManager_RestoreDurable(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.SetSession(ctx, api.User{ID: "u-1", Login: "operator1"}, "access", "refresh", true)

	// Новый менеджер поверх того же хранилища: память пуста
	m2 := NewManager(m.storage, slog.New(slog.DiscardHandler))
	assert.Empty(t, m2.AccessToken())

	require.True(t, m2.RestoreDurable(ctx))
	assert.Equal(t, "access", m2.AccessToken())
	assert.Equal(t, "refresh", m2.RefreshToken())
}

func TestManager_RestoreDurable_Empty(t *testing.T) {
	m, _ := newTestManager(t)

	assert.False(t, m.RestoreDurable(context.Background()))
}

func TestManager_TokenExpiry(t *testing.T) {
	m, _ := newTestManager(t)

	expiresAt := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, ok := m.TokenExpiry(signed)
	assert.True(t, ok)
	assert.True(t, got.Equal(expiresAt))

	_, ok = m.TokenExpiry("")
	assert.False(t, ok)

	_, ok = m.TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestNotifier_PublishSubscribe(t *testing.T) {
	n := NewNotifier()

	n.Publish(AuthEvent{Reason: "request rejected", Status: 401})

	select {
	case event := <-n.Subscribe():
		assert.Equal(t, 401, event.Status)
		assert.False(t, event.At.IsZero())
	default:
		t.Fatal("expected buffered event")
	}
}

func TestNotifier_PublishNeverBlocks(t *testing.T) {
	n := NewNotifier()

	// Переполняем буфер без подписчика: лишние события отбрасываются
	for i := 0; i < 100; i++ {
		n.Publish(AuthEvent{Reason: "unauthorized", Status: 401})
	}
}
