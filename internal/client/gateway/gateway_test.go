package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/fieldops/adminctl/internal/client/api"
	"github.com/fieldops/adminctl/internal/client/bootstrap"
	"github.com/fieldops/adminctl/internal/client/credstore"
	"github.com/fieldops/adminctl/internal/client/ratelimit"
	"github.com/fieldops/adminctl/internal/client/session"
	"github.com/fieldops/adminctl/internal/client/storage"
	"github.com/fieldops/adminctl/pkg/api"
)

type fakeAPI struct {
	loginFn  func(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	logoutFn func(ctx context.Context) error
}

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	if f.loginFn == nil {
		return nil, clientapi.ErrUnauthorized
	}
	return f.loginFn(ctx, req)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(ctx)
}

func (f *fakeAPI) Me(context.Context) (*api.User, error) {
	return nil, clientapi.ErrUnauthorized
}

func (f *fakeAPI) Refresh(context.Context, string) (*api.RefreshResponse, error) {
	return nil, clientapi.ErrUnauthorized
}

type memState struct {
	mu    sync.Mutex
	state storage.SessionState
}

func (m *memState) GetState(_ context.Context) (*storage.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.state
	return &cp, nil
}

func (m *memState) SaveState(_ context.Context, state *storage.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = *state
	return nil
}

func (m *memState) ClearSession(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = storage.SessionState{DeviceID: m.state.DeviceID}
	return nil
}

type memCreds struct {
	mu  sync.Mutex
	rec *storage.CredentialRecord
}

func (m *memCreds) SaveCredentials(_ context.Context, rec *storage.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rec = &cp
	return nil
}

func (m *memCreds) GetCredentials(_ context.Context) (*storage.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, storage.ErrCredentialsNotFound
	}
	cp := *m.rec
	return &cp, nil
}

func (m *memCreds) DeleteCredentials(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}

type memAttempts struct {
	mu      sync.Mutex
	records map[string]*storage.LoginAttempts
}

func (m *memAttempts) GetAttempts(_ context.Context, login string) (*storage.LoginAttempts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[login]
	if !ok {
		return nil, storage.ErrAttemptsNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memAttempts) SaveAttempts(_ context.Context, attempts *storage.LoginAttempts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]*storage.LoginAttempts)
	}
	cp := *attempts
	m.records[attempts.Login] = &cp
	return nil
}

func (m *memAttempts) ResetAttempts(_ context.Context, login string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, login)
	return nil
}

type testEnv struct {
	gateway *Gateway
	session *session.Manager
	creds   *credstore.Store
	fake    *fakeAPI
}

func newTestEnv(t *testing.T, limiterOpts ...ratelimit.Option) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	fake := &fakeAPI{}
	state := &memState{state: storage.SessionState{DeviceID: "dev-test"}}
	mgr := session.NewManager(state, logger)
	creds := credstore.New(&memCreds{}, logger)
	limiter := ratelimit.NewLimiter(&memAttempts{}, logger, limiterOpts...)
	notifier := session.NewNotifier()
	seq := bootstrap.New(fake, mgr, state, logger, bootstrap.WithOverallTimeout(2*time.Second))

	upstream, err := url.Parse("http://upstream.invalid")
	require.NoError(t, err)

	g := New(Options{
		Client:      fake,
		Sequencer:   seq,
		Session:     mgr,
		Credentials: creds,
		Limiter:     limiter,
		Notifier:    notifier,
		Upstream:    upstream,
		Logger:      logger,
	})

	return &testEnv{gateway: g, session: mgr, creds: creds, fake: fake}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      string
	}{
		{"empty", "", "/"},
		{"relative path", "/work-orders/42", "/work-orders/42"},
		{"path with query", "/reports?from=2026-01-01", "/reports?from=2026-01-01"},
		{"absolute url", "http://evil.example/phish", "/"},
		{"scheme relative", "//evil.example/phish", "/"},
		{"javascript scheme", "javascript:alert(1)", "/"},
		{"no leading slash", "work-orders", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeRedirectPath(tt.candidate))
		})
	}
}

func TestGuard_RedirectsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	handler := env.gateway.Handler()

	req := httptest.NewRequest(http.MethodGet, "/work-orders/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect_uri=%2Fwork-orders%2F42", rec.Header().Get("Location"))
	// Никакого контента во время редиректа
	assert.NotContains(t, rec.Body.String(), "FieldOps")
}

func TestGuard_ServesAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.session.SetProfile(api.User{ID: "u-1", Login: "dispatcher1", Name: "Dispatcher One", Role: "admin"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dispatcher One")
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/login?redirect_uri=%2Freports", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/reports"`)
}

func TestLoginPage_SanitizesRedirect(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/login?redirect_uri=http%3A%2F%2Fevil.example", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `value="/"`)
	assert.NotContains(t, rec.Body.String(), "evil.example")
}

func postLogin(t *testing.T, env *testEnv, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.fake.loginFn = func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
		assert.Equal(t, "dispatcher1", req.Login)
		return &api.LoginResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         api.User{ID: "u-1", Login: "dispatcher1"},
		}, nil
	}

	rec := postLogin(t, env, url.Values{
		"login":        {"dispatcher1"},
		"password":     {"secret123"},
		"redirect_uri": {"/work-orders/42"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/work-orders/42", rec.Header().Get("Location"))
	require.NotNil(t, env.session.Profile())
	assert.Equal(t, "access", env.session.AccessToken())
	// Без remember учетные данные не сохраняются
	assert.False(t, env.creds.Exists(context.Background()))
}

func TestLogin_RememberSavesCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.fake.loginFn = func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
		return &api.LoginResponse{AccessToken: "a", RefreshToken: "r", User: api.User{ID: "u-1"}}, nil
	}

	rec := postLogin(t, env, url.Values{
		"login":    {"dispatcher1"},
		"password": {"secret123"},
		"remember": {"on"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, env.creds.Exists(context.Background()))

	loaded := env.creds.Load(context.Background())
	require.NotNil(t, loaded)
	assert.Equal(t, "dispatcher1", loaded.Login)
	assert.Equal(t, "secret123", loaded.Password)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := postLogin(t, env, url.Values{
		"login":    {"dispatcher1"},
		"password": {"wrong-password"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid login or password")
	assert.Nil(t, env.session.Profile())
}

func TestLogin_ValidationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := postLogin(t, env, url.Values{
		"login":    {"x"},
		"password": {"secret123"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postLogin(t, env, url.Values{
		"login":    {"dispatcher1"},
		"password": {"short"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.WithMaxFailures(2))

	form := url.Values{
		"login":    {"dispatcher1"},
		"password": {"wrong-password"},
	}

	assert.Equal(t, http.StatusUnauthorized, postLogin(t, env, form).Code)
	assert.Equal(t, http.StatusUnauthorized, postLogin(t, env, form).Code)

	rec := postLogin(t, env, form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "retry in")
}

func TestLogout_ClearsLocalState(t *testing.T) {
	env := newTestEnv(t)
	env.session.SetSession(context.Background(), api.User{ID: "u-1"}, "access", "refresh", true)
	env.creds.Save(context.Background(), "dispatcher1", "secret123")

	var serverLogout bool
	env.fake.logoutFn = func(context.Context) error {
		serverLogout = true
		return nil
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.True(t, serverLogout)
	assert.Nil(t, env.session.Profile())
	assert.Empty(t, env.session.AccessToken())
	assert.False(t, env.creds.Exists(context.Background()))
}

func TestLogout_ClearsStateWhenServerFails(t *testing.T) {
	env := newTestEnv(t)
	env.session.SetSession(context.Background(), api.User{ID: "u-1"}, "access", "refresh", false)
	env.fake.logoutFn = func(context.Context) error {
		return assert.AnError
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, env.session.Profile())
}

func TestProxy_AttachesBearer(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	env := newTestEnv(t)
	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	env.gateway.upstream = upstreamURL
	env.gateway.proxy = env.gateway.newProxy()

	env.session.SetAccessToken(context.Background(), "proxy-token", false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/work-orders", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer proxy-token", gotAuth)
}

func TestProxy_PublishesAuthEventOn401(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	env := newTestEnv(t)
	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	env.gateway.upstream = upstreamURL
	env.gateway.proxy = env.gateway.newProxy()

	events := env.gateway.notifier.Subscribe()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/work-orders", nil)
	rec := httptest.NewRecorder()
	env.gateway.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	select {
	case ev := <-events:
		assert.Equal(t, http.StatusUnauthorized, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("expected auth event from proxied 401")
	}
}
