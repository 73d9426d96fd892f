// Package gateway поднимает локальную административную консоль:
// защищенные страницы за auth-guard, форму входа и reverse proxy
// к удаленному API с подстановкой bearer-токена.
package gateway

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	clientapi "github.com/fieldops/adminctl/internal/client/api"
	"github.com/fieldops/adminctl/internal/client/bootstrap"
	"github.com/fieldops/adminctl/internal/client/credstore"
	"github.com/fieldops/adminctl/internal/client/ratelimit"
	"github.com/fieldops/adminctl/internal/client/session"
	"github.com/fieldops/adminctl/internal/validation"
	"github.com/fieldops/adminctl/pkg/api"
)

// Client покрывает вызовы удаленного API, которые делает консоль
type Client interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Options собирает зависимости шлюза
type Options struct {
	Client      Client
	Sequencer   *bootstrap.Sequencer
	Session     *session.Manager
	Credentials *credstore.Store
	Limiter     *ratelimit.Limiter
	Notifier    *session.Notifier
	Upstream    *url.URL
	Logger      *slog.Logger
}

type Gateway struct {
	client   Client
	seq      *bootstrap.Sequencer
	session  *session.Manager
	creds    *credstore.Store
	limiter  *ratelimit.Limiter
	notifier *session.Notifier
	upstream *url.URL
	logger   *slog.Logger
	proxy    http.Handler
}

func New(opts Options) *Gateway {
	g := &Gateway{
		client:   opts.Client,
		seq:      opts.Sequencer,
		session:  opts.Session,
		creds:    opts.Credentials,
		limiter:  opts.Limiter,
		notifier: opts.Notifier,
		upstream: opts.Upstream,
		logger:   opts.Logger,
	}
	g.proxy = g.newProxy()
	return g
}

// Handler собирает маршруты консоли за logging и recovery middleware
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", g.handleLoginPage)
	mux.HandleFunc("POST /login", g.handleLogin)
	mux.HandleFunc("POST /logout", g.handleLogout)
	// Прокси не за guard: запросы без токена уйдут как есть,
	// upstream ответит 401 и событие инвалидирует сессию
	mux.Handle("/api/", g.proxy)
	mux.Handle("/", g.Guard(http.HandlerFunc(g.handleConsole)))

	return RecoveryMiddleware(g.logger)(LoggingMiddleware(g.logger)(mux))
}

// Serve запускает HTTP сервер консоли и фонового наблюдателя
// за событиями аутентификации. Блокируется до отмены контекста.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go g.watchAuthEvents(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("console shutdown failed", "error", err)
		}
	}()

	g.logger.Info("admin console listening", "addr", addr, "upstream", g.upstream.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Guard блокирует защищенный контент до терминального состояния
// цепочки bootstrap и перенаправляет неаутентифицированные запросы
// на форму входа с сохранением исходного пути.
func (g *Gateway) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.seq.Run(r.Context())
		if !res.Status.Terminal() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "authentication check in progress", http.StatusServiceUnavailable)
			return
		}

		// Живое состояние сессии авторитетнее мемоизированного итога:
		// интерактивные вход и выход происходят после единственного
		// прогона цепочки
		if g.session.Profile() == nil {
			redirectToLogin(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// watchAuthEvents сбрасывает локальную сессию, когда какой-либо
// запрос через прокси получил 401 от удаленного API
func (g *Gateway) watchAuthEvents(ctx context.Context) {
	events := g.notifier.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			g.logger.Warn("session invalidated by upstream", "reason", ev.Reason, "status", ev.Status)
			g.session.Clear(context.WithoutCancel(ctx))
		}
	}
}

func (g *Gateway) newProxy() http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(g.upstream)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = g.upstream.Host
		if token := g.session.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			req.Header.Del("Authorization")
		}
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode == http.StatusUnauthorized {
			g.notifier.Publish(session.AuthEvent{
				Reason: "proxied request rejected",
				Status: resp.StatusCode,
			})
		}
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Warn("proxy request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return proxy
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>FieldOps Admin - Sign In</title></head>
<body>
<h1>FieldOps Admin Console</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<label>Login <input type="text" name="login" value="{{.Login}}" autofocus></label>
<label>Password <input type="password" name="password"></label>
<label><input type="checkbox" name="remember"> Remember me on this device</label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

var consoleTemplate = template.Must(template.New("console").Parse(`<!DOCTYPE html>
<html>
<head><title>FieldOps Admin</title></head>
<body>
<h1>FieldOps Admin Console</h1>
<p>Signed in as <strong>{{.Name}}</strong> ({{.Role}})</p>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
</body>
</html>
`))

type loginPage struct {
	Login       string
	RedirectURI string
	Error       string
}

func (g *Gateway) renderLogin(w http.ResponseWriter, status int, page loginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, page); err != nil {
		g.logger.Error("failed to render login page", "error", err)
	}
}

func (g *Gateway) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	g.renderLogin(w, http.StatusOK, loginPage{
		RedirectURI: safeRedirectPath(r.URL.Query().Get("redirect_uri")),
	})
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	login := r.FormValue("login")
	password := r.FormValue("password")
	remember := r.FormValue("remember") != ""
	redirectURI := safeRedirectPath(r.FormValue("redirect_uri"))

	page := loginPage{Login: login, RedirectURI: redirectURI}

	if err := validation.ValidateLogin(login); err != nil {
		page.Error = err.Error()
		g.renderLogin(w, http.StatusBadRequest, page)
		return
	}
	if err := validation.ValidatePassword(password); err != nil {
		page.Error = err.Error()
		g.renderLogin(w, http.StatusBadRequest, page)
		return
	}

	if err := g.limiter.Check(r.Context(), login); err != nil {
		page.Error = err.Error()
		g.renderLogin(w, http.StatusTooManyRequests, page)
		return
	}

	resp, err := g.client.Login(r.Context(), api.LoginRequest{Login: login, Password: password})
	if err != nil {
		if errors.Is(err, clientapi.ErrUnauthorized) {
			g.limiter.RecordFailure(r.Context(), login)
			page.Error = "Invalid login or password"
			g.renderLogin(w, http.StatusUnauthorized, page)
			return
		}
		g.logger.Warn("login request failed", "error", err)
		page.Error = "Server unavailable, try again later"
		g.renderLogin(w, http.StatusBadGateway, page)
		return
	}

	g.limiter.Reset(r.Context(), login)
	g.session.SetSession(r.Context(), resp.User, resp.AccessToken, resp.RefreshToken, remember)
	if remember {
		// Согласие "запомнить" включает сохранение учетных данных
		// для автологина при следующем запуске
		g.creds.Save(r.Context(), login, password)
	}

	http.Redirect(w, r, redirectURI, http.StatusSeeOther)
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Серверную сессию закрываем best effort: локальное состояние
	// очищается независимо от исхода
	callCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	if err := g.client.Logout(callCtx); err != nil {
		g.logger.Debug("server logout failed", "error", err)
	}
	cancel()

	g.session.Clear(r.Context())
	// Явный выход отзывает согласие "запомнить"
	g.creds.Clear(r.Context())

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (g *Gateway) handleConsole(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	profile := g.session.Profile()
	if profile == nil {
		redirectToLogin(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := consoleTemplate.Execute(w, map[string]string{
		"Name": profile.DisplayName(),
		"Role": profile.Role,
	}); err != nil {
		g.logger.Error("failed to render console page", "error", err)
	}
}
