// Package cli реализует команды консольного клиента adminctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldops/adminctl/internal/client/bootstrap"
	"github.com/fieldops/adminctl/internal/client/credstore"
	"github.com/fieldops/adminctl/internal/client/iocli"
	"github.com/fieldops/adminctl/internal/client/ratelimit"
	"github.com/fieldops/adminctl/internal/client/session"
	"github.com/fieldops/adminctl/internal/client/storage"
	"github.com/fieldops/adminctl/internal/config"
	"github.com/fieldops/adminctl/pkg/api"
)

// Client покрывает все вызовы удаленного API, которые делают команды
type Client interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Me(ctx context.Context) (*api.User, error)
	Refresh(ctx context.Context, refreshToken string) (*api.RefreshResponse, error)
	Logout(ctx context.Context) error
}

// Options собирает зависимости команд
type Options struct {
	IO          iocli.IO
	Client      Client
	Session     *session.Manager
	Credentials *credstore.Store
	Limiter     *ratelimit.Limiter
	State       storage.StateStorage
	Notifier    *session.Notifier
	Config      *config.Config
	Logger      *slog.Logger
}

type Cli struct {
	io       iocli.IO
	client   Client
	session  *session.Manager
	creds    *credstore.Store
	limiter  *ratelimit.Limiter
	state    storage.StateStorage
	notifier *session.Notifier
	cfg      *config.Config
	logger   *slog.Logger
}

func New(opts Options) *Cli {
	return &Cli{
		io:       opts.IO,
		client:   opts.Client,
		session:  opts.Session,
		creds:    opts.Credentials,
		limiter:  opts.Limiter,
		state:    opts.State,
		notifier: opts.Notifier,
		cfg:      opts.Config,
		logger:   opts.Logger,
	}
}

// newSequencer собирает цепочку bootstrap в варианте app shell
// (с автологином по сохраненным учетным данным)
func (c *Cli) newSequencer(profileTimeout time.Duration) *bootstrap.Sequencer {
	return bootstrap.New(c.client, c.session, c.state, c.logger,
		bootstrap.WithAutoLogin(c.creds),
		bootstrap.WithOverallTimeout(c.cfg.BootstrapTimeout),
		bootstrap.WithProfileTimeout(profileTimeout),
		bootstrap.WithStorageTimeout(c.cfg.StorageTimeout),
	)
}

func PrintUsage() {
	fmt.Println("FieldOps Admin Console Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  adminctl [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --server URL           FieldOps API URL (default: http://localhost:8080)")
	fmt.Println("  --credentials-db PATH  Path to the encrypted credentials database")
	fmt.Println("  --state-db PATH        Path to the session state database")
	fmt.Println("  --listen ADDR          Local console listen address (default: 127.0.0.1:8433)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login [--remember]   Sign in interactively; --remember saves encrypted")
	fmt.Println("                       credentials for automatic sign-in on this device")
	fmt.Println("  logout               Sign out and clear all local session state")
	fmt.Println("  status               Show session status without network calls")
	fmt.Println("  whoami               Validate the session and print the current user")
	fmt.Println("  serve                Start the local admin console")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  adminctl login --remember")
	fmt.Println("  adminctl whoami")
	fmt.Println("  adminctl --server https://fieldops.example.com serve")
}
