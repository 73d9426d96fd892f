package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	clientapi "github.com/fieldops/adminctl/internal/client/api"
	"github.com/fieldops/adminctl/internal/client/cli"
	"github.com/fieldops/adminctl/internal/client/credstore"
	"github.com/fieldops/adminctl/internal/client/iocli"
	"github.com/fieldops/adminctl/internal/client/ratelimit"
	"github.com/fieldops/adminctl/internal/client/session"
	"github.com/fieldops/adminctl/internal/client/storage/boltdb"
	"github.com/fieldops/adminctl/internal/client/storage/sqlite"
	"github.com/fieldops/adminctl/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// .env подхватывается до разбора окружения; отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Флаги перекрывают окружение
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", cfg.ServerURL, "FieldOps API URL")
	credentialsDB := flag.String("credentials-db", cfg.CredentialsDB, "Path to the encrypted credentials database")
	stateDB := flag.String("state-db", cfg.StateDB, "Path to the session state database")
	listenAddr := flag.String("listen", cfg.ListenAddr, "Local console listen address")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg.ServerURL = *serverURL
	cfg.CredentialsDB = *credentialsDB
	cfg.StateDB = *stateDB
	cfg.ListenAddr = *listenAddr

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище зашифрованных учетных данных (bbolt)
	credentialStorage, err := boltdb.New(ctx, cfg.CredentialsDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open credentials database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := credentialStorage.Close(); err != nil {
			logger.Error("failed to close credentials database", "error", err)
		}
	}()

	// Хранилище состояния сессии (sqlite)
	stateStorage, err := sqlite.New(ctx, cfg.StateDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := stateStorage.Close(); err != nil {
			logger.Error("failed to close state database", "error", err)
		}
	}()

	sessionManager := session.NewManager(stateStorage, logger)
	apiClient := clientapi.NewClient(cfg.ServerURL, sessionManager)
	credentialStore := credstore.New(credentialStorage, logger,
		credstore.WithTTL(cfg.CredentialTTL),
		credstore.WithOpTimeout(cfg.StorageTimeout),
	)
	limiter := ratelimit.NewLimiter(stateStorage, logger,
		ratelimit.WithMaxFailures(cfg.MaxLoginAttempts),
		ratelimit.WithCooldown(cfg.LoginCooldown),
	)

	commands := cli.New(cli.Options{
		IO:          iocli.NewStdio(),
		Client:      apiClient,
		Session:     sessionManager,
		Credentials: credentialStore,
		Limiter:     limiter,
		State:       stateStorage,
		Notifier:    session.NewNotifier(),
		Config:      cfg,
		Logger:      logger,
	})

	if err := commands.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printVersion() {
	fmt.Printf("FieldOps adminctl\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
