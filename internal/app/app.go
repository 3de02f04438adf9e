package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"gigline/internal/auth"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/engine"
	"gigline/internal/migrate"
	"gigline/internal/notify"
)

// Options configure Open.
type Options struct {
	Workspace string
	Auth      auth.Authenticator
	Logger    *log.Logger
}

// App is an opened workspace: database, config and a wired engine.
type App struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Open opens the workspace database, applies migrations, loads gigline.yml
// (defaults when absent) and makes sure the bootstrap admin exists.
func Open(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	eng := engine.New(conn, cfg, opts.Auth, NewNotifier(cfg.Bookkeeping, logger))
	eng.Logger = logger
	if _, err := eng.Bootstrap(ctx, cfg.Bootstrap.AdminID, bootstrapName(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return &App{DB: conn, Config: cfg, Engine: eng}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewNotifier builds the bookkeeping notifier selected in config.
func NewNotifier(b config.Bookkeeping, logger *log.Logger) notify.Notifier {
	switch b.Notifier {
	case config.NotifierWebhook:
		return notify.Webhook{URL: b.URL, Secret: b.Secret, Timeout: b.Timeout()}
	case config.NotifierLog:
		return notify.Log{Logger: logger}
	default:
		return notify.Nop{}
	}
}

func bootstrapName(cfg *config.Config) string {
	if name := strings.TrimSpace(cfg.Bootstrap.AdminName); name != "" {
		return name
	}
	return cfg.Bootstrap.AdminID
}
