// Package app wires configuration, persistence, sessions and the HTTP
// routes into a runnable server.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/config"
	"github.com/goliatone/go-expense-tracker/mailer"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/goliatone/go-expense-tracker/records"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	repo     auth.RepositoryManager
	users    *auth.UserProvider
	tokens   *auth.ActivationTokens
	auther   *auth.RouteAuthenticator
	mailer   auth.Mailer
	activity auth.ActivitySink
	storage  fiber.Storage
	srv      *fiber.App
}

// Option customizes an App before it is initialized
type Option func(*App)

// WithMailer replaces the mailer selected by MAIL_DRIVER
func WithMailer(m auth.Mailer) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// WithActivitySink replaces the default activity sink that logs events
func WithActivitySink(s auth.ActivitySink) Option {
	return func(a *App) {
		a.activity = s
	}
}

// WithSessionStorage sets the backing storage of sessions, the default
// keeps them in memory.
func WithSessionStorage(s fiber.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}

// New initializes every component. The database is migrated before the
// routes are mounted.
func New(ctx context.Context, cfg *config.Config, logger *glog.BaseLogger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = glog.NewLogger(glog.WithName("app"))
	}

	app := &App{
		config: cfg,
		logger: logger,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.activity == nil {
		app.activity = auth.LoggerActivitySink(app.GetLogger("activity"))
	}

	inits := []func(context.Context, *App) error{
		WithPersistence,
		WithMail,
		WithHTTPServer,
		WithHTTPAuth,
		WithRecords,
	}

	for _, fn := range inits {
		if err := fn(ctx, app); err != nil {
			if app.db != nil {
				app.db.Close()
			}
			return nil, err
		}
	}

	return app, nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) SetLogger(lgr *glog.BaseLogger) *App {
	a.logger = lgr
	return a
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) DB() *bun.DB {
	return a.db
}

func (a *App) Server() *fiber.App {
	return a.srv
}

func (a *App) Repository() auth.RepositoryManager {
	return a.repo
}

func (a *App) Tokens() *auth.ActivationTokens {
	return a.tokens
}

// Listen serves HTTP on the configured address until Shutdown is called
func (a *App) Listen() error {
	a.logger.Info("http server listening", "addr", a.config.Addr)
	return a.srv.Listen(a.config.Addr)
}

// Shutdown stops accepting requests, waits for in flight ones and closes
// the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.srv != nil {
		errs = append(errs, a.srv.ShutdownWithContext(ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func WithPersistence(ctx context.Context, app *App) error {
	logger := app.GetLogger("persistence")

	db, err := persistence.Open(ctx, app.config, logger)
	if err != nil {
		return err
	}
	app.db = db

	applied, err := persistence.Migrate(ctx, db)
	if err != nil {
		return err
	}

	for _, name := range applied {
		logger.Info("migration applied", "file", name)
	}

	app.repo = auth.NewRepositoryManager(db)
	return app.repo.Validate()
}

func WithMail(_ context.Context, app *App) error {
	if app.mailer != nil {
		return nil
	}

	logger := app.GetLogger("mailer")

	switch app.config.MailDriver {
	case "smtp":
		m, err := mailer.NewSMTPMailer(app.config)
		if err != nil {
			return err
		}
		app.mailer = m.WithLogger(logger)
	default:
		app.mailer = mailer.NewLogMailer(logger)
	}

	return nil
}

func WithHTTPAuth(_ context.Context, app *App) error {
	cfg := app.config
	logger := app.GetLogger("auth")

	tokens, err := auth.NewActivationTokens(cfg.GetSecretKey(),
		auth.WithTokenIssuer(cfg.GetIssuer()),
		auth.WithTokenTTL(cfg.GetActivationTokenTTL()),
	)
	if err != nil {
		return err
	}
	app.tokens = tokens

	app.users = auth.NewUserProvider(app.repo.Users()).
		WithHasher(auth.NewBcryptHasher(cfg.GetBcryptCost())).
		WithLogger(logger).
		WithActivitySink(app.activity)

	sessions := auth.NewSessionManager(auth.NewSessionStore(cfg, app.storage))

	app.auther = auth.NewHTTPAuthenticator(sessions, app.users, cfg).
		WithLogger(logger)

	app.srv.Use(app.auther.OptionalUser())

	auth.RegisterAuthRoutes(app.srv,
		auth.WithControllerRepository(app.repo),
		auth.WithControllerAuthenticator(app.auther),
		auth.WithControllerCredentials(app.users),
		auth.WithControllerTokens(app.tokens),
		auth.WithControllerMailer(app.mailer),
		auth.WithControllerConfig(cfg),
		auth.WithControllerLogger(logger),
		auth.WithControllerActivitySink(app.activity),
		auth.WithControllerErrorHandler(app.renderError),
		auth.WithControllerDebug(cfg.Debug),
	)

	return nil
}

func WithRecords(_ context.Context, app *App) error {
	logger := app.GetLogger("records")
	options := records.NewOptions(app.db)

	expenses := records.NewController(records.ExpenseKind(options), records.NewExpenseStore(app.db), app.auther, logger)
	expenses.ErrorHandler = app.renderError
	records.RegisterRoutes(app.srv, expenses)

	incomes := records.NewController(records.IncomeKind(options), records.NewIncomeStore(app.db), app.auther, logger)
	incomes.ErrorHandler = app.renderError
	records.RegisterRoutes(app.srv, incomes)

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return <-ch
}
