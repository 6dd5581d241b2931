package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistencebun "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Logger is satisfied by glog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Config holds the database connection options
type Config interface {
	GetDatabaseDriver() string
	GetDatabaseDSN() string
	GetDatabaseDebug() bool
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, cfg Config, logger Logger) (*bun.DB, error) {
	var (
		sqldb      *sql.DB
		sqlDialect schema.Dialect
		driver     = strings.ToLower(cfg.GetDatabaseDriver())
		err        error
	)

	switch driver {
	case "", DriverSQLite, "sqlite3":
		driver = DriverSQLite
		sqldb, err = openSQLite(ctx, cfg.GetDatabaseDSN())
		sqlDialect = sqlitedialect.New()
	case DriverPostgres, "pg", "pgx":
		driver = DriverPostgres
		sqldb, err = openPostgres(cfg.GetDatabaseDSN())
		sqlDialect = pgdialect.New()
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", driver), goerrors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER")
	}
	if err != nil {
		return nil, err
	}

	client, err := persistencebun.New(clientConfig{driver: driver, pingTimeout: PingTimeout}, sqldb, sqlDialect)
	if err != nil {
		sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "database ping failed")
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		sqldb.Close()
		return nil, goerrors.New("persistence client returned no *bun.DB", goerrors.CategoryInternal)
	}

	if cfg.GetDatabaseDebug() && logger != nil {
		db.AddQueryHook(&queryLogger{logger: logger})
	}

	return db, nil
}

// PingTimeout bounds the connection check done by Open
const PingTimeout = 5 * time.Second

type clientConfig struct {
	driver      string
	pingTimeout time.Duration
}

func (c clientConfig) GetDebug() bool                { return false }
func (c clientConfig) GetDriver() string             { return c.driver }
func (c clientConfig) GetServer() string             { return "" }
func (c clientConfig) GetDatabase() string           { return "" }
func (c clientConfig) GetPingTimeout() time.Duration { return c.pingTimeout }
func (c clientConfig) GetOtelIdentifier() string     { return "" }

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:expensetracker.db?cache=shared"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "db open error")
	}
	// sqlite allows a single writer, pragmas are per connection
	sqldb.SetMaxOpenConns(1)

	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to enable foreign keys")
	}

	return sqldb, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, goerrors.New("postgres requires DATABASE_DSN", goerrors.CategoryBadInput).
			WithTextCode("MISSING_DSN")
	}

	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "db open error")
	}

	return sqldb, nil
}

// Migrate applies all pending migrations for the dialect of db and returns
// the names of the migrations that ran.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	var dir string

	switch db.Dialect().Name() {
	case dialect.SQLite:
		dir = DriverSQLite
	case dialect.PG:
		dir = DriverPostgres
	default:
		return nil, goerrors.New("no migrations for dialect "+db.Dialect().Name().String(), goerrors.CategoryInternal)
	}

	fsys, err := MigrationsFor(dir)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migrations not embedded")
	}

	migrations := (&persistencebun.Migrations{}).RegisterSQLMigrations(fsys)
	if err := migrations.Migrate(ctx, db); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration error")
	}

	applied := []string{}
	if group := migrations.Report(); group != nil {
		for _, m := range group.Migrations {
			applied = append(applied, m.String())
		}
	}

	return applied, nil
}

type queryLogger struct {
	logger Logger
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{
		"query", event.Query,
		"duration", time.Since(event.StartTime),
	}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		args = append(args, "error", event.Err)
	}
	h.logger.Debug("sql", args...)
}
