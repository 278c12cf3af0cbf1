// Package sqlite implements database.Adapter for SQLite files using the
// pure-Go modernc.org/sqlite driver. On first connect an empty database is
// seeded with a small Northwind sample so the system is usable out of the box.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
)

const driverName = "sqlite"

// Adapter is the SQLite implementation of database.Adapter. It holds a
// database/sql handle capped at one open connection, which also keeps an
// in-memory database alive for the adapter's lifetime.
type Adapter struct {
	lc  database.Lifecycle
	loc location
	db  *sql.DB
	log *logger.Logger
}

var _ database.Adapter = (*Adapter)(nil)

// New returns an unconnected adapter for connString. It performs no I/O.
func New(connString string, opts database.Options) *Adapter {
	loc := parseLocation(connString, opts.SQLiteDataDir)
	return &Adapter{
		loc: loc,
		log: opts.Log().With().Str("component", "sqlite").Str("path", loc.path).Logger(),
	}
}

// Path returns the resolved database file path.
func (a *Adapter) Path() string { return a.loc.path }

func (a *Adapter) DialectName() database.Dialect { return database.DialectSQLite }

func (a *Adapter) State() database.State { return a.lc.State() }

// Connect opens the database file and seeds it when the sample tables are missing.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.lc.Ensure(ctx, a.open)
}

func (a *Adapter) open(ctx context.Context) error {
	if a.loc.path == "" {
		return errs.New(errs.ErrKindConnectionFailed, "no database path in sqlite connection string")
	}

	db, err := sql.Open(driverName, a.loc.dsn())
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("failed to open sqlite database %q", a.loc.path), err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return mapError(err, "failed to enable foreign keys")
	}

	seeded, err := seed(ctx, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	if seeded {
		a.log.Info("seeded sample database")
	}

	a.db = db
	a.log.Debug("connected")
	return nil
}

// Disconnect closes the database handle. It is safe to call more than once.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.lc.Close(ctx, func(context.Context) error {
		err := a.db.Close()
		a.db = nil
		if err != nil {
			return errs.Wrap(errs.ErrKindUnknown, "failed to close sqlite database", err)
		}
		a.log.Debug("disconnected")
		return nil
	})
}

// ExecuteQuery runs query verbatim and returns its rows and column names.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.ScanRows(database.FromSQLRows(rows))
}

func (a *Adapter) Schema(ctx context.Context) (string, error) {
	info, err := a.Introspect(ctx)
	if err != nil {
		return "", err
	}
	return database.FormatSchema(database.DialectSQLite, info), nil
}

// TestConnection reports whether SELECT 1 succeeds.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if err := a.Connect(ctx); err != nil {
		a.log.WarnWith("connection test failed", err, nil)
		return false
	}
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		a.log.WarnWith("connection test failed", err, nil)
		return false
	}
	return one == 1
}
