// Package postgres implements database.Adapter for PostgreSQL on top of a
// single jackc/pgx connection.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
)

// Adapter is the PostgreSQL implementation of database.Adapter.
type Adapter struct {
	lc         database.Lifecycle
	connString string
	conn       *pgx.Conn
	log        *logger.Logger
}

var _ database.Adapter = (*Adapter)(nil)

// New returns an unconnected adapter. It performs no I/O.
func New(connString string, opts database.Options) *Adapter {
	return &Adapter{
		connString: connString,
		log: opts.Log().With().
			Str("component", "postgres").
			Str("url", database.MaskConnectionString(connString)).
			Logger(),
	}
}

func (a *Adapter) DialectName() database.Dialect { return database.DialectPostgreSQL }

func (a *Adapter) State() database.State { return a.lc.State() }

// Connect dials the server using host, port, user, password and database
// from the connection URL.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.lc.Ensure(ctx, func(ctx context.Context) error {
		cfg, err := parseConfig(a.connString)
		if err != nil {
			return err
		}

		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return errs.Wrap(errs.ErrKindTimeout, "timed out connecting to postgres", err)
			}
			return errs.Wrap(errs.ErrKindConnectionFailed, "failed to connect to postgres", err)
		}

		a.conn = conn
		a.log.Debug("connected")
		return nil
	})
}

// Disconnect closes the connection. It is safe to call more than once.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.lc.Close(ctx, func(ctx context.Context) error {
		err := a.conn.Close(ctx)
		a.conn = nil
		if err != nil {
			return mapError(err, "failed to close postgres connection")
		}
		a.log.Debug("disconnected")
		return nil
	})
}

// ExecuteQuery runs query verbatim. Column names come from the result's
// field descriptions, so an empty result still reports them.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	res, err := database.ScanRows(&pgxRows{rows: rows})
	if err != nil {
		return nil, remapScanError(err)
	}
	return res, nil
}

func (a *Adapter) Schema(ctx context.Context) (string, error) {
	info, err := a.Introspect(ctx)
	if err != nil {
		return "", err
	}
	return database.FormatSchema(database.DialectPostgreSQL, info), nil
}

// TestConnection reports whether SELECT 1 succeeds.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if err := a.Connect(ctx); err != nil {
		a.log.WarnWith("connection test failed", err, nil)
		return false
	}
	var one int
	if err := a.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		a.log.WarnWith("connection test failed", err, nil)
		return false
	}
	return one == 1
}

// remapScanError reclassifies a row iteration failure using the server's
// SQLSTATE when one is available. pgx reports most statement errors lazily
// through rows.Err rather than from Query.
func remapScanError(err error) error {
	var e *errs.Error
	if !errors.As(err, &e) || e.Cause == nil {
		return err
	}
	return mapError(e.Cause, "query failed")
}

// pgxRows adapts pgx.Rows to database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}
