// Package mysql implements database.Adapter for MySQL through database/sql
// and github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
)

// Adapter is the MySQL implementation of database.Adapter. The underlying
// *sql.DB is capped at a single open connection.
type Adapter struct {
	lc         database.Lifecycle
	connString string
	dbName     string
	db         *sql.DB
	log        *logger.Logger

	// open builds the handle from a parsed config; tests swap it for sqlmock.
	open func(cfg *gomysql.Config) (*sql.DB, error)
}

var _ database.Adapter = (*Adapter)(nil)

// New returns an unconnected adapter. It performs no I/O.
func New(connString string, opts database.Options) *Adapter {
	return &Adapter{
		connString: connString,
		open:       openConnector,
		log: opts.Log().With().
			Str("component", "mysql").
			Str("url", database.MaskConnectionString(connString)).
			Logger(),
	}
}

func openConnector(cfg *gomysql.Config) (*sql.DB, error) {
	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (a *Adapter) DialectName() database.Dialect { return database.DialectMySQL }

func (a *Adapter) State() database.State { return a.lc.State() }

// Connect opens the connection with autocommit on, using host, port
// (default 3306), user, password and database from the URL.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.lc.Ensure(ctx, func(ctx context.Context) error {
		cfg, err := parseConfig(a.connString)
		if err != nil {
			return err
		}

		db, err := a.open(cfg)
		if err != nil {
			return errs.Wrap(errs.ErrKindConnectionFailed, "failed to open mysql connection", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			e := mapError(err, "failed to connect to mysql")
			if e.Kind == errs.ErrKindQueryFailed {
				e.Kind = errs.ErrKindConnectionFailed
			}
			return e
		}

		a.db = db
		a.dbName = cfg.DBName
		a.log.Debug("connected")
		return nil
	})
}

// Disconnect closes the connection. It is safe to call more than once.
func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.lc.Close(ctx, func(context.Context) error {
		err := a.db.Close()
		a.db = nil
		if err != nil {
			return mapError(err, "failed to close mysql connection")
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
	return database.ScanRows(newMySQLRows(rows))
}

func (a *Adapter) Schema(ctx context.Context) (string, error) {
	info, err := a.Introspect(ctx)
	if err != nil {
		return "", err
	}
	return database.FormatSchema(database.DialectMySQL, info), nil
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
