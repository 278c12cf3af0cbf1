// Package factory maps connection strings to database adapters.
package factory

import (
	"strings"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/database/mysql"
	"github.com/koustreak/nlsql/internal/database/postgres"
	"github.com/koustreak/nlsql/internal/database/sqlite"
	"github.com/koustreak/nlsql/internal/errs"
)

// schemeDialects is checked in order; the first matching prefix wins.
var schemeDialects = []struct {
	prefix  string
	dialect database.Dialect
}{
	{"sqlite", database.DialectSQLite},
	{"postgres", database.DialectPostgreSQL}, // also postgresql
	{"mysql", database.DialectMySQL},
	{"mssql", database.DialectSQLServer},
	{"sqlserver", database.DialectSQLServer},
	{"oracle", database.DialectOracle},
}

// Detect returns the dialect named by the scheme of connString. It reports
// false for schemes outside the capability table.
func Detect(connString string) (database.Dialect, bool) {
	scheme := database.Scheme(connString)
	if scheme == "" {
		return "", false
	}
	for _, sd := range schemeDialects {
		if strings.HasPrefix(scheme, sd.prefix) {
			return sd.dialect, true
		}
	}
	return "", false
}

// New returns an unconnected adapter for connString. It performs no I/O.
//
// SQL Server and Oracle are recognised but have no adapter; they fail with
// ErrKindUnsupportedDialect just like an unknown scheme.
func New(connString string, opts database.Options) (database.Adapter, error) {
	d, ok := Detect(connString)
	if !ok {
		return nil, errs.Newf(errs.ErrKindUnsupportedDialect,
			"unsupported database type: %s", database.Scheme(connString))
	}

	switch d {
	case database.DialectSQLite:
		return sqlite.New(connString, opts), nil
	case database.DialectPostgreSQL:
		return postgres.New(connString, opts), nil
	case database.DialectMySQL:
		return mysql.New(connString, opts), nil
	default:
		return nil, errs.Newf(errs.ErrKindUnsupportedDialect, "%s support is not implemented yet", d)
	}
}

// Supported lists the dialects New can build an adapter for.
func Supported() []database.Dialect {
	return []database.Dialect{database.DialectSQLite, database.DialectPostgreSQL, database.DialectMySQL}
}

// IsSupported reports whether New can build an adapter for d.
func IsSupported(d database.Dialect) bool {
	for _, s := range Supported() {
		if s == d {
			return true
		}
	}
	return false
}

// Capabilities returns the static capability table for every known dialect.
// No connection is needed.
func Capabilities() map[database.Dialect]database.Capabilities {
	return database.CapabilityTable()
}
