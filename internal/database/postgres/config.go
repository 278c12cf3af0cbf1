package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/koustreak/nlsql/internal/errs"
)

// normalizeURL rewrites any postgres-family scheme (postgres, postgresql,
// postgresql+asyncpg, ...) to the plain "postgresql" scheme pgx understands.
func normalizeURL(connString string) string {
	s := strings.TrimSpace(connString)
	i := strings.Index(s, "://")
	if i < 0 {
		return s
	}
	return "postgresql" + s[i:]
}

// parseConfig builds the pgx connection config from a URL. It performs no I/O.
// A connect timeout applies only when the URL carries connect_timeout.
func parseConfig(connString string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(normalizeURL(connString))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid postgres connection string", err)
	}
	return cfg, nil
}
