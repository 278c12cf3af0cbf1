package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/nlsql/internal/errs"
)

// PostgreSQL SQLSTATE classes and codes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection     = "08"
	pgClassInvalidAuth    = "28"
	pgErrInsufficientPriv = "42501"
	pgErrQueryCanceled    = "57014"
	pgErrInvalidCatalog   = "3D000"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// TLS, DNS, refused connections and other transport failures.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifySQLState(code string) errs.ErrKind {
	switch {
	case len(code) >= 2 && (code[:2] == pgClassConnection || code[:2] == pgClassInvalidAuth):
		return errs.ErrKindConnectionFailed
	case code == pgErrInvalidCatalog:
		return errs.ErrKindConnectionFailed
	case code == pgErrInsufficientPriv:
		return errs.ErrKindPermissionDenied
	case code == pgErrQueryCanceled:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
