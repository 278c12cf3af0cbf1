package sqlite

import (
	"context"
	"errors"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/nlsql/internal/errs"
)

// mapError translates modernc.org/sqlite errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var liteErr *sqlitedrv.Error
	if errors.As(err, &liteErr) {
		return errs.Wrap(classifyCode(liteErr.Code()), msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyCode maps a (possibly extended) SQLite result code to an ErrKind.
func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_INTERRUPT:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
