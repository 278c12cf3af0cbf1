package database

import (
	"database/sql"
	"fmt"

	"github.com/koustreak/nlsql/internal/errs"
)

// Rows is an abstraction over a driver result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// FromSQLRows adapts *sql.Rows to Rows.
func FromSQLRows(rows *sql.Rows) Rows {
	return &sqlRows{rows: rows}
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }

// ScanRows drains rows into a QueryResult. Each row becomes a map keyed by
// column name; column names come from the result metadata, so an empty
// result still reports its columns.
//
// The returned Rows slice is never nil. ScanRows always closes rows.
func ScanRows(rows Rows) (*QueryResult, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}
	if columns == nil {
		columns = []string{}
	}

	result := &QueryResult{
		Rows:    make([]map[string]any, 0),
		Columns: columns,
	}

	for rows.Next() {
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = NormalizeValue(dest[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}

// NormalizeValue converts driver values that do not serialise well into
// plain Go values: byte slices become strings, 16-byte arrays (UUIDs) become
// their canonical text form.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	default:
		return v
	}
}
