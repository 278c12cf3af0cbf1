package mysql

import (
	"database/sql"
	"strconv"
	"strings"
)

// mysqlRows adapts *sql.Rows to database.Rows. The text protocol returns
// every non-NULL value as []byte; integer and floating point columns are
// converted back to numbers using the column's declared type. DECIMAL stays
// a string to keep its exact value.
type mysqlRows struct {
	rows  *sql.Rows
	types []string
}

func newMySQLRows(rows *sql.Rows) *mysqlRows {
	r := &mysqlRows{rows: rows}
	if cts, err := rows.ColumnTypes(); err == nil {
		r.types = make([]string, len(cts))
		for i, ct := range cts {
			r.types[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}
	return r
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }
func (r *mysqlRows) Err() error                 { return r.rows.Err() }

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok || i >= len(r.types) {
			continue
		}
		*p = convertText(r.types[i], *p)
	}
	return nil
}

func convertText(typeName string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch typeName {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return v
}
