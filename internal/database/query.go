package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/nlsql/internal/errs"
)

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type orderClause struct {
	column string
	dir    SortDirection
}

// SelectBuilder constructs a read-only SELECT for a single table in the
// syntax of the target dialect. Identifiers are always quoted and the row
// limit is rendered with the dialect's LIMIT, TOP or ROWNUM construct, so
// the output can be handed straight to Manager.ExecuteQuery.
//
// Usage:
//
//	sql, err := Select("customers", DialectSQLServer).
//	    Columns("customer_id", "company_name").
//	    OrderBy("company_name", Asc).
//	    Limit(20).
//	    Build()
//	// SELECT TOP 20 [customer_id], [company_name] FROM [customers] ORDER BY [company_name] ASC
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	orderBy []orderClause
	limit   *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Build produces the SQL text. The limit is an integer and is inlined;
// identifiers are quoted for the dialect.
func (b *SelectBuilder) Build() (string, error) {
	caps, ok := LookupCapabilities(b.dialect)
	if !ok {
		return "", errs.Newf(errs.ErrKindUnsupportedDialect, "unsupported dialect: %q", b.dialect)
	}
	if strings.TrimSpace(b.table) == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "table name is required")
	}
	if b.limit != nil && *b.limit < 0 {
		return "", errs.Newf(errs.ErrKindInvalidInput, "limit must not be negative, got %d", *b.limit)
	}

	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = b.quote(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.limit != nil && caps.LimitSyntax == LimitSyntaxTop {
		sb.WriteString("TOP ")
		sb.WriteString(strconv.Itoa(*b.limit))
		sb.WriteByte(' ')
	}
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.quote(b.table))

	// ROWNUM is assigned before ORDER BY, so an ordered query is wrapped.
	if b.limit != nil && caps.LimitSyntax == LimitSyntaxRownum {
		if len(b.orderBy) == 0 {
			sb.WriteString(fmt.Sprintf(" WHERE ROWNUM <= %d", *b.limit))
			return sb.String(), nil
		}
		b.writeOrderBy(&sb)
		return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", sb.String(), *b.limit), nil
	}

	b.writeOrderBy(&sb)

	if b.limit != nil && caps.LimitSyntax == LimitSyntaxLimit {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*b.limit))
	}

	return sb.String(), nil
}

func (b *SelectBuilder) writeOrderBy(sb *strings.Builder) {
	if len(b.orderBy) == 0 {
		return
	}
	parts := make([]string, len(b.orderBy))
	for i, o := range b.orderBy {
		dir := "ASC"
		if o.dir == Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", b.quote(o.column), dir)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(parts, ", "))
}

// quote wraps an identifier in the dialect's quoting characters:
// backticks for MySQL, brackets for SQL Server, ANSI double quotes elsewhere.
func (b *SelectBuilder) quote(name string) string {
	return QuoteIdent(b.dialect, name)
}

// QuoteIdent quotes a single identifier for d, escaping embedded quote characters.
func QuoteIdent(d Dialect, name string) string {
	switch d {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
