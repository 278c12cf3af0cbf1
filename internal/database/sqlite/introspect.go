package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/koustreak/nlsql/internal/database"
)

// Introspect reads tables, columns and foreign keys from the SQLite catalog.
// Internal sqlite_* tables are skipped; tables come back in name order and
// columns in declaration order.
func (a *Adapter) Introspect(ctx context.Context) (*database.SchemaInfo, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	tables, err := a.listTables(ctx)
	if err != nil {
		return nil, err
	}

	info := &database.SchemaInfo{Tables: make([]database.TableInfo, 0, len(tables))}
	for _, name := range tables {
		cols, err := a.fetchColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		info.Tables = append(info.Tables, database.TableInfo{Name: name, Columns: cols})

		fks, err := a.fetchForeignKeys(ctx, name)
		if err != nil {
			return nil, err
		}
		info.ForeignKeys = append(info.ForeignKeys, fks...)
	}
	return info, nil
}

func (a *Adapter) listTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

func (a *Adapter) fetchColumns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", database.QuoteIdent(database.DialectSQLite, table))

	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to fetch columns of %q", table))
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			c       database.ColumnInfo
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.DataType, &notNull, &dflt, &pk); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		c.IsNullable = notNull == 0
		c.IsPrimaryKey = pk > 0
		if dflt.Valid {
			v := dflt.String
			c.DefaultValue = &v
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return cols, nil
}

func (a *Adapter) fetchForeignKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	q := fmt.Sprintf("PRAGMA foreign_key_list(%s)", database.QuoteIdent(database.DialectSQLite, table))

	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to fetch foreign keys of %q", table))
	}
	defer rows.Close()

	var fks []database.ForeignKey
	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fk := database.ForeignKey{FromTable: table, FromColumn: from, ToTable: refTable, ToColumn: to.String}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating foreign keys")
	}
	return fks, nil
}
