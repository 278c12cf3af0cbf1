package mysql

import (
	"context"

	"github.com/koustreak/nlsql/internal/database"
)

// Introspect reads the base tables of the connected database. Tables are
// ordered by name and columns by ordinal position; a column is a primary
// key when its column_key is PRI.
func (a *Adapter) Introspect(ctx context.Context) (*database.SchemaInfo, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	info := &database.SchemaInfo{Tables: make([]database.TableInfo, 0)}
	if err := a.fetchColumns(ctx, info); err != nil {
		return nil, err
	}

	fks, err := a.fetchForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	info.ForeignKeys = fks
	return info, nil
}

// fetchColumns groups consecutive rows by table name, so the ordering must be
// case-sensitive even when information_schema collates case-insensitively.
func (a *Adapter) fetchColumns(ctx context.Context, info *database.SchemaInfo) error {
	const q = `
		SELECT c.table_name,
		       c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       c.column_default,
		       c.column_key = 'PRI'
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema
		 AND t.table_name   = c.table_name
		WHERE c.table_schema = ?
		  AND t.table_type   = 'BASE TABLE'
		ORDER BY BINARY c.table_name, c.ordinal_position`

	rows, err := a.db.QueryContext(ctx, q, a.dbName)
	if err != nil {
		return mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			table string
			c     database.ColumnInfo
		)
		if err := rows.Scan(&table, &c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.IsPrimaryKey); err != nil {
			return mapError(err, "failed to scan column info")
		}
		n := len(info.Tables)
		if n == 0 || info.Tables[n-1].Name != table {
			info.Tables = append(info.Tables, database.TableInfo{Name: table})
			n++
		}
		info.Tables[n-1].Columns = append(info.Tables[n-1].Columns, c)
	}
	if err := rows.Err(); err != nil {
		return mapError(err, "error iterating columns")
	}
	return nil
}

func (a *Adapter) fetchForeignKeys(ctx context.Context) ([]database.ForeignKey, error) {
	const q = `
		SELECT kcu.table_name,
		       kcu.column_name,
		       kcu.referenced_table_name,
		       kcu.referenced_column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON rc.constraint_name   = kcu.constraint_name
		 AND rc.constraint_schema = kcu.table_schema
		WHERE rc.constraint_schema = ?
		ORDER BY kcu.table_name, kcu.column_name`

	rows, err := a.db.QueryContext(ctx, q, a.dbName)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	var fks []database.ForeignKey
	for rows.Next() {
		var fk database.ForeignKey
		if err := rows.Scan(&fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating foreign keys")
	}
	return fks, nil
}
