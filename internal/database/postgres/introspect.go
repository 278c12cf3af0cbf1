package postgres

import (
	"context"

	"github.com/koustreak/nlsql/internal/database"
)

// Introspect reads the base tables of the public schema with their columns,
// primary keys and foreign keys. Tables are ordered by name and columns by
// ordinal position.
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
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := a.conn.Query(ctx, q)
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
	const q = `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       c.column_default,
		       pk.column_name IS NOT NULL
		FROM information_schema.columns c
		LEFT JOIN (
		    SELECT kcu.table_name, kcu.column_name
		    FROM information_schema.table_constraints tc
		    JOIN information_schema.key_column_usage kcu
		      ON tc.constraint_name = kcu.constraint_name
		     AND tc.table_schema    = kcu.table_schema
		    WHERE tc.constraint_type = 'PRIMARY KEY'
		      AND tc.table_schema    = 'public'
		) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
		WHERE c.table_schema = 'public'
		  AND c.table_name   = $1
		ORDER BY c.ordinal_position`

	rows, err := a.conn.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []database.ColumnInfo
	for rows.Next() {
		var c database.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.IsPrimaryKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return cols, nil
}

// fetchForeignKeys pairs referencing and referenced columns by their position
// in the constraint, so a composite key yields one row per column pair.
func (a *Adapter) fetchForeignKeys(ctx context.Context, table string) ([]database.ForeignKey, error) {
	const q = `
		SELECT fa.attname::text,
		       rt.relname::text,
		       ra.attname::text
		FROM pg_constraint con
		JOIN pg_class ft     ON ft.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = ft.relnamespace
		JOIN pg_class rt     ON rt.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(from_attnum, to_attnum, pos)
		JOIN pg_attribute fa ON fa.attrelid = con.conrelid  AND fa.attnum = k.from_attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.to_attnum
		WHERE con.contype = 'f'
		  AND ns.nspname  = 'public'
		  AND ft.relname  = $1
		ORDER BY con.conname, k.pos`

	rows, err := a.conn.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	var fks []database.ForeignKey
	for rows.Next() {
		fk := database.ForeignKey{FromTable: table}
		if err := rows.Scan(&fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating foreign keys")
	}
	return fks, nil
}
