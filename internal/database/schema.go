package database

import (
	"strings"
)

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"nullable"`
	IsPrimaryKey bool    `json:"primary_key"`
	DefaultValue *string `json:"default,omitempty"` // nil if no default
}

// TableInfo describes a table and its columns
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ForeignKey describes a relationship between two tables
type ForeignKey struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// SchemaInfo is the full introspected database schema. Tables are kept in
// catalog enumeration order, which every adapter makes alphabetical.
type SchemaInfo struct {
	Tables      []TableInfo  `json:"tables"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Table returns the table named name, if present.
func (s *SchemaInfo) Table(name string) (*TableInfo, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns the table names in order.
func (s *SchemaInfo) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

const tablePrefix = "Table: "

// FormatSchema renders info as the schema text handed to the language model:
//
//	Database Schema (SQLite):
//
//	Table: customers
//	  - customer_id: TEXT NOT NULL (PRIMARY KEY)
//	  - company_name: TEXT NOT NULL
//
// Output depends only on info, so an unchanged catalog yields identical text.
func FormatSchema(dialect Dialect, info *SchemaInfo) string {
	var sb strings.Builder
	sb.WriteString("Database Schema (")
	sb.WriteString(string(dialect))
	sb.WriteString("):\n\n")

	if info == nil {
		return sb.String()
	}

	for _, table := range info.Tables {
		sb.WriteString(tablePrefix)
		sb.WriteString(table.Name)
		sb.WriteByte('\n')

		for _, col := range table.Columns {
			nullable := "NULL"
			if !col.IsNullable {
				nullable = "NOT NULL"
			}
			sb.WriteString("  - ")
			sb.WriteString(col.Name)
			sb.WriteString(": ")
			sb.WriteString(col.DataType)
			sb.WriteByte(' ')
			sb.WriteString(nullable)
			if col.IsPrimaryKey {
				sb.WriteString(" (PRIMARY KEY)")
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TableNames extracts the table names from schema text produced by
// FormatSchema (or supplied by a caller in the same layout).
func TableNames(schemaText string) []string {
	tables := make([]string, 0)
	for _, line := range strings.Split(schemaText, "\n") {
		if strings.HasPrefix(line, tablePrefix) {
			tables = append(tables, strings.TrimSpace(strings.TrimPrefix(line, tablePrefix)))
		}
	}
	return tables
}
