package database

import (
	"context"

	"github.com/koustreak/nlsql/internal/logger"
)

// Adapter is the uniform contract every dialect implements. An adapter owns
// at most one physical connection and opens it lazily: constructing one
// performs no network or file I/O.
//
// Adapters are not safe for concurrent queries; one logical request owns one
// adapter for its duration.
type Adapter interface {
	// Connect opens the connection. Calling it on a connected adapter is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Safe to call repeatedly and on an
	// adapter that never connected.
	Disconnect(ctx context.Context) error

	// ExecuteQuery runs sql verbatim, connecting first if needed.
	ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error)

	// Introspect reads the live catalog into a SchemaInfo.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Schema renders Introspect as the canonical schema text.
	Schema(ctx context.Context) (string, error)

	// TestConnection runs SELECT 1. It never returns an error; any failure is false.
	TestConnection(ctx context.Context) bool

	// DialectName is pure and performs no I/O.
	DialectName() Dialect

	// State reports the lifecycle position of the adapter.
	State() State
}

// QueryResult is the outcome of ExecuteQuery. Columns is populated from the
// driver's result metadata, so it is set even when Rows is empty.
type QueryResult struct {
	Rows    []map[string]any `json:"results"`
	Columns []string         `json:"columns"`
}

// RowCount returns len(r.Rows).
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Options carries process-level settings into adapters. It is built once
// from the application config and passed down explicitly.
type Options struct {
	// SQLiteDataDir, when set, is the directory relative SQLite paths are
	// resolved against.
	SQLiteDataDir string

	// Logger receives adapter lifecycle events. Nil means no logging.
	Logger *logger.Logger
}

// Log returns the configured logger or a no-op logger.
func (o Options) Log() *logger.Logger {
	if o.Logger == nil {
		return logger.Nop()
	}
	return o.Logger
}
