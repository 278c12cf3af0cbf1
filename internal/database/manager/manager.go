// Package manager is the façade callers use to talk to a database: it owns
// one adapter, enforces the read-only policy and never exposes credentials.
package manager

import (
	"context"
	"strings"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/database/factory"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
)

// Info describes the managed database without exposing credentials.
type Info struct {
	DatabaseType           database.Dialect      `json:"database_type"`
	ConnectionStringMasked string                `json:"connection_string_masked"`
	SupportedFeatures      database.Capabilities `json:"supported_features"`
}

// Manager wraps a single adapter. Like the adapter it is not safe for
// concurrent use; construct one per logical request.
type Manager struct {
	adapter    database.Adapter
	connString string
	log        *logger.Logger
}

// New builds a Manager for connString. The adapter is created immediately
// but does not connect until the first operation that needs it.
func New(connString string, opts database.Options) (*Manager, error) {
	adapter, err := factory.New(connString, opts)
	if err != nil {
		return nil, err
	}
	return NewWithAdapter(connString, adapter, opts.Log()), nil
}

// NewWithAdapter wraps an existing adapter.
func NewWithAdapter(connString string, adapter database.Adapter, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		adapter:    adapter,
		connString: connString,
		log:        log.With().Str("component", "manager").Str("dialect", adapter.DialectName().String()).Logger(),
	}
}

// CheckReadOnly rejects any statement that does not start with SELECT after
// trimming and upper-casing. It is a textual prefix check, not a parser.
func CheckReadOnly(sql string) error {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT") {
		return errs.New(errs.ErrKindInvalidQuery, "only SELECT queries are allowed")
	}
	return nil
}

// ExecuteQuery runs sql after the read-only check.
func (m *Manager) ExecuteQuery(ctx context.Context, sql string) (*database.QueryResult, error) {
	if err := CheckReadOnly(sql); err != nil {
		m.log.WarnWith("rejected non-SELECT statement", err, nil)
		return nil, err
	}

	res, err := m.adapter.ExecuteQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	m.log.DebugWith("query executed", map[string]any{"rows": res.RowCount()})
	return res, nil
}

// Schema returns the live schema text.
func (m *Manager) Schema(ctx context.Context) (string, error) {
	return m.adapter.Schema(ctx)
}

// Introspect returns the live structured schema.
func (m *Manager) Introspect(ctx context.Context) (*database.SchemaInfo, error) {
	return m.adapter.Introspect(ctx)
}

// TestConnection probes the database. It never fails; errors become false.
func (m *Manager) TestConnection(ctx context.Context) bool {
	return m.adapter.TestConnection(ctx)
}

func (m *Manager) DialectName() database.Dialect {
	return m.adapter.DialectName()
}

// DatabaseInfo returns the dialect, the masked connection string and the
// dialect's capability record. It performs no I/O.
func (m *Manager) DatabaseInfo() Info {
	d := m.adapter.DialectName()
	caps, _ := database.LookupCapabilities(d)
	return Info{
		DatabaseType:           d,
		ConnectionStringMasked: database.MaskConnectionString(m.connString),
		SupportedFeatures:      caps,
	}
}

// Close disconnects the adapter. Later operations fail with ErrKindClosed.
func (m *Manager) Close(ctx context.Context) error {
	return m.adapter.Disconnect(ctx)
}
