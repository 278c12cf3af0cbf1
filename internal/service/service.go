// Package service wires the database layer, the SQL generator and the
// exporter into the operations exposed by the HTTP server and the CLI.
//
// Every operation builds its own Manager and closes it before returning, so
// a Service is safe for concurrent use even though adapters are not.
package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/database/factory"
	"github.com/koustreak/nlsql/internal/database/manager"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/export"
	"github.com/koustreak/nlsql/internal/llm"
	"github.com/koustreak/nlsql/internal/logger"
	"github.com/koustreak/nlsql/internal/metrics"
)

const (
	DefaultPreviewLimit = 10
	DefaultMaxResults   = 1000
)

type Config struct {
	DatabaseURL     string
	DatabaseOptions database.Options

	// MaxResults caps the rows returned to the caller; extra rows are
	// dropped and the response is marked truncated.
	MaxResults int

	// QueryTimeout bounds each operation. Zero leaves the caller's deadline
	// in charge.
	QueryTimeout time.Duration

	Version string
}

// Deps are the collaborators of a Service. Only Generator is required for
// ProcessQuery; a nil Exporter disables exports and a nil Metrics disables
// instrumentation.
type Deps struct {
	Generator llm.Generator
	Exporter  *export.Exporter
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type Service struct {
	cfg      Config
	gen      llm.Generator
	exporter *export.Exporter
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time

	openManager func() (*manager.Manager, error)
}

// New checks that the configured database URL names a supported dialect.
// No connection is opened.
func New(cfg Config, deps Deps) (*Service, error) {
	if _, err := factory.New(cfg.DatabaseURL, cfg.DatabaseOptions); err != nil {
		return nil, err
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	log := deps.Logger
	if log == nil {
		log = cfg.DatabaseOptions.Log()
	}

	s := &Service{
		cfg:      cfg,
		gen:      deps.Generator,
		exporter: deps.Exporter,
		metrics:  deps.Metrics,
		log:      log.Component("service"),
		now:      time.Now,
	}
	s.openManager = func() (*manager.Manager, error) {
		return manager.New(s.cfg.DatabaseURL, s.cfg.DatabaseOptions)
	}
	return s, nil
}

type QueryRequest struct {
	Question string `json:"question"`
	// Schema, when set, is sent to the generator instead of the live schema.
	Schema string `json:"schema,omitempty"`
	// Export is "json" or "csv"; empty means no export.
	Export string `json:"export,omitempty"`
}

type QueryResponse struct {
	SQLQuery        string           `json:"sql_query"`
	Results         []map[string]any `json:"results"`
	Columns         []string         `json:"columns"`
	RowCount        int              `json:"row_count"`
	Truncated       bool             `json:"truncated"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
	Model           string           `json:"model,omitempty"`
	Export          *export.Result   `json:"export,omitempty"`
}

type SchemaResponse struct {
	Schema      string   `json:"schema"`
	Tables      []string `json:"tables"`
	LastUpdated string   `json:"last_updated"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	DatabaseType string `json:"database_type"`
	Version      string `json:"version"`
	Timestamp    string `json:"timestamp"`
}

func (s *Service) Version() string { return s.cfg.Version }

// ProcessQuery answers a natural-language question: schema, generation,
// gated execution, truncation and the optional export.
func (s *Service) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	start := s.now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question is required")
	}
	if s.gen == nil {
		return nil, errs.New(errs.ErrKindGenerationFailed, "no SQL generator configured")
	}
	format, err := s.exportFormat(req.Export)
	if err != nil {
		return nil, err
	}

	var resp *QueryResponse
	err = s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		var err error
		schema := req.Schema
		if strings.TrimSpace(schema) == "" {
			if schema, err = m.Schema(ctx); err != nil {
				return err
			}
		}

		genStart := s.now()
		gen, err := s.gen.GenerateSQL(ctx, llm.Request{
			Question: question,
			Schema:   schema,
			Dialect:  m.DialectName(),
		})
		if s.metrics != nil {
			s.metrics.ObserveGeneration(gen.Model, s.now().Sub(genStart), err)
		}
		if err != nil {
			return err
		}
		s.log.DebugWith("sql generated", map[string]any{"model": gen.Model, "sql": gen.SQL})

		result, err := s.execute(ctx, m, gen.SQL)
		if err != nil {
			return err
		}
		resp = s.respond(gen.SQL, result)
		resp.Model = gen.Model
		return nil
	})
	if err != nil {
		return nil, err
	}

	if format != "" {
		if err := s.attachExport(ctx, format, resp); err != nil {
			return nil, err
		}
	}

	resp.ExecutionTimeMS = elapsedMS(s.now().Sub(start))
	return resp, nil
}

// ExecuteSQL runs caller-supplied SQL through the same read-only gate.
func (s *Service) ExecuteSQL(ctx context.Context, sql string) (*QueryResponse, error) {
	start := s.now()

	var resp *QueryResponse
	err := s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		result, err := s.execute(ctx, m, sql)
		if err != nil {
			return err
		}
		resp = s.respond(strings.TrimSpace(sql), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.ExecutionTimeMS = elapsedMS(s.now().Sub(start))
	return resp, nil
}

// Preview returns the first limit rows of table. The table must exist in
// the live schema; its name is quoted for the dialect, never interpolated raw.
func (s *Service) Preview(ctx context.Context, table string, limit int) (*QueryResponse, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "table name is required")
	}
	switch {
	case limit < 0:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "limit must not be negative, got %d", limit)
	case limit == 0:
		limit = DefaultPreviewLimit
	case limit > s.cfg.MaxResults:
		limit = s.cfg.MaxResults
	}

	start := s.now()
	var resp *QueryResponse
	err := s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		info, err := m.Introspect(ctx)
		if err != nil {
			return err
		}
		if _, ok := info.Table(table); !ok {
			return errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
		}

		sql, err := database.Select(table, m.DialectName()).Limit(limit).Build()
		if err != nil {
			return err
		}
		result, err := s.execute(ctx, m, sql)
		if err != nil {
			return err
		}
		resp = s.respond(sql, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.ExecutionTimeMS = elapsedMS(s.now().Sub(start))
	return resp, nil
}

func (s *Service) Schema(ctx context.Context) (*SchemaResponse, error) {
	var text string
	err := s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		var err error
		text, err = m.Schema(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SchemaResponse{
		Schema:      text,
		Tables:      database.TableNames(text),
		LastUpdated: s.timestamp(),
	}, nil
}

// Introspect returns the structured schema.
func (s *Service) Introspect(ctx context.Context) (*database.SchemaInfo, error) {
	var info *database.SchemaInfo
	err := s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		var err error
		info, err = m.Introspect(ctx)
		return err
	})
	return info, err
}

// DatabaseInfo performs no I/O.
func (s *Service) DatabaseInfo() (manager.Info, error) {
	m, err := s.openManager()
	if err != nil {
		return manager.Info{}, err
	}
	return m.DatabaseInfo(), nil
}

// Health never fails; problems are reported in the response body.
func (s *Service) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status:       "unhealthy",
		Database:     "error",
		DatabaseType: "unknown",
		Version:      s.cfg.Version,
		Timestamp:    s.timestamp(),
	}

	err := s.withManager(ctx, func(ctx context.Context, m *manager.Manager) error {
		resp.DatabaseType = m.DialectName().String()
		if m.TestConnection(ctx) {
			resp.Status = "healthy"
			resp.Database = "connected"
		} else {
			resp.Database = "disconnected"
		}
		return nil
	})
	if err != nil {
		s.log.WarnWith("health check failed", err, nil)
	}
	return resp
}

// Supported returns the capability table of every known dialect.
func (s *Service) Supported() map[database.Dialect]database.Capabilities {
	return factory.Capabilities()
}

func (s *Service) withManager(ctx context.Context, fn func(context.Context, *manager.Manager) error) error {
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	m, err := s.openManager()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.log.WarnWith("failed to close database", cerr, nil)
		}
	}()

	return fn(ctx, m)
}

func (s *Service) execute(ctx context.Context, m *manager.Manager, sql string) (*database.QueryResult, error) {
	start := s.now()
	result, err := m.ExecuteQuery(ctx, sql)
	if s.metrics != nil {
		s.metrics.ObserveQuery(m.DialectName().String(), result.RowCount(), s.now().Sub(start), err)
	}
	return result, err
}

func (s *Service) respond(sql string, result *database.QueryResult) *QueryResponse {
	rows := result.Rows
	truncated := false
	if len(rows) > s.cfg.MaxResults {
		rows = rows[:s.cfg.MaxResults]
		truncated = true
	}
	return &QueryResponse{
		SQLQuery:  sql,
		Results:   rows,
		Columns:   result.Columns,
		RowCount:  len(rows),
		Truncated: truncated,
	}
}

func (s *Service) exportFormat(raw string) (export.Format, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	if s.exporter == nil {
		return "", errs.New(errs.ErrKindInvalidInput, "result export is not enabled")
	}
	return export.ParseFormat(raw)
}

func (s *Service) attachExport(ctx context.Context, format export.Format, resp *QueryResponse) error {
	res, err := s.exporter.Export(ctx, format, &database.QueryResult{
		Rows:    resp.Results,
		Columns: resp.Columns,
	})
	if s.metrics != nil {
		s.metrics.ObserveExport(string(format), err)
	}
	if err != nil {
		return err
	}
	resp.Export = res
	return nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func elapsedMS(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
