// Package llm turns natural-language questions into SQL using a chat
// completion model. Generated SQL is untrusted; callers must run it through
// the manager's read-only gate.
package llm

import (
	"context"
	"strings"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
)

// Request is one question to translate.
type Request struct {
	Question string           `json:"question"`
	Schema   string           `json:"schema"`
	Dialect  database.Dialect `json:"dialect"`
}

// Result is the generated SQL and the model that produced it.
type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Generator produces SQL for a Request.
type Generator interface {
	GenerateSQL(ctx context.Context, req Request) (Result, error)
}

// Static always returns the same SQL. It is used for dry runs and tests.
type Static struct {
	SQL string
}

func (s Static) GenerateSQL(_ context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, errs.New(errs.ErrKindInvalidInput, "question is required")
	}
	sql := StripMarkdownSQL(s.SQL)
	if sql == "" {
		return Result{}, errs.New(errs.ErrKindGenerationFailed, "model returned empty SQL")
	}
	return Result{SQL: sql, Provider: "static", Model: "static"}, nil
}

// StripMarkdownSQL removes a surrounding ```sql ... ``` or ``` ... ``` fence.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```SQL")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
