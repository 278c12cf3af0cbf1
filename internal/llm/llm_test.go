package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
)

func TestStripMarkdownSQL(t *testing.T) {
	tests := map[string]string{
		"```sql\nSELECT 1;\n```": "SELECT 1;",
		"```\nSELECT 2\n```":     "SELECT 2",
		"  SELECT 3  ":           "SELECT 3",
		"```sql\n```":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripMarkdownSQL(in), in)
	}
}

func TestSystemPrompt_DialectHints(t *testing.T) {
	schema := "Database Schema (PostgreSQL):\n\nTable: customers\n"

	pg := SystemPrompt(schema, database.DialectPostgreSQL)
	assert.Contains(t, pg, "to PostgreSQL queries")
	assert.Contains(t, pg, schema)
	assert.Contains(t, pg, "ILIKE")
	assert.Contains(t, pg, "7. Use LIMIT for queries")

	mssql := SystemPrompt(schema, database.DialectSQLServer)
	assert.Contains(t, mssql, "SELECT TOP 50 * FROM customers")
	assert.Contains(t, mssql, "7. Use TOP for queries")

	oracle := SystemPrompt(schema, database.DialectOracle)
	assert.Contains(t, oracle, "ROWNUM <= 50")

	unknown := SystemPrompt(schema, database.Dialect("DB2"))
	assert.Contains(t, unknown, "SQLite doesn't have ILIKE")
}

func TestUserPrompt(t *testing.T) {
	assert.Equal(t, "Question: how many orders?\nSQL:", UserPrompt("how many orders?"))
}

func TestStatic(t *testing.T) {
	res, err := Static{SQL: "```sql\nSELECT 1\n```"}.GenerateSQL(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", res.SQL)

	_, err = Static{SQL: ""}.GenerateSQL(context.Background(), Request{Question: "q"})
	assert.True(t, errs.IsGenerationFailed(err))

	_, err = Static{SQL: "SELECT 1"}.GenerateSQL(context.Background(), Request{})
	assert.True(t, errs.IsInvalidInput(err))
}

type fakeCompletions struct {
	mu     sync.Mutex
	models []string
	reply  func(model string) (int, string)
}

func (f *fakeCompletions) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.True(t, strings.HasPrefix(req.Messages[1].Content, "Question: "))
		assert.Equal(t, 300, req.MaxTokens)

		f.mu.Lock()
		f.models = append(f.models, req.Model)
		f.mu.Unlock()

		status, content := f.reply(req.Model)
		w.WriteHeader(status)
		if status < 400 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
			})
			return
		}
		_, _ = w.Write([]byte(content))
	}
}

func newTestGenerator(t *testing.T, f *fakeCompletions) *OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	g, err := NewOpenAIGenerator(OpenAIConfig{
		BaseURL:       srv.URL + "/",
		APIKey:        "test-key",
		FallbackModel: DefaultFallbackModel,
	})
	require.NoError(t, err)
	return g
}

func TestOpenAIGenerator_Primary(t *testing.T) {
	f := &fakeCompletions{reply: func(string) (int, string) {
		return http.StatusOK, "```sql\nSELECT COUNT(*) FROM customers\n```"
	}}
	g := newTestGenerator(t, f)

	res, err := g.GenerateSQL(context.Background(), Request{
		Question: "how many customers?", Schema: "Table: customers", Dialect: database.DialectSQLite,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM customers", res.SQL)
	assert.Equal(t, DefaultPrimaryModel, res.Model)
	assert.Equal(t, []string{DefaultPrimaryModel}, f.models)
}

func TestOpenAIGenerator_Fallback(t *testing.T) {
	f := &fakeCompletions{reply: func(model string) (int, string) {
		if model == DefaultPrimaryModel {
			return http.StatusTooManyRequests, `{"error":"rate limited"}`
		}
		return http.StatusOK, "SELECT 1"
	}}
	g := newTestGenerator(t, f)

	res, err := g.GenerateSQL(context.Background(), Request{Question: "q", Dialect: database.DialectMySQL})
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackModel, res.Model)
	assert.Equal(t, []string{DefaultPrimaryModel, DefaultFallbackModel}, f.models)
}

func TestOpenAIGenerator_BothFail(t *testing.T) {
	f := &fakeCompletions{reply: func(string) (int, string) { return http.StatusOK, "   " }}
	g := newTestGenerator(t, f)

	_, err := g.GenerateSQL(context.Background(), Request{Question: "q"})
	require.Error(t, err)
	assert.True(t, errs.IsGenerationFailed(err))
	assert.Len(t, f.models, 2)
}

func TestOpenAIGenerator_NoFallback(t *testing.T) {
	f := &fakeCompletions{reply: func(string) (int, string) { return http.StatusInternalServerError, "boom" }}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)

	_, err = g.GenerateSQL(context.Background(), Request{Question: "q"})
	assert.True(t, errs.IsGenerationFailed(err))
	assert.Len(t, f.models, 1)
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	assert.True(t, errs.IsInvalidInput(err))
}
