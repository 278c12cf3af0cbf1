package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/nlsql/internal/config"
	"github.com/koustreak/nlsql/internal/errs"
)

func run(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	root := NewRootCmd(lookup)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func sqliteEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"DATABASE_URL": "sqlite:///" + filepath.Join(t.TempDir(), "northwind.db"),
		"LOG_LEVEL":    "error",
	}
}

func TestSchemaCmd(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Database Schema (SQLite):")
	assert.Contains(t, out, "Table: customers")

	out, _, err = run(t, sqliteEnv(t), "schema", "--json")
	require.NoError(t, err)
	var info struct {
		Tables []struct {
			Name string `json:"name"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Len(t, info.Tables, 4)
}

func TestQueryCmd(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "query", "SELECT", "COUNT(*)", "AS", "n", "FROM", "products")
	require.NoError(t, err)

	var resp struct {
		SQL     string           `json:"sql_query"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "SELECT COUNT(*) AS n FROM products", resp.SQL)
	assert.EqualValues(t, 5, resp.Results[0]["n"])

	_, _, err = run(t, sqliteEnv(t), "query", "DELETE FROM products")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidQuery(err))
}

func TestAskCmd_StaticSQL(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "ask", "--sql", "SELECT order_id FROM orders", "how many orders?")
	require.NoError(t, err)
	assert.Contains(t, out, `"row_count": 2`)
	assert.Contains(t, out, `"model": "static"`)

	_, _, err = run(t, sqliteEnv(t), "ask", "--sql", "SELECT 1", "--export", "csv", "q")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err), "export not enabled")
}

func TestAskCmd_NoAPIKey(t *testing.T) {
	_, _, err := run(t, sqliteEnv(t), "ask", "anything")
	require.Error(t, err)
	assert.True(t, errs.IsGenerationFailed(err))
}

func TestPreviewCmd(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "preview", "customers", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"row_count": 2`)
	assert.Contains(t, out, `SELECT * FROM \"customers\" LIMIT 2`)
}

func TestDatabasesCmd(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "databases")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 5)
	assert.Equal(t, "SQLite", entries[0]["name"])
	assert.Equal(t, "TOP", entries[3]["limit_syntax"])
	assert.Equal(t, true, entries[1]["case_insensitive_search"])
}

func TestCheckCmd(t *testing.T) {
	out, _, err := run(t, sqliteEnv(t), "check")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)

	env := sqliteEnv(t)
	env["DATABASE_URL"] = "sqlite:///" + filepath.Join(t.TempDir(), "missing", "x.db")
	out, _, err = run(t, env, "check")
	assert.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, out, `"database": "disconnected"`)
}

func TestDatabaseURLFlagOverridesEnv(t *testing.T) {
	env := sqliteEnv(t)
	env["DATABASE_URL"] = "mongodb://nope"
	flagURL := "sqlite:///" + filepath.Join(t.TempDir(), "flag.db")

	_, _, err := run(t, env, "check", "--database-url", flagURL)
	require.NoError(t, err)

	_, _, err = run(t, env, "check")
	require.Error(t, err)
	assert.True(t, errs.IsUnsupportedDialect(err))
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("database-url", "", "")
	fs.String("log-level", "", "")
	fs.String("log-format", "", "")
	require.NoError(t, fs.Parse([]string{"--log-format", "console"}))

	cfg := config.Default()
	require.NoError(t, applyFlags(fs, &cfg))
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset flags leave config alone")

	require.NoError(t, fs.Set("log-format", "xml"))
	assert.Error(t, applyFlags(fs, &cfg))
}

func TestConfigFileErrorsSurface(t *testing.T) {
	_, _, err := run(t, sqliteEnv(t), "--config", filepath.Join(t.TempDir(), "absent.yaml"), "schema")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}
