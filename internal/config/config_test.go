package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/nlsql/internal/errs"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///northwind.db", cfg.Database.URL)
	assert.Equal(t, 8000, cfg.API.Port)
	assert.Equal(t, 1000, cfg.API.MaxQueryResults)
	assert.Equal(t, 30*time.Second, cfg.API.QueryTimeout)
	assert.Equal(t, "gpt-4", cfg.LLM.PrimaryModel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.FallbackModel)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "0.0.0.0:8000", cfg.API.Addr())
	assert.False(t, cfg.Export.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{
		"DATABASE_URL":      "postgresql://u:p@db:5432/app",
		"OPENAI_API_KEY":    "sk-test",
		"LLM_TEMPERATURE":   "0.2",
		"API_PORT":          "9090",
		"CORS_ORIGINS":      "http://a.example, http://b.example,",
		"MAX_QUERY_RESULTS": "50",
		"QUERY_TIMEOUT":     "5",
		"LLM_TIMEOUT":       "1m",
		"ENVIRONMENT":       "Production",
		"SQLITE_DATA_DIR":   "/data",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgresql://u:p@db:5432/app", cfg.Database.URL)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, 50, cfg.API.MaxQueryResults)
	assert.Equal(t, 5*time.Second, cfg.API.QueryTimeout)
	assert.Equal(t, time.Minute, cfg.LLM.Timeout)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/data", cfg.Database.SQLiteDataDir)
}

func TestLoad_InvalidEnv(t *testing.T) {
	_, err := Load("", envMap(map[string]string{
		"API_PORT":       "eighty",
		"EXPORT_ENABLED": "maybe",
	}))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "API_PORT")
	assert.Contains(t, err.Error(), "EXPORT_ENABLED")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nlsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  url: mysql://root:pw@localhost:3306/shop
api:
  port: 8081
  query_timeout: 10s
log:
  level: debug
  format: console
export:
  enabled: true
  endpoint: minio:9000
  bucket: results
  url_ttl: 1h
`), 0o600))

	cfg, err := Load(path, envMap(map[string]string{"API_PORT": "8082"}))
	require.NoError(t, err)

	assert.Equal(t, "mysql://root:pw@localhost:3306/shop", cfg.Database.URL)
	assert.Equal(t, 8082, cfg.API.Port, "env wins over file")
	assert.Equal(t, 10*time.Second, cfg.API.QueryTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, time.Hour, cfg.Export.URLTTL)
	// untouched keys keep defaults
	assert.Equal(t, 1000, cfg.API.MaxQueryResults)

	store := cfg.Export.Store()
	assert.Equal(t, "minio:9000", store.Endpoint)
	assert.Equal(t, "results", store.DefaultBucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_NilLookup(t *testing.T) {
	_, err := Load("", nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty url", func(c *Config) { c.Database.URL = " " }, "database url is required"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "api port"},
		{"zero results", func(c *Config) { c.API.MaxQueryResults = 0 }, "max query results"},
		{"bad env", func(c *Config) { c.Environment = "staging" }, "unknown environment"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "unknown log format"},
		{"hot temperature", func(c *Config) { c.LLM.Temperature = 3 }, "temperature"},
		{"export without bucket", func(c *Config) {
			c.Export.Enabled = true
			c.Export.Bucket = ""
		}, "export endpoint and bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestHelpers(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Database.SQLiteDataDir = "/var/lib/nlsql"

	lc := cfg.LoggerConfig()
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "json", lc.Format)

	opts := cfg.DatabaseOptions(nil)
	assert.Equal(t, "/var/lib/nlsql", opts.SQLiteDataDir)
	assert.NotNil(t, opts.Log())
}
