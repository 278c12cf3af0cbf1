// Package config holds the process configuration. It is loaded once at
// startup and passed down explicitly; nothing below cmd/ reads the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/filestore"
	"github.com/koustreak/nlsql/internal/logger"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(string) (string, bool)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

type Config struct {
	Environment Environment    `yaml:"environment"`
	Database    DatabaseConfig `yaml:"database"`
	LLM         LLMConfig      `yaml:"llm"`
	API         APIConfig      `yaml:"api"`
	Log         LogConfig      `yaml:"log"`
	Export      ExportConfig   `yaml:"export"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`

	// SQLiteDataDir is where relative SQLite paths are resolved. Production
	// deployments point it at a persistent volume.
	SQLiteDataDir string `yaml:"sqlite_data_dir"`
}

type LLMConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	PrimaryModel  string        `yaml:"primary_model"`
	FallbackModel string        `yaml:"fallback_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
}

type APIConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxQueryResults int           `yaml:"max_query_results"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ExportConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	UseSSL    bool          `yaml:"use_ssl"`
	Region    string        `yaml:"region"`
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	URLTTL    time.Duration `yaml:"url_ttl"`
}

// Store returns the object store settings for the export bucket.
func (e ExportConfig) Store() *filestore.Config {
	cfg := filestore.DefaultConfig(e.Endpoint, e.AccessKey, e.SecretKey)
	cfg.UseSSL = e.UseSSL
	cfg.Region = e.Region
	cfg.DefaultBucket = e.Bucket
	return cfg
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: EnvDevelopment,
		Database: DatabaseConfig{
			URL: "sqlite:///northwind.db",
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com",
			PrimaryModel:  "gpt-4",
			FallbackModel: "gpt-3.5-turbo",
			Temperature:   0,
			MaxTokens:     300,
			Timeout:       30 * time.Second,
		},
		API: APIConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			CORSOrigins:     []string{"*"},
			MaxQueryResults: 1000,
			QueryTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Export: ExportConfig{
			Endpoint: "localhost:9000",
			Bucket:   "nlsql-exports",
			Prefix:   "exports",
			URLTTL:   15 * time.Minute,
		},
	}
}

// LoadFromEnv loads path (optional) and the process environment.
func LoadFromEnv(path string) (Config, error) {
	return Load(path, os.LookupEnv)
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides. The result is validated.
func Load(path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, errs.New(errs.ErrKindInvalidInput, "lookup function is required")
	}

	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("read config file %q", path), err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("parse config file %q", path), err)
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	var env string
	if raw, ok := lookup("ENVIRONMENT"); ok {
		env = strings.ToLower(strings.TrimSpace(raw))
		c.Environment = Environment(env)
	}

	var cors string
	appliers := []error{
		applyString(lookup, "DATABASE_URL", &c.Database.URL),
		applyString(lookup, "SQLITE_DATA_DIR", &c.Database.SQLiteDataDir),

		applyString(lookup, "OPENAI_API_KEY", &c.LLM.APIKey),
		applyString(lookup, "LLM_BASE_URL", &c.LLM.BaseURL),
		applyString(lookup, "LLM_PRIMARY_MODEL", &c.LLM.PrimaryModel),
		applyString(lookup, "LLM_FALLBACK_MODEL", &c.LLM.FallbackModel),
		applyFloat(lookup, "LLM_TEMPERATURE", &c.LLM.Temperature),
		applyInt(lookup, "LLM_MAX_TOKENS", &c.LLM.MaxTokens),
		applyDuration(lookup, "LLM_TIMEOUT", &c.LLM.Timeout),

		applyString(lookup, "API_HOST", &c.API.Host),
		applyInt(lookup, "API_PORT", &c.API.Port),
		applyString(lookup, "CORS_ORIGINS", &cors),
		applyInt(lookup, "MAX_QUERY_RESULTS", &c.API.MaxQueryResults),
		applyDuration(lookup, "QUERY_TIMEOUT", &c.API.QueryTimeout),

		applyString(lookup, "LOG_LEVEL", &c.Log.Level),
		applyString(lookup, "LOG_FORMAT", &c.Log.Format),

		applyBool(lookup, "EXPORT_ENABLED", &c.Export.Enabled),
		applyString(lookup, "EXPORT_ENDPOINT", &c.Export.Endpoint),
		applyString(lookup, "EXPORT_ACCESS_KEY", &c.Export.AccessKey),
		applyString(lookup, "EXPORT_SECRET_KEY", &c.Export.SecretKey),
		applyBool(lookup, "EXPORT_USE_SSL", &c.Export.UseSSL),
		applyString(lookup, "EXPORT_REGION", &c.Export.Region),
		applyString(lookup, "EXPORT_BUCKET", &c.Export.Bucket),
		applyString(lookup, "EXPORT_PREFIX", &c.Export.Prefix),
		applyDuration(lookup, "EXPORT_URL_TTL", &c.Export.URLTTL),
	}
	if err := errors.Join(appliers...); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid environment", err)
	}

	if cors != "" {
		c.API.CORSOrigins = splitList(cors)
	}
	return nil
}

// Validate rejects configurations the process cannot start with.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.URL) == "" {
		problems = append(problems, "database url is required")
	}
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		problems = append(problems, fmt.Sprintf("unknown environment %q", c.Environment))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		problems = append(problems, fmt.Sprintf("api port %d out of range", c.API.Port))
	}
	if c.API.MaxQueryResults <= 0 {
		problems = append(problems, "max query results must be positive")
	}
	if c.API.QueryTimeout < 0 {
		problems = append(problems, "query timeout must not be negative")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm max tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm temperature must be within [0, 2]")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.Export.Enabled {
		if c.Export.Endpoint == "" || c.Export.Bucket == "" {
			problems = append(problems, "export endpoint and bucket are required when export is enabled")
		}
		if c.Export.URLTTL <= 0 {
			problems = append(problems, "export url ttl must be positive")
		}
	}

	if len(problems) > 0 {
		return errs.New(errs.ErrKindInvalidInput, "invalid config: "+strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

// LoggerConfig returns the logger settings. Output is left to the caller.
func (c Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}

// DatabaseOptions returns the adapter options derived from c.
func (c Config) DatabaseOptions(log *logger.Logger) database.Options {
	return database.Options{
		SQLiteDataDir: c.Database.SQLiteDataDir,
		Logger:        log,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	// Bare numbers are seconds.
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}
