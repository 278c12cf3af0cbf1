// Package cli implements the nlsql command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/koustreak/nlsql/internal/config"
	"github.com/koustreak/nlsql/internal/export"
	"github.com/koustreak/nlsql/internal/filestore/minio"
	"github.com/koustreak/nlsql/internal/llm"
	"github.com/koustreak/nlsql/internal/logger"
	"github.com/koustreak/nlsql/internal/metrics"
	"github.com/koustreak/nlsql/internal/service"
)

// Version is set at build time.
var Version = "0.1.0"

// errUnhealthy makes the process exit non-zero without printing twice.
var errUnhealthy = errors.New("database connection test failed")

type appKey struct{}

// app is the per-invocation state built by the root command.
type app struct {
	cfg config.Config
	log *logger.Logger
}

func fromContext(ctx context.Context) *app {
	a, _ := ctx.Value(appKey{}).(*app)
	return a
}

// NewRootCmd builds the command tree. lookup resolves environment
// variables; tests pass a map-backed function.
func NewRootCmd(lookup config.LookupFunc) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "nlsql",
		Short: "Ask questions of SQL databases in plain language",
		Long: `nlsql turns natural-language questions into read-only SQL and runs them
against SQLite, PostgreSQL or MySQL.

The database is chosen by the scheme of DATABASE_URL (or --database-url):
sqlite:///file.db, postgresql://..., mysql://...`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, lookup)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Root().PersistentFlags(), &cfg); err != nil {
				return err
			}

			lc := cfg.LoggerConfig()
			lc.Output = cmd.ErrOrStderr()
			log := logger.New(lc)

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, log: log}))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	pf.String("database-url", "", "database connection string (overrides DATABASE_URL)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")

	_ = root.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("log-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "console"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newServeCmd(),
		newSchemaCmd(),
		newQueryCmd(),
		newAskCmd(),
		newPreviewCmd(),
		newDatabasesCmd(),
		newCheckCmd(),
	)
	return root
}

// applyFlags layers explicitly set flags over the loaded config.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	overrides := map[string]*string{
		"database-url": &cfg.Database.URL,
		"log-level":    &cfg.Log.Level,
		"log-format":   &cfg.Log.Format,
	}
	for name, dst := range overrides {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return cfg.Validate()
}

// Execute runs the CLI against the process environment and returns the
// exit code.
func Execute() int {
	root := NewRootCmd(os.LookupEnv)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

type serviceOptions struct {
	generator bool
	exporter  bool
	metrics   *metrics.Metrics

	// static replaces the model with fixed SQL.
	static llm.Generator
}

// newService assembles a Service from the config. The generator and the
// exporter are only built when the command needs them.
func (a *app) newService(ctx context.Context, opts serviceOptions) (*service.Service, error) {
	deps := service.Deps{Logger: a.log, Metrics: opts.metrics}

	switch {
	case opts.static != nil:
		deps.Generator = opts.static
	case opts.generator:
		if a.cfg.LLM.APIKey == "" {
			a.log.Warn("OPENAI_API_KEY is not set; natural-language queries will fail")
		} else {
			gen, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
				BaseURL:       a.cfg.LLM.BaseURL,
				APIKey:        a.cfg.LLM.APIKey,
				PrimaryModel:  a.cfg.LLM.PrimaryModel,
				FallbackModel: a.cfg.LLM.FallbackModel,
				Temperature:   a.cfg.LLM.Temperature,
				MaxTokens:     a.cfg.LLM.MaxTokens,
				Timeout:       a.cfg.LLM.Timeout,
				Logger:        a.log,
			})
			if err != nil {
				return nil, err
			}
			deps.Generator = gen
		}
	}

	if opts.exporter && a.cfg.Export.Enabled {
		store, err := minio.New(ctx, a.cfg.Export.Store())
		if err != nil {
			return nil, err
		}
		deps.Exporter = export.New(store, export.Options{
			Bucket: a.cfg.Export.Bucket,
			Prefix: a.cfg.Export.Prefix,
			URLTTL: a.cfg.Export.URLTTL,
			Logger: a.log,
		})
	}

	return service.New(service.Config{
		DatabaseURL:     a.cfg.Database.URL,
		DatabaseOptions: a.cfg.DatabaseOptions(a.log),
		MaxResults:      a.cfg.API.MaxQueryResults,
		QueryTimeout:    a.cfg.API.QueryTimeout,
		Version:         Version,
	}, deps)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
