package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/nlsql/internal/database"
	"github.com/koustreak/nlsql/internal/llm"
	"github.com/koustreak/nlsql/internal/metrics"
	"github.com/koustreak/nlsql/internal/server"
	"github.com/koustreak/nlsql/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			svc, err := a.newService(ctx, serviceOptions{generator: true, exporter: true, metrics: m})
			if err != nil {
				return err
			}

			info, _ := svc.DatabaseInfo()
			a.log.InfoWith("starting nlsql", map[string]any{
				"version":     Version,
				"environment": string(a.cfg.Environment),
				"database":    info.DatabaseType.String(),
				"url":         info.ConnectionStringMasked,
				"export":      a.cfg.Export.Enabled,
			})

			srv := server.New(server.Config{
				Addr:            a.cfg.API.Addr(),
				CORSOrigins:     a.cfg.API.CORSOrigins,
				ShutdownTimeout: a.cfg.API.ShutdownTimeout,
				Environment:     string(a.cfg.Environment),
				Service:         svc,
				Metrics:         m,
				Logger:          a.log,
			})
			return srv.Serve(ctx)
		},
	}
}

func newSchemaCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.newService(cmd.Context(), serviceOptions{})
			if err != nil {
				return err
			}
			if asJSON {
				info, err := svc.Introspect(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), info)
			}
			resp, err := svc.Schema(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), resp.Schema)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tables, columns and foreign keys as JSON")
	return cmd
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <SELECT ...>",
		Short: "Run a read-only SQL statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.newService(cmd.Context(), serviceOptions{})
			if err != nil {
				return err
			}
			resp, err := svc.ExecuteSQL(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		exportFormat string
		staticSQL    string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a natural-language question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			opts := serviceOptions{generator: true, exporter: exportFormat != ""}
			if staticSQL != "" {
				opts.static = llm.Static{SQL: staticSQL}
			}
			svc, err := a.newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			resp, err := svc.ProcessQuery(cmd.Context(), service.QueryRequest{
				Question: strings.Join(args, " "),
				Export:   exportFormat,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&exportFormat, "export", "", "also export the result: json or csv")
	cmd.Flags().StringVar(&staticSQL, "sql", "", "skip the model and use this SQL (dry run)")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Show the first rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.newService(cmd.Context(), serviceOptions{})
			if err != nil {
				return err
			}
			resp, err := svc.Preview(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultPreviewLimit, "number of rows")
	return cmd
}

type dialectEntry struct {
	Name                  database.Dialect `yaml:"name"`
	database.Capabilities `yaml:",inline"`
}

func newDatabasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List known database dialects and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := make([]dialectEntry, 0)
			for _, d := range database.Dialects() {
				caps, _ := database.LookupCapabilities(d)
				entries = append(entries, dialectEntry{Name: d, Capabilities: caps})
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(entries); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.newService(cmd.Context(), serviceOptions{})
			if err != nil {
				return err
			}
			health := svc.Health(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), health); err != nil {
				return err
			}
			if health.Status != "healthy" {
				return errUnhealthy
			}
			return nil
		},
	}
}
