package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agencykit/intake"
	"github.com/agencykit/intake/internal/config"
	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/notify"
	"github.com/agencykit/intake/pkg/records"
	"github.com/agencykit/intake/pkg/records/memory"
	"github.com/agencykit/intake/pkg/records/postgres"
)

// runFlags holds the run command's flag values.
type runFlags struct {
	file      string
	tenant    string
	source    string
	actorID   string
	actorName string
	dsn       string
	webhook   string
	dryRun    bool
}

// newRunCommand creates the run command.
func newRunCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile an upload file against the record store",
		Long: `Run reads a YAML file of parsed lead/renewal rows and reconciles each row
against the record store: new records are created, known records are
enriched without overwriting existing data, and ownership conflicts are
flagged for review.

With --dsn the rows are written to PostgreSQL; without it an in-memory
store is used, which is only useful with --dry-run to preview outcomes.`,
		Example: `  intake run --file rows.yaml --tenant acme --source web-leads
  intake run --file rows.yaml --tenant acme --dsn "$DATABASE_URL"
  intake run --file rows.yaml --tenant acme --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return performRun(cmd, &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "YAML file of parsed rows (required)")
	cmd.Flags().StringVar(&flags.tenant, "tenant", "", "tenant identifier (required)")
	cmd.Flags().StringVar(&flags.source, "source", "", "default source for rows that carry none")
	cmd.Flags().StringVar(&flags.actorID, "actor-id", "", "id of the user submitting the upload")
	cmd.Flags().StringVar(&flags.actorName, "actor-name", "", "name of the user submitting the upload")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "PostgreSQL DSN (defaults to in-memory store)")
	cmd.Flags().StringVar(&flags.webhook, "webhook", "", "notification webhook URL (overrides INTAKE_WEBHOOK_URL)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "process against an in-memory store and discard")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

// performRun executes the reconciliation run.
func performRun(cmd *cobra.Command, flags *runFlags) error {
	ctx := cmd.Context()

	rows, err := loadRows(flags.file)
	if err != nil {
		return err
	}

	opts := []intake.Option{}

	webhook := flags.webhook
	if webhook == "" {
		webhook = config.WebhookURL()
	}
	if webhook != "" {
		opts = append(opts, intake.WithSink(notify.NewWebhookSink(webhook)))
	}

	var store records.Store
	switch {
	case flags.dryRun || flags.dsn == "":
		mem := memory.New()
		store = mem
		opts = append(opts, intake.WithContactStore(mem), intake.WithUploadStore(mem))
	default:
		pg, err := postgres.Open(ctx, flags.dsn)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		opts = append(opts, intake.WithContactStore(pg), intake.WithUploadStore(pg))
	}

	pipeline, err := intake.New(store, opts...)
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx, rows, records.UploadContext{
		TenantID:  flags.tenant,
		SourceID:  flags.source,
		ActorID:   flags.actorID,
		ActorName: flags.actorName,
		Filename:  flags.file,
	})
	if err != nil {
		return err
	}

	printSummary(cmd, summary, flags.dryRun || flags.dsn == "")
	return nil
}

// loadRows parses the upload file into typed rows.
func loadRows(path string) ([]records.ParsedRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rows []records.ParsedRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, &errors.ValidationError{
			Field:   "file",
			Value:   path,
			Message: fmt.Sprintf("invalid row file: %v", err),
		}
	}
	return rows, nil
}

// printSummary writes the human-readable run report.
func printSummary(cmd *cobra.Command, s *intake.RunSummary, dryRun bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Processed %d rows in %s\n", s.Total, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  created:   %d\n", s.Created)
	fmt.Fprintf(out, "  updated:   %d\n", s.Updated)
	if s.Conflicted > 0 {
		fmt.Fprintf(out, "  flagged:   %d (source conflicts, needs review)\n", s.Conflicted)
	}
	if s.RecoveredOnRetry > 0 {
		fmt.Fprintf(out, "  recovered: %d (succeeded on retry)\n", s.RecoveredOnRetry)
	}
	if s.Failed > 0 {
		fmt.Fprintf(out, "  failed:    %d\n", s.Failed)
		for _, f := range s.Failures {
			fmt.Fprintf(out, "    row %d (%s): %s\n", f.Index, f.Key, f.Message)
		}
	}
	if s.UploadID != "" {
		fmt.Fprintf(out, "  upload:    %s\n", s.UploadID)
	}
	if dryRun {
		fmt.Fprintln(out, "  (in-memory store; nothing was persisted)")
	}
}
