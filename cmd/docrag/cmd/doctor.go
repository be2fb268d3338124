package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and the embedding service",
		Long: `Run diagnostics to ensure docrag can ingest and query documents.

Checks:
  - Configuration is valid
  - Cache directory is writable
  - Disk space (100MB minimum)
  - Embedding service answers
  - Catalog opens (warning only)

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  docrag doctor

  # JSON output for scripting
  docrag doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDoctor(ctx, cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON shape of `docrag doctor --json`.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(ctx context.Context, cmd *cobra.Command, verbose, jsonOutput bool) error {
	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	var results []preflight.CheckResult
	cfg, err := config.Load(projectRoot())
	if err != nil {
		results = []preflight.CheckResult{{
			Name:     "config",
			Required: true,
			Status:   preflight.StatusFail,
			Message:  err.Error(),
			Details:  "Fix or remove the configuration file named in the message",
		}}
	} else {
		target := preflight.Target{Config: cfg}
		e, err := embed.NewEmbedder(ctx, cfg.Embeddings)
		if err != nil {
			target.EmbedderErr = err
		} else {
			defer func() { _ = e.Close() }()
			target.Embedder = e
			target.Provider = embed.ProviderOf(e).String()
		}
		results = checker.RunAll(ctx, target)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errReported
	}
	return nil
}
