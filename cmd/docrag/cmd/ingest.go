package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/ingest"
	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

func newIngestCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Extract, chunk, embed and cache documents",
		Long: `Ingest turns each document into a cached vector index.

Files are ingested as given. Directories are scanned one level deep and only
files with a configured watch extension are picked up.

A document whose bytes were ingested before is a cache hit: nothing is
re-embedded. Documents that fail are reported and skipped; the command exits
non-zero if any failed.`,
		Example: `  # Ingest a single PDF
  docrag ingest lease.pdf

  # Ingest every supported file in a directory, plain output
  docrag ingest ./contracts --no-tui`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(noTUI),
				ui.WithNoColor(ui.DetectNoColor()),
			))
			if err := renderer.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = renderer.Stop() }()
			a.onProgress(renderer.UpdateProgress)
			defer a.onProgress(nil)

			runner, err := ingest.NewRunner(ingest.Dependencies{
				Renderer: renderer,
				Engine:   a.engine,
				Embedder: a.embedderInfo(),
				Accept:   watcher.OptionsFromConfig(a.cfg.Watch).Accepts,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}

			result, err := runner.Run(ctx, args)
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed to ingest", result.Failed, result.Failed+result.Documents)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}
