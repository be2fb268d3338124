package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/ingest"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var poll bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest documents as they are dropped into a directory",
		Long: `Watch a drop directory and ingest every supported document that appears
or changes in it. Documents already in the directory are ingested first.

The directory defaults to watch.dir from the configuration and is created if
missing. Subdirectories are not watched. Press Ctrl+C to stop.`,
		Example: `  # Watch the configured drop directory
  docrag watch

  # Watch a network share that does not deliver inotify events
  docrag watch /mnt/share/incoming --poll`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := watcher.OptionsFromConfig(a.cfg.Watch)
			if len(args) > 0 {
				dir, err := filepath.Abs(args[0])
				if err != nil {
					return errors.ValidationError("invalid watch directory", err)
				}
				opts.Dir = dir
			}
			opts.ForcePolling = poll
			opts.Logger = a.logger

			return runWatch(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "Scan the directory periodically instead of using file system events")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, opts watcher.Options) error {
	w, err := watcher.New(opts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	if err := w.Start(ctx); err != nil {
		return err
	}

	renderer := ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithTitle("docrag watch")))
	a.onProgress(renderer.UpdateProgress)
	defer a.onProgress(nil)

	runner, err := ingest.NewRunner(ingest.Dependencies{
		Renderer: renderer,
		Engine:   a.engine,
		Embedder: a.embedderInfo(),
		Accept:   opts.Accepts,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("👀", "Watching %s (%s)", w.Dir(), w.Mode())

	if _, err := runner.Run(ctx, []string{w.Dir()}); err != nil && ctx.Err() == nil {
		return err
	}

	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			out.Status("👋", "Stopped watching")
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			if _, err := runner.Run(ctx, batch); err != nil && ctx.Err() == nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			out.Warningf("watch: %v", err)
		}
	}
}
