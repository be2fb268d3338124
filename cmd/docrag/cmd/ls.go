package cmd

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/catalog"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/ui"
)

func newListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached documents",
		Long: `List every document with a cached vector index: its hash, name, chunk
counts, index kind, embedding model and size on disk.

Does not contact the embedding service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return errors.ValidationError("unknown format "+format, nil).
					WithSuggestion("Use --format text or --format json.")
			}

			a, err := newStorageApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.documentRows(cmd.Context())
			if err != nil {
				return err
			}

			r := ui.NewDocumentsRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if format == "json" {
				return r.RenderJSON(rows)
			}
			return r.Render(rows)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

// documentRows lists cached documents, newest first. The cache manifests
// decide what exists; the catalog contributes last-access times.
func (a *app) documentRows(ctx context.Context) ([]ui.DocumentRow, error) {
	manifests, err := a.store.List()
	if err != nil {
		return nil, err
	}

	records := make(map[string]catalog.Record)
	if a.catalog != nil {
		list, err := a.catalog.List(ctx)
		if err != nil {
			a.logger.Warn("catalog_list_failed", errors.LogAttrs(err)...)
		}
		for _, r := range list {
			records[r.Hash] = r
		}
	}

	rows := make([]ui.DocumentRow, 0, len(manifests))
	seen := make(map[string]bool)
	for _, m := range manifests {
		if seen[m.Hash] {
			continue
		}
		seen[m.Hash] = true

		row := ui.DocumentRow{
			Hash:       m.Hash,
			Name:       m.Name,
			Chunks:     m.Chunks,
			Degraded:   m.Degraded,
			IndexKind:  m.IndexKind,
			Model:      m.Model,
			Dimensions: m.Dimensions,
			SizeBytes:  dirSize(m.Dir),
			CreatedAt:  m.CreatedAt,
		}
		if rec, ok := records[m.Hash]; ok {
			row.LastAccessed = rec.LastAccessed
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
