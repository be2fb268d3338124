package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
)

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <document>...",
		Aliases: []string{"remove"},
		Short:   "Delete cached documents",
		Long: `Delete the cached vector index and catalog entry of each document.

<document> is a cached document name or a hash prefix of at least 6
characters. The next ingest of the same bytes re-embeds them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newStorageApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())
			failed := 0
			for _, ref := range args {
				doc, err := a.resolveDocument(ctx, ref)
				if err != nil {
					failed++
					out.Errorf("%s: %v", ref, err)
					continue
				}

				removed, err := a.store.Remove(doc.Hash)
				if err != nil {
					failed++
					out.Errorf("%s: %v", ref, err)
					continue
				}
				if a.catalog != nil {
					if err := a.catalog.Delete(ctx, doc.Hash); err != nil {
						a.logger.Warn("catalog_delete_failed", errors.LogAttrs(err)...)
					}
				}
				out.Successf("Removed %s (%s, %d cache entries)", doc.Name, document.ShortHash(doc.Hash), removed)
			}

			if failed > 0 {
				return errReported
			}
			return nil
		},
	}
	return cmd
}
