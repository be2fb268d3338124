package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
)

type queryOptions struct {
	topK            int
	format          string
	excludeDegraded bool
	maxChars        int
}

func newQueryCmd() *cobra.Command {
	opts := queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <document> <text>...",
		Short: "Find the chunks of a document closest to a question",
		Long: `Query embeds the question and returns the k closest chunks of one document.

<document> is a file path, a cached document name, or a hash prefix of at
least 6 characters. A file that has not been ingested yet is ingested first.

Results are ordered by score, best first:
  score = 1 - squared euclidean distance
Higher is closer; scores are not bounded to [0, 1].`,
		Example: `  # Ask a question of a PDF (ingests it on first use)
  docrag query lease.pdf "when is rent due?"

  # Use a hash prefix and JSON output
  docrag query 3f9a1c "pet policy" -k 3 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runQuery(ctx, cmd, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of chunks to return (default: retrieval.top_k)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.excludeDegraded, "exclude-degraded", false, "Leave out chunks whose embedding failed")
	cmd.Flags().IntVar(&opts.maxChars, "max-chars", 400, "Truncate each chunk to this many characters in text output (0 = whole chunk)")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, ref, text string, opts queryOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return errors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json.")
	}
	if opts.topK < 0 {
		return errors.ValidationError("--top-k must not be negative", nil)
	}
	if strings.TrimSpace(text) == "" {
		return errors.ValidationError("query text is empty", nil)
	}

	a, err := newApp(ctx, func(cfg *config.Config) {
		if opts.excludeDegraded {
			cfg.Retrieval.ExcludeDegraded = true
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	k := opts.topK
	if k == 0 {
		k = a.cfg.Retrieval.TopK
	}

	b, err := a.openDocument(ctx, ref)
	if err != nil {
		return err
	}

	results, err := a.engine.Query(ctx, text, k, b)
	if err != nil {
		if errors.IsEmbeddingUnavailable(err) {
			a.logger.Warn("query_unavailable", errors.LogAttrs(err)...)
		}
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(output.QueryResult{
			Document:      b.Document.Name,
			Hash:          b.Document.Hash,
			Query:         text,
			QueryDegraded: len(results) > 0 && results[0].QueryDegraded,
			Results:       results,
			ScoreNote:     output.ScoreNote,
		})
	}

	out.Statusf("🔍", "%s (%s), top %d of %d chunks", b.Document.Name, document.ShortHash(b.Document.Hash), min(k, b.Len()), b.Len())
	out.Newline()
	out.Results(results, opts.maxChars)
	return nil
}

// openDocument returns the bundle for ref. Existing files are ingested, which
// is a cache hit when their bytes were seen before.
func (a *app) openDocument(ctx context.Context, ref string) (*document.Bundle, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return a.engine.IngestFile(ctx, ref)
	}

	doc, err := a.resolveDocument(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.engine.Open(ctx, doc.Hash, doc.Name)
}
