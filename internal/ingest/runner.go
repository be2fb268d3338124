// Package ingest runs multi-document ingests: it expands files and
// directories into documents, feeds each through the retrieval engine and
// reports progress to a ui.Renderer.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/ui"
)

// Ingester processes one file into a bundle. *retrieval.Engine satisfies it.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*document.Bundle, error)
}

// Dependencies contains the injected dependencies for Runner.
type Dependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Engine ingests each document (required).
	Engine Ingester

	// Embedder describes the provider in the completion summary.
	Embedder ui.EmbedderInfo

	// Accept filters directory entries by file name. Files named explicitly
	// are always ingested. Nil accepts every non-hidden file.
	Accept func(name string) bool

	Logger *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	Documents int
	Cached    int
	Failed    int
	Chunks    int
	Degraded  int
	Duration  time.Duration

	// Bundles holds the ingested bundles in input order; failed documents
	// are absent.
	Bundles []*document.Bundle
}

// Runner ingests documents one after another and keeps going past
// per-document failures.
type Runner struct {
	renderer ui.Renderer
	engine   Ingester
	embedder ui.EmbedderInfo
	accept   func(string) bool
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, errors.InternalError("renderer is required", nil)
	}
	if deps.Engine == nil {
		return nil, errors.InternalError("engine is required", nil)
	}
	accept := deps.Accept
	if accept == nil {
		accept = func(name string) bool { return !strings.HasPrefix(filepath.Base(name), ".") }
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		renderer: deps.Renderer,
		engine:   deps.Engine,
		embedder: deps.Embedder,
		accept:   accept,
		logger:   logger,
	}, nil
}

// Expand resolves paths into the list of files to ingest. Directories are
// scanned one level deep and their entries filtered; files are kept as
// given. Duplicates are dropped. Paths that cannot be read are returned as
// failures rather than aborting the expansion.
func (r *Runner) Expand(paths []string) (files []string, failures []ui.ErrorEvent) {
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			failures = append(failures, ui.ErrorEvent{
				File: p,
				Err: errors.IOError(fmt.Sprintf("cannot read %s", p), err).
					WithSuggestion("Check the path exists and is readable"),
			})
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			failures = append(failures, ui.ErrorEvent{
				File: p,
				Err:  errors.IOError(fmt.Sprintf("cannot list %s", p), err),
			})
			continue
		}
		var names []string
		for _, entry := range entries {
			if entry.Type().IsRegular() && r.accept(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(p, name))
		}
	}
	return files, failures
}

// Run ingests every document named by paths and reports a completion
// summary. Per-document failures are reported to the renderer and counted;
// only cancellation stops the run early.
func (r *Runner) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s", strings.Join(paths, ", ")),
	})

	files, failures := r.Expand(paths)
	for _, f := range failures {
		r.renderer.AddError(f)
		result.Failed++
	}
	r.logger.Info("ingest_started",
		slog.Int("documents", len(files)),
		slog.Int("unreadable", len(failures)))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageScanning,
			CurrentFile: path,
			Document:    i + 1,
			Documents:   len(files),
		})

		docStart := time.Now()
		b, err := r.engine.IngestFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				result.Duration = time.Since(start)
				return result, ctx.Err()
			}
			result.Failed++
			r.renderer.AddError(ui.ErrorEvent{File: path, Err: err})
			r.logger.Warn("ingest_document_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		result.Documents++
		result.Chunks += b.Len()
		result.Bundles = append(result.Bundles, b)
		if b.CreatedAt.Before(start) {
			result.Cached++
		}
		if degraded := b.DegradedCount(); degraded > 0 {
			result.Degraded += degraded
			r.renderer.AddError(ui.ErrorEvent{
				File:   path,
				Err:    fmt.Errorf("%d of %d chunks could not be embedded", degraded, b.Len()),
				IsWarn: true,
			})
		}
		r.logger.Debug("ingest_document_done",
			slog.String("path", path),
			slog.Int("chunks", b.Len()),
			slog.Duration("duration", time.Since(docStart)))
	}

	result.Duration = time.Since(start)
	r.renderer.Complete(ui.CompletionStats{
		Documents: result.Documents,
		Cached:    result.Cached,
		Failed:    result.Failed,
		Chunks:    result.Chunks,
		Degraded:  result.Degraded,
		Duration:  result.Duration,
		Embedder:  r.embedder,
	})

	r.logger.Info("ingest_complete",
		slog.Int("documents", result.Documents),
		slog.Int("cached", result.Cached),
		slog.Int("failed", result.Failed),
		slog.Int("chunks", result.Chunks),
		slog.Int("degraded", result.Degraded),
		slog.Int64("duration_ms", result.Duration.Milliseconds()),
		slog.String("embedder_provider", r.embedder.Provider),
		slog.String("embedder_model", r.embedder.Model))

	return result, nil
}
