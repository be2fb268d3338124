package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event, for CI logs and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Output looks like
//
//	[EMBED] 2/3 raw/lease.pdf 16/64
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := "[" + event.Stage.Icon() + "]"
	if event.Documents > 0 {
		line += fmt.Sprintf(" %d/%d", event.Document, event.Documents)
	}
	if event.CurrentFile != "" {
		line += " " + event.CurrentFile
	}
	if event.Total > 1 {
		line += fmt.Sprintf(" %d/%d", event.Current, event.Total)
	}
	if event.Message != "" {
		line += " - " + event.Message
	}
	_, _ = fmt.Fprintln(r.out, line)
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents (%d cached), %d chunks in %s",
		stats.Documents, stats.Cached, stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d failed", stats.Failed)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Degraded > 0 {
		_, _ = fmt.Fprintf(r.out, "Degraded: %d chunks stored with zero vectors\n", stats.Degraded)
	}
	if stats.Embedder.Provider != "" {
		_, _ = fmt.Fprintf(r.out, "Embedder: %s (%s, %d dims)\n",
			stats.Embedder.Provider, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
