// Package retrieval ingests documents into cached vector bundles and answers
// similarity queries against them.
//
// Ingest is content addressed: the SHA-256 of the raw bytes decides whether
// a document has been processed before, and a cache hit skips extraction,
// chunking, embedding and indexing entirely. Concurrent ingests of the same
// bytes collapse into one unit of work, within a process through
// singleflight and across processes through the cache's per-hash file lock.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/docrag/internal/cache"
	"github.com/Aman-CERP/docrag/internal/catalog"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/extract"
	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

// Deps are the collaborators an Engine is built from.
type Deps struct {
	// Splitter chunks extracted text (required).
	Splitter *chunk.Splitter

	// Adapter embeds chunks and queries (required).
	Adapter *embed.Adapter

	// Store persists bundles (required).
	Store *cache.Store

	// Catalog records ingested documents. Optional.
	Catalog *catalog.Catalog
}

// Options tune an Engine.
type Options struct {
	// Index selects and tunes the vector index built per document.
	Index vectorindex.Options

	// ExcludeDegraded drops chunks whose embedding failed from query results.
	ExcludeDegraded bool

	// MemoryBundles is the number of bundles kept in memory. 0 disables it.
	MemoryBundles int

	// ArchiveDir receives a copy of every file passed to IngestFile.
	// Empty disables archiving.
	ArchiveDir string

	// Progress receives stage updates during processing. Optional.
	Progress func(ui.ProgressEvent)

	Logger *slog.Logger
}

// Engine owns the ingest pipeline and query path. It keeps no "current
// document": every query names the bundle it runs against.
type Engine struct {
	splitter *chunk.Splitter
	adapter  *embed.Adapter
	store    *cache.Store
	catalog  *catalog.Catalog
	opts     Options
	logger   *slog.Logger

	memory *lru.Cache[string, *document.Bundle]
	flight singleflight.Group

	mu         sync.Mutex
	processing map[string]bool
}

// New validates deps and builds an Engine.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Splitter == nil {
		return nil, errors.InternalError("retrieval: splitter is required", nil)
	}
	if deps.Adapter == nil {
		return nil, errors.InternalError("retrieval: embedding adapter is required", nil)
	}
	if deps.Store == nil {
		return nil, errors.InternalError("retrieval: cache store is required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		splitter:   deps.Splitter,
		adapter:    deps.Adapter,
		store:      deps.Store,
		catalog:    deps.Catalog,
		opts:       opts,
		logger:     opts.Logger,
		processing: make(map[string]bool),
	}
	if opts.MemoryBundles > 0 {
		memory, err := lru.New[string, *document.Bundle](opts.MemoryBundles)
		if err != nil {
			return nil, errors.ConfigError("invalid memory bundle cache size", err)
		}
		e.memory = memory
	}
	return e, nil
}

// Ingest returns the indexed bundle for raw. identifier names the document
// in chunk metadata and in the cache directory; it plays no part in identity.
func (e *Engine) Ingest(ctx context.Context, identifier string, raw []byte) (*document.Bundle, error) {
	if len(raw) == 0 {
		return nil, errors.ValidationError(fmt.Sprintf("document %s is empty", identifier), nil)
	}
	hash := document.Hash(raw)

	if b, ok := e.lookup(ctx, hash, identifier); ok {
		return b, nil
	}

	v, err, _ := e.flight.Do(hash, func() (any, error) {
		return e.processLocked(ctx, hash, identifier, raw)
	})
	if err != nil {
		return nil, err
	}
	return v.(*document.Bundle), nil
}

// IngestFile reads path, archives a copy when configured, and ingests it
// under the cleaned path.
func (e *Engine) IngestFile(ctx context.Context, path string) (*document.Bundle, error) {
	path = filepath.Clean(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to read %s", path), err)
	}
	if e.opts.ArchiveDir != "" {
		if err := archive(e.opts.ArchiveDir, path, raw); err != nil {
			e.logger.Warn("archive_failed",
				append([]any{slog.String("path", path)}, errors.LogAttrs(err)...)...)
		}
	}
	return e.Ingest(ctx, path, raw)
}

// Open returns a previously ingested bundle without processing anything.
func (e *Engine) Open(ctx context.Context, hash, name string) (*document.Bundle, error) {
	if b, ok := e.lookup(ctx, hash, name); ok {
		return b, nil
	}
	if e.store.Exists(hash) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound,
			fmt.Sprintf("cached bundle for %s was built with another embedding model than %s",
				document.ShortHash(hash), e.adapter.ModelName()), nil).
			WithSuggestion("Re-ingest the document with `docrag ingest <file>` to embed it with the current model.")
	}
	return nil, errors.New(errors.ErrCodeDocumentNotFound,
		fmt.Sprintf("no cached bundle for %s", document.ShortHash(hash)), nil).
		WithSuggestion("Ingest the document first with `docrag ingest <file>`.")
}

// State reports where hash is in the ingest lifecycle.
func (e *Engine) State(hash string) State {
	e.mu.Lock()
	busy := e.processing[hash]
	e.mu.Unlock()

	switch {
	case busy:
		return StateProcessing
	case e.memory != nil && e.memory.Contains(hash):
		return StateIndexed
	case e.store.Exists(hash):
		return StateCached
	default:
		return StateUnprocessed
	}
}

// Dimensions returns the embedding width every bundle must match.
func (e *Engine) Dimensions() int { return e.adapter.Dimensions() }

// lookup checks memory, then disk. Bundles built by another model or of
// another dimension are misses: their vectors live in a different space than
// the query embeddings the active model produces.
func (e *Engine) lookup(ctx context.Context, hash, name string) (*document.Bundle, bool) {
	if e.memory != nil {
		if b, ok := e.memory.Get(hash); ok && e.compatible(b) {
			return b, true
		}
	}

	b, ok := e.store.Load(hash, name)
	if !ok {
		return nil, false
	}
	if !e.compatible(b) {
		e.logger.Info("cache_model_mismatch",
			slog.String("hash", document.ShortHash(hash)),
			slog.String("cached_model", b.Model),
			slog.Int("cached_dimensions", b.Dimensions),
			slog.String("embedder_model", e.adapter.ModelName()),
			slog.Int("embedder_dimensions", e.adapter.Dimensions()))
		return nil, false
	}

	e.remember(b)
	e.touch(ctx, hash)
	e.logger.Debug("cache_hit", slog.String("hash", document.ShortHash(hash)), slog.Int("chunks", b.Len()))
	return b, true
}

func (e *Engine) compatible(b *document.Bundle) bool {
	return b.Dimensions == e.adapter.Dimensions() && b.Model == e.adapter.ModelName()
}

func (e *Engine) remember(b *document.Bundle) {
	if e.memory != nil {
		e.memory.Add(b.Document.Hash, b)
	}
}

// processLocked serialises processing of hash across processes and re-checks
// the cache once the lock is held, since another process may have finished
// the same document meanwhile.
func (e *Engine) processLocked(ctx context.Context, hash, identifier string, raw []byte) (*document.Bundle, error) {
	unlock, err := e.store.Lock(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			e.logger.Warn("cache_unlock_failed", slog.String("hash", document.ShortHash(hash)), slog.String("error", err.Error()))
		}
	}()

	if b, ok := e.lookup(ctx, hash, identifier); ok {
		return b, nil
	}

	e.setProcessing(hash, true)
	defer e.setProcessing(hash, false)

	return e.process(ctx, hash, identifier, raw)
}

func (e *Engine) process(ctx context.Context, hash, identifier string, raw []byte) (*document.Bundle, error) {
	start := time.Now()
	log := e.logger.With(slog.String("document", identifier), slog.String("hash", document.ShortHash(hash)))

	e.emit(ui.StageExtracting, 0, 1, identifier, "")
	text, err := extract.Text(identifier, raw)
	if err != nil {
		return nil, err
	}

	e.emit(ui.StageChunking, 0, 1, identifier, "")
	chunks, err := e.splitter.Chunks(identifier, text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors.ValidationError(fmt.Sprintf("document %s contains no text to index", identifier), nil).
			WithSuggestion("Scanned PDFs without a text layer cannot be indexed.")
	}

	e.emit(ui.StageEmbedding, 0, len(chunks), identifier, "")
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	results, err := e.adapter.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(chunks) {
		return nil, errors.InternalError(
			fmt.Sprintf("embedding adapter returned %d results for %d chunks", len(results), len(chunks)), nil)
	}

	dims := e.adapter.Dimensions()
	embeddings := make([][]float32, len(results))
	for i, r := range results {
		embeddings[i] = r.Vector
		if !r.Status.OK {
			chunks[i].Metadata.Degraded = true
			chunks[i].Metadata.FailureReason = r.Status.Reason
		}
	}
	e.emit(ui.StageEmbedding, len(chunks), len(chunks), identifier, "")

	e.emit(ui.StageIndexing, 0, len(embeddings), identifier, "")
	idx, err := vectorindex.Build(embeddings, dims, e.opts.Index)
	if err != nil {
		return nil, err
	}

	b := &document.Bundle{
		Document:   document.Document{Name: identifier, Hash: hash},
		Chunks:     chunks,
		Embeddings: embeddings,
		Index:      idx,
		Model:      e.adapter.ModelName(),
		Dimensions: dims,
		CreatedAt:  time.Now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	e.emit(ui.StageSaving, 0, 1, identifier, "")
	dir, err := e.store.Save(b)
	if err != nil {
		// The bundle is still queryable; only the next run pays for it again.
		log.Warn("cache_save_failed", errors.LogAttrs(err)...)
	} else {
		e.record(ctx, b, dir)
	}

	e.remember(b)
	e.emit(ui.StageComplete, len(chunks), len(chunks), identifier, "")

	log.Info("document_indexed",
		slog.Int("chunks", b.Len()),
		slog.Int("degraded", b.DegradedCount()),
		slog.String("index", idx.Kind()),
		slog.Duration("duration", time.Since(start)))
	return b, nil
}

// record upserts the catalog row. Catalog failures never fail an ingest.
func (e *Engine) record(ctx context.Context, b *document.Bundle, dir string) {
	if e.catalog == nil {
		return
	}
	now := time.Now().UTC()
	err := e.catalog.Upsert(ctx, catalog.Record{
		Hash:         b.Document.Hash,
		Name:         b.Document.Name,
		Model:        b.Model,
		Dimensions:   b.Dimensions,
		IndexKind:    b.Index.Kind(),
		Chunks:       b.Len(),
		Degraded:     b.DegradedCount(),
		CacheDir:     dir,
		CreatedAt:    b.CreatedAt,
		LastAccessed: now,
	})
	if err != nil {
		e.logger.Warn("catalog_upsert_failed", errors.LogAttrs(err)...)
	}
}

func (e *Engine) touch(ctx context.Context, hash string) {
	if e.catalog == nil {
		return
	}
	if err := e.catalog.Touch(ctx, hash); err != nil {
		e.logger.Debug("catalog_touch_failed", errors.LogAttrs(err)...)
	}
}

func (e *Engine) setProcessing(hash string, busy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if busy {
		e.processing[hash] = true
	} else {
		delete(e.processing, hash)
	}
}

func (e *Engine) emit(stage ui.Stage, current, total int, file, msg string) {
	if e.opts.Progress == nil {
		return
	}
	e.opts.Progress(ui.ProgressEvent{
		Stage:       stage,
		Current:     current,
		Total:       total,
		CurrentFile: file,
		Message:     msg,
	})
}

// archive copies raw to dir/<base name> unless a file of that name exists.
func archive(dir, path string, raw []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeCacheWrite, "create archive directory", err)
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if abs, err := filepath.Abs(path); err == nil {
		if absDst, err := filepath.Abs(dst); err == nil && abs == absDst {
			return nil
		}
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(errors.ErrCodeCacheWrite, "create archive copy", err)
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return errors.New(errors.ErrCodeCacheWrite, "write archive copy", err)
	}
	return f.Close()
}
