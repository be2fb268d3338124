package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/cache"
	"github.com/Aman-CERP/docrag/internal/catalog"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/ingest"
	"github.com/Aman-CERP/docrag/internal/retrieval"
	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

// Integration tests run the real pipeline end to end: splitter, static
// embedder behind the adapter, cache, catalog, retrieval engine and watcher.

const dims = 64

// clauses builds a document of n distinct one-line clauses.
func clauses(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "Clause %d: the tenant agrees to obligation number %d of the lease.\n", i, i*7+3)
	}
	return sb.String()
}

type pipeline struct {
	engine  *retrieval.Engine
	store   *cache.Store
	catalog *catalog.Catalog
}

func newPipeline(t *testing.T, cacheDir, kind string) *pipeline {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Index.Kind = kind

	adapterOpts := embed.AdapterOptionsFromConfig(cfg.Embeddings)
	adapterOpts.Timeout = 5 * time.Second
	adapter, err := embed.NewAdapter(embed.NewStaticEmbedder(dims), adapterOpts)
	require.NoError(t, err)

	splitter, err := chunk.New(chunk.Options{Size: 90, Overlap: 0, Separator: "\n"})
	require.NoError(t, err)

	store, err := cache.Open(cacheDir)
	require.NoError(t, err)

	cat, err := catalog.Open(filepath.Join(cacheDir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	engine, err := retrieval.New(retrieval.Deps{
		Splitter: splitter,
		Adapter:  adapter,
		Store:    store,
		Catalog:  cat,
	}, retrieval.Options{
		Index:         vectorindex.OptionsFromConfig(cfg.Index),
		MemoryBundles: 4,
	})
	require.NoError(t, err)
	return &pipeline{engine: engine, store: store, catalog: cat}
}

func TestPipeline_EveryIndexKindAnswersQueries(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	raw := []byte(clauses(60))

	for _, kind := range []string{vectorindex.KindFlat, vectorindex.KindIVF, vectorindex.KindGraph} {
		t.Run(kind, func(t *testing.T) {
			// Given: a sixty-chunk document indexed with one index kind
			p := newPipeline(t, t.TempDir(), kind)
			ctx := context.Background()
			b, err := p.engine.Ingest(ctx, "lease.txt", raw)
			require.NoError(t, err)
			require.Equal(t, kind, b.Index.Kind())
			require.Greater(t, b.Len(), 10)

			// When: querying with the exact text of one chunk
			target := b.Chunks[17]
			results, err := p.engine.Query(ctx, target.Text, 5, b)

			// Then: five results come back, best first
			require.NoError(t, err)
			require.Len(t, results, 5)
			for i := 1; i < len(results); i++ {
				assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
				assert.InDelta(t, 1-results[i].Distance, results[i].Score, 1e-5)
			}
			if kind != vectorindex.KindGraph {
				assert.Equal(t, target.Metadata.ChunkID, results[0].Metadata.ChunkID)
				assert.InDelta(t, 1.0, results[0].Score, 1e-5)
			}
		})
	}
}

func TestPipeline_CacheSurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a document ingested by one engine
	dir := t.TempDir()
	raw := []byte(clauses(30))
	first := newPipeline(t, dir, vectorindex.KindAuto)
	ctx := context.Background()
	original, err := first.engine.Ingest(ctx, "lease.txt", raw)
	require.NoError(t, err)
	want, err := first.engine.Query(ctx, "obligation number 38", 3, original)
	require.NoError(t, err)

	// When: a fresh engine over the same cache opens it by hash
	second := newPipeline(t, dir, vectorindex.KindAuto)
	hash := document.Hash(raw)
	assert.Equal(t, retrieval.StateCached, second.engine.State(hash))
	reloaded, err := second.engine.Open(ctx, hash, "lease.txt")
	require.NoError(t, err)

	// Then: it answers identically and the catalog knows the document
	got, err := second.engine.Query(ctx, "obligation number 38", 3, reloaded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, original.CreatedAt.Unix(), reloaded.CreatedAt.Unix())

	rec, err := second.catalog.Resolve(ctx, hash[:10])
	require.NoError(t, err)
	assert.Equal(t, "lease.txt", rec.Name)
	assert.Equal(t, reloaded.Len(), rec.Chunks)
}

func TestPipeline_WatcherFeedsRunner(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a polling watcher on a drop directory and a runner
	drop := t.TempDir()
	p := newPipeline(t, t.TempDir(), vectorindex.KindAuto)

	opts := watcher.DefaultOptions(drop)
	opts.ForcePolling = true
	opts.PollInterval = 50 * time.Millisecond
	opts.Debounce = 50 * time.Millisecond
	w, err := watcher.New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	renderer := ui.NewPlainRenderer(ui.NewConfig(&strings.Builder{}))
	runner, err := ingest.NewRunner(ingest.Dependencies{
		Renderer: renderer,
		Engine:   p.engine,
		Accept:   opts.Accepts,
	})
	require.NoError(t, err)

	// When: a document and an ignored temp file are dropped
	raw := clauses(8)
	require.NoError(t, writeFile(filepath.Join(drop, "lease.txt"), raw))
	require.NoError(t, writeFile(filepath.Join(drop, "lease.txt.part"), raw+"partial"))

	// Then: one batch holds only the document, and ingesting it caches it
	select {
	case batch := <-w.Batches():
		require.Equal(t, []string{filepath.Join(drop, "lease.txt")}, batch)
		result, err := runner.Run(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Documents)
		assert.Zero(t, result.Failed)
	case <-ctx.Done():
		t.Fatal("timed out waiting for a batch")
	}
	assert.True(t, p.store.Exists(document.Hash([]byte(raw))))
}
