package cmd

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/Aman-CERP/docrag/internal/cache"
	"github.com/Aman-CERP/docrag/internal/catalog"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/retrieval"
	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

// app holds everything a command needs to ingest and query documents.
type app struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	embedder embed.Embedder
	adapter  *embed.Adapter
	store    *cache.Store
	catalog  *catalog.Catalog
	engine   *retrieval.Engine

	mu       sync.Mutex
	progress func(ui.ProgressEvent)

	closers []func()
}

// projectRoot resolves the directory configuration is loaded from.
func projectRoot() string {
	if configDir != "" {
		return configDir
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root
}

// loadConfig loads the effective configuration and installs the logger.
// The returned cleanup closes the log file.
func loadConfig() (*config.Config, string, *slog.Logger, func(), error) {
	root := projectRoot()
	cfg, err := config.Load(root)
	if err != nil {
		return nil, root, nil, nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: debugMode,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Unwritable log file: keep only the stderr mirror.
		logCfg.FilePath = ""
		logger, cleanup, _ = logging.Setup(logCfg)
	}
	slog.SetDefault(logger)
	return cfg, root, logger, cleanup, nil
}

// newApp wires the embedding adapter, cache, catalog and engine from the
// effective configuration. Overrides apply flag values on top of it.
func newApp(ctx context.Context, overrides ...func(*config.Config)) (*app, error) {
	a, err := newStorageApp(overrides...)
	if err != nil {
		return nil, err
	}
	if err := a.wireEngine(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newStorageApp opens only the cache and catalog. Commands that never embed
// use it so they work without an embedding service.
func newStorageApp(overrides ...func(*config.Config)) (*app, error) {
	cfg, root, logger, cleanupLogs, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	a := &app{root: root, cfg: cfg, logger: logger}
	a.closers = append(a.closers, cleanupLogs)

	store, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	cat, err := catalog.Open(cfg.Cache.CatalogPath)
	if err != nil {
		// The catalog only speeds up lookups; the cache is the source of truth.
		a.logger.Warn("catalog_unavailable", slog.String("path", cfg.Cache.CatalogPath), slog.String("error", err.Error()))
	} else {
		a.catalog = cat
		a.closers = append(a.closers, func() { _ = cat.Close() })
	}
	return a, nil
}

func (a *app) wireEngine(ctx context.Context) error {
	cfg := a.cfg

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return err
	}
	a.embedder = embedder
	a.closers = append(a.closers, func() { _ = embedder.Close() })

	adapterOpts := embed.AdapterOptionsFromConfig(cfg.Embeddings)
	adapterOpts.Logger = a.logger
	adapterOpts.Progress = func(done, total int) {
		a.emit(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: done, Total: total})
	}
	adapter, err := embed.NewAdapter(embedder, adapterOpts)
	if err != nil {
		return err
	}
	a.adapter = adapter

	splitter, err := chunk.New(chunk.Options{
		Size:      cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.ChunkOverlap,
		Separator: cfg.Chunking.Separator,
	})
	if err != nil {
		return err
	}

	engine, err := retrieval.New(retrieval.Deps{
		Splitter: splitter,
		Adapter:  adapter,
		Store:    a.store,
		Catalog:  a.catalog,
	}, retrieval.Options{
		Index:           vectorindex.OptionsFromConfig(cfg.Index),
		ExcludeDegraded: cfg.Retrieval.ExcludeDegraded,
		MemoryBundles:   cfg.Cache.MemoryBundles,
		ArchiveDir:      cfg.Cache.ArchiveDir,
		Progress:        a.emit,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}
	a.engine = engine

	a.logger.Info("docrag_ready",
		slog.String("root", a.root),
		slog.String("provider", embed.ProviderOf(embedder).String()),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.String("cache_dir", cfg.Cache.Dir))
	return nil
}

// onProgress routes engine and adapter progress to fn. Nil silences it.
func (a *app) onProgress(fn func(ui.ProgressEvent)) {
	a.mu.Lock()
	a.progress = fn
	a.mu.Unlock()
}

func (a *app) emit(ev ui.ProgressEvent) {
	a.mu.Lock()
	fn := a.progress
	a.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// embedderInfo describes the active provider for completion summaries.
func (a *app) embedderInfo() ui.EmbedderInfo {
	return ui.EmbedderInfo{
		Provider:   embed.ProviderOf(a.embedder).String(),
		Model:      a.embedder.ModelName(),
		Dimensions: a.embedder.Dimensions(),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
