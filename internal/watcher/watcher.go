package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/errors"
)

// Operation is a file system change.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one file in the watched directory.
type FileEvent struct {
	// Path is the file name relative to the watched directory.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Dir is the drop directory. It is created on Start when missing.
	Dir string

	// Extensions restricts events to these file extensions (case-insensitive).
	// Empty accepts every extension.
	Extensions []string

	// IgnorePatterns are filepath.Match globs on the file name.
	IgnorePatterns []string

	// Debounce is the quiet period before a batch is emitted. Default: 500ms
	Debounce time.Duration

	// PollInterval is the scan interval of the polling fallback. Default: 2s
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options for dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:          dir,
		Extensions:   []string{".pdf", ".txt", ".md"},
		Debounce:     500 * time.Millisecond,
		PollInterval: 2 * time.Second,
	}
}

// OptionsFromConfig maps the watch section of the configuration.
func OptionsFromConfig(cfg config.WatchConfig) Options {
	opts := DefaultOptions(cfg.Dir)
	if len(cfg.Extensions) > 0 {
		opts.Extensions = append([]string(nil), cfg.Extensions...)
	}
	if cfg.Debounce > 0 {
		opts.Debounce = cfg.Debounce
	}
	return opts
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions(o.Dir)
	if o.Debounce <= 0 {
		o.Debounce = defaults.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher reports documents dropped into a directory. Only the directory
// itself is watched, not its subdirectories.
type Watcher struct {
	opts      Options
	dir       string
	logger    *slog.Logger
	debouncer *Debouncer
	fsWatcher *fsnotify.Watcher
	batches   chan []string
	errors    chan error
	stopCh    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	mode    string
}

// New creates a watcher. Nothing is watched until Start.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.ValidationError("watch directory is required", nil)
	}
	for _, p := range opts.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid ignore pattern %q", p), err)
		}
	}
	opts = opts.WithDefaults()

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, errors.IOError("resolve watch directory", err)
	}

	return &Watcher{
		opts:      opts,
		dir:       dir,
		logger:    opts.Logger,
		debouncer: NewDebouncer(opts.Debounce, opts.Logger),
		batches:   make(chan []string, 16),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start creates the directory if needed and begins watching it in the
// background. The watcher runs until Stop is called or ctx is cancelled,
// after which Batches and Errors are closed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return errors.ValidationError("watcher is stopped", nil)
	}
	if w.started {
		return errors.ValidationError("watcher already started", nil)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.IOError(fmt.Sprintf("create watch directory %s", w.dir), err)
	}

	w.mode = "polling"
	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fsw.Add(w.dir)
			if err != nil {
				_ = fsw.Close()
			}
		}
		if err == nil {
			w.fsWatcher = fsw
			w.mode = "fsnotify"
		} else {
			w.logger.Warn("watch_fsnotify_unavailable",
				slog.String("dir", w.dir),
				slog.String("error", err.Error()))
		}
	}

	var p *poller
	if w.fsWatcher == nil {
		p = newPoller(w.dir, w.opts.Accepts)
		if err := p.prime(); err != nil {
			return errors.IOError(fmt.Sprintf("scan watch directory %s", w.dir), err)
		}
	}

	w.started = true
	w.wg.Add(2)
	go w.run(ctx, p)
	go w.forward(ctx)
	go func() {
		w.wg.Wait()
		close(w.batches)
		close(w.errors)
		close(w.done)
	}()

	w.logger.Info("watch_started",
		slog.String("dir", w.dir),
		slog.String("mode", w.mode))
	return nil
}

// run feeds the debouncer until the watcher stops. It owns the debouncer and
// the error channel.
func (w *Watcher) run(ctx context.Context, p *poller) {
	defer w.wg.Done()
	defer w.debouncer.Stop()

	if p != nil {
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				events, err := p.poll()
				if err != nil {
					w.emitError(err)
					continue
				}
				for _, e := range events {
					w.debouncer.Add(e)
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// handle converts an fsnotify event and queues it when it names an
// accepted file directly inside the watched directory.
func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir {
		return
	}
	name := filepath.Base(event.Name)
	if !w.opts.Accepts(name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename reports the old name; the new name arrives as a create.
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
}

// forward turns debounced events into batches of paths to ingest.
func (w *Watcher) forward(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			paths := w.ready(events)
			if len(paths) == 0 {
				continue
			}
			w.logger.Debug("watch_batch",
				slog.Int("files", len(paths)))
			select {
			case w.batches <- paths:
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}
	}
}

// ready returns the absolute paths of created or modified events whose file
// still exists as a regular file.
func (w *Watcher) ready(events []FileEvent) []string {
	paths := make([]string, 0, len(events))
	for _, e := range events {
		if e.Operation == OpDelete {
			continue
		}
		full := filepath.Join(w.dir, e.Path)
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, full)
	}
	sort.Strings(paths)
	return paths
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("watch_error_dropped", slog.String("error", err.Error()))
	}
}

// Stop stops watching and waits for the background goroutines to exit.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	started := w.started
	fsw := w.fsWatcher
	w.mu.Unlock()

	if !started {
		w.debouncer.Stop()
		close(w.batches)
		close(w.errors)
		close(w.done)
		return nil
	}

	<-w.done
	if fsw != nil {
		return fsw.Close()
	}
	return nil
}

// Batches returns the channel of absolute file paths ready to ingest, one
// slice per settled burst of changes.
func (w *Watcher) Batches() <-chan []string {
	return w.batches
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Mode returns "fsnotify" or "polling" once started.
func (w *Watcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}
