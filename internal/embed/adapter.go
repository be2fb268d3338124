package embed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/errors"
)

// ReasonEmptyInput marks texts that were blank after trimming.
const ReasonEmptyInput = "empty input"

// Status reports whether a vector is a real embedding.
type Status struct {
	OK     bool
	Reason string
}

// Result is one embedding outcome. Failed items carry a zero vector of the
// adapter's dimensions so callers can keep positional alignment.
type Result struct {
	Vector []float32
	Status Status
}

// AdapterOptions configures batching, pacing and failure policy.
type AdapterOptions struct {
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64 // 0 = unlimited
	Timeout           time.Duration
	Retry             errors.RetryConfig
	BreakerFailures   int
	BreakerReset      time.Duration

	// Progress is called with (embedded, total) texts after each batch.
	Progress func(done, total int)

	Logger *slog.Logger
}

// AdapterOptionsFromConfig maps the embeddings config section onto adapter options.
func AdapterOptionsFromConfig(cfg config.EmbeddingsConfig) AdapterOptions {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	return AdapterOptions{
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
		Retry:             retry,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerReset:      cfg.BreakerReset,
	}
}

// Adapter turns an Embedder into the pipeline's embedding capability.
//
// Batches run concurrently up to Concurrency, each call paced by a token
// bucket, bounded by Timeout, retried on retryable errors and guarded by a
// circuit breaker. When a batch fails for any reason other than a timeout,
// cancellation or an open circuit, its items are retried one by one so a
// single bad text only degrades itself. A per-item call that fails
// systemically aborts the whole call, as does a call in which every one of
// two or more texts failed individually. Where batch boundaries fall never
// changes the outcome.
type Adapter struct {
	embedder Embedder
	opts     AdapterOptions
	limiter  *rate.Limiter
	breaker  *errors.CircuitBreaker
	logger   *slog.Logger
}

// NewAdapter validates opts and wraps embedder.
func NewAdapter(embedder Embedder, opts AdapterOptions) (*Adapter, error) {
	if embedder == nil {
		return nil, errors.InternalError("embedder is required", nil)
	}
	if embedder.Dimensions() <= 0 {
		return nil, errors.ConfigError(
			fmt.Sprintf("embedder %s reports %d dimensions", embedder.ModelName(), embedder.Dimensions()), nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.RequestsPerSecond < 0 {
		return nil, errors.ConfigError("requests_per_second must not be negative", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	breaker := errors.NewCircuitBreaker("embeddings",
		errors.WithMaxFailures(opts.BreakerFailures),
		errors.WithResetTimeout(opts.BreakerReset),
		errors.WithTripPredicate(func(err error) bool {
			// Caller cancellation says nothing about the service.
			return errors.IsEmbeddingUnavailable(err) && !stderrors.Is(err, context.Canceled)
		}),
	)

	return &Adapter{
		embedder: embedder,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, opts.Concurrency),
		breaker:  breaker,
		logger:   opts.Logger,
	}, nil
}

// Dimensions returns the vector width of every Result.
func (a *Adapter) Dimensions() int { return a.embedder.Dimensions() }

// ModelName returns the wrapped model identifier.
func (a *Adapter) ModelName() string { return a.embedder.ModelName() }

// Breaker exposes the circuit breaker state for status reporting.
func (a *Adapter) Breaker() *errors.CircuitBreaker { return a.breaker }

// EmbedBatch embeds texts and returns one Result per input, in input order.
// Texts are trimmed before they are sent.
// The error is non-nil only for systemic failures, in which case no results
// are returned.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	total := len(texts)

	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = a.failed(ReasonEmptyInput)
			continue
		}
		pending = append(pending, i)
	}

	var (
		progressMu sync.Mutex
		done       = total - len(pending)
	)
	report := func(n int) {
		if a.opts.Progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		done += n
		a.opts.Progress(done, total)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for start := 0; start < len(pending); start += a.opts.BatchSize {
		end := min(start+a.opts.BatchSize, len(pending))
		indices := pending[start:end]
		batchNum := start / a.opts.BatchSize

		g.Go(func() error {
			if err := a.embedGroup(gctx, batchNum, texts, indices, results); err != nil {
				return err
			}
			report(len(indices))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(pending) > 1 {
		failed := 0
		var reason string
		for _, idx := range pending {
			if !results[idx].Status.OK {
				failed++
				reason = results[idx].Status.Reason
			}
		}
		if failed == len(pending) {
			// Nothing embedded at all counts as an outage.
			a.breaker.RecordFailure()
			return nil, errors.EmbeddingUnavailable(
				fmt.Sprintf("all %d texts failed individually", failed), nil).
				WithDetail("last_reason", reason)
		}
	}
	return results, nil
}

// embedGroup embeds texts[indices] into results[indices].
func (a *Adapter) embedGroup(ctx context.Context, batchNum int, texts []string, indices []int, results []Result) error {
	batch := make([]string, len(indices))
	for j, idx := range indices {
		batch[j] = strings.TrimSpace(texts[idx])
	}

	vecs, err := invoke(ctx, a, func(ctx context.Context) ([][]float32, error) {
		return a.embedder.EmbedBatch(ctx, batch)
	})
	if err != nil && isAbort(err) {
		return err
	}
	if err == nil && len(vecs) == len(batch) {
		for j, idx := range indices {
			results[idx] = a.accept(vecs[j], idx)
		}
		return nil
	}
	if err == nil {
		err = errors.EmbeddingItemFailure(
			fmt.Sprintf("provider returned %d vectors for %d inputs", len(vecs), len(batch)), nil)
	}

	if len(indices) == 1 {
		// The batch call was the item call.
		if isSystemic(err) {
			return err
		}
		results[indices[0]] = a.itemFailed(indices[0], err)
		return nil
	}

	a.logger.Warn("embedding_batch_failed",
		append([]any{slog.Int("batch", batchNum), slog.Int("size", len(batch))}, errors.LogAttrs(err)...)...)

	for j, idx := range indices {
		vec, itemErr := invoke(ctx, a, func(ctx context.Context) ([]float32, error) {
			return a.embedder.Embed(ctx, batch[j])
		})
		if itemErr != nil {
			if isSystemic(itemErr) {
				return itemErr
			}
			results[idx] = a.itemFailed(idx, itemErr)
			continue
		}
		results[idx] = a.accept(vec, idx)
	}
	return nil
}

// EmbedOne embeds a single text under the same policy as EmbedBatch.
func (a *Adapter) EmbedOne(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return a.failed(ReasonEmptyInput), nil
	}
	vec, err := invoke(ctx, a, func(ctx context.Context) ([]float32, error) {
		return a.embedder.Embed(ctx, text)
	})
	if err != nil {
		if isSystemic(err) {
			return Result{}, err
		}
		return a.itemFailed(0, err), nil
	}
	return a.accept(vec, 0), nil
}

// accept checks a provider vector and wraps it in a Result.
func (a *Adapter) accept(vec []float32, idx int) Result {
	if len(vec) != a.Dimensions() {
		return a.itemFailed(idx, errors.DimensionMismatch(a.Dimensions(), len(vec)))
	}
	return Result{Vector: vec, Status: Status{OK: true}}
}

func (a *Adapter) itemFailed(idx int, err error) Result {
	reason := err.Error()
	if de, ok := errors.As(err); ok {
		reason = de.Message
	}
	a.logger.Warn("embedding_item_failed",
		append([]any{slog.Int("index", idx)}, errors.LogAttrs(err)...)...)
	return a.failed(reason)
}

func (a *Adapter) failed(reason string) Result {
	return Result{
		Vector: make([]float32, a.Dimensions()),
		Status: Status{OK: false, Reason: reason},
	}
}

// invoke runs one provider call through the limiter, breaker, per-call
// timeout and retry policy. Returned errors are classified.
func invoke[T any](ctx context.Context, a *Adapter, fn func(context.Context) (T, error)) (T, error) {
	retry := a.opts.Retry
	shouldRetry := retry.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = errors.IsRetryable
	}
	retry.ShouldRetry = func(err error) bool {
		if ctx.Err() != nil || stderrors.Is(err, errors.ErrCircuitOpen) {
			return false
		}
		return shouldRetry(err)
	}

	result, err := errors.RetryWithResult(ctx, retry, func() (T, error) {
		var zero T
		if err := a.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return zero, Classify(ctx.Err())
			}
			return zero, errors.EmbeddingTimeout("rate limit wait exceeds deadline", err)
		}

		v, err := errors.Execute(a.breaker, func() (T, error) {
			callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
			defer cancel()
			v, err := fn(callCtx)
			return v, Classify(err)
		})
		return v, Classify(err)
	})
	return result, Classify(err)
}
