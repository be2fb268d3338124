package retrieval

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/cache"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

// fiveChunks splits into alpha, bravo, charlie, delta, echo with smallChunks.
const fiveChunks = "alpha\nbravo\ncharlie\ndelta\necho"

var errRejected = stderrors.New("input rejected")

// keywordEmbedder maps texts to fixed vectors by the keyword they contain.
type keywordEmbedder struct {
	dims    int
	vectors map[string][]float32
	// reject marks texts the provider refuses.
	reject string
	// systemic, when set, fails every call with this error.
	systemic error
	delay    time.Duration
	// model overrides the reported model name.
	model string

	embedCalls atomic.Int64
	batchCalls atomic.Int64
}

func newKeywordEmbedder(dims int) *keywordEmbedder {
	return &keywordEmbedder{dims: dims, vectors: map[string][]float32{}}
}

func (k *keywordEmbedder) vectorFor(text string) []float32 {
	for kw, v := range k.vectors {
		if strings.Contains(text, kw) {
			return append([]float32(nil), v...)
		}
	}
	v := make([]float32, k.dims)
	v[len(text)%k.dims] = 1
	return v
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.embedCalls.Add(1)
	if k.systemic != nil {
		return nil, k.systemic
	}
	if k.reject != "" && strings.Contains(text, k.reject) {
		return nil, errRejected
	}
	return k.vectorFor(text), nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	k.batchCalls.Add(1)
	if k.delay > 0 {
		select {
		case <-time.After(k.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if k.systemic != nil {
		return nil, k.systemic
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if k.reject != "" && strings.Contains(t, k.reject) {
			return nil, errRejected
		}
		out[i] = k.vectorFor(t)
	}
	return out, nil
}

func (k *keywordEmbedder) Dimensions() int                    { return k.dims }
func (k *keywordEmbedder) Available(ctx context.Context) bool { return true }
func (k *keywordEmbedder) Close() error                       { return nil }

func (k *keywordEmbedder) ModelName() string {
	if k.model != "" {
		return k.model
	}
	return "keyword-test"
}

func testAdapterOptions() embed.AdapterOptions {
	return embed.AdapterOptions{
		BatchSize:   8,
		Concurrency: 2,
		Timeout:     time.Second,
		Retry: errors.RetryConfig{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
			ShouldRetry:  errors.IsRetryable,
		},
		BreakerFailures: 100,
		BreakerReset:    time.Minute,
	}
}

// smallChunks puts each line of fiveChunks in its own chunk.
func smallChunks(t *testing.T) *chunk.Splitter {
	t.Helper()
	s, err := chunk.New(chunk.Options{Size: 10, Overlap: 0, Separator: "\n"})
	require.NoError(t, err)
	return s
}

type fixture struct {
	engine   *Engine
	embedder *keywordEmbedder
	store    *cache.Store
	cacheDir string
}

func newFixture(t *testing.T, embedder *keywordEmbedder, opts Options) *fixture {
	t.Helper()
	return newFixtureAt(t, filepath.Join(t.TempDir(), "embeddings"), embedder, opts)
}

func newFixtureAt(t *testing.T, cacheDir string, embedder *keywordEmbedder, opts Options) *fixture {
	t.Helper()
	adapter, err := embed.NewAdapter(embedder, testAdapterOptions())
	require.NoError(t, err)
	store, err := cache.Open(cacheDir)
	require.NoError(t, err)
	if opts.Index.Kind == "" {
		opts.Index = vectorindex.DefaultOptions()
	}

	engine, err := New(Deps{Splitter: smallChunks(t), Adapter: adapter, Store: store}, opts)
	require.NoError(t, err)
	return &fixture{engine: engine, embedder: embedder, store: store, cacheDir: cacheDir}
}
