package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Aman-CERP/docrag/internal/config"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-ada-002"

// OpenAIConfig configures an OpenAI or Azure OpenAI embedder.
type OpenAIConfig struct {
	// Azure selects the Azure OpenAI API shape.
	Azure bool

	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the OpenAI endpoint. For Azure it is the resource endpoint.
	BaseURL string

	// Model is the OpenAI model, or the Azure deployment name.
	Model string

	// APIVersion is only used for Azure.
	APIVersion string

	// Dimensions is the expected vector width (default 1536).
	Dimensions int

	// BatchSize is the provider-side batch size for EmbedDocuments.
	BatchSize int

	// HTTPClient overrides the transport; tests point it at httptest servers.
	HTTPClient *http.Client
}

// OpenAIEmbedder embeds text through langchaingo's OpenAI client.
type OpenAIEmbedder struct {
	impl  embeddings.Embedder
	model string
	dims  int
	azure bool

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds the client. No request is made until the first embed call.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure embedder: endpoint is required")
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = config.DefaultAzureAPIVersion
		}
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
			openai.WithAPIVersion(cfg.APIVersion),
		)
	} else if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(cfg.HTTPClient))
	} else {
		opts = append(opts, openai.WithHTTPClient(&http.Client{
			Transport: &http.Transport{IdleConnTimeout: 30 * time.Second},
		}))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	return &OpenAIEmbedder{impl: impl, model: cfg.Model, dims: cfg.Dimensions, azure: cfg.Azure}, nil
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.impl.EmbedQuery(ctx, text)
}

// EmbedBatch generates embeddings for texts in order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Dimensions returns the configured embedding width.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model or deployment name.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Available reports whether the embedder is open. Reachability is only known
// after a call; the adapter's breaker tracks that.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	return e.checkOpen() == nil
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
