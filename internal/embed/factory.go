package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderAuto picks the first configured provider: Azure, OpenAI, Ollama, then static.
	ProviderAuto ProviderType = "auto"

	// ProviderAzure uses an Azure OpenAI embedding deployment.
	ProviderAzure ProviderType = "azure"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline fallback).
	ProviderStatic ProviderType = "static"
)

// ParseProvider converts a config string to ProviderType. Unknown and empty
// values map to ProviderAuto; config validation rejects unknown names earlier.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "azure":
		return ProviderAzure
	case "openai":
		return ProviderOpenAI
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// NewEmbedder creates the embedder described by cfg. An explicitly selected
// provider that cannot be built is an error; auto-detection falls through to
// the next candidate and ends at the static embedder. The result is wrapped in
// a query cache when QueryCacheSize > 0.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)

	switch provider := ParseProvider(cfg.Provider); provider {
	case ProviderAzure:
		embedder, err = newAzure(cfg)
	case ProviderOpenAI:
		embedder, err = newOpenAI(cfg)
	case ProviderOllama:
		embedder, err = newOllama(ctx, cfg)
	case ProviderStatic:
		embedder = NewStaticEmbedder(cfg.Dimensions)
	default:
		embedder = detect(ctx, cfg)
	}
	if err != nil {
		return nil, errors.ConfigError(
			fmt.Sprintf("embedding provider %q could not be initialized", cfg.Provider), err).
			WithSuggestion("Check the embeddings section of the config or the provider environment variables.")
	}

	if cfg.QueryCacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, cfg.QueryCacheSize)
	}
	return embedder, nil
}

func detect(ctx context.Context, cfg config.EmbeddingsConfig) Embedder {
	if cfg.AzureEndpoint != "" && cfg.AzureAPIKey != "" {
		e, err := newAzure(cfg)
		if err == nil {
			return e
		}
		slog.Warn("embedder_fallback", slog.String("provider", "azure"), slog.String("error", err.Error()))
	}
	if cfg.OpenAIAPIKey != "" {
		e, err := newOpenAI(cfg)
		if err == nil {
			return e
		}
		slog.Warn("embedder_fallback", slog.String("provider", "openai"), slog.String("error", err.Error()))
	}
	e, err := newOllama(ctx, cfg)
	if err == nil {
		return e
	}
	slog.Debug("embedder_fallback", slog.String("provider", "ollama"), slog.String("error", err.Error()))

	slog.Warn("embedder_fallback",
		slog.String("provider", "static"),
		slog.String("reason", "no embedding service configured or reachable; results are lexical only"))
	return NewStaticEmbedder(cfg.Dimensions)
}

func newAzure(cfg config.EmbeddingsConfig) (Embedder, error) {
	deployment := cfg.AzureDeployment
	if cfg.Model != "" {
		deployment = cfg.Model
	}
	return NewOpenAIEmbedder(OpenAIConfig{
		Azure:      true,
		APIKey:     cfg.AzureAPIKey,
		BaseURL:    cfg.AzureEndpoint,
		Model:      deployment,
		APIVersion: cfg.AzureAPIVersion,
		Dimensions: cfg.Dimensions,
		BatchSize:  cfg.BatchSize,
	})
}

func newOpenAI(cfg config.EmbeddingsConfig) (Embedder, error) {
	return NewOpenAIEmbedder(OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		BatchSize:  cfg.BatchSize,
	})
}

// newOllama always auto-detects dimensions: local models vary in width and
// the configured default targets hosted providers.
func newOllama(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	oc := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		oc.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	return NewOllamaEmbedder(ctx, oc)
}

// ProviderOf reports which provider backs an embedder.
func ProviderOf(e Embedder) ProviderType {
	if cached, ok := e.(*CachedEmbedder); ok {
		e = cached.Inner()
	}
	switch v := e.(type) {
	case *OllamaEmbedder:
		return ProviderOllama
	case *OpenAIEmbedder:
		if v.azure {
			return ProviderAzure
		}
		return ProviderOpenAI
	case *StaticEmbedder:
		return ProviderStatic
	default:
		return ProviderAuto
	}
}
