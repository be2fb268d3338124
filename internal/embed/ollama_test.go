package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and /api/embed with 3-dimensional vectors.
func fakeOllama(t *testing.T, models []string, embedStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		resp := OllamaModelListResponse{}
		for _, m := range models {
			resp.Models = append(resp.Models, OllamaModelInfo{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if embedStatus != http.StatusOK {
			http.Error(w, "model overloaded", embedStatus)
			return
		}
		var req OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n := 1
		if list, ok := req.Input.([]any); ok {
			n = len(list)
		}
		resp := OllamaEmbedResponse{Model: req.Model}
		for i := 0; i < n; i++ {
			resp.Embeddings = append(resp.Embeddings, []float64{3, 4, float64(i)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_DiscoversModelAndDimensions(t *testing.T) {
	// Given: an Ollama server with a tagged model installed
	srv := fakeOllama(t, []string{"nomic-embed-text:latest"}, http.StatusOK)

	// When: the embedder is created with defaults
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})

	// Then: the tagged model is matched and dimensions detected
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 3, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_FallsBackToInstalledModel(t *testing.T) {
	srv := fakeOllama(t, []string{"all-minilm:l6-v2"}, http.StatusOK)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})

	require.NoError(t, err)
	assert.Equal(t, "all-minilm:l6-v2", e.ModelName())
}

func TestOllamaEmbedder_NoModel_Errors(t *testing.T) {
	srv := fakeOllama(t, []string{"llama3"}, http.StatusOK)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})

	assert.Error(t, err)
}

func TestOllamaEmbedder_EmbedBatch_NormalizesVectors(t *testing.T) {
	// Given: a discovered embedder
	srv := fakeOllama(t, []string{"nomic-embed-text"}, http.StatusOK)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})
	require.NoError(t, err)

	// When: two texts are embedded
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})

	// Then: each is a unit vector
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.6, vecs[0][0], 0.0001)
	assert.InDelta(t, 0.8, vecs[0][1], 0.0001)
	assert.InDelta(t, 1.0, vectorMagnitude(vecs[1]), 0.0001)
}

func TestOllamaEmbedder_ServerError_IsHTTPStatusError(t *testing.T) {
	// Given: a server that fails embedding requests
	srv := fakeOllama(t, nil, http.StatusServiceUnavailable)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Dimensions: 3, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: a text is embedded
	_, err = e.Embed(context.Background(), "x")

	// Then: the status is preserved for classification
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: "http://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestOllamaEmbedder_Close(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{SkipHealthCheck: true})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
}
