package ui

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_Format(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: an embedding update for the second of three documents
	r.UpdateProgress(ProgressEvent{
		Stage: StageEmbedding, Current: 16, Total: 64,
		CurrentFile: "raw/lease.pdf", Document: 2, Documents: 3,
	})

	// Then: one line with icon, position, file and counts
	assert.Equal(t, "[EMBED] 2/3 raw/lease.pdf 16/64\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_SingleStepStages(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: a stage with a total of one and a message
	r.UpdateProgress(ProgressEvent{Stage: StageSaving, Current: 0, Total: 1, CurrentFile: "notes.txt", Message: "writing cache"})

	// Then: no meaningless 0/1 counter
	assert.Equal(t, "[SAVE] notes.txt - writing cache\n", buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	for _, stage := range []Stage{StageScanning, StageExtracting, StageChunking, StageEmbedding, StageIndexing, StageSaving, StageComplete} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 5, Total: 10, Message: "working"})
	}
	r.AddError(ErrorEvent{File: "a.pdf", Err: errors.New("boom")})
	r.Complete(CompletionStats{Documents: 1, Chunks: 3})

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name  string
		event ErrorEvent
		want  string
	}{
		{"error with file", ErrorEvent{File: "scan.pdf", Err: errors.New("no text")}, "ERROR: scan.pdf: no text\n"},
		{"warning with file", ErrorEvent{File: "lease.pdf", Err: errors.New("2 chunks degraded"), IsWarn: true}, "WARN: lease.pdf: 2 chunks degraded\n"},
		{"error without file", ErrorEvent{Err: errors.New("embedding unavailable")}, "ERROR: embedding unavailable\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			NewPlainRenderer(NewConfig(buf)).AddError(tt.event)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a run with cache hits, failures and degraded chunks
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing
	r.Complete(CompletionStats{
		Documents: 4, Cached: 1, Failed: 1, Chunks: 120, Degraded: 2,
		Duration: 2500 * time.Millisecond,
		Embedder: EmbedderInfo{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768},
	})

	// Then: the summary names each figure
	out := buf.String()
	assert.Contains(t, out, "Complete: 4 documents (1 cached), 120 chunks in 2.5s, 1 failed")
	assert.Contains(t, out, "Degraded: 2 chunks")
	assert.Contains(t, out, "Embedder: ollama (nomic-embed-text, 768 dims)")
}

func TestPlainRenderer_Complete_Clean(t *testing.T) {
	buf := &bytes.Buffer{}
	NewPlainRenderer(NewConfig(buf)).Complete(CompletionStats{Documents: 1, Chunks: 5, Duration: time.Second})

	out := buf.String()
	assert.NotContains(t, out, "failed")
	assert.NotContains(t, out, "Degraded")
	assert.NotContains(t, out, "Embedder")
}

func TestPlainRenderer_StartStop(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_ConcurrentUse(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: n, Total: 10})
			r.AddError(ErrorEvent{File: "x.pdf", Err: errors.New("x"), IsWarn: n%2 == 0})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, bytes.Count(buf.Bytes(), []byte("\n")))
}
