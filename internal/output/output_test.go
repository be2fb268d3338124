package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/document"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Checking embedder") }, "🔍 Checking embedder\n"},
		{"indented", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"success", func(w *Writer) { w.Successf("Ingested %d documents", 3) }, "✅ Ingested 3 documents\n"},
		{"warning", func(w *Writer) { w.Warningf("%d chunks degraded", 2) }, "⚠️  2 chunks degraded\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "scan.pdf") }, "❌ failed: scan.pdf\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Results(t *testing.T) {
	// Given: two ranked chunks, the second degraded
	buf := &bytes.Buffer{}
	w := New(buf)
	results := []document.ScoredChunk{
		{Text: "Rent is due on the first.", Score: 0.9, Distance: 0.1, Metadata: document.ChunkMetadata{ChunkID: 4, ChunkSize: 25}},
		{Text: "Pets are not allowed.", Score: -0.2, Distance: 1.2, Metadata: document.ChunkMetadata{ChunkID: 7, ChunkSize: 21, Degraded: true}},
	}

	// When: printing
	w.Results(results, 0)

	// Then: numbered, scored, with metadata and the score convention
	out := buf.String()
	assert.Contains(t, out, "1. score 0.9000 (distance 0.1000) [chunk 4, 25 chars]")
	assert.Contains(t, out, "2. score -0.2000 (distance 1.2000) [chunk 7, 21 chars, degraded]")
	assert.Contains(t, out, "  Rent is due on the first.")
	assert.Contains(t, out, ScoreNote)
	assert.Less(t, strings.Index(out, "Rent"), strings.Index(out, "Pets"))
}

func TestWriter_Results_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Results(nil, 200)
	assert.Contains(t, buf.String(), "No chunks indexed")
}

func TestWriter_Results_DegradedQuery(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Results([]document.ScoredChunk{{Text: "x", QueryDegraded: true}}, 0)
	assert.Contains(t, buf.String(), "could not be embedded")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, New(buf).JSON(QueryResult{
		Document:  "lease.pdf",
		Query:     "rent",
		Results:   []document.ScoredChunk{{Text: "Rent is due.", Score: 0.5, Distance: 0.5}},
		ScoreNote: ScoreNote,
	}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "lease.pdf", parsed["document"])
	assert.Equal(t, ScoreNote, parsed["score_note"])
	results := parsed["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, 0.5, first["score"])
	assert.Equal(t, 0.5, first["distance"])
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("  short \n", 20))
	assert.Equal(t, "whole text", Excerpt("whole text", 0))
	assert.Equal(t, "Rent is…", Excerpt("Rent is due on the first", 8))
	assert.Equal(t, "héllo…", Excerpt("héllo wörld", 6))
}

func TestWriter_Code(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("line 1\nline 2")
	assert.Equal(t, "\n  line 1\n  line 2\n\n", buf.String())
}
