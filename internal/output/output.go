// Package output formats CLI messages and query results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/docrag/internal/document"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a Writer on out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message with an icon, or indented when icon is empty.
// Write errors are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) { w.Status("✅", msg) }

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning message.
func (w *Writer) Warning(msg string) { w.Status("⚠️ ", msg) }

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints an error message.
func (w *Writer) Error(msg string) { w.Status("❌", msg) }

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// QueryResult is the JSON shape of a query.
type QueryResult struct {
	Document      string                 `json:"document"`
	Hash          string                 `json:"hash"`
	Query         string                 `json:"query"`
	QueryDegraded bool                   `json:"query_degraded"`
	Results       []document.ScoredChunk `json:"results"`
	// ScoreNote documents how score relates to distance.
	ScoreNote string `json:"score_note"`
}

// ScoreNote explains the score convention wherever scores are shown.
const ScoreNote = "score = 1 - squared euclidean distance; higher is closer, not bounded to [0, 1]"

// Results prints query results as numbered blocks, best first.
func (w *Writer) Results(results []document.ScoredChunk, maxChars int) {
	if len(results) == 0 {
		w.Warning("No chunks indexed for this document.")
		return
	}
	if results[0].QueryDegraded {
		w.Warning("The query could not be embedded; results are in index order, not by relevance.")
		w.Newline()
	}

	for i, r := range results {
		meta := fmt.Sprintf("chunk %d, %d chars", r.Metadata.ChunkID, r.Metadata.ChunkSize)
		if r.Metadata.Degraded {
			meta += ", degraded"
		}
		_, _ = fmt.Fprintf(w.out, "%d. score %.4f (distance %.4f) [%s]\n", i+1, r.Score, r.Distance, meta)
		w.Code(Excerpt(r.Text, maxChars))
	}
	_, _ = fmt.Fprintf(w.out, "(%s)\n", ScoreNote)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Code prints content indented by two spaces, framed by blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Excerpt trims text to at most maxChars runes, marking the cut with "…".
// maxChars <= 0 returns the trimmed text whole.
func Excerpt(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return strings.TrimRight(string(r[:maxChars]), " \n\t") + "…"
}
