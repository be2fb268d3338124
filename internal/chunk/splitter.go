// Package chunk splits extracted document text into overlapping chunks.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
)

// Defaults match the original processing pipeline.
const (
	DefaultSize      = 1000
	DefaultOverlap   = 200
	DefaultSeparator = "\n"
)

// Options configures a Splitter. Size and Overlap are in characters (runes).
type Options struct {
	Size      int
	Overlap   int
	Separator string
}

// DefaultOptions returns 1000/200 split on newlines.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap, Separator: DefaultSeparator}
}

// Splitter breaks text at the preferred separator nearest the target size,
// then at spaces, and finally hard-cuts when neither occurs in a window.
// It holds no state between calls, so the same input always yields the
// same chunks.
type Splitter struct {
	opts     Options
	splitter textsplitter.RecursiveCharacter
}

// New validates opts and builds a Splitter.
func New(opts Options) (*Splitter, error) {
	if opts.Size <= 0 {
		return nil, errors.ConfigError(fmt.Sprintf("chunk size must be positive, got %d", opts.Size), nil)
	}
	if opts.Overlap < 0 {
		return nil, errors.ConfigError(fmt.Sprintf("chunk overlap must be non-negative, got %d", opts.Overlap), nil)
	}
	if opts.Overlap >= opts.Size {
		return nil, errors.ConfigError(
			fmt.Sprintf("chunk overlap %d must be smaller than chunk size %d", opts.Overlap, opts.Size), nil)
	}

	return &Splitter{
		opts: opts,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.Size),
			textsplitter.WithChunkOverlap(opts.Overlap),
			textsplitter.WithSeparators(separators(opts.Separator)),
		),
	}, nil
}

func separators(preferred string) []string {
	seps := make([]string, 0, 3)
	if preferred != "" {
		seps = append(seps, preferred)
	}
	if preferred != " " {
		seps = append(seps, " ")
	}
	return append(seps, "")
}

// Options returns the options the splitter was built with.
func (s *Splitter) Options() Options {
	return s.opts
}

// Split returns the chunk texts of text in document order.
// Empty or whitespace-only text yields no chunks; text that fits in one chunk
// is returned unchanged as the only chunk.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	if utf8.RuneCountInString(text) <= s.opts.Size {
		return []string{text}, nil
	}

	pieces, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, errors.InternalError("split text", err)
	}

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Chunks splits text and attaches metadata: source, zero-based chunk id and
// length in runes.
func (s *Splitter) Chunks(source, text string) ([]document.Chunk, error) {
	texts, err := s.Split(text)
	if err != nil {
		return nil, err
	}
	chunks := make([]document.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = document.Chunk{
			Text: t,
			Metadata: document.ChunkMetadata{
				Source:    source,
				ChunkID:   i,
				ChunkSize: utf8.RuneCountInString(t),
			},
		}
	}
	return chunks, nil
}
