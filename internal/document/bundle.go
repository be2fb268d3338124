package document

import (
	"fmt"
	"time"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// SearchIndex is the part of a vector index a bundle needs.
type SearchIndex interface {
	Kind() string
	Dimensions() int
	Count() int
}

// Bundle is the unit cached per document: chunks, their embeddings in the
// same order, and an index built from exactly those embeddings. Row i of the
// index is Chunks[i].
type Bundle struct {
	Document   Document
	Chunks     []Chunk
	Embeddings [][]float32
	Index      SearchIndex
	Model      string
	Dimensions int
	CreatedAt  time.Time
}

// Len returns the number of chunks. A nil bundle has none.
func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Chunks)
}

// DegradedCount returns the number of chunks with a zero-vector embedding.
func (b *Bundle) DegradedCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, c := range b.Chunks {
		if c.Metadata.Degraded {
			n++
		}
	}
	return n
}

// Validate checks len(chunks) == len(embeddings) == index.Count() and that
// every embedding has the bundle's dimension.
func (b *Bundle) Validate() error {
	if b == nil {
		return errors.InternalError("nil bundle", nil)
	}
	if b.Index == nil {
		return errors.InternalError("bundle has no index", nil)
	}
	if len(b.Chunks) != len(b.Embeddings) || len(b.Chunks) != b.Index.Count() {
		return errors.InternalError(fmt.Sprintf(
			"bundle size mismatch: %d chunks, %d embeddings, %d indexed",
			len(b.Chunks), len(b.Embeddings), b.Index.Count()), nil)
	}
	if b.Index.Dimensions() != b.Dimensions {
		return errors.DimensionMismatch(b.Dimensions, b.Index.Dimensions())
	}
	for _, e := range b.Embeddings {
		if len(e) != b.Dimensions {
			return errors.DimensionMismatch(b.Dimensions, len(e))
		}
	}
	return nil
}
