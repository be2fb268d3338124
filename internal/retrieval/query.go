package retrieval

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

// State is a document's position in the ingest lifecycle.
type State int

const (
	// StateUnprocessed means nothing is known about the hash.
	StateUnprocessed State = iota
	// StateCached means a bundle is on disk but not loaded.
	StateCached
	// StateProcessing means an ingest is in flight.
	StateProcessing
	// StateIndexed means the bundle is loaded and queryable.
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateUnprocessed:
		return "unprocessed"
	case StateCached:
		return "cached"
	case StateProcessing:
		return "processing"
	case StateIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// Query returns up to k chunks of b closest to text, best first.
//
// Score is 1 - distance over squared Euclidean distance, so it is not
// bounded to [0, 1]. An empty bundle yields an empty result, never an error.
// A query that cannot be embedded is searched as a zero vector and every
// result carries QueryDegraded. Systemic embedding failures are returned.
func (e *Engine) Query(ctx context.Context, text string, k int, b *document.Bundle) ([]document.ScoredChunk, error) {
	n := b.Len()
	if n == 0 || k <= 0 {
		return []document.ScoredChunk{}, nil
	}
	k = min(k, n)

	idx, ok := b.Index.(vectorindex.Index)
	if !ok {
		return nil, errors.InternalError(fmt.Sprintf("bundle index %T is not searchable", b.Index), nil)
	}
	if idx.Dimensions() != e.adapter.Dimensions() {
		return nil, errors.DimensionMismatch(idx.Dimensions(), e.adapter.Dimensions()).
			WithSuggestion("The document was indexed with a different embedding model. Re-ingest it.")
	}

	q, err := e.adapter.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}

	exclude := e.opts.ExcludeDegraded && b.DegradedCount() > 0
	fetch := k
	if exclude {
		// Enough headroom that k valid chunks survive when degraded ones rank first.
		fetch = min(n, k+b.DegradedCount())
	}

	hits, err := idx.Search(q.Vector, fetch)
	if err != nil {
		return nil, err
	}

	out := make([]document.ScoredChunk, 0, k)
	for _, h := range hits {
		if h.ID < 0 || h.ID >= n {
			continue
		}
		c := b.Chunks[h.ID]
		if exclude && c.Metadata.Degraded {
			continue
		}
		out = append(out, document.ScoredChunk{
			Text:          c.Text,
			Score:         1 - h.Distance,
			Distance:      h.Distance,
			Metadata:      c.Metadata,
			QueryDegraded: !q.Status.OK,
		})
		if len(out) == k {
			break
		}
	}

	if !q.Status.OK {
		e.logger.Warn("query_degraded", "reason", q.Status.Reason)
	}
	e.touch(ctx, b.Document.Hash)
	return out, nil
}
