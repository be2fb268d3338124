package vectorindex

import (
	"sync"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// Flat is an exhaustive index. It needs no training.
type Flat struct {
	mu      sync.RWMutex
	dims    int
	vectors [][]float32
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index.
func NewFlat(dims int) *Flat {
	return &Flat{dims: dims}
}

func (f *Flat) Kind() string    { return KindFlat }
func (f *Flat) Dimensions() int { return f.dims }
func (f *Flat) IsTrained() bool { return true }

// Train is a no-op.
func (f *Flat) Train([][]float32) error { return nil }

// Count returns the number of stored vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Add appends copies of vectors.
func (f *Flat) Add(vectors [][]float32) error {
	if err := checkDims(f.dims, vectors); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, cloneVectors(vectors)...)
	return nil
}

// Search scores every vector.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dims {
		return nil, errors.DimensionMismatch(f.dims, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]Result, len(f.vectors))
	for i, v := range f.vectors {
		results[i] = Result{ID: i, Distance: squaredL2(query, v)}
	}
	return topK(results, k), nil
}
