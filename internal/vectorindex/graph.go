package vectorindex

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// Graph is an HNSW index. The graph proposes candidates and every candidate
// is re-scored exactly, so reported distances match Flat.
type Graph struct {
	mu       sync.RWMutex
	dims     int
	m        int
	efSearch int
	graph    *hnsw.Graph[uint64]
	vectors  [][]float32
}

var _ Index = (*Graph)(nil)

// NewGraph creates an empty HNSW index.
func NewGraph(dims, m, efSearch int) *Graph {
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	return &Graph{dims: dims, m: m, efSearch: efSearch, graph: newHNSW(m, efSearch)}
}

func newHNSW(m, efSearch int) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = m
	g.EfSearch = efSearch
	g.Ml = 0.25
	return g
}

func (g *Graph) Kind() string    { return KindGraph }
func (g *Graph) Dimensions() int { return g.dims }
func (g *Graph) IsTrained() bool { return true }

// Train is a no-op.
func (g *Graph) Train([][]float32) error { return nil }

// Count returns the number of stored vectors.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vectors)
}

// Add inserts vectors keyed by row id.
func (g *Graph) Add(vectors [][]float32) error {
	if err := checkDims(g.dims, vectors); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, v := range vectors {
		vec := append([]float32(nil), v...)
		key := uint64(len(g.vectors))
		g.graph.Add(hnsw.MakeNode(key, vec))
		g.vectors = append(g.vectors, vec)
	}
	return nil
}

// Search asks the graph for max(k, efSearch) candidates and re-ranks them.
func (g *Graph) Search(query []float32, k int) ([]Result, error) {
	if len(query) != g.dims {
		return nil, errors.DimensionMismatch(g.dims, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph.Len() == 0 {
		return []Result{}, nil
	}

	nodes := g.graph.Search(query, max(k, g.efSearch))
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id := int(node.Key)
		if id < 0 || id >= len(g.vectors) {
			continue
		}
		results = append(results, Result{ID: id, Distance: squaredL2(query, g.vectors[id])})
	}
	return topK(results, k), nil
}
