// Package vectorindex provides nearest-neighbour search over embedding vectors.
//
// Three variants share the Index interface: Flat (exhaustive), IVF (inverted
// file over k-means clusters, must be trained before Add) and Graph (HNSW).
// All of them report squared Euclidean distance, ascending, with ties broken
// by the lower row id. Row ids are positional: the i-th vector added is row i.
package vectorindex

import (
	"cmp"
	"slices"

	"github.com/Aman-CERP/docrag/internal/config"
)

// Index kinds.
const (
	KindAuto  = "auto"
	KindFlat  = "flat"
	KindIVF   = "ivf"
	KindGraph = "graph"
)

// Result is one search hit.
type Result struct {
	ID       int
	Distance float32
}

// Index is a vector index over fixed-width vectors.
type Index interface {
	Kind() string
	Dimensions() int
	Count() int

	// IsTrained reports whether Add may be called.
	IsTrained() bool

	// Train prepares the index from sample vectors. It is a no-op when already trained.
	Train(vectors [][]float32) error

	// Add appends vectors; their row ids continue from Count().
	Add(vectors [][]float32) error

	// Search returns at most min(k, Count()) results ascending by distance.
	Search(query []float32, k int) ([]Result, error)
}

// Options control variant selection and tuning.
type Options struct {
	Kind          string
	FlatThreshold int
	MaxClusters   int
	MaxProbes     int
	Iterations    int
	Seed          int64
	GraphM        int
	GraphEfSearch int
}

// DefaultOptions returns the tuning used when no config is given.
func DefaultOptions() Options {
	return Options{
		Kind:          KindAuto,
		FlatThreshold: 100,
		MaxClusters:   100,
		MaxProbes:     10,
		Iterations:    25,
		Seed:          1234,
		GraphM:        16,
		GraphEfSearch: 64,
	}
}

// OptionsFromConfig maps the index config section onto Options.
func OptionsFromConfig(cfg config.IndexConfig) Options {
	return Options{
		Kind:          cfg.Kind,
		FlatThreshold: cfg.FlatThreshold,
		MaxClusters:   cfg.MaxClusters,
		MaxProbes:     cfg.MaxProbes,
		Iterations:    cfg.KMeansIterations,
		Seed:          cfg.Seed,
		GraphM:        cfg.GraphM,
		GraphEfSearch: cfg.GraphEfSearch,
	}
}

// sortResults orders by distance, then row id.
func sortResults(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// topK sorts results and truncates to k.
func topK(results []Result, k int) []Result {
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}
