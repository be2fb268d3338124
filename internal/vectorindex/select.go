package vectorindex

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// ForCorpus picks the index variant for n vectors. With KindAuto, corpora
// below FlatThreshold get Flat and larger ones IVF; any other kind is honoured.
// The returned IVF is untrained.
func ForCorpus(n, dims int, opts Options) (Index, error) {
	if dims <= 0 {
		return nil, errors.ValidationError(fmt.Sprintf("index dimensions must be positive, got %d", dims), nil)
	}
	def := DefaultOptions()
	if opts.FlatThreshold <= 0 {
		opts.FlatThreshold = def.FlatThreshold
	}
	if opts.MaxClusters <= 0 {
		opts.MaxClusters = def.MaxClusters
	}
	if opts.MaxProbes <= 0 {
		opts.MaxProbes = def.MaxProbes
	}

	kind := strings.ToLower(opts.Kind)
	if kind == "" || kind == KindAuto {
		kind = KindFlat
		if n >= opts.FlatThreshold {
			kind = KindIVF
		}
	}

	switch kind {
	case KindFlat:
		return NewFlat(dims), nil
	case KindIVF:
		nlist, nprobe := IVFParams(n, opts.MaxClusters, opts.MaxProbes)
		return NewIVF(dims, nlist, nprobe, opts.Iterations, opts.Seed), nil
	case KindGraph:
		return NewGraph(dims, opts.GraphM, opts.GraphEfSearch), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown index kind %q", opts.Kind), nil)
	}
}

// Build selects an index for vectors, trains it on all of them when needed
// and adds them in order.
func Build(vectors [][]float32, dims int, opts Options) (Index, error) {
	idx, err := ForCorpus(len(vectors), dims, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return idx, nil
	}
	if !idx.IsTrained() {
		if err := idx.Train(vectors); err != nil {
			return nil, err
		}
	}
	if err := idx.Add(vectors); err != nil {
		return nil, err
	}
	return idx, nil
}
