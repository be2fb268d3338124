package vectorindex

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// codecVersion is bumped whenever the envelope layout changes; older blobs
// fail to decode and the cache treats them as a miss.
const codecVersion = 1

type envelope struct {
	Version int
	Kind    string
	Dims    int
	Vectors [][]float32

	// IVF
	NList      int
	NProbe     int
	Iterations int
	Seed       int64
	Trained    bool
	Centroids  [][]float32
	Lists      [][]int

	// Graph
	M        int
	EfSearch int
	Graph    []byte
}

// Encode writes idx as a versioned gob envelope.
func Encode(w io.Writer, idx Index) error {
	env := envelope{Version: codecVersion, Kind: idx.Kind(), Dims: idx.Dimensions()}

	switch x := idx.(type) {
	case *Flat:
		x.mu.RLock()
		defer x.mu.RUnlock()
		env.Vectors = x.vectors
	case *IVF:
		x.mu.RLock()
		defer x.mu.RUnlock()
		env.Vectors = x.vectors
		env.NList, env.NProbe = x.nlist, x.nprobe
		env.Iterations, env.Seed = x.iterations, x.seed
		env.Trained = x.trained
		env.Centroids, env.Lists = x.centroids, x.lists
	case *Graph:
		x.mu.RLock()
		defer x.mu.RUnlock()
		env.Vectors = x.vectors
		env.M, env.EfSearch = x.m, x.efSearch
		var buf bytes.Buffer
		if err := x.graph.Export(&buf); err != nil {
			return fmt.Errorf("export hnsw graph: %w", err)
		}
		env.Graph = buf.Bytes()
	default:
		return errors.InternalError(fmt.Sprintf("cannot encode index of type %T", idx), nil)
	}

	if err := gobEncode(w, env); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// Decode reads an index written by Encode. Structural problems are reported
// as CacheCorrupt.
func Decode(r io.Reader) (Index, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.CacheCorrupt("decode index", err)
	}
	if env.Version != codecVersion {
		return nil, errors.CacheCorrupt(fmt.Sprintf("unsupported index version %d", env.Version), nil)
	}
	if env.Dims <= 0 {
		return nil, errors.CacheCorrupt(fmt.Sprintf("invalid index dimensions %d", env.Dims), nil)
	}
	if err := checkDims(env.Dims, env.Vectors); err != nil {
		return nil, errors.CacheCorrupt("index vectors have inconsistent dimensions", err)
	}

	switch env.Kind {
	case KindFlat:
		return &Flat{dims: env.Dims, vectors: env.Vectors}, nil

	case KindIVF:
		x := NewIVF(env.Dims, env.NList, env.NProbe, env.Iterations, env.Seed)
		if !env.Trained {
			if len(env.Vectors) > 0 {
				return nil, errors.CacheCorrupt("untrained ivf index holds vectors", nil)
			}
			return x, nil
		}
		if len(env.Centroids) != env.NList || len(env.Lists) != env.NList {
			return nil, errors.CacheCorrupt("ivf centroid count does not match list count", nil)
		}
		if err := checkDims(env.Dims, env.Centroids); err != nil {
			return nil, errors.CacheCorrupt("ivf centroids have inconsistent dimensions", err)
		}
		seen := 0
		for _, list := range env.Lists {
			for _, id := range list {
				if id < 0 || id >= len(env.Vectors) {
					return nil, errors.CacheCorrupt(fmt.Sprintf("ivf list references row %d of %d", id, len(env.Vectors)), nil)
				}
				seen++
			}
		}
		if seen != len(env.Vectors) {
			return nil, errors.CacheCorrupt("ivf lists do not cover every row", nil)
		}
		x.nlist, x.nprobe = env.NList, min(max(env.NProbe, 1), env.NList)
		x.trained = true
		x.centroids, x.lists, x.vectors = env.Centroids, env.Lists, env.Vectors
		return x, nil

	case KindGraph:
		g := NewGraph(env.Dims, env.M, env.EfSearch)
		g.vectors = env.Vectors
		if len(env.Graph) > 0 {
			if err := g.graph.Import(bufio.NewReader(bytes.NewReader(env.Graph))); err != nil {
				return nil, errors.CacheCorrupt("import hnsw graph", err)
			}
		}
		if g.graph.Len() != len(g.vectors) {
			return nil, errors.CacheCorrupt(
				fmt.Sprintf("hnsw graph holds %d nodes for %d vectors", g.graph.Len(), len(g.vectors)), nil)
		}
		return g, nil

	default:
		return nil, errors.CacheCorrupt(fmt.Sprintf("unknown index kind %q", env.Kind), nil)
	}
}

func gobEncode(w io.Writer, env envelope) error {
	return gob.NewEncoder(w).Encode(env)
}
