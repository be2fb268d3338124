package vectorindex

import (
	"math/rand/v2"
	"sync"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// IVF is an inverted-file index. Vectors are assigned to the nearest of nlist
// k-means centroids, and a search scans only the nprobe closest lists.
type IVF struct {
	mu sync.RWMutex

	dims       int
	nlist      int
	nprobe     int
	iterations int
	seed       int64

	trained   bool
	centroids [][]float32
	lists     [][]int
	vectors   [][]float32
}

var _ Index = (*IVF)(nil)

// NewIVF creates an untrained IVF index.
func NewIVF(dims, nlist, nprobe, iterations int, seed int64) *IVF {
	nlist = max(nlist, 1)
	nprobe = min(max(nprobe, 1), nlist)
	if iterations <= 0 {
		iterations = DefaultOptions().Iterations
	}
	return &IVF{dims: dims, nlist: nlist, nprobe: nprobe, iterations: iterations, seed: seed}
}

// IVFParams derives list and probe counts for a corpus of n vectors.
func IVFParams(n, maxClusters, maxProbes int) (nlist, nprobe int) {
	nlist = max(min(n/10, maxClusters), 1)
	nprobe = max(min(nlist/10, maxProbes), 1)
	return nlist, nprobe
}

func (x *IVF) Kind() string    { return KindIVF }
func (x *IVF) Dimensions() int { return x.dims }

// Lists returns the number of clusters.
func (x *IVF) Lists() int { return x.nlist }

// Probes returns the number of clusters scanned per query.
func (x *IVF) Probes() int { return x.nprobe }

// Count returns the number of stored vectors.
func (x *IVF) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// IsTrained reports whether centroids exist.
func (x *IVF) IsTrained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.trained
}

// Train clusters the sample. With fewer samples than lists, nlist shrinks to
// the sample size.
func (x *IVF) Train(sample [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.trained {
		return nil
	}
	if len(sample) == 0 {
		return errors.ValidationError("cannot train IVF index on an empty sample", nil)
	}
	if err := checkDims(x.dims, sample); err != nil {
		return err
	}

	if len(sample) < x.nlist {
		x.nlist = len(sample)
		x.nprobe = min(x.nprobe, x.nlist)
	}

	x.centroids = kmeans(sample, x.nlist, x.iterations, x.seed)
	x.lists = make([][]int, x.nlist)
	x.trained = true
	return nil
}

// Add assigns each vector to its nearest centroid.
func (x *IVF) Add(vectors [][]float32) error {
	if err := checkDims(x.dims, vectors); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.trained {
		return errors.IndexStateError("ivf index: add called before train")
	}
	for _, v := range vectors {
		id := len(x.vectors)
		c := nearest(x.centroids, v)
		x.lists[c] = append(x.lists[c], id)
		x.vectors = append(x.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Search scans the nprobe nearest lists.
func (x *IVF) Search(query []float32, k int) ([]Result, error) {
	if len(query) != x.dims {
		return nil, errors.DimensionMismatch(x.dims, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.trained || len(x.vectors) == 0 {
		return []Result{}, nil
	}

	probes := make([]Result, len(x.centroids))
	for i, c := range x.centroids {
		probes[i] = Result{ID: i, Distance: squaredL2(query, c)}
	}
	probes = topK(probes, x.nprobe)

	var results []Result
	for _, p := range probes {
		for _, id := range x.lists[p.ID] {
			results = append(results, Result{ID: id, Distance: squaredL2(query, x.vectors[id])})
		}
	}
	if results == nil {
		return []Result{}, nil
	}
	return topK(results, k), nil
}

// nearest returns the index of the closest centroid, lowest index on ties.
func nearest(centroids [][]float32, v []float32) int {
	best, bestDist := 0, float32(0)
	for i, c := range centroids {
		d := squaredL2(v, c)
		if i == 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// kmeans runs seeded Lloyd iterations from a k-means++ initialisation.
// Empty clusters are re-seeded with the member of the largest cluster that
// lies farthest from its centroid.
func kmeans(data [][]float32, k, iterations int, seed int64) [][]float32 {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	dims := len(data[0])
	centroids := seedPlusPlus(data, k, rng)
	assign := make([]int, len(data))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range data {
			c := nearest(centroids, v)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, v := range data {
			c := assign[i]
			counts[c]++
			for d, val := range v {
				sums[c][d] += float64(val)
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}

		for c := range centroids {
			if counts[c] > 0 {
				continue
			}
			largest := 0
			for j := range counts {
				if counts[j] > counts[largest] {
					largest = j
				}
			}
			far, farDist := -1, float32(-1)
			for i, v := range data {
				if assign[i] != largest {
					continue
				}
				if d := squaredL2(v, centroids[largest]); d > farDist {
					far, farDist = i, d
				}
			}
			if far < 0 || counts[largest] < 2 {
				continue
			}
			copy(centroids[c], data[far])
			assign[far] = c
			counts[largest]--
			counts[c]++
		}
	}
	return centroids
}

// seedPlusPlus picks k initial centroids, each with probability proportional
// to its squared distance from the closest centroid chosen so far.
func seedPlusPlus(data [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, append([]float32(nil), data[rng.IntN(len(data))]...))

	dist := make([]float64, len(data))
	for len(centroids) < k {
		var total float64
		for i, v := range data {
			dist[i] = float64(squaredL2(v, centroids[nearest(centroids, v)]))
			total += dist[i]
		}

		next := rng.IntN(len(data))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 && d > 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float32(nil), data[next]...))
	}
	return centroids
}
