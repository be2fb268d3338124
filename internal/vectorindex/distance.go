package vectorindex

import (
	"github.com/Aman-CERP/docrag/internal/errors"
)

// squaredL2 returns the squared Euclidean distance. Callers guarantee equal lengths.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func checkDims(dims int, vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != dims {
			return errors.DimensionMismatch(dims, len(v))
		}
	}
	return nil
}

func cloneVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = append([]float32(nil), v...)
	}
	return out
}
