// Package embedding holds helpers shared by the embedder implementations.
package embedding

import (
	"fmt"
	"math"

	"semsearch/internal/domain"
)

// ToFloat32 narrows a float64 vector to the float32 representation stored in
// the vector index.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Normalize scales v to unit L2 length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// CheckDimension fails with domain.ErrDimensionMismatch if v does not have want components.
func CheckDimension(v []float32, want int) error {
	if len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), want)
	}
	return nil
}
