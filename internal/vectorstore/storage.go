// Package vectorstore holds checks shared by the vector index implementations.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"semsearch/internal/domain"
)

// ErrNotDeclared is returned by Upsert before the collection was created.
var ErrNotDeclared = errors.New("vector collection not declared")

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateCollectionName rejects names that are unsafe as file or collection names.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("collection name must match %s, got %q", collectionNamePattern, name)
	}
	return nil
}

// CheckPoints verifies every point has the declared dimension and a positive id.
func CheckPoints(points []domain.VectorPoint, dimension int) error {
	if dimension <= 0 {
		return ErrNotDeclared
	}
	for _, p := range points {
		if p.ID <= 0 {
			return fmt.Errorf("point id must be positive, got %d", p.ID)
		}
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %d has %d components, collection has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), dimension)
		}
	}
	return nil
}

// CheckQuery validates a search request against the declared dimension. A
// dimension of zero means unknown and skips the size check.
func CheckQuery(vector []float32, k, dimension int) error {
	if k <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidLimit, k)
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("%w: query has %d components, collection has %d",
			domain.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
