//go:build !cgo

package fastembed

import "context"

// Embedder is a placeholder for builds without cgo.
type Embedder struct{}

// New always fails with ErrUnavailable.
func New(_ Config) (*Embedder, error) { return nil, ErrUnavailable }

func (e *Embedder) Name() string   { return "fastembed" }
func (e *Embedder) Dimension() int { return 0 }

func (e *Embedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (e *Embedder) Close() error { return nil }
