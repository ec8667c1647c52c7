package embedding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{1, 0.5, -2}, ToFloat32([]float64{1, 0.5, -2}))
	assert.Empty(t, ToFloat32(nil))
}

func TestCheckDimension(t *testing.T) {
	require.NoError(t, CheckDimension(make([]float32, 4), 4))

	err := CheckDimension(make([]float32, 3), 4)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}
