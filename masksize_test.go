package psz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMaskSizeRejectsZero(t *testing.T) {
	_, err := computeMaskSize(0)
	assert.ErrorIs(t, err, ErrBadInputSize)
}

func TestComputeMaskSizeMonotonic(t *testing.T) {
	prev, err := computeMaskSize(1)
	require.NoError(t, err)
	for _, n := range []int{2, 4, 16, 256, 1024, 1 << 20} {
		got, err := computeMaskSize(n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestComputeMaskSizeReasonableWidth(t *testing.T) {
	got, err := computeMaskSize(1024)
	require.NoError(t, err)
	assert.InDelta(t, 8, got, 1)
}
