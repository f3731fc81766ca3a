package bitnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGGMLTypeI2SIsWireTag36 pins the BitNet fork's real on-disk type
// tag: a genuine I2_S tensor must resolve to I2_S's own trait, not to
// whatever upstream originally assigned slot 36.
func TestGGMLTypeI2SIsWireTag36(t *testing.T) {
	assert.EqualValues(t, 36, GGMLTypeI2S)
	assert.Equal(t, GGMLTypeIQ4_NL_4_4, GGMLTypeI2S, "the fork repurposes the deprecated IQ4_NL_4_4 tag")

	tt, ok := GGMLTypeI2S.Trait()
	require.True(t, ok)
	assert.EqualValues(t, 128, tt.BlockSize)
	assert.EqualValues(t, 64, tt.TypeSize)
	assert.True(t, tt.Quantized)
}

func TestGGMLTypeI2SStringIsI2S(t *testing.T) {
	assert.Equal(t, "I2_S", GGMLTypeI2S.String())
}

func TestGGMLTypeI2SWithinBoundsCheck(t *testing.T) {
	assert.Less(t, GGMLTypeI2S, _GGMLTypeCount, "a real I2_S tag must pass the tensor-info bounds check unconditionally")
}

func TestGGMLTypeRowSizeOfQuantized(t *testing.T) {
	// Q8_0: 32-element blocks, 34 bytes/block. Row of 64 elements is 2
	// blocks (68 bytes); 2 rows doubles it.
	size := GGMLTypeQ8_0.RowSizeOf([]uint64{64, 2})
	assert.EqualValues(t, 68*2, size)
}
