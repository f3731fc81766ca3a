package bitnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCode(t *testing.T) {
	testCases := []struct {
		name     string
		code     byte
		expected int8
	}{
		{"zero", ternaryCodeZero, 0},
		{"plus-one", ternaryCodePlusOne, 1},
		{"minus-one", ternaryCodeMinusOne, -1},
		{"unused-degrades-to-zero", ternaryCodeUnused, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DecodeCode(tc.code))
		})
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		weights []int8
		scale   float32
	}{
		{"all-minus-one-single-block", repeatWeight(-1, 128), 0.5},
		{"all-zero-single-block", repeatWeight(0, 128), 1.0},
		{"all-plus-one-single-block", repeatWeight(1, 128), 2.25},
		{"two-blocks-mixed", append(repeatWeight(1, 128), repeatWeight(-1, 128)...), 0.125},
		{"partial-final-block", repeatWeight(1, 140), 4.0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			blob := Pack(tc.weights, tc.scale)
			require.Equal(t, PackedSize(len(tc.weights)), len(blob))

			got, scale, err := Unpack(blob, len(tc.weights))
			require.NoError(t, err)
			assert.Equal(t, tc.scale, scale)
			assert.Equal(t, tc.weights, got)
		})
	}
}

func TestUnpackRejectsShortBlob(t *testing.T) {
	blob := Pack(repeatWeight(1, 128), 1.0)
	_, _, err := Unpack(blob[:len(blob)-1], 128)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerInvalid)
}

func TestPackedSize(t *testing.T) {
	testCases := []struct {
		n        int
		expected int
	}{
		{0, scaleTrailerBytes},
		{1, 1 + scaleTrailerBytes},
		{4, 1 + scaleTrailerBytes},
		{5, 2 + scaleTrailerBytes},
		{128, 32 + scaleTrailerBytes},
		{129, 33 + scaleTrailerBytes},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, PackedSize(tc.n))
	}
}

func repeatWeight(w int8, n int) []int8 {
	out := make([]int8, n)
	for i := range out {
		out[i] = w
	}
	return out
}
