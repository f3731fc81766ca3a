package nn

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
)

// float32ToFloat16 is a minimal round-trip encoder for small positive
// integers, sufficient for constructing fixture embedding tables in
// tests; it does not handle the full IEEE-754 special-case surface.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	frac := uint16((bits >> 13) & 0x3FF)
	return sign | uint16(exp)<<10 | frac
}

func packF16Pairs(vals []float32) []byte {
	raw := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[i*2:], float32ToFloat16(v))
	}
	// pad to a whole number of u32 words if needed
	if len(raw)%4 != 0 {
		raw = append(raw, 0, 0)
	}
	return raw
}

func TestTiedHeadForwardMatchesManualDot(t *testing.T) {
	ctx := context.Background()
	dev := devicefake.New()
	pool := device.NewBufferPool(dev)
	pipes := NewPipelines(dev, device.NewPipelineCache(dev))

	const vocab, hidden = 4, 2
	table := []float32{
		1, 2, // row 0
		3, 4, // row 1
		5, 6, // row 2
		7, 8, // row 3
	}
	tableBuf, err := dev.CreateBuffer(uint64(len(table)*2), device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, tableBuf.Write(ctx, 0, packF16Pairs(table)))

	x := []float32{1, 1}
	xBuf, err := dev.CreateBuffer(uint64(len(x)*4), device.UsageStorage)
	require.NoError(t, err)
	raw := make([]byte, len(x)*4)
	for i, v := range x {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	require.NoError(t, xBuf.Write(ctx, 0, raw))

	head := &Head{Tied: &TiedHead{EmbedTable: tableBuf, VocabSize: vocab, HiddenSize: hidden}}

	enc := dev.NewCommandEncoder()
	out, err := head.Forward(ctx, enc, pool, pipes, xBuf)
	require.NoError(t, err)
	require.NoError(t, enc.Submit(ctx))

	gotRaw := make([]byte, out.Size())
	require.NoError(t, out.Read(ctx, gotRaw))
	got := make([]float32, len(gotRaw)/4)
	for i := range got {
		got[i] = math.Float32frombits(binary.LittleEndian.Uint32(gotRaw[i*4:]))
	}

	require.GreaterOrEqual(t, len(got), vocab)
	// logit[row] = dot(x, table[row]) since x = [1, 1]
	assert.InDelta(t, 3, got[0], 1e-2)
	assert.InDelta(t, 7, got[1], 1e-2)
	assert.InDelta(t, 11, got[2], 1e-2)
	assert.InDelta(t, 15, got[3], 1e-2)
}
