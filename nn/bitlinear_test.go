package nn

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
)

func writeF32Buf(ctx context.Context, buf device.Buffer, vals []float32) error {
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return buf.Write(ctx, 0, raw)
}

func readF32Buf(ctx context.Context, buf device.Buffer) ([]float32, error) {
	raw := make([]byte, buf.Size())
	if err := buf.Read(ctx, raw); err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// TestBitLinearGEMVMatchesManualDot wires a 128-wide (one full I2_S
// block), 2-output BitLinear with PreNorm disabled and an all-ones
// quantization scale, then checks its GEMV output against a manual
// ternary dot product. This exercises dispatchGEMV's scale-uniform path
// end to end, including the device-side copy that replaces the old
// host-blocking scale read.
func TestBitLinearGEMVMatchesManualDot(t *testing.T) {
	ctx := context.Background()
	dev := devicefake.New()
	pool := device.NewBufferPool(dev)
	pipes := NewPipelines(dev, device.NewPipelineCache(dev))

	const kin, kout = 128, 2
	row0 := make([]int8, kin)
	row0[0] = 1
	row0[1] = -1
	row1 := make([]int8, kin)
	row1[2] = 1

	packed := append(append([]byte(nil), bitnet.Pack(row0, 1.0)[:kin/4]...), bitnet.Pack(row1, 1.0)[:kin/4]...)
	weightBuf, err := dev.CreateBuffer(uint64(len(packed)), device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, weightBuf.Write(ctx, 0, packed))

	rowScales, err := dev.CreateBuffer(kout*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, rowScales, []float32{2, 5}))

	x := make([]float32, kin)
	x[0] = 3
	x[1] = 4
	x[2] = -2
	xBuf, err := dev.CreateBuffer(kin*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, xBuf, x))

	layer := &BitLinear{
		Kin: kin, Kout: kout,
		Weight: weightBuf, RowScales: rowScales,
	}

	enc := dev.NewCommandEncoder()
	out, err := layer.Forward(ctx, enc, pool, pipes, xBuf, 1)
	require.NoError(t, err)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32Buf(ctx, out)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), kout)

	// absmax(x) = 4, so invScale = 127/4 = 31.75: codes = round(x*invScale)
	// = [95, 127, -64, 0, ...]. row0 dot = 95*1 + 127*(-1) = -32, row1 dot
	// = -64*1 = -64. Each is scaled by rowScale*inputScale, inputScale =
	// absmax/127 = 4/127.
	assert.InDelta(t, -32*2*4.0/127.0, got[0], 1e-2)
	assert.InDelta(t, -64*5*4.0/127.0, got[1], 1e-2)
}
