package nn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
)

// packRowPattern builds an I2_S weight matrix of kout rows x kin columns,
// row r's nonzero entries at columns (r*7+c*5)%kin for c = 0, 1, 2, so
// distinct rows read distinct (but overlapping) input columns.
func packRowPattern(kin, kout int) []byte {
	var packed []byte
	for r := 0; r < kout; r++ {
		row := make([]int8, kin)
		for c := 0; c < 3; c++ {
			col := (r*7 + c*5) % kin
			if c%2 == 0 {
				row[col] = 1
			} else {
				row[col] = -1
			}
		}
		packed = append(packed, bitnet.Pack(row, 1.0)[:kin/4]...)
	}
	return packed
}

func newPackedBitLinear(t *testing.T, dev *devicefake.Device, kin, kout uint64) *BitLinear {
	t.Helper()
	ctx := context.Background()

	packed := packRowPattern(int(kin), int(kout))
	weightBuf, err := dev.CreateBuffer(uint64(len(packed)), device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, weightBuf.Write(ctx, 0, packed))

	scales := make([]float32, kout)
	for i := range scales {
		scales[i] = 1
	}
	scaleBuf, err := dev.CreateBuffer(kout*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, scaleBuf, scales))

	return &BitLinear{Kin: kin, Kout: kout, Weight: weightBuf, RowScales: scaleBuf}
}

func newTestAttention(t *testing.T, dev *devicefake.Device, hq, hkv, headDim uint64, capacity uint64) *Attention {
	t.Helper()
	hidden := hq * headDim
	kvDim := hkv * headDim

	cache, err := bitnet.NewKVCache(dev, capacity, hkv, headDim)
	require.NoError(t, err)

	return &Attention{
		Q:         newPackedBitLinear(t, dev, hidden, hidden),
		K:         newPackedBitLinear(t, dev, hidden, kvDim),
		V:         newPackedBitLinear(t, dev, hidden, kvDim),
		O:         newPackedBitLinear(t, dev, hidden, hidden),
		Hq:        hq,
		Hkv:       hkv,
		HeadDim:   headDim,
		ThetaBase: 10000,
		Cache:     cache,
	}
}

func randomHiddenInput(n, hidden uint64) []float32 {
	x := make([]float32, n*hidden)
	for i := range x {
		x[i] = float32(i%7) - 3
	}
	return x
}

// TestAttentionCausalMaskingMatchesSequentialDecode checks that prefilling
// n=2 tokens in one Forward call produces the same row-0 output as
// decoding token 0 alone: row 0 of a causal attention pass must never be
// influenced by row 1 arriving in the same batch. This exercises GQA grouping (Hq=4, Hkv=2), RoPE, and
// the device-side KV cache append together at the nn.Attention level.
func TestAttentionCausalMaskingMatchesSequentialDecode(t *testing.T) {
	ctx := context.Background()
	// headDim is chosen so hidden = hq*headDim lands on a whole number of
	// I2_S blocks (128 elements each): Pack's block-interleave addressing
	// only covers full blocks, and every BitLinear row here is hidden wide.
	const hq, hkv, headDim uint64 = 4, 2, 32
	const hidden = hq * headDim

	x := randomHiddenInput(2, hidden)

	// Prefill: both tokens in one Forward call.
	devA := devicefake.New()
	poolA := device.NewBufferPool(devA)
	pipesA := NewPipelines(devA, device.NewPipelineCache(devA))
	attnA := newTestAttention(t, devA, hq, hkv, headDim, 8)

	xBufA, err := devA.CreateBuffer(uint64(len(x))*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, xBufA, x))

	encA := devA.NewCommandEncoder()
	outA, err := attnA.Forward(ctx, encA, poolA, pipesA, xBufA, 2)
	require.NoError(t, err)
	require.NoError(t, encA.Submit(ctx))

	gotA, err := readF32Buf(ctx, outA)
	require.NoError(t, err)
	require.Len(t, gotA, int(2*hidden))

	// Lone decode: token 0 by itself, on an attention stack built
	// identically; its output is compared with row 0 of the prefill.
	devB := devicefake.New()
	poolB := device.NewBufferPool(devB)
	pipesB := NewPipelines(devB, device.NewPipelineCache(devB))
	attnB := newTestAttention(t, devB, hq, hkv, headDim, 8)
	// Mirror attnA's weights onto attnB's buffers so the two stacks are
	// identical (packRowPattern is deterministic, so re-deriving weights
	// via newPackedBitLinear for attnB already gives bit-identical
	// layers; no extra copy needed).

	row0 := x[:hidden]
	xBuf0, err := devB.CreateBuffer(hidden*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, xBuf0, row0))

	enc0 := devB.NewCommandEncoder()
	out0, err := attnB.Forward(ctx, enc0, poolB, pipesB, xBuf0, 1)
	require.NoError(t, err)
	require.NoError(t, enc0.Submit(ctx))
	attnB.Cache.Advance(1)

	got0, err := readF32Buf(ctx, out0)
	require.NoError(t, err)

	for i := range got0 {
		assert.InDelta(t, gotA[i], got0[i], 1e-3, "row 0 of a 2-token prefill must match a lone decode of token 0 at position %d", i)
	}
}

func TestAttentionRejectsIndivisibleHeadCounts(t *testing.T) {
	ctx := context.Background()
	dev := devicefake.New()
	pool := device.NewBufferPool(dev)
	pipes := NewPipelines(dev, device.NewPipelineCache(dev))

	// hidden = 5*128 = 640, still a whole number of I2_S blocks, so weight
	// packing succeeds before Forward's own Hq/Hkv divisibility check fires.
	attn := newTestAttention(t, dev, 5, 2, 128, 4) // 5 not divisible by 2
	x := randomHiddenInput(1, 5*128)
	xBuf, _ := dev.CreateBuffer(uint64(len(x))*4, device.UsageStorage)
	require.NoError(t, writeF32Buf(ctx, xBuf, x))

	enc := dev.NewCommandEncoder()
	_, err := attn.Forward(ctx, enc, pool, pipes, xBuf, 1)
	assert.Error(t, err)
}
