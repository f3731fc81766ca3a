package devicefake

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

func TestBufferWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dev := New()
	buf, err := dev.CreateBuffer(16, device.UsageStorage)
	require.NoError(t, err)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, buf.Write(ctx, 4, want))

	got := make([]byte, 16)
	require.NoError(t, buf.Read(ctx, got))
	assert.Equal(t, want, got[4:12])
}

func TestReadAfterReleaseFails(t *testing.T) {
	ctx := context.Background()
	dev := New()
	buf, err := dev.CreateBuffer(4, device.UsageStorage)
	require.NoError(t, err)
	buf.Release()

	err = buf.Read(ctx, make([]byte, 4))
	assert.Error(t, err)
}

func TestCrashFailsSubsequentCalls(t *testing.T) {
	ctx := context.Background()
	dev := New()
	dev.Crash()

	_, err := dev.CreateBuffer(4, device.UsageStorage)
	assert.ErrorIs(t, err, device.ErrLost)

	enc := dev.NewCommandEncoder()
	assert.ErrorIs(t, enc.Submit(ctx), device.ErrLost)
}

func TestElementwiseAddDispatch(t *testing.T) {
	ctx := context.Background()
	dev := New()

	a, _ := dev.CreateBuffer(16, device.UsageStorage)
	b, _ := dev.CreateBuffer(16, device.UsageStorage)
	out, _ := dev.CreateBuffer(16, device.UsageStorage)

	require.NoError(t, writeF32(ctx, a, []float32{1, 2, 3, 4}))
	require.NoError(t, writeF32(ctx, b, []float32{10, 20, 30, 40}))

	params := kernel.ElementwiseAddParams{Len: 4}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameElementwiseAdd), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: a},
		{Binding: 1, Buffer: b},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 33, 44}, got)
}

func TestRMSNormPreservesDirection(t *testing.T) {
	ctx := context.Background()
	dev := New()

	x, _ := dev.CreateBuffer(16, device.UsageStorage)
	weight, _ := dev.CreateBuffer(16, device.UsageStorage)
	out, _ := dev.CreateBuffer(16, device.UsageStorage)

	require.NoError(t, writeF32(ctx, x, []float32{1, 2, 3, 4}))
	require.NoError(t, writeF32(ctx, weight, []float32{1, 1, 1, 1}))

	params := kernel.RMSNormParams{Rows: 1, HiddenSize: 4, Epsilon: 1e-6}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameRMSNorm), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: weight},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, out)
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "rmsnorm must preserve relative magnitude ordering")
	}
}

func TestCopyBufferToBufferIsOrderedAgainstDispatch(t *testing.T) {
	ctx := context.Background()
	dev := New()

	src, _ := dev.CreateBuffer(16, device.UsageStorage)
	dst, _ := dev.CreateBuffer(24, device.UsageStorage)
	require.NoError(t, writeF32(ctx, src, []float32{1, 2, 3, 4}))

	a, _ := dev.CreateBuffer(16, device.UsageStorage)
	require.NoError(t, writeF32(ctx, a, []float32{10, 10, 10, 10}))
	out, _ := dev.CreateBuffer(16, device.UsageStorage)

	params := kernel.ElementwiseAddParams{Len: 4}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))
	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameElementwiseAdd), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.CopyBufferToBuffer(src, 0, dst, 8, 16)
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: a},
		{Binding: 1, Buffer: src},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	gotDst, err := readF32(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 2, 3, 4}, gotDst, "copy lands at the requested byte offset, untouched bytes stay zero")

	gotOut, err := readF32(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 12, 13, 14}, gotOut, "a dispatch reading the copy's source buffer is unaffected by the copy")
}

func TestRoPEIdentityAtPositionZero(t *testing.T) {
	ctx := context.Background()
	dev := New()

	x, _ := dev.CreateBuffer(8, device.UsageStorage)
	original := []float32{0.5, -0.25}
	require.NoError(t, writeF32(ctx, x, original))

	params := kernel.RoPEParams{N: 1, Heads: 1, HeadDim: 2, CachePos: 0, ThetaBase: 10000}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameRoPE), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, x)
	require.NoError(t, err)
	// At absolute position 0, theta = 0 for every frequency, so rotation is
	// the identity transform.
	assert.InDelta(t, original[0], got[0], 1e-5)
	assert.InDelta(t, original[1], got[1], 1e-5)
}

func TestRoPEPreservesNormAtNonzeroPosition(t *testing.T) {
	ctx := context.Background()
	dev := New()

	x, _ := dev.CreateBuffer(16, device.UsageStorage)
	original := []float32{0.5, -0.25, 1.5, 2.0}
	require.NoError(t, writeF32(ctx, x, original))

	params := kernel.RoPEParams{N: 1, Heads: 1, HeadDim: 4, CachePos: 7, ThetaBase: 10000}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameRoPE), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, x)
	require.NoError(t, err)

	require.NotEqual(t, original, got, "a nonzero position must actually rotate the pairs")

	// Each (x0, x1) pair is rotated independently, so each pair's norm
	// (not just the whole vector's) must survive the rotation.
	for j := 0; j < len(original); j += 2 {
		wantNorm := math.Hypot(float64(original[j]), float64(original[j+1]))
		gotNorm := math.Hypot(float64(got[j]), float64(got[j+1]))
		assert.InDelta(t, wantNorm, gotNorm, 1e-5, "pair %d must preserve its norm under rotation", j/2)
	}
}

// TestAttentionScoreGQAIndexing matches the scenario spec.md's attention
// section describes: Hq=20, Hkv=5 (g=4). Query head 7 must read key/value
// head 1 (7/4), and heads in the same group of 4 must all read the same
// kv head.
func TestAttentionScoreGQAIndexing(t *testing.T) {
	ctx := context.Background()
	dev := New()

	const hq, hkv, d, tTotal = 20, 5, 2, 1
	q, _ := dev.CreateBuffer(uint64(hq*d*4), device.UsageStorage)
	k, _ := dev.CreateBuffer(uint64(tTotal*hkv*d*4), device.UsageStorage)
	scores, _ := dev.CreateBuffer(uint64(hq*tTotal*4), device.UsageStorage)

	qVals := make([]float32, hq*d)
	for h := 0; h < hq; h++ {
		qVals[h*d] = 1
	}
	require.NoError(t, writeF32(ctx, q, qVals))

	kVals := make([]float32, tTotal*hkv*d)
	for kvHead := 0; kvHead < hkv; kvHead++ {
		kVals[kvHead*d] = float32(kvHead + 1) // sentinel: distinct per kv head
	}
	require.NoError(t, writeF32(ctx, k, kVals))

	params := kernel.AttentionScoreParams{N: 1, Hq: hq, Hkv: hkv, D: d, S: 0, TTotal: tTotal}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameAttentionScore), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: q},
		{Binding: 1, Buffer: k},
		{Binding: 2, Buffer: scores},
		{Binding: 3, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, scores)
	require.NoError(t, err)

	scale := float32(1 / sqrtD(d))
	for h := 0; h < hq; h++ {
		kvHead := h / (hq / hkv)
		expected := float32(kvHead+1) * scale
		assert.InDelta(t, expected, got[h*tTotal], 1e-5, "head %d -> kv_head %d", h, kvHead)
	}
	assert.InDelta(t, got[4*tTotal], got[5*tTotal], 1e-5, "heads 4,5 share kv_head 1")
	assert.InDelta(t, got[6*tTotal], got[7*tTotal], 1e-5, "heads 6,7 share kv_head 1")
	assert.NotEqual(t, got[7*tTotal], got[8*tTotal], "head 8 is in the next kv group")
}

// TestTernaryGEMVKnownWeights packs a 2x128 weight matrix with a single
// +1 entry per row and checks the GEMV kernel recovers exactly the
// corresponding scaled activation, exercising the block-interleaved I2_S
// decode at a realistic full-block width.
func TestTernaryGEMVKnownWeights(t *testing.T) {
	ctx := context.Background()
	dev := New()

	const kin, kout = 128, 2
	row0 := make([]int8, kin)
	row0[0] = 1
	row1 := make([]int8, kin)
	row1[1] = 1

	packedRow0 := bitnet.Pack(row0, 1.0)[:kin/4]
	packedRow1 := bitnet.Pack(row1, 1.0)[:kin/4]
	packed := append(append([]byte(nil), packedRow0...), packedRow1...)

	weightBuf, _ := dev.CreateBuffer(uint64(len(packed)), device.UsageStorage)
	require.NoError(t, weightBuf.Write(ctx, 0, packed))

	rowScales, _ := dev.CreateBuffer(kout*4, device.UsageStorage)
	require.NoError(t, writeF32(ctx, rowScales, []float32{2, 3}))

	codes := make([]int32, kin)
	codes[0] = 5
	codes[1] = 7
	codesBuf, _ := dev.CreateBuffer(kin*4, device.UsageStorage)
	require.NoError(t, writeI32(ctx, codesBuf, codes))

	inputScaleBuf, _ := dev.CreateBuffer(4, device.UsageUniform)
	require.NoError(t, writeF32(ctx, inputScaleBuf, []float32{10}))

	out, _ := dev.CreateBuffer(kout*4, device.UsageStorage)

	params := kernel.TernaryGEMVParams{Kin: kin, Kout: kout}
	paramsBuf, _ := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))

	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameTernaryGEMV), "", "main")
	require.NoError(t, err)

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: weightBuf},
		{Binding: 1, Buffer: rowScales},
		{Binding: 2, Buffer: codesBuf},
		{Binding: 3, Buffer: inputScaleBuf},
		{Binding: 4, Buffer: out},
		{Binding: 5, Buffer: paramsBuf},
	}, 1, 1, 1)
	require.NoError(t, enc.Submit(ctx))

	got, err := readF32(ctx, out)
	require.NoError(t, err)
	assert.InDelta(t, float32(100), got[0], 1e-4, "row0 = +1 at k=0, code=5, rowScale=2, inputScale=10")
	assert.InDelta(t, float32(210), got[1], 1e-4, "row1 = +1 at k=1, code=7, rowScale=3, inputScale=10")
}

func sqrtD(d int) float64 {
	r := 1.0
	for i := 0; i < 32; i++ {
		r = 0.5 * (r + float64(d)/r)
	}
	return r
}
