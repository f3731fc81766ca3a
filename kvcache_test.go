package bitnet

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

func TestKVCacheAdvanceAndCapacity(t *testing.T) {
	dev := devicefake.New()
	c, err := NewKVCache(dev, 8, 2, 4)
	require.NoError(t, err)
	defer c.Release()

	assert.EqualValues(t, 0, c.Position())
	assert.EqualValues(t, 0, c.AppendOffset())

	require.NoError(t, c.EnsureCapacity(3))
	c.Advance(3)
	assert.EqualValues(t, 3, c.Position())
	assert.EqualValues(t, 3*2*4*4, c.AppendOffset())

	require.NoError(t, c.EnsureCapacity(5))
	err = c.EnsureCapacity(6)
	assert.Error(t, err, "9 positions must exceed an 8-position capacity")
}

// TestKVCacheAppendHoldsRoPEdBytesExactly matches spec.md §8's cache
// scenario: the bytes a layer ends up with in its K cache after appending
// a RoPE'd row must equal the RoPE kernel's own output byte-for-byte, not
// some host-side re-derivation of it.
func TestKVCacheAppendHoldsRoPEdBytesExactly(t *testing.T) {
	ctx := context.Background()
	dev := devicefake.New()

	const headsKV, headDim, cachePos = 2, 4, 3
	c, err := NewKVCache(dev, 8, headsKV, headDim)
	require.NoError(t, err)
	defer c.Release()
	c.Advance(cachePos)

	kNew, err := dev.CreateBuffer(headsKV*headDim*4, device.UsageStorage|device.UsageCopySrc)
	require.NoError(t, err)
	raw := make([]byte, headsKV*headDim*4)
	vals := []float32{0.5, -0.25, 1.5, 2.0, -3.0, 0.125, 4.0, -1.0}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	require.NoError(t, kNew.Write(ctx, 0, raw))

	params := kernel.RoPEParams{N: 1, Heads: headsKV, HeadDim: headDim, CachePos: cachePos, ThetaBase: 10000}
	paramsBuf, err := dev.CreateBuffer(uint64(len(params.Encode())), device.UsageUniform)
	require.NoError(t, err)
	require.NoError(t, paramsBuf.Write(ctx, 0, params.Encode()))
	pipeline, err := dev.CompilePipeline(ctx, string(kernel.NameRoPE), "", "main")
	require.NoError(t, err)

	require.NoError(t, c.EnsureCapacity(1))

	enc := dev.NewCommandEncoder()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: kNew},
		{Binding: 1, Buffer: paramsBuf},
	}, 1, 1, 1)
	enc.CopyBufferToBuffer(kNew, 0, c.Keys(), c.AppendOffset(), kNew.Size())
	require.NoError(t, enc.Submit(ctx))
	c.Advance(1)

	wantRaw := make([]byte, kNew.Size())
	require.NoError(t, kNew.Read(ctx, wantRaw))

	gotRaw := make([]byte, c.Keys().Size())
	require.NoError(t, c.Keys().Read(ctx, gotRaw))

	off := int(cachePos) * headsKV * headDim * 4
	assert.Equal(t, wantRaw, gotRaw[off:off+len(wantRaw)], "cache must hold the RoPE kernel's own output bytes exactly")
}

func TestKVCacheSetResetRewindsEveryLayer(t *testing.T) {
	dev := devicefake.New()
	set, err := NewKVCacheSet(dev, 3, 8, 2, 4)
	require.NoError(t, err)
	defer set.Release()

	for _, l := range set.Layers {
		l.Advance(5)
	}
	set.Reset()
	for i, l := range set.Layers {
		assert.EqualValuesf(t, 0, l.Position(), "layer %d must rewind to position 0", i)
	}
}
