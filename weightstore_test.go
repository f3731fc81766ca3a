package bitnet

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
)

func TestTensorByteSizeI2SUsesPackedSizeNotRowSizeOf(t *testing.T) {
	// 320 elements: PackedSize = ceil(320/4) + 32 = 80 + 32 = 112. The
	// generic RowSizeOf formula (keyed on BlockSize=128, TypeSize=64)
	// would instead give TypeSize*dims[0]/BlockSize = 64*320/128 = 160,
	// wrong by the per-row-vs-whole-tensor layout mismatch this guards.
	ti := GGUFTensorInfo{Type: GGMLTypeI2S, Dimensions: []uint64{320}}
	assert.EqualValues(t, 112, tensorByteSize(ti))

	tiMultiDim := GGUFTensorInfo{Type: GGMLTypeI2S, Dimensions: []uint64{128, 3}}
	// 384 elements total: ceil(384/4) + 32 = 96 + 32 = 128.
	assert.EqualValues(t, 128, tensorByteSize(tiMultiDim))
}

func TestTensorByteSizeNonI2SUsesRowSizeOf(t *testing.T) {
	ti := GGUFTensorInfo{Type: GGMLTypeF32, Dimensions: []uint64{8}}
	assert.Equal(t, ti.Type.RowSizeOf(ti.Dimensions), tensorByteSize(ti))
}

func TestWeightCatalogLoadSizesI2STensorByPackedSize(t *testing.T) {
	ctx := context.Background()
	dev := devicefake.New()

	const elems = 320
	wantSize := PackedSize(elems)
	data := bytes.Repeat([]byte{0xAA}, wantSize)

	gf := &GGUFFile{
		TensorInfos: GGUFTensorInfos{
			{Name: "blk.0.attn_q.weight", Type: GGMLTypeI2S, Dimensions: []uint64{elems}, Offset: 0},
		},
		TensorDataStartOffset: 0,
	}

	var c WeightCatalog
	require.NoError(t, c.Load(ctx, dev, gf, bytes.NewReader(data), 0))

	entry, ok := c.Get("model.layers.0.self_attn.q_proj.weight")
	require.True(t, ok)
	assert.EqualValues(t, wantSize, entry.Size())
}
