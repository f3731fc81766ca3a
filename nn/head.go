package nn

import (
	"context"
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// Head is the tagged sum of the two LM head conventions: Tied reuses the
// embedding table as the output projection (unpacked to single precision
// by the embedding-lookup kernel, then fed to the F32 matmul kernel);
// Untied is its own BitLinear with optional
// pre-norm, falling back to the model's final-norm weight when the file
// carries no dedicated head norm.
type Head struct {
	Tied   *TiedHead
	Untied *BitLinear
}

// TiedHead drives the single-precision GEMV against the half-precision
// embedding table.
type TiedHead struct {
	EmbedTable device.Buffer // packed f16 pairs, [V, H]
	VocabSize  uint64
	HiddenSize uint64
}

// Forward dispatches the head over x (always N=1: the model driver slices
// to the last token before calling this) and returns a [1, VocabSize]
// f32 logits buffer.
func (h *Head) Forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer) (device.Buffer, error) {
	if h.Untied != nil {
		return h.Untied.Forward(ctx, enc, pool, pipes, x, 1)
	}
	return h.Tied.forward(ctx, enc, pool, pipes, x)
}

func (t *TiedHead) forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameMatmulF32)
	if err != nil {
		return nil, fmt.Errorf("tied head: %w", err)
	}

	unpacked, err := t.unpackEmbedTable(ctx, enc, pool, pipes)
	if err != nil {
		return nil, fmt.Errorf("tied head unpack: %w", err)
	}
	defer pool.Release(unpacked)

	out, err := pool.Acquire(t.VocabSize*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.MatmulF32Params{N: 1, K: uint32(t.HiddenSize), O: uint32(t.VocabSize)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	wgX, wgY := params.Workgroups()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: unpacked},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, wgX, wgY, 1)

	return out, nil
}

// unpackEmbedTable expands the packed half-precision embedding table into
// a single-precision [V, H] buffer the F32 matmul kernel consumes,
// reusing the embedding-lookup kernel's 2x f16-unpack by treating every
// vocabulary row as its own lookup.
func (t *TiedHead) unpackEmbedTable(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameEmbeddingLookup)
	if err != nil {
		return nil, err
	}

	ids, err := pool.Acquire(t.VocabSize*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}
	idBytes := make([]byte, t.VocabSize*4)
	for i := uint64(0); i < t.VocabSize; i++ {
		idBytes[i*4] = byte(i)
		idBytes[i*4+1] = byte(i >> 8)
		idBytes[i*4+2] = byte(i >> 16)
		idBytes[i*4+3] = byte(i >> 24)
	}
	if err := ids.Write(ctx, 0, idBytes); err != nil {
		return nil, err
	}
	defer pool.Release(ids)

	out, err := pool.Acquire(t.VocabSize*t.HiddenSize*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.EmbeddingParams{VocabSize: uint32(t.VocabSize), HiddenSize: uint32(t.HiddenSize)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: ids},
		{Binding: 1, Buffer: t.EmbedTable},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(uint32(t.VocabSize)), 1, 1)

	return out, nil
}
