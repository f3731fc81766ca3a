package nn

import (
	"context"
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// Block is one pre-norm transformer layer:
//
//	h1 = x + Attention(RMSNorm_input(x))
//	y  = h1 + FFN(RMSNorm_post(h1))
//
// Both residual adds are single-precision elementwise.
type Block struct {
	InputNorm, PostAttentionNorm device.Buffer // RMSNorm weights, [H]
	Epsilon                      float32
	HiddenSize                   uint64

	Attn *Attention
	FFN  *FFN
}

// Forward runs the block over x (N rows of HiddenSize activations) and
// advances Attn.Cache's position by n once the layer is done, matching
// the contract that cache position only moves after every dispatch that
// reads the pre-advance state has been recorded.
func (b *Block) Forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (device.Buffer, error) {
	normedIn, err := b.dispatchNorm(ctx, enc, pool, pipes, x, n, b.InputNorm)
	if err != nil {
		return nil, fmt.Errorf("block input norm: %w", err)
	}

	attnOut, err := b.Attn.Forward(ctx, enc, pool, pipes, normedIn, n)
	if err != nil {
		return nil, fmt.Errorf("block attention: %w", err)
	}
	pool.Release(normedIn)

	h1, err := dispatchAdd(ctx, enc, pool, pipes, x, attnOut, n*b.HiddenSize)
	if err != nil {
		return nil, fmt.Errorf("block residual 1: %w", err)
	}
	pool.Release(attnOut)

	normedPost, err := b.dispatchNorm(ctx, enc, pool, pipes, h1, n, b.PostAttentionNorm)
	if err != nil {
		return nil, fmt.Errorf("block post-attention norm: %w", err)
	}

	ffnOut, err := b.FFN.Forward(ctx, enc, pool, pipes, normedPost, n)
	if err != nil {
		return nil, fmt.Errorf("block ffn: %w", err)
	}
	pool.Release(normedPost)

	y, err := dispatchAdd(ctx, enc, pool, pipes, h1, ffnOut, n*b.HiddenSize)
	if err != nil {
		return nil, fmt.Errorf("block residual 2: %w", err)
	}
	pool.Release(h1)
	pool.Release(ffnOut)

	b.Attn.Cache.Advance(n)

	return y, nil
}

func (b *Block) dispatchNorm(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64, weight device.Buffer) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameRMSNorm)
	if err != nil {
		return nil, err
	}

	out, err := pool.Acquire(n*b.HiddenSize*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.RMSNormParams{Rows: uint32(n), HiddenSize: uint32(b.HiddenSize), Epsilon: b.Epsilon}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: weight},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}

// dispatchAdd computes out = a + b elementwise over length f32 values.
func dispatchAdd(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, a, b device.Buffer, length uint64) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameElementwiseAdd)
	if err != nil {
		return nil, err
	}

	out, err := pool.Acquire(length*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.ElementwiseAddParams{Len: uint32(length)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: a},
		{Binding: 1, Buffer: b},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}
