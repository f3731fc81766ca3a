package nn

import (
	"context"
	"fmt"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// Attention is one layer's grouped-query attention with rotary position
// embeddings and an incremental KV cache. Hq query heads share Hkv key/value
// heads in groups of g = Hq/Hkv.
type Attention struct {
	Q, K, V, O *BitLinear

	Hq, Hkv, HeadDim uint64
	ThetaBase        float32

	Cache *bitnet.KVCache
}

// Forward computes attention over x (N rows of hidden-size activations,
// hidden size = Hq*HeadDim), appending the new K/V to a.Cache at its
// current position. The caller advances a.Cache's position once every
// layer has finished this step, per the block-level ordering contract.
func (a *Attention) Forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (device.Buffer, error) {
	if a.Hkv == 0 || a.Hq%a.Hkv != 0 {
		return nil, fmt.Errorf("attention: Hq=%d not divisible by Hkv=%d", a.Hq, a.Hkv)
	}

	q, err := a.Q.Forward(ctx, enc, pool, pipes, x, n)
	if err != nil {
		return nil, fmt.Errorf("attention q_proj: %w", err)
	}
	kNew, err := a.K.Forward(ctx, enc, pool, pipes, x, n)
	if err != nil {
		return nil, fmt.Errorf("attention k_proj: %w", err)
	}
	vNew, err := a.V.Forward(ctx, enc, pool, pipes, x, n)
	if err != nil {
		return nil, fmt.Errorf("attention v_proj: %w", err)
	}

	s := a.Cache.Position()

	if err := a.applyRoPE(ctx, enc, pool, pipes, q, n, a.Hq, s); err != nil {
		return nil, fmt.Errorf("attention rope(q): %w", err)
	}
	if err := a.applyRoPE(ctx, enc, pool, pipes, kNew, n, a.Hkv, s); err != nil {
		return nil, fmt.Errorf("attention rope(k): %w", err)
	}

	if err := a.Cache.EnsureCapacity(n); err != nil {
		return nil, err
	}
	appendToCache(enc, a.Cache.Keys(), kNew, a.Cache.AppendOffset(), n*a.Hkv*a.HeadDim*4)
	appendToCache(enc, a.Cache.Values(), vNew, a.Cache.AppendOffset(), n*a.Hkv*a.HeadDim*4)
	pool.Release(kNew)
	pool.Release(vNew)

	tTotal := s + n
	scores, err := a.dispatchScore(ctx, enc, pool, pipes, q, tTotal, n, s)
	if err != nil {
		return nil, fmt.Errorf("attention score: %w", err)
	}
	pool.Release(q)

	if err := a.dispatchSoftmax(ctx, enc, pool, pipes, scores, a.Hq*n, tTotal); err != nil {
		return nil, fmt.Errorf("attention softmax: %w", err)
	}

	ctxBuf, err := a.dispatchContext(ctx, enc, pool, pipes, scores, n, tTotal)
	if err != nil {
		return nil, fmt.Errorf("attention context: %w", err)
	}
	pool.Release(scores)

	out, err := a.O.Forward(ctx, enc, pool, pipes, ctxBuf, n)
	if err != nil {
		return nil, fmt.Errorf("attention o_proj: %w", err)
	}
	pool.Release(ctxBuf)

	return out, nil
}

func (a *Attention) applyRoPE(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n, heads, cachePos uint64) error {
	pipeline, err := pipes.Get(ctx, kernel.NameRoPE)
	if err != nil {
		return err
	}

	params := kernel.RoPEParams{
		N: uint32(n), Heads: uint32(heads), HeadDim: uint32(a.HeadDim),
		CachePos: uint32(cachePos), ThetaBase: a.ThetaBase,
	}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return nil
}

// appendToCache encodes a device-side copy of newRows (N rows of
// Hkv*HeadDim f32 values) into cache at byte offset off. Encoded before any
// score dispatch that reads it, and never blocks on the host.
func appendToCache(enc device.CommandEncoder, cache, newRows device.Buffer, off, size uint64) {
	enc.CopyBufferToBuffer(newRows, 0, cache, off, size)
}

func (a *Attention) dispatchScore(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, q device.Buffer, tTotal, n, s uint64) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameAttentionScore)
	if err != nil {
		return nil, err
	}

	scores, err := pool.Acquire(a.Hq*n*tTotal*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.AttentionScoreParams{
		N: uint32(n), Hq: uint32(a.Hq), Hkv: uint32(a.Hkv), D: uint32(a.HeadDim),
		S: uint32(s), TTotal: uint32(tTotal),
	}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: q},
		{Binding: 1, Buffer: a.Cache.Keys()},
		{Binding: 2, Buffer: scores},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return scores, nil
}

func (a *Attention) dispatchSoftmax(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, scores device.Buffer, rows, rowLen uint64) error {
	pipeline, err := pipes.Get(ctx, kernel.NameSoftmax)
	if err != nil {
		return err
	}

	params := kernel.SoftmaxParams{Rows: uint32(rows), RowLen: uint32(rowLen)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: scores},
		{Binding: 1, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return nil
}

func (a *Attention) dispatchContext(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, scores device.Buffer, n, tTotal uint64) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameAttentionValue)
	if err != nil {
		return nil, err
	}

	out, err := pool.Acquire(n*a.Hq*a.HeadDim*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.AttentionValueParams{
		N: uint32(n), Hq: uint32(a.Hq), Hkv: uint32(a.Hkv), D: uint32(a.HeadDim), TTotal: uint32(tTotal),
	}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: scores},
		{Binding: 1, Buffer: a.Cache.Values()},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}
