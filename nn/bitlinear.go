// Package nn composes the device kernels in package kernel into the
// transformer layers spec.md §4.5-§4.9 describe: BitLinear, grouped-query
// attention with RoPE, the feed-forward variants, the pre-norm residual
// block, and the model driver that walks all of them for one forward pass.
// Every type here is a dispatch planner: it records commands on a
// device.CommandEncoder and never computes on the host.
package nn

import (
	"context"
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// Pipelines bundles the compiled kernel.Name pipelines a forward pass
// needs, resolved once at model build time through a device.PipelineCache
// so every layer shares the same compiled programs.
type Pipelines struct {
	cache *device.PipelineCache
	dev   device.Device
}

// NewPipelines wraps a device.PipelineCache for kernel compilation.
func NewPipelines(dev device.Device, cache *device.PipelineCache) *Pipelines {
	return &Pipelines{dev: dev, cache: cache}
}

// Get compiles (if needed) and returns the pipeline for name.
func (p *Pipelines) Get(ctx context.Context, name kernel.Name) (device.ComputePipeline, error) {
	src, err := kernel.Source(name)
	if err != nil {
		return nil, err
	}
	return p.cache.Get(ctx, string(name), src, kernel.EntryPoint(name))
}

// BitLinear is a ternary quantized linear layer: optional RMSNorm,
// absmax int8 quantization, ternary matmul (GEMV for N=1, GEMM for N>1),
// implemented entirely as device dispatches.
type BitLinear struct {
	Kin, Kout uint64

	// Weight is the I2_S-packed [Kout, Kin] weight, Kin/16 u32 words per
	// row.
	Weight device.Buffer
	// RowScales is the [Kout] per-row f32 scale.
	RowScales device.Buffer
	// PreNorm is the optional [Kin] RMSNorm weight applied before
	// quantization. Nil means the input arrives already normalized.
	PreNorm device.Buffer
	Epsilon float32
}

// Forward runs BitLinear's pipeline over x (N rows of Kin activations),
// recording dispatches on enc and returning an [N, Kout] f32 output buffer
// acquired from pool. The caller owns the returned buffer and must release
// it back to pool when done.
func (l *BitLinear) Forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (device.Buffer, error) {
	if l.Kin == 0 || l.Kout == 0 {
		return nil, fmt.Errorf("bitlinear: uninitialized layer dimensions")
	}

	normed := x
	if l.PreNorm != nil {
		out, err := l.dispatchRMSNorm(ctx, enc, pool, pipes, x, n)
		if err != nil {
			return nil, fmt.Errorf("bitlinear rmsnorm: %w", err)
		}
		normed = out
	}

	codes, scales, err := l.dispatchQuantize(ctx, enc, pool, pipes, normed, n)
	if err != nil {
		return nil, fmt.Errorf("bitlinear quantize: %w", err)
	}
	if normed != x {
		pool.Release(normed)
	}

	out, err := pool.Acquire(n*l.Kout*4, device.UsageStorage|device.UsageCopyDst|device.UsageCopySrc)
	if err != nil {
		return nil, fmt.Errorf("bitlinear acquire output: %w", err)
	}

	if n == 1 {
		if err := l.dispatchGEMV(ctx, enc, pool, pipes, codes, scales, out); err != nil {
			return nil, fmt.Errorf("bitlinear gemv: %w", err)
		}
	} else {
		if err := l.dispatchGEMM(ctx, enc, pool, pipes, codes, scales, out, n); err != nil {
			return nil, fmt.Errorf("bitlinear gemm: %w", err)
		}
	}

	pool.Release(codes)
	pool.Release(scales)
	return out, nil
}

func (l *BitLinear) dispatchRMSNorm(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameRMSNorm)
	if err != nil {
		return nil, err
	}

	out, err := pool.Acquire(n*l.Kin*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.RMSNormParams{Rows: uint32(n), HiddenSize: uint32(l.Kin), Epsilon: l.Epsilon}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: l.PreNorm},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}

func (l *BitLinear) dispatchQuantize(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (codes, scales device.Buffer, err error) {
	pipeline, err := pipes.Get(ctx, kernel.NameQuantizeAbsmax)
	if err != nil {
		return nil, nil, err
	}

	codes, err = pool.Acquire(n*l.Kin*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, nil, err
	}
	scales, err = pool.Acquire(n*4, device.UsageStorage|device.UsageCopyDst|device.UsageCopySrc)
	if err != nil {
		return nil, nil, err
	}

	params := kernel.QuantizeAbsmaxParams{Rows: uint32(n), HiddenSize: uint32(l.Kin)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: codes},
		{Binding: 2, Buffer: scales},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return codes, scales, nil
}

func (l *BitLinear) dispatchGEMV(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, codes, scales, out device.Buffer) error {
	pipeline, err := pipes.Get(ctx, kernel.NameTernaryGEMV)
	if err != nil {
		return err
	}

	params := kernel.TernaryGEMVParams{Kin: uint32(l.Kin), Kout: uint32(l.Kout)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return err
	}
	defer pool.Release(paramsBuf)

	inputScaleBuf, err := newUniformFromScaleBuffer(enc, pool, scales)
	if err != nil {
		return err
	}
	defer pool.Release(inputScaleBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: l.Weight},
		{Binding: 1, Buffer: l.RowScales},
		{Binding: 2, Buffer: codes},
		{Binding: 3, Buffer: inputScaleBuf},
		{Binding: 4, Buffer: out},
		{Binding: 5, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return nil
}

func (l *BitLinear) dispatchGEMM(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, codes, scales, out device.Buffer, n uint64) error {
	pipeline, err := pipes.Get(ctx, kernel.NameTernaryGEMM)
	if err != nil {
		return err
	}

	params := kernel.TernaryGEMMParams{N: uint32(n), Kin: uint32(l.Kin), Kout: uint32(l.Kout)}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return err
	}
	defer pool.Release(paramsBuf)

	wgX, wgY := params.Workgroups()
	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: l.Weight},
		{Binding: 1, Buffer: l.RowScales},
		{Binding: 2, Buffer: codes},
		{Binding: 3, Buffer: scales},
		{Binding: 4, Buffer: out},
		{Binding: 5, Buffer: paramsBuf},
	}, wgX, wgY, 1)

	return nil
}

// newUniform acquires a small uniform buffer from pool and writes data
// into it, ready to bind at the next dispatch.
func newUniform(ctx context.Context, pool *device.BufferPool, data []byte) (device.Buffer, error) {
	buf, err := pool.Acquire(uint64(len(data)), device.UsageUniform|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(ctx, 0, data); err != nil {
		pool.Release(buf)
		return nil, err
	}
	return buf, nil
}

// newUniformFromScaleBuffer encodes a device-side copy of a single-row
// [1]f32 scale storage buffer's value into a fresh uniform binding, for the
// GEMV path where input_scale is one value rather than a per-row array.
// The copy is recorded on enc, not read through the host.
func newUniformFromScaleBuffer(enc device.CommandEncoder, pool *device.BufferPool, scales device.Buffer) (device.Buffer, error) {
	buf, err := pool.Acquire(4, device.UsageUniform|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(scales, 0, buf, 0, 4)
	return buf, nil
}
