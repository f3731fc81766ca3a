package nn

import (
	"context"
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// FFN is the feed-forward sub-layer. Gate is nil for the ungated variant;
// Act selects squared-ReLU or SiLU as the gate (or sole) nonlinearity.
// down_proj carries the pre-quantization sub-norm, if any; up_proj and
// gate_proj never do, since they consume the block's post-attention norm
// applied outside the FFN.
type FFN struct {
	Up, Down *BitLinear
	Gate     *BitLinear // nil for the ungated variant
	Act      kernel.ActivationKind
}

// Forward computes down_proj(act(up_proj(x))) or, when Gate is set,
// down_proj(act(gate_proj(x)) * up_proj(x)).
func (f *FFN) Forward(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, x device.Buffer, n uint64) (device.Buffer, error) {
	up, err := f.Up.Forward(ctx, enc, pool, pipes, x, n)
	if err != nil {
		return nil, fmt.Errorf("ffn up_proj: %w", err)
	}

	var activated device.Buffer
	if f.Gate != nil {
		gate, err := f.Gate.Forward(ctx, enc, pool, pipes, x, n)
		if err != nil {
			return nil, fmt.Errorf("ffn gate_proj: %w", err)
		}
		activated, err = f.dispatchActivation(ctx, enc, pool, pipes, up, gate, n*f.Up.Kout, true)
		pool.Release(gate)
		if err != nil {
			return nil, fmt.Errorf("ffn activation (gated): %w", err)
		}
	} else {
		var err error
		activated, err = f.dispatchActivation(ctx, enc, pool, pipes, up, nil, n*f.Up.Kout, false)
		if err != nil {
			return nil, fmt.Errorf("ffn activation: %w", err)
		}
	}
	pool.Release(up)

	out, err := f.Down.Forward(ctx, enc, pool, pipes, activated, n)
	if err != nil {
		return nil, fmt.Errorf("ffn down_proj: %w", err)
	}
	pool.Release(activated)

	return out, nil
}

func (f *FFN) dispatchActivation(ctx context.Context, enc device.CommandEncoder, pool *device.BufferPool, pipes *Pipelines, up, gate device.Buffer, length uint64, gated bool) (device.Buffer, error) {
	pipeline, err := pipes.Get(ctx, kernel.NameActivation)
	if err != nil {
		return nil, err
	}

	out, err := pool.Acquire(length*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.ActivationParams{Len: uint32(length), Kind: f.Act, Gated: gated}
	paramsBuf, err := newUniform(ctx, pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer pool.Release(paramsBuf)

	gateBuf := gate
	if gateBuf == nil {
		// The shader requires a bound storage buffer even when unused;
		// a small placeholder keeps the binding layout uniform
		// across gated and ungated dispatches.
		zero, err := pool.Acquire(4, device.UsageStorage)
		if err != nil {
			return nil, err
		}
		defer pool.Release(zero)
		gateBuf = zero
	}

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: up},
		{Binding: 1, Buffer: gateBuf},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}
