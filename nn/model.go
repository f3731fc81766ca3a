package nn

import (
	"context"
	"fmt"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// Model is the assembled forward-pass driver: an embedding table, L
// transformer blocks, a final norm, and an LM head. Concurrent Forward
// calls on the same Model are undefined behavior, matching the one
// outstanding command-encoder contract the rest of the core relies on.
type Model struct {
	Config bitnet.ModelConfig

	EmbedTable device.Buffer // packed f16 pairs, [V, H]
	Blocks     []*Block
	FinalNorm  device.Buffer
	Head       *Head

	Dev   device.Device
	Pool  *device.BufferPool
	Pipes *Pipelines
}

// Forward runs one prefill or decode step over tokenIDs (length N),
// returning a [1, V] f32 logits buffer for the next-token sample. Every
// buffer movement Forward issues — token id uploads, the final-row slice,
// the KV cache append, the GEMV input-scale extraction — is either a
// Buffer.Write or an enc-encoded device-side copy; Forward never reads a
// device buffer back to the host, so it never blocks waiting on the
// device. Callers submit the encoder once this returns.
func (m *Model) Forward(ctx context.Context, enc device.CommandEncoder, tokenIDs []uint32) (device.Buffer, error) {
	n := uint64(len(tokenIDs))
	if n == 0 {
		return nil, fmt.Errorf("nn: forward called with zero tokens")
	}

	hidden, err := m.dispatchEmbedding(ctx, enc, tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("model embedding: %w", err)
	}

	for i, blk := range m.Blocks {
		next, err := blk.Forward(ctx, enc, m.Pool, m.Pipes, hidden, n)
		if err != nil {
			return nil, fmt.Errorf("model block %d: %w", i, err)
		}
		m.Pool.Release(hidden)
		hidden = next
	}

	normed, err := m.dispatchFinalNorm(ctx, enc, hidden, n)
	if err != nil {
		return nil, fmt.Errorf("model final norm: %w", err)
	}
	m.Pool.Release(hidden)

	lastToken := normed
	if n > 1 {
		lastToken, err = m.sliceLastToken(ctx, enc, normed, n)
		if err != nil {
			return nil, fmt.Errorf("model last-token slice: %w", err)
		}
		m.Pool.Release(normed)
	}

	logits, err := m.Head.Forward(ctx, enc, m.Pool, m.Pipes, lastToken)
	if err != nil {
		return nil, fmt.Errorf("model head: %w", err)
	}
	m.Pool.Release(lastToken)

	return logits, nil
}

func (m *Model) dispatchEmbedding(ctx context.Context, enc device.CommandEncoder, tokenIDs []uint32) (device.Buffer, error) {
	pipeline, err := m.Pipes.Get(ctx, kernel.NameEmbeddingLookup)
	if err != nil {
		return nil, err
	}

	n := uint64(len(tokenIDs))
	idBytes := make([]byte, n*4)
	for i, id := range tokenIDs {
		idBytes[i*4] = byte(id)
		idBytes[i*4+1] = byte(id >> 8)
		idBytes[i*4+2] = byte(id >> 16)
		idBytes[i*4+3] = byte(id >> 24)
	}
	ids, err := m.Pool.Acquire(n*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}
	if err := ids.Write(ctx, 0, idBytes); err != nil {
		return nil, err
	}
	defer m.Pool.Release(ids)

	out, err := m.Pool.Acquire(n*m.Config.HiddenSize*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}

	params := kernel.EmbeddingParams{VocabSize: uint32(m.Config.VocabSize), HiddenSize: uint32(m.Config.HiddenSize)}
	paramsBuf, err := newUniform(ctx, m.Pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer m.Pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: ids},
		{Binding: 1, Buffer: m.EmbedTable},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(uint32(n)), 1, 1)

	return out, nil
}

func (m *Model) dispatchFinalNorm(ctx context.Context, enc device.CommandEncoder, x device.Buffer, n uint64) (device.Buffer, error) {
	pipeline, err := m.Pipes.Get(ctx, kernel.NameRMSNorm)
	if err != nil {
		return nil, err
	}

	out, err := m.Pool.Acquire(n*m.Config.HiddenSize*4, device.UsageStorage|device.UsageCopyDst|device.UsageCopySrc)
	if err != nil {
		return nil, err
	}

	params := kernel.RMSNormParams{Rows: uint32(n), HiddenSize: uint32(m.Config.HiddenSize), Epsilon: m.Config.RMSNormEpsilon}
	paramsBuf, err := newUniform(ctx, m.Pool, params.Encode())
	if err != nil {
		return nil, err
	}
	defer m.Pool.Release(paramsBuf)

	enc.Dispatch(pipeline, []device.BindGroupEntry{
		{Binding: 0, Buffer: x},
		{Binding: 1, Buffer: m.FinalNorm},
		{Binding: 2, Buffer: out},
		{Binding: 3, Buffer: paramsBuf},
	}, params.Workgroups(), 1, 1)

	return out, nil
}

// sliceLastToken encodes a device-side copy of row N-1 of normed (shape
// [N, H]) into a fresh size-H buffer, so an oversized pooled buffer from a
// prefill step never aliases into the next decode step's head dispatch.
func (m *Model) sliceLastToken(_ context.Context, enc device.CommandEncoder, normed device.Buffer, n uint64) (device.Buffer, error) {
	h := m.Config.HiddenSize
	lastOff := (n - 1) * h * 4

	out, err := m.Pool.Acquire(h*4, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(normed, lastOff, out, 0, h*4)
	return out, nil
}
