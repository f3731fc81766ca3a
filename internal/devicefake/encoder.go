package devicefake

import (
	"context"
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
)

type recordedDispatch struct {
	label   string
	entries []device.BindGroupEntry
}

type recordedCopy struct {
	src, dst       *Buffer
	srcOff, dstOff uint64
	size           uint64
}

// recordedOp is one encoded unit of work: exactly one of dispatch or copy is
// set, and Submit replays them in encoding order.
type recordedOp struct {
	dispatch *recordedDispatch
	copy     *recordedCopy
}

// Encoder records dispatches and copies and executes them in order on
// Submit, matching the real device's "one unit of work per encoder"
// contract.
type Encoder struct {
	dev *Device
	ops []recordedOp
}

func (e *Encoder) Dispatch(pipeline device.ComputePipeline, entries []device.BindGroupEntry, _, _, _ uint32) {
	e.ops = append(e.ops, recordedOp{dispatch: &recordedDispatch{label: pipeline.Label(), entries: entries}})
}

// CopyBufferToBuffer records a device-side copy from src to dst, executed
// in encoded order alongside this encoder's dispatches at Submit time.
func (e *Encoder) CopyBufferToBuffer(src device.Buffer, srcOff uint64, dst device.Buffer, dstOff uint64, size uint64) {
	e.ops = append(e.ops, recordedOp{copy: &recordedCopy{
		src: src.(*Buffer), srcOff: srcOff,
		dst: dst.(*Buffer), dstOff: dstOff,
		size: size,
	}})
}

func (e *Encoder) Submit(ctx context.Context) error {
	if e.dev.isLost() {
		return device.ErrLost
	}
	for _, op := range e.ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case op.dispatch != nil:
			if err := runKernel(ctx, op.dispatch.label, op.dispatch.entries); err != nil {
				return fmt.Errorf("devicefake: dispatch %s: %w", op.dispatch.label, err)
			}
		case op.copy != nil:
			c := op.copy
			if err := c.dst.copyFrom(c.src, c.srcOff, c.dstOff, c.size); err != nil {
				return fmt.Errorf("devicefake: copy: %w", err)
			}
		}
	}
	e.ops = nil
	return nil
}
