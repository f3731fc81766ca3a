// Package devicefake is an in-memory device.Device that executes the
// kernel package's documented WGSL semantics in plain Go. It exists only
// so _test.go files elsewhere in this module can exercise BitLinear,
// Attention, FFN, and Model forward passes without a real accelerator
// binding; production code never constructs one.
package devicefake

import (
	"context"
	"fmt"
	"sync"

	"github.com/m96-chan/0xBitNet-sub000/device"
)

// Device is the in-memory device.Device implementation.
type Device struct {
	mu     sync.Mutex
	lost   chan struct{}
	closed bool
}

// New returns a fresh fake accelerator with generous limits.
func New() *Device {
	return &Device{lost: make(chan struct{})}
}

func (d *Device) Name() string { return "devicefake" }

func (d *Device) Limits() device.Limits {
	return device.Limits{
		MaxBufferSize:                   1 << 34,
		MaxComputeWorkgroupsPerDim:      1 << 20,
		MaxStorageBuffersPerShaderStage: 16,
	}
}

func (d *Device) isLost() bool {
	select {
	case <-d.lost:
		return true
	default:
		return false
	}
}

// CreateBuffer allocates a zero-filled in-memory buffer of size bytes.
func (d *Device) CreateBuffer(size uint64, usage device.Usage) (device.Buffer, error) {
	if d.isLost() {
		return nil, device.ErrLost
	}
	return &Buffer{data: make([]byte, size), usage: usage}, nil
}

// CompilePipeline records label and entryPoint; wgsl is never parsed, since
// this device never runs the shader text, only the Go-side equivalent the
// dispatcher below selects by label.
func (d *Device) CompilePipeline(_ context.Context, label, _, entryPoint string) (device.ComputePipeline, error) {
	if d.isLost() {
		return nil, device.ErrLost
	}
	return &Pipeline{label: label, entryPoint: entryPoint}, nil
}

// NewCommandEncoder returns a recorder that replays dispatches in Submit.
func (d *Device) NewCommandEncoder() device.CommandEncoder {
	return &Encoder{dev: d}
}

// Lost returns the channel closed by Crash.
func (d *Device) Lost() <-chan struct{} { return d.lost }

// Crash marks the device lost, closing the Lost channel exactly once.
// Subsequent CreateBuffer, CompilePipeline and Encoder.Submit calls fail
// with device.ErrLost; Buffer.Read and Buffer.Write keep working. For
// driver-loss test scenarios.
func (d *Device) Crash() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.lost)
}

// Pipeline is the fake's ComputePipeline: a label the Encoder dispatches
// against and nothing else, since there is no real shader to compile.
type Pipeline struct {
	label      string
	entryPoint string
}

func (p *Pipeline) Label() string { return p.label }

// Buffer is the fake's in-memory device.Buffer.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	usage    device.Usage
	released bool
}

func (b *Buffer) Size() uint64      { return uint64(len(b.data)) }
func (b *Buffer) Usage() device.Usage { return b.usage }

func (b *Buffer) Read(_ context.Context, dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("devicefake: read of released buffer")
	}
	n := copy(dst, b.data)
	if n < len(dst) {
		return fmt.Errorf("devicefake: read: dst longer than buffer (%d > %d)", len(dst), len(b.data))
	}
	return nil
}

func (b *Buffer) Write(_ context.Context, off uint64, src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("devicefake: write to released buffer")
	}
	if off+uint64(len(src)) > uint64(len(b.data)) {
		return fmt.Errorf("devicefake: write out of bounds: off=%d len=%d size=%d", off, len(src), len(b.data))
	}
	copy(b.data[off:], src)
	return nil
}

// copyFrom copies size bytes from src starting at srcOff into b starting at
// dstOff, directly against the backing slices. It is the fake's analogue of
// a device-side buffer-to-buffer copy command: no Read/Write round trip.
func (b *Buffer) copyFrom(src *Buffer, srcOff uint64, dstOff, size uint64) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.released {
		return fmt.Errorf("devicefake: copy from released buffer")
	}
	if srcOff+size > uint64(len(src.data)) {
		return fmt.Errorf("devicefake: copy src out of bounds: off=%d len=%d size=%d", srcOff, size, len(src.data))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("devicefake: copy to released buffer")
	}
	if dstOff+size > uint64(len(b.data)) {
		return fmt.Errorf("devicefake: copy dst out of bounds: off=%d len=%d size=%d", dstOff, size, len(b.data))
	}

	copy(b.data[dstOff:dstOff+size], src.data[srcOff:srcOff+size])
	return nil
}

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.data = nil
}
