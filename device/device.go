// Package device models the slice of a WebGPU-shaped compute API this
// engine needs: buffers, shader modules, compute pipelines, and a command
// encoder to bind and dispatch them. It is a pure Go interface layer — no
// binding to wgpu-native or any platform graphics stack lives here. A real
// accelerator backend, and the in-memory internal/devicefake test double,
// both satisfy the same Device interface.
package device

import (
	"context"
	"errors"
)

// Usage flags a Buffer may be created with, mirrored from the WebGPU
// buffer usage bitset.
type Usage uint32

// Usage bit constants.
const (
	UsageMapRead Usage = 1 << iota
	UsageMapWrite
	UsageCopySrc
	UsageCopyDst
	UsageStorage
	UsageUniform
)

// Has reports whether u contains every bit set in other.
func (u Usage) Has(other Usage) bool {
	return u&other == other
}

// Limits describes the device-reported resource ceilings a caller must
// respect when sizing buffers and workgroups.
type Limits struct {
	MaxBufferSize             uint64
	MaxComputeWorkgroupsPerDim uint32
	MaxStorageBuffersPerShaderStage uint32
}

// Buffer is a device-resident allocation. Buffers are not goroutine-safe;
// callers serialize access through a single CommandEncoder at a time.
type Buffer interface {
	Size() uint64
	Usage() Usage
	// Read copies the buffer's contents into dst, blocking until any
	// in-flight writes targeting it have completed.
	Read(ctx context.Context, dst []byte) error
	// Write copies src into the buffer starting at byte offset off.
	Write(ctx context.Context, off uint64, src []byte) error
	// Release returns the buffer's storage to the device. Using a Buffer
	// after Release is a programming error.
	Release()
}

// ComputePipeline is a compiled shader entry point bound to a fixed bind
// group layout.
type ComputePipeline interface {
	Label() string
}

// BindGroupEntry binds one resource slot of a ComputePipeline's bind group
// layout to a Buffer.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
}

// CommandEncoder records a sequence of dispatches before they are submitted
// to the device queue as one unit of work.
type CommandEncoder interface {
	// Dispatch binds entries to pipeline and enqueues a compute pass with
	// the given workgroup counts along each dimension.
	Dispatch(pipeline ComputePipeline, entries []BindGroupEntry, wgX, wgY, wgZ uint32)
	// CopyBufferToBuffer enqueues a device-side copy of size bytes from src
	// starting at srcOff into dst starting at dstOff. The copy runs in
	// encoded order relative to any Dispatch calls recorded on the same
	// encoder; it never touches the host, so it costs no CPU/GPU round
	// trip the way a Buffer.Read followed by a Buffer.Write would.
	CopyBufferToBuffer(src Buffer, srcOff uint64, dst Buffer, dstOff uint64, size uint64)
	// Submit flushes every recorded dispatch and copy and blocks until the
	// device reports completion or ctx is cancelled.
	Submit(ctx context.Context) error
}

// Device is the accelerator handle the rest of the engine programs
// against. Implementations are responsible for their own internal
// synchronization; callers may invoke CreateBuffer and CompilePipeline
// concurrently, but must serialize encoder use.
type Device interface {
	Name() string
	Limits() Limits

	CreateBuffer(size uint64, usage Usage) (Buffer, error)
	// CompilePipeline compiles wgsl's entryPoint into a ComputePipeline,
	// or returns the cached result of an identical prior call.
	CompilePipeline(ctx context.Context, label, wgsl, entryPoint string) (ComputePipeline, error)

	NewCommandEncoder() CommandEncoder

	// Lost returns a channel that is closed when the device is no longer
	// usable (driver reset, power event, ...). Every call made after the
	// channel closes must fail with ErrLost.
	Lost() <-chan struct{}
}

// ErrLost is returned by any Device/Buffer/CommandEncoder method invoked
// after the device has reported loss.
var ErrLost = errors.New("device: lost")
