package bitnet

import "errors"

// Error kinds surfaced by the core, one sentinel per §7 of the design.
//
// Callers discriminate with errors.Is. A failure that falls into one of
// these kinds wraps the matching sentinel with additional context via
// fmt.Errorf's %w verb; other failures (opening a file, a seek, a network
// request) are returned with context but wrap none of them.
var (
	// ErrContainerInvalid covers a wrong magic number, a truncated buffer,
	// or an unrecognized metadata/tensor type tag encountered while
	// parsing a GGUF container. Fatal at load time.
	ErrContainerInvalid = errors.New("bitnet: invalid GGUF container")

	// ErrUnsupportedVersion is returned for any GGUF version other than 2
	// or 3. Fatal at load time.
	ErrUnsupportedVersion = errors.New("bitnet: unsupported GGUF version")

	// ErrMissingTensor is returned when a canonical tensor name required
	// by the model configuration is absent from the weight catalog after
	// name remapping. Fatal at model-build time.
	ErrMissingTensor = errors.New("bitnet: missing required tensor")

	// ErrAcceleratorUnavailable names the case where no suitable
	// device.Device could be obtained. Devices are supplied by the caller,
	// so no function in this module returns it.
	ErrAcceleratorUnavailable = errors.New("bitnet: no accelerator available")

	// ErrAcceleratorLost names a device loss (power management, driver
	// reset, ...). No function in this module returns it: the core keeps no
	// lost flag, and calls made after a loss return whatever error the
	// device itself reports (device.ErrLost for the in-memory fake).
	ErrAcceleratorLost = errors.New("bitnet: accelerator device lost")

	// ErrCancelled is the terminal condition surfaced to a generation
	// stream when its context is cancelled between decode iterations. Not
	// an error in the pathological sense — callers should treat it as a
	// normal stop.
	ErrCancelled = errors.New("bitnet: generation cancelled")

	// ErrConfigurationInvalid covers any derived ModelConfig that fails
	// its own invariants (e.g. H not divisible by Hq). Fatal at
	// model-build time.
	ErrConfigurationInvalid = errors.New("bitnet: invalid model configuration")
)
