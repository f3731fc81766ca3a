package kernel

import (
	"bytes"
	"encoding/binary"
)

// WorkgroupSize is the fixed local size every 1D kernel in this set
// declares via @workgroup_size(256).
const WorkgroupSize = 256

// Tile is the output tile edge the GEMM kernel uses (the F32 matmul
// kernel covers 16x16 outputs per workgroup instead).
const Tile = 64

// Dispatch1D returns the workgroup count needed to cover n elements with
// WorkgroupSize threads per group.
func Dispatch1D(n uint32) uint32 {
	return (n + WorkgroupSize - 1) / WorkgroupSize
}

// Dispatch2D returns the workgroup counts needed to tile an rows x cols
// output at edge tile.
func Dispatch2D(rows, cols, tile uint32) (wgX, wgY uint32) {
	return (cols + tile - 1) / tile, (rows + tile - 1) / tile
}

// encode packs fields in declaration order as little-endian 4-byte values.
// Every kernel Params struct in this package is scalar-only (u32/f32), so
// this matches the WGSL uniform address space layout without padding.
func encode(fields ...any) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		switch v := f.(type) {
		case uint32:
			_ = binary.Write(&buf, binary.LittleEndian, v)
		case float32:
			_ = binary.Write(&buf, binary.LittleEndian, v)
		default:
			panic("kernel: encode: unsupported field type")
		}
	}
	return buf.Bytes()
}

// EmbeddingParams mirrors shaders/embedding.wgsl's Params struct.
type EmbeddingParams struct {
	VocabSize  uint32
	HiddenSize uint32
}

func (p EmbeddingParams) Encode() []byte { return encode(p.VocabSize, p.HiddenSize) }

// Workgroups returns the dispatch size for n token rows of hiddenSize each.
func (p EmbeddingParams) Workgroups(n uint32) uint32 {
	return Dispatch1D(n * p.HiddenSize)
}

// RMSNormParams mirrors shaders/rmsnorm.wgsl's Params struct.
type RMSNormParams struct {
	Rows       uint32
	HiddenSize uint32
	Epsilon    float32
}

func (p RMSNormParams) Encode() []byte { return encode(p.Rows, p.HiddenSize, p.Epsilon) }

// Workgroups returns one workgroup per row.
func (p RMSNormParams) Workgroups() uint32 { return p.Rows }

// QuantizeAbsmaxParams mirrors shaders/quantize_absmax.wgsl's Params struct.
type QuantizeAbsmaxParams struct {
	Rows       uint32
	HiddenSize uint32
}

func (p QuantizeAbsmaxParams) Encode() []byte { return encode(p.Rows, p.HiddenSize) }

func (p QuantizeAbsmaxParams) Workgroups() uint32 { return p.Rows }

// TernaryGEMVParams mirrors shaders/ternary_gemv.wgsl's Params struct.
// InputScale is bound separately (its own uniform slot in the shader).
type TernaryGEMVParams struct {
	Kin  uint32
	Kout uint32
}

func (p TernaryGEMVParams) Encode() []byte { return encode(p.Kin, p.Kout) }

func (p TernaryGEMVParams) Workgroups() uint32 { return p.Kout }

// TernaryGEMMParams mirrors shaders/ternary_gemm.wgsl's Params struct.
type TernaryGEMMParams struct {
	N    uint32
	Kin  uint32
	Kout uint32
}

func (p TernaryGEMMParams) Encode() []byte { return encode(p.N, p.Kin, p.Kout) }

func (p TernaryGEMMParams) Workgroups() (wgX, wgY uint32) {
	return Dispatch2D(p.Kout, p.N, Tile)
}

// RoPEParams mirrors shaders/rope.wgsl's Params struct.
type RoPEParams struct {
	N         uint32
	Heads     uint32
	HeadDim   uint32
	CachePos  uint32
	ThetaBase float32
}

func (p RoPEParams) Encode() []byte {
	return encode(p.N, p.Heads, p.HeadDim, p.CachePos, p.ThetaBase)
}

func (p RoPEParams) Workgroups() uint32 {
	return Dispatch1D(p.N * p.Heads * (p.HeadDim / 2))
}

// AttentionScoreParams mirrors shaders/attention_score.wgsl's Params struct.
type AttentionScoreParams struct {
	N      uint32
	Hq     uint32
	Hkv    uint32
	D      uint32
	S      uint32
	TTotal uint32
}

func (p AttentionScoreParams) Encode() []byte {
	return encode(p.N, p.Hq, p.Hkv, p.D, p.S, p.TTotal)
}

func (p AttentionScoreParams) Workgroups() uint32 {
	return Dispatch1D(p.Hq * p.N * p.TTotal)
}

// SoftmaxParams mirrors shaders/softmax.wgsl's Params struct.
type SoftmaxParams struct {
	Rows   uint32
	RowLen uint32
}

func (p SoftmaxParams) Encode() []byte { return encode(p.Rows, p.RowLen) }

func (p SoftmaxParams) Workgroups() uint32 { return p.Rows }

// AttentionValueParams mirrors shaders/attention_value.wgsl's Params struct.
type AttentionValueParams struct {
	N      uint32
	Hq     uint32
	Hkv    uint32
	D      uint32
	TTotal uint32
}

func (p AttentionValueParams) Encode() []byte {
	return encode(p.N, p.Hq, p.Hkv, p.D, p.TTotal)
}

func (p AttentionValueParams) Workgroups() uint32 {
	return Dispatch1D(p.N * p.Hq * p.D)
}

// ActivationKind selects the nonlinearity the activation kernel applies.
type ActivationKind uint32

// Supported activation kinds.
const (
	ActivationSquaredReLU ActivationKind = 0
	ActivationSiLU        ActivationKind = 1
)

// ActivationParams mirrors shaders/activation.wgsl's Params struct.
type ActivationParams struct {
	Len   uint32
	Kind  ActivationKind
	Gated bool
}

func (p ActivationParams) Encode() []byte {
	gated := uint32(0)
	if p.Gated {
		gated = 1
	}
	return encode(p.Len, uint32(p.Kind), gated)
}

func (p ActivationParams) Workgroups() uint32 { return Dispatch1D(p.Len) }

// ElementwiseAddParams mirrors shaders/elementwise_add.wgsl's Params struct.
type ElementwiseAddParams struct {
	Len uint32
}

func (p ElementwiseAddParams) Encode() []byte { return encode(p.Len) }

func (p ElementwiseAddParams) Workgroups() uint32 { return Dispatch1D(p.Len) }

// MatmulF32Params mirrors shaders/matmul_f32.wgsl's Params struct.
type MatmulF32Params struct {
	N uint32
	K uint32
	O uint32
}

func (p MatmulF32Params) Encode() []byte { return encode(p.N, p.K, p.O) }

func (p MatmulF32Params) Workgroups() (wgX, wgY uint32) {
	return Dispatch2D(p.N, p.O, 16)
}
