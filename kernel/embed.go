// Package kernel holds the WGSL compute shader sources dispatched by the
// nn package and the host-side helpers that compute their binding layouts
// and workgroup counts. No shader is compiled here; compilation is the
// device.Device implementation's job, memoized by device.PipelineCache.
package kernel

import "embed"

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// Name identifies one of the fixed shader programs by its shader_key, the
// same string used as the first component of a pipeline cache key.
type Name string

// The full compute kernel set.
const (
	NameEmbeddingLookup Name = "embedding_lookup"
	NameRMSNorm         Name = "rmsnorm"
	NameQuantizeAbsmax  Name = "quantize_absmax"
	NameTernaryGEMV     Name = "ternary_gemv"
	NameTernaryGEMM     Name = "ternary_gemm"
	NameRoPE            Name = "rope"
	NameAttentionScore  Name = "attention_score"
	NameSoftmax         Name = "softmax"
	NameAttentionValue  Name = "attention_value"
	NameActivation      Name = "activation"
	NameElementwiseAdd  Name = "elementwise_add"
	NameMatmulF32       Name = "matmul_f32"
)

var shaderFiles = map[Name]string{
	NameEmbeddingLookup: "shaders/embedding.wgsl",
	NameRMSNorm:         "shaders/rmsnorm.wgsl",
	NameQuantizeAbsmax:  "shaders/quantize_absmax.wgsl",
	NameTernaryGEMV:     "shaders/ternary_gemv.wgsl",
	NameTernaryGEMM:     "shaders/ternary_gemm.wgsl",
	NameRoPE:            "shaders/rope.wgsl",
	NameAttentionScore:  "shaders/attention_score.wgsl",
	NameSoftmax:         "shaders/softmax.wgsl",
	NameAttentionValue:  "shaders/attention_value.wgsl",
	NameActivation:      "shaders/activation.wgsl",
	NameElementwiseAdd:  "shaders/elementwise_add.wgsl",
	NameMatmulF32:       "shaders/matmul_f32.wgsl",
}

// entryPoint is the same for every kernel in this set; kept as a named
// constant so call sites never hand-type the string.
const entryPoint = "main"

// Source returns the WGSL source of the named kernel.
func Source(name Name) (string, error) {
	path, ok := shaderFiles[name]
	if !ok {
		return "", &UnknownKernelError{Name: name}
	}
	b, err := shaderFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EntryPoint returns the WGSL entry point function name for name. Every
// kernel in this set uses "main", but callers should go through this
// accessor rather than assume that never changes.
func EntryPoint(_ Name) string {
	return entryPoint
}

// UnknownKernelError reports a request for a kernel Name not in this set.
type UnknownKernelError struct {
	Name Name
}

func (e *UnknownKernelError) Error() string {
	return "kernel: unknown name " + string(e.Name)
}
