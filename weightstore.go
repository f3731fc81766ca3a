package bitnet

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"github.com/m96-chan/0xBitNet-sub000/device"
)

// blkTensorRegex matches the container-native per-layer tensor naming
// convention "blk.{i}.<suffix>" and captures the layer index and suffix.
var blkTensorRegex = regexp.MustCompile(`^blk\.(\d+)\.(.+)$`)

// blkSuffixRemap maps a blk.{i}.<suffix> tail to its canonical tail under
// model.layers.{i}.
var blkSuffixRemap = map[string]string{
	"attn_q.weight":            "self_attn.q_proj.weight",
	"attn_k.weight":            "self_attn.k_proj.weight",
	"attn_v.weight":            "self_attn.v_proj.weight",
	"attn_output.weight":       "self_attn.o_proj.weight",
	"attn_sub_norm.weight":     "self_attn.sub_norm.weight",
	"attn_norm.weight":         "input_layernorm.weight",
	"ffn_norm.weight":          "post_attention_layernorm.weight",
	"ffn_up.weight":            "mlp.up_proj.weight",
	"ffn_down.weight":          "mlp.down_proj.weight",
	"ffn_gate.weight":          "mlp.gate_proj.weight",
	"ffn_sub_norm.weight":      "mlp.sub_norm.weight",
}

// topLevelRemap maps container-native top-level tensor names to their
// canonical equivalents.
var topLevelRemap = map[string]string{
	"token_embd.weight": "model.embed_tokens.weight",
	"output_norm.weight": "model.norm.weight",
	"output.weight":      "lm_head.weight",
}

// CanonicalTensorName renames a container-native GGUF tensor name to the
// canonical name the nn package's layers expect.
func CanonicalTensorName(name string) string {
	if canon, ok := topLevelRemap[name]; ok {
		return canon
	}
	if m := blkTensorRegex.FindStringSubmatch(name); m != nil {
		idx, suffix := m[1], m[2]
		if canon, ok := blkSuffixRemap[suffix]; ok {
			return "model.layers." + idx + "." + canon
		}
	}
	return name
}

// WeightEntry is one catalog entry: a device buffer (or, when sharded,
// multiple consecutive shards) holding a single tensor's bytes, plus the
// tensor's original directory metadata.
type WeightEntry struct {
	CanonicalName string
	Info          GGUFTensorInfo
	Shards        []device.Buffer
}

// Size returns the total byte size across all of the entry's shards.
func (e WeightEntry) Size() uint64 {
	var total uint64
	for _, s := range e.Shards {
		total += s.Size()
	}
	return total
}

// WeightCatalog maps canonical tensor names to their device-resident
// buffers, uploaded from a GGUF file's tensor data region. Every ternary
// weight is paired with a `<name>_scale` entry; when the on-disk blob
// embeds its own scale, a synthesized unit-scale buffer is published
// instead so BitLinear never has to special-case the two conventions.
type WeightCatalog struct {
	entries map[string]WeightEntry
}

// Load uploads every tensor directory entry in gf to dev, applying the
// canonical name remap and splitting any tensor whose raw byte size
// exceeds maxBindingSize into consecutive shards. data must expose the
// file's tensor data region starting at gf.TensorDataStartOffset.
func (c *WeightCatalog) Load(ctx context.Context, dev device.Device, gf *GGUFFile, data io.ReaderAt, maxBindingSize uint64) error {
	c.entries = make(map[string]WeightEntry, len(gf.TensorInfos))

	for _, ti := range gf.TensorInfos {
		size := tensorByteSize(ti)
		canon := CanonicalTensorName(ti.Name)

		shards, err := uploadTensor(ctx, dev, data, gf.TensorDataStartOffset+int64(ti.Offset), size, maxBindingSize)
		if err != nil {
			return fmt.Errorf("upload tensor %q (%s): %w", ti.Name, canon, err)
		}

		c.entries[canon] = WeightEntry{CanonicalName: canon, Info: ti, Shards: shards}
	}

	return nil
}

// tensorByteSize returns the on-disk byte size of ti's tensor data. I2_S
// carries a single 32-byte scale trailer for the whole tensor rather than
// GGML's usual per-row-block layout, so it is sized via PackedSize over the
// flattened element count instead of GGMLType.RowSizeOf.
func tensorByteSize(ti GGUFTensorInfo) uint64 {
	if ti.Type == GGMLTypeI2S {
		elems := uint64(1)
		for _, d := range ti.Dimensions {
			elems *= d
		}
		return uint64(PackedSize(int(elems)))
	}
	return ti.Type.RowSizeOf(ti.Dimensions)
}

// uploadTensor copies size bytes starting at off from data into one device
// buffer, or — when size exceeds maxBindingSize — a sequence of shards
// each at most maxBindingSize bytes, in on-disk order.
func uploadTensor(ctx context.Context, dev device.Device, data io.ReaderAt, off int64, size, maxBindingSize uint64) ([]device.Buffer, error) {
	if maxBindingSize == 0 || size <= maxBindingSize {
		buf, err := dev.CreateBuffer(size, device.UsageStorage|device.UsageCopyDst)
		if err != nil {
			return nil, err
		}
		if err := copyInto(ctx, buf, data, off, size); err != nil {
			return nil, err
		}
		return []device.Buffer{buf}, nil
	}

	var shards []device.Buffer
	remaining := size
	cur := off
	for remaining > 0 {
		chunk := maxBindingSize
		if remaining < chunk {
			chunk = remaining
		}
		buf, err := dev.CreateBuffer(chunk, device.UsageStorage|device.UsageCopyDst)
		if err != nil {
			return nil, err
		}
		if err := copyInto(ctx, buf, data, cur, chunk); err != nil {
			return nil, err
		}
		shards = append(shards, buf)
		cur += int64(chunk)
		remaining -= chunk
	}
	return shards, nil
}

func copyInto(ctx context.Context, buf device.Buffer, data io.ReaderAt, off int64, size uint64) error {
	b := make([]byte, size)
	if _, err := data.ReadAt(b, off); err != nil && err != io.EOF {
		return err
	}
	return buf.Write(ctx, 0, b)
}

// Get returns the catalog entry for canonical name name.
func (c *WeightCatalog) Get(name string) (WeightEntry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// MustGet returns the catalog entry for name, or an ErrMissingTensor error
// naming it.
func (c *WeightCatalog) MustGet(name string) (WeightEntry, error) {
	e, ok := c.Get(name)
	if !ok {
		return WeightEntry{}, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	return e, nil
}

// InjectDummyScales publishes a unit-filled `<name>_scale` buffer for every
// name in ternaryWeights that lacks one already, sized outDim float32s.
// This is what lets BitLinear read a scale buffer unconditionally whether
// the source file embedded its scales in the I2_S blob (BitNet convention)
// or shipped them as sibling tensors (standard convention).
func (c *WeightCatalog) InjectDummyScales(ctx context.Context, dev device.Device, ternaryWeights map[string]uint64) error {
	for name, outDim := range ternaryWeights {
		scaleName := name + "_scale"
		if _, ok := c.entries[scaleName]; ok {
			continue
		}

		ones := make([]byte, outDim*4)
		for i := uint64(0); i < outDim; i++ {
			putFloat32LE(ones[i*4:], 1.0)
		}

		buf, err := dev.CreateBuffer(outDim*4, device.UsageStorage|device.UsageCopyDst)
		if err != nil {
			return fmt.Errorf("synthesize scale buffer for %s: %w", name, err)
		}
		if err := buf.Write(ctx, 0, ones); err != nil {
			return fmt.Errorf("synthesize scale buffer for %s: %w", name, err)
		}

		c.entries[scaleName] = WeightEntry{CanonicalName: scaleName, Shards: []device.Buffer{buf}}
		log.WithField("tensor", name).Debug("injected unit scale, on-disk blob's embedded scale is ignored by the GEMV/GEMM kernels")
	}
	return nil
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

// LayerTensorName builds the canonical tensor name for layer idx and the
// given canonical suffix, e.g. LayerTensorName(3, "self_attn.q_proj.weight").
func LayerTensorName(idx int, suffix string) string {
	return "model.layers." + strconv.Itoa(idx) + "." + suffix
}
