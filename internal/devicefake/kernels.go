package devicefake

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/kernel"
)

// runKernel executes the named kernel's documented semantics against the
// bound entries, reproducing in Go what the matching shaders/*.wgsl file
// computes on a real device.
func runKernel(ctx context.Context, label string, entries []device.BindGroupEntry) error {
	byBinding := make(map[uint32]device.Buffer, len(entries))
	for _, e := range entries {
		byBinding[e.Binding] = e.Buffer
	}
	at := func(i uint32) device.Buffer { return byBinding[i] }

	switch kernel.Name(label) {
	case kernel.NameEmbeddingLookup:
		return runEmbedding(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameRMSNorm:
		return runRMSNorm(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameQuantizeAbsmax:
		return runQuantizeAbsmax(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameTernaryGEMV:
		return runTernaryGEMV(ctx, at(0), at(1), at(2), at(3), at(4), at(5))
	case kernel.NameTernaryGEMM:
		return runTernaryGEMM(ctx, at(0), at(1), at(2), at(3), at(4), at(5))
	case kernel.NameRoPE:
		return runRoPE(ctx, at(0), at(1))
	case kernel.NameAttentionScore:
		return runAttentionScore(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameSoftmax:
		return runSoftmax(ctx, at(0), at(1))
	case kernel.NameAttentionValue:
		return runAttentionValue(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameActivation:
		return runActivation(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameElementwiseAdd:
		return runElementwiseAdd(ctx, at(0), at(1), at(2), at(3))
	case kernel.NameMatmulF32:
		return runMatmulF32(ctx, at(0), at(1), at(2), at(3))
	default:
		return fmt.Errorf("devicefake: unknown kernel label %q", label)
	}
}

// --- raw buffer access -----------------------------------------------

func readRaw(ctx context.Context, b device.Buffer) ([]byte, error) {
	raw := make([]byte, b.Size())
	if err := b.Read(ctx, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func readF32(ctx context.Context, b device.Buffer) ([]float32, error) {
	raw, err := readRaw(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

func writeF32(ctx context.Context, b device.Buffer, vals []float32) error {
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return b.Write(ctx, 0, raw)
}

func readU32(ctx context.Context, b device.Buffer) ([]uint32, error) {
	raw, err := readRaw(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out, nil
}

func readI32(ctx context.Context, b device.Buffer) ([]int32, error) {
	u, err := readU32(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(u))
	for i, v := range u {
		out[i] = int32(v)
	}
	return out, nil
}

func writeI32(ctx context.Context, b device.Buffer, vals []int32) error {
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return b.Write(ctx, 0, raw)
}

// paramReader decodes a uniform buffer's raw bytes field by field, in the
// same declaration order kernel.encode wrote them.
type paramReader struct {
	raw []byte
	off int
}

func newParamReader(raw []byte) *paramReader { return &paramReader{raw: raw} }

func (r *paramReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.raw[r.off:])
	r.off += 4
	return v
}

func (r *paramReader) f32() float32 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.raw[r.off:]))
	r.off += 4
	return v
}

func readParams(ctx context.Context, b device.Buffer) (*paramReader, error) {
	raw, err := readRaw(ctx, b)
	if err != nil {
		return nil, err
	}
	return newParamReader(raw), nil
}

// --- embedding_lookup --------------------------------------------------

func runEmbedding(ctx context.Context, tokens, table, out, params device.Buffer) error {
	ids, err := readU32(ctx, tokens)
	if err != nil {
		return err
	}
	tableWords, err := readU32(ctx, table)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, params)
	if err != nil {
		return err
	}
	vocabSize := p.u32()
	hiddenSize := p.u32()

	result := make([]float32, len(ids)*int(hiddenSize))
	for n, id := range ids {
		base := n * int(hiddenSize)
		if id >= vocabSize {
			continue // already zero
		}
		for dim := uint32(0); dim < hiddenSize; dim++ {
			flat := uint64(id)*uint64(hiddenSize) + uint64(dim)
			word := tableWords[flat/2]
			var bits uint32
			if flat%2 == 0 {
				bits = word & 0xFFFF
			} else {
				bits = (word >> 16) & 0xFFFF
			}
			result[base+int(dim)] = float16ToFloat32(uint16(bits))
		}
	}
	return writeF32(ctx, out, result)
}

// float16ToFloat32 decodes an IEEE-754 binary16 value, matching WGSL's
// unpack2x16float applied to a replicated half-word.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h) & 0x3FF

	var f32exp, f32frac uint32
	switch {
	case exp == 0 && frac == 0:
		// zero
	case exp == 0:
		// subnormal half -> normalize into single precision
		e := -1
		m := frac
		for m&0x400 == 0 {
			m <<= 1
			e--
		}
		m &= 0x3FF
		f32exp = uint32(int32(e) + 1 + 127 - 15)
		f32frac = m << 13
	case exp == 0x1F:
		f32exp = 0xFF
		f32frac = frac << 13
	default:
		f32exp = exp - 15 + 127
		f32frac = frac << 13
	}
	bits := (sign << 31) | (f32exp << 23) | f32frac
	return math.Float32frombits(bits)
}

// --- rmsnorm ------------------------------------------------------------

func runRMSNorm(ctx context.Context, x, weight, out, params device.Buffer) error {
	xs, err := readF32(ctx, x)
	if err != nil {
		return err
	}
	w, err := readF32(ctx, weight)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, params)
	if err != nil {
		return err
	}
	rows := p.u32()
	hidden := p.u32()
	eps := p.f32()

	result := make([]float32, rows*hidden)
	for row := uint32(0); row < rows; row++ {
		base := row * hidden
		var acc float32
		for i := uint32(0); i < hidden; i++ {
			v := xs[base+i]
			acc += v * v
		}
		meanSq := acc / float32(hidden)
		rms := float32(1.0 / math.Sqrt(float64(meanSq+eps)))
		for j := uint32(0); j < hidden; j++ {
			result[base+j] = xs[base+j] * rms * w[j]
		}
	}
	return writeF32(ctx, out, result)
}

// --- quantize_absmax ------------------------------------------------------

func runQuantizeAbsmax(ctx context.Context, x, outCodes, outScales, params device.Buffer) error {
	xs, err := readF32(ctx, x)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, params)
	if err != nil {
		return err
	}
	rows := p.u32()
	hidden := p.u32()

	codes := make([]int32, rows*hidden)
	scales := make([]float32, rows)
	for row := uint32(0); row < rows; row++ {
		base := row * hidden
		var absmax float32
		for i := uint32(0); i < hidden; i++ {
			v := xs[base+i]
			if v < 0 {
				v = -v
			}
			if v > absmax {
				absmax = v
			}
		}
		invScale := float32(0)
		scale := float32(1)
		if absmax > 0 {
			invScale = 127.0 / absmax
			scale = absmax / 127.0
		}
		scales[row] = scale
		for j := uint32(0); j < hidden; j++ {
			clipped := xs[base+j] * invScale
			if clipped > 127 {
				clipped = 127
			}
			if clipped < -127 {
				clipped = -127
			}
			codes[base+j] = int32(math.Round(float64(clipped)))
		}
	}
	if err := writeI32(ctx, outCodes, codes); err != nil {
		return err
	}
	return writeF32(ctx, outScales, scales)
}

// --- ternary decode ------------------------------------------------------

func decodeTernaryWeight(word uint32, pos uint32) int32 {
	group := pos / 32
	gp := pos % 32
	shift := (gp%4)*8 + (6 - 2*group)
	code := (word >> shift) & 3
	if code == 3 {
		return 0
	}
	return int32(code) - 1
}

func ternaryWeightAt(packed []uint32, wordsPerRow, row, k uint32) int32 {
	block := k / 128
	pos := k % 128
	wordIndex := row*wordsPerRow + block*8 + (pos%32)/4
	return decodeTernaryWeight(packed[wordIndex], pos)
}

// --- ternary_gemv ---------------------------------------------------------

func runTernaryGEMV(ctx context.Context, packedBuf, rowScalesBuf, codesBuf, inputScaleBuf, outBuf, paramsBuf device.Buffer) error {
	packed, err := readU32(ctx, packedBuf)
	if err != nil {
		return err
	}
	rowScales, err := readF32(ctx, rowScalesBuf)
	if err != nil {
		return err
	}
	codes, err := readI32(ctx, codesBuf)
	if err != nil {
		return err
	}
	inputScaleRaw, err := readF32(ctx, inputScaleBuf)
	if err != nil {
		return err
	}
	inputScale := inputScaleRaw[0]
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	kin := p.u32()
	kout := p.u32()
	wordsPerRow := kin / 16

	out := make([]float32, kout)
	for row := uint32(0); row < kout; row++ {
		var acc int32
		for k := uint32(0); k < kin; k++ {
			acc += ternaryWeightAt(packed, wordsPerRow, row, k) * codes[k]
		}
		out[row] = float32(acc) * rowScales[row] * inputScale
	}
	return writeF32(ctx, outBuf, out)
}

// --- ternary_gemm ---------------------------------------------------------

func runTernaryGEMM(ctx context.Context, packedBuf, rowScalesBuf, codesBuf, inputScalesBuf, outBuf, paramsBuf device.Buffer) error {
	packed, err := readU32(ctx, packedBuf)
	if err != nil {
		return err
	}
	rowScales, err := readF32(ctx, rowScalesBuf)
	if err != nil {
		return err
	}
	codes, err := readI32(ctx, codesBuf)
	if err != nil {
		return err
	}
	inputScales, err := readF32(ctx, inputScalesBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	n := p.u32()
	kin := p.u32()
	kout := p.u32()
	wordsPerRow := kin / 16

	out := make([]float32, uint64(n)*uint64(kout))
	for row := uint32(0); row < kout; row++ {
		for col := uint32(0); col < n; col++ {
			var acc int32
			actBase := col * kin
			for k := uint32(0); k < kin; k++ {
				acc += ternaryWeightAt(packed, wordsPerRow, row, k) * codes[actBase+k]
			}
			out[col*kout+row] = float32(acc) * rowScales[row] * inputScales[col]
		}
	}
	return writeF32(ctx, outBuf, out)
}

// --- rope ------------------------------------------------------------------

func runRoPE(ctx context.Context, xBuf, paramsBuf device.Buffer) error {
	xs, err := readF32(ctx, xBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	n := p.u32()
	heads := p.u32()
	headDim := p.u32()
	cachePos := p.u32()
	thetaBase := p.f32()
	halfDim := headDim / 2

	for row := uint32(0); row < n; row++ {
		pos := float64(cachePos + row)
		for h := uint32(0); h < heads; h++ {
			base := (row*heads + h) * headDim
			for j := uint32(0); j < halfDim; j++ {
				exponent := -2.0 * float64(j) / float64(headDim)
				theta := pos * math.Pow(float64(thetaBase), exponent)
				c := float32(math.Cos(theta))
				s := float32(math.Sin(theta))
				i0 := base + 2*j
				i1 := i0 + 1
				x0 := xs[i0]
				x1 := xs[i1]
				xs[i0] = x0*c - x1*s
				xs[i1] = x0*s + x1*c
			}
		}
	}
	return writeF32(ctx, xBuf, xs)
}

// --- attention_score ---------------------------------------------------------

const negInf = -3.4028235e38

func runAttentionScore(ctx context.Context, qBuf, kBuf, scoresBuf, paramsBuf device.Buffer) error {
	q, err := readF32(ctx, qBuf)
	if err != nil {
		return err
	}
	k, err := readF32(ctx, kBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	n := p.u32()
	hq := p.u32()
	hkv := p.u32()
	d := p.u32()
	s := p.u32()
	tTotal := p.u32()
	g := hq / hkv

	scores := make([]float32, uint64(hq)*uint64(n)*uint64(tTotal))
	for h := uint32(0); h < hq; h++ {
		kvHead := h / g
		for row := uint32(0); row < n; row++ {
			outBase := (h*n + row) * tTotal
			qBase := (row*hq + h) * d
			for t := uint32(0); t < tTotal; t++ {
				if t > row+s {
					scores[outBase+t] = negInf
					continue
				}
				kBase := (t*hkv + kvHead) * d
				var dot float32
				for i := uint32(0); i < d; i++ {
					dot += q[qBase+i] * k[kBase+i]
				}
				scores[outBase+t] = dot * float32(1/math.Sqrt(float64(d)))
			}
		}
	}
	return writeF32(ctx, scoresBuf, scores)
}

// --- softmax ---------------------------------------------------------

func runSoftmax(ctx context.Context, xBuf, paramsBuf device.Buffer) error {
	xs, err := readF32(ctx, xBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	rows := p.u32()
	rowLen := p.u32()

	for row := uint32(0); row < rows; row++ {
		base := row * rowLen
		m := float32(negInf)
		for i := uint32(0); i < rowLen; i++ {
			if xs[base+i] > m {
				m = xs[base+i]
			}
		}
		var sum float32
		for i := uint32(0); i < rowLen; i++ {
			e := float32(math.Exp(float64(xs[base+i] - m)))
			xs[base+i] = e
			sum += e
		}
		for i := uint32(0); i < rowLen; i++ {
			xs[base+i] /= sum
		}
	}
	return writeF32(ctx, xBuf, xs)
}

// --- attention_value ---------------------------------------------------------

func runAttentionValue(ctx context.Context, attnBuf, vBuf, outBuf, paramsBuf device.Buffer) error {
	attn, err := readF32(ctx, attnBuf)
	if err != nil {
		return err
	}
	v, err := readF32(ctx, vBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	n := p.u32()
	hq := p.u32()
	hkv := p.u32()
	d := p.u32()
	tTotal := p.u32()
	g := hq / hkv

	out := make([]float32, uint64(n)*uint64(hq)*uint64(d))
	for row := uint32(0); row < n; row++ {
		for h := uint32(0); h < hq; h++ {
			kvHead := h / g
			attnBase := (h*n + row) * tTotal
			outBase := (row*hq + h) * d
			for i := uint32(0); i < d; i++ {
				var acc float32
				for t := uint32(0); t < tTotal; t++ {
					acc += attn[attnBase+t] * v[(t*hkv+kvHead)*d+i]
				}
				out[outBase+i] = acc
			}
		}
	}
	return writeF32(ctx, outBuf, out)
}

// --- activation ---------------------------------------------------------

func applyActivation(kind kernel.ActivationKind, v float32) float32 {
	if kind == kernel.ActivationSquaredReLU {
		r := v
		if r < 0 {
			r = 0
		}
		return r * r
	}
	return v * (1.0 / (1.0 + float32(math.Exp(float64(-v)))))
}

func runActivation(ctx context.Context, upBuf, gateBuf, outBuf, paramsBuf device.Buffer) error {
	up, err := readF32(ctx, upBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	length := p.u32()
	kind := kernel.ActivationKind(p.u32())
	gated := p.u32() != 0

	var gate []float32
	if gated {
		gate, err = readF32(ctx, gateBuf)
		if err != nil {
			return err
		}
	}

	out := make([]float32, length)
	for i := uint32(0); i < length; i++ {
		if gated {
			out[i] = applyActivation(kind, gate[i]) * up[i]
		} else {
			out[i] = applyActivation(kind, up[i])
		}
	}
	return writeF32(ctx, outBuf, out)
}

// --- elementwise_add ---------------------------------------------------------

func runElementwiseAdd(ctx context.Context, aBuf, bBuf, outBuf, paramsBuf device.Buffer) error {
	a, err := readF32(ctx, aBuf)
	if err != nil {
		return err
	}
	b, err := readF32(ctx, bBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	length := p.u32()

	out := make([]float32, length)
	for i := uint32(0); i < length; i++ {
		out[i] = a[i] + b[i]
	}
	return writeF32(ctx, outBuf, out)
}

// --- matmul_f32 ---------------------------------------------------------

func runMatmulF32(ctx context.Context, aBuf, bBuf, outBuf, paramsBuf device.Buffer) error {
	a, err := readF32(ctx, aBuf)
	if err != nil {
		return err
	}
	b, err := readF32(ctx, bBuf)
	if err != nil {
		return err
	}
	p, err := readParams(ctx, paramsBuf)
	if err != nil {
		return err
	}
	n := p.u32()
	k := p.u32()
	o := p.u32()

	out := make([]float32, uint64(n)*uint64(o))
	for row := uint32(0); row < n; row++ {
		aBase := row * k
		for col := uint32(0); col < o; col++ {
			bBase := col * k
			var acc float32
			for i := uint32(0); i < k; i++ {
				acc += a[aBase+i] * b[bBase+i]
			}
			out[row*o+col] = acc
		}
	}
	return writeF32(ctx, outBuf, out)
}
