package generate

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/device"
	"github.com/m96-chan/0xBitNet-sub000/internal/devicefake"
	"github.com/m96-chan/0xBitNet-sub000/nn"
)

// stubTokenizer maps exactly three tokens: "a" (id 0), "b" (id 1), and an
// EOS (id 2), with no distinct end-of-turn id.
type stubTokenizer struct{}

func (stubTokenizer) EncodeText(text string) ([]uint32, error) {
	if text == "a" {
		return []uint32{0}, nil
	}
	return []uint32{1}, nil
}

func (stubTokenizer) EncodeChat(_ []Message) ([]uint32, error) { return []uint32{0}, nil }

func (stubTokenizer) Decode(id uint32) (string, error) {
	return [...]string{"a", "b", "<eos>"}[id], nil
}

func (stubTokenizer) EOS() uint32                { return 2 }
func (stubTokenizer) EndOfTurn() (uint32, bool) { return 0, false }

func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	frac := uint16((bits >> 13) & 0x3FF)
	return sign | uint16(exp)<<10 | frac
}

func packF16Table(rows [][]float32) []byte {
	var flat []float32
	for _, r := range rows {
		flat = append(flat, r...)
	}
	raw := make([]byte, len(flat)*2)
	for i, v := range flat {
		binary.LittleEndian.PutUint16(raw[i*2:], float32ToFloat16(v))
	}
	return raw
}

func writeF32Buf(ctx context.Context, buf device.Buffer, vals []float32) error {
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return buf.Write(ctx, 0, raw)
}

// buildTwoTokenModel wires a blockless model (embedding -> final norm ->
// untied head only, no transformer layers) whose head weights route
// token "a" to predict "b" and token "b" to predict the EOS id, so a
// greedy decode from "a" must emit exactly one token before stopping.
func buildTwoTokenModel(t *testing.T, dev *devicefake.Device) *nn.Model {
	t.Helper()
	ctx := context.Background()
	const hidden, vocab = 128, 3

	rowA := make([]float32, hidden)
	rowA[0] = 3
	rowB := make([]float32, hidden)
	rowB[1] = 3
	rowEOS := make([]float32, hidden)
	rowEOS[2] = 3

	tableBytes := packF16Table([][]float32{rowA, rowB, rowEOS})
	embedBuf, err := dev.CreateBuffer(uint64(len(tableBytes)), device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, embedBuf.Write(ctx, 0, tableBytes))

	normWeight := make([]float32, hidden)
	for i := range normWeight {
		normWeight[i] = 1
	}
	normBuf, err := dev.CreateBuffer(hidden*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, normBuf, normWeight))

	// W[output][col]: output 0="a", 1="b", 2="eos"; col 0 mirrors row A's
	// hot dimension, col 1 mirrors row B's.
	wA := make([]int8, hidden)
	wA[0] = -1
	wB := make([]int8, hidden)
	wB[0] = 1
	wB[1] = -1
	wEOS := make([]int8, hidden)
	wEOS[1] = 1

	packed := append(append(append([]byte(nil),
		bitnet.Pack(wA, 1.0)[:hidden/4]...),
		bitnet.Pack(wB, 1.0)[:hidden/4]...),
		bitnet.Pack(wEOS, 1.0)[:hidden/4]...)

	weightBuf, err := dev.CreateBuffer(uint64(len(packed)), device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, weightBuf.Write(ctx, 0, packed))

	rowScalesBuf, err := dev.CreateBuffer(vocab*4, device.UsageStorage)
	require.NoError(t, err)
	require.NoError(t, writeF32Buf(ctx, rowScalesBuf, []float32{1, 1, 1}))

	pool := device.NewBufferPool(dev)
	pipes := nn.NewPipelines(dev, device.NewPipelineCache(dev))

	return &nn.Model{
		Config: bitnet.ModelConfig{HiddenSize: hidden, VocabSize: vocab, RMSNormEpsilon: 1e-6},
		EmbedTable: embedBuf,
		Blocks:     nil,
		FinalNorm:  normBuf,
		Head: &nn.Head{Untied: &nn.BitLinear{
			Kin: hidden, Kout: vocab,
			Weight: weightBuf, RowScales: rowScalesBuf,
		}},
		Dev:   dev,
		Pool:  pool,
		Pipes: pipes,
	}
}

func TestControllerStopsOnEOSEmittingOnlyPrecedingTokens(t *testing.T) {
	dev := devicefake.New()
	model := buildTwoTokenModel(t, dev)

	caches := &bitnet.KVCacheSet{Layers: nil}
	ctrl := NewController(model, caches, stubTokenizer{}, rand.New(rand.NewSource(1)))

	var texts []string
	for tok := range ctrl.Generate(context.Background(), "a", Options{MaxTokens: 5, Temperature: 0, RepeatPenalty: 1}) {
		require.NoError(t, tok.Err)
		texts = append(texts, tok.Text)
	}

	assert.Equal(t, []string{"b"}, texts, "must emit exactly the tokens preceding the stop token")
}
