package bitnet

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTensorInfoBytes encodes one GGUFVersionV3-shaped tensor info
// record: a length-prefixed name, one dimension, a type tag, and an
// offset, matching what _GGUFTensorInfoReader.Read expects to parse.
func buildTensorInfoBytes(name string, dim uint64, typ uint32, offset uint64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(name)))
	buf.WriteString(name)
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // n dimensions
	binary.Write(&buf, binary.LittleEndian, dim)
	binary.Write(&buf, binary.LittleEndian, typ)
	binary.Write(&buf, binary.LittleEndian, offset)
	return buf.Bytes()
}

func newTensorInfoReader(raw []byte) _GGUFTensorInfoReader {
	return _GGUFTensorInfoReader{_GGUFReader{
		v:  GGUFVersionV3,
		f:  bytes.NewReader(raw),
		bo: binary.LittleEndian,
	}}
}

// TestTensorInfoAcceptsRealI2STag confirms the bounds check admits the
// BitNet fork's actual on-disk I2_S tag (36) without the dead exception
// the old 1<<16 placeholder required.
func TestTensorInfoAcceptsRealI2STag(t *testing.T) {
	raw := buildTensorInfoBytes("blk.0.attn_q.weight", 128, 36, 0)
	rd := newTensorInfoReader(raw)

	ti, err := rd.Read()
	require.NoError(t, err)
	assert.Equal(t, GGMLTypeI2S, ti.Type)
}

// TestTensorInfoRejectsOutOfRangeType confirms a tag past the known type
// table is still rejected.
func TestTensorInfoRejectsOutOfRangeType(t *testing.T) {
	raw := buildTensorInfoBytes("blk.0.attn_q.weight", 128, uint32(_GGMLTypeCount)+5, 0)
	rd := newTensorInfoReader(raw)

	_, err := rd.Read()
	assert.Error(t, err)
}
