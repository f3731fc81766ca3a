package bitnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32kv(key string, v uint32) GGUFMetadataKV {
	return GGUFMetadataKV{Key: key, ValueType: GGUFMetadataValueTypeUint32, Value: v}
}

func strkv(key, v string) GGUFMetadataKV {
	return GGUFMetadataKV{Key: key, ValueType: GGUFMetadataValueTypeString, Value: v}
}

func minimalBitnetFile(headCount, headCountKV uint32) *GGUFFile {
	return &GGUFFile{
		Header: GGUFHeader{
			MetadataKV: GGUFMetadataKVs{
				strkv("general.architecture", "bitnet"),
				u32kv("bitnet.embedding_length", 2560),
				u32kv("bitnet.block_count", 30),
				u32kv("bitnet.attention.head_count", headCount),
				u32kv("bitnet.attention.head_count_kv", headCountKV),
				u32kv("bitnet.vocab_size", 128256),
			},
		},
	}
}

func TestResolveModelConfigGQADivisibility(t *testing.T) {
	t.Run("divisible head counts resolve", func(t *testing.T) {
		gf := minimalBitnetFile(20, 5)
		mc, err := gf.ResolveModelConfig()
		require.NoError(t, err)
		assert.EqualValues(t, 20, mc.NumAttentionHeads)
		assert.EqualValues(t, 5, mc.NumKeyValueHeads)
	})

	t.Run("non-divisible head counts are rejected", func(t *testing.T) {
		gf := minimalBitnetFile(20, 7)
		_, err := gf.ResolveModelConfig()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigurationInvalid)
	})

	t.Run("missing kv head count falls back to head count (MHA)", func(t *testing.T) {
		gf := &GGUFFile{
			Header: GGUFHeader{
				MetadataKV: GGUFMetadataKVs{
					strkv("general.architecture", "bitnet"),
					u32kv("bitnet.embedding_length", 2560),
					u32kv("bitnet.block_count", 30),
					u32kv("bitnet.attention.head_count", 20),
					u32kv("bitnet.vocab_size", 128256),
				},
			},
		}
		mc, err := gf.ResolveModelConfig()
		require.NoError(t, err)
		assert.EqualValues(t, 20, mc.NumKeyValueHeads)
	})
}

func TestResolveModelConfigDefaults(t *testing.T) {
	gf := minimalBitnetFile(20, 5)
	mc, err := gf.ResolveModelConfig()
	require.NoError(t, err)
	assert.InDelta(t, 1e-6, mc.RMSNormEpsilon, 1e-12)
	assert.InDelta(t, 10000, mc.RoPEFrequencyBase, 1e-6)
}

func TestResolveModelConfigMissingDimensions(t *testing.T) {
	gf := &GGUFFile{
		Header: GGUFHeader{
			MetadataKV: GGUFMetadataKVs{
				strkv("general.architecture", "bitnet"),
			},
		},
	}
	_, err := gf.ResolveModelConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}
