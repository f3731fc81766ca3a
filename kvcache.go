package bitnet

import (
	"fmt"

	"github.com/m96-chan/0xBitNet-sub000/device"
)

// KVCache holds one transformer layer's key and value buffers across
// decode steps. Position s is the number of tokens already written;
// callers append N new positions, dispatch the kernels that read the
// first s+N rows, then advance s by N once the whole layer has finished
// for this step (see nn.Block).
type KVCache struct {
	keys   device.Buffer
	values device.Buffer

	capacity uint64 // max cached positions
	s        uint64 // positions already written

	headsKV uint64
	headDim uint64
}

// NewKVCache allocates key/value buffers sized for capacity positions of
// headsKV heads, headDim each, stored single-precision.
func NewKVCache(dev device.Device, capacity, headsKV, headDim uint64) (*KVCache, error) {
	rowBytes := headsKV * headDim * 4
	size := capacity * rowBytes

	keys, err := dev.CreateBuffer(size, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("allocate key cache: %w", err)
	}
	values, err := dev.CreateBuffer(size, device.UsageStorage|device.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("allocate value cache: %w", err)
	}

	return &KVCache{
		keys:     keys,
		values:   values,
		capacity: capacity,
		headsKV:  headsKV,
		headDim:  headDim,
	}, nil
}

// Position returns the number of positions already written (s).
func (c *KVCache) Position() uint64 { return c.s }

// Keys returns the device buffer backing the cached keys.
func (c *KVCache) Keys() device.Buffer { return c.keys }

// Values returns the device buffer backing the cached values.
func (c *KVCache) Values() device.Buffer { return c.values }

// rowBytes is the byte size of one cached position's row, across all KV
// heads.
func (c *KVCache) rowBytes() uint64 { return c.headsKV * c.headDim * 4 }

// AppendOffset returns the byte offset at which N new rows should be
// written, i.e. s * headsKV * headDim * 4.
func (c *KVCache) AppendOffset() uint64 { return c.s * c.rowBytes() }

// EnsureCapacity reports whether s+n positions fit without growing the
// cache. The cache never grows itself; callers that hit this size a new
// KVCache at construction using the configured max context length.
func (c *KVCache) EnsureCapacity(n uint64) error {
	if c.s+n > c.capacity {
		return fmt.Errorf("kv cache: position %d+%d exceeds capacity %d", c.s, n, c.capacity)
	}
	return nil
}

// Advance moves s forward by n positions once every layer has finished
// reading/writing this step's rows. It must be called exactly once per
// decode step per layer, after the block that owns this cache completes.
func (c *KVCache) Advance(n uint64) {
	c.s += n
}

// Release returns the cache's device buffers.
func (c *KVCache) Release() {
	c.keys.Release()
	c.values.Release()
}

// KVCacheSet holds one KVCache per transformer layer.
type KVCacheSet struct {
	Layers []*KVCache
}

// NewKVCacheSet allocates numLayers independent caches, each sized for
// capacity positions of headsKV heads, headDim each.
func NewKVCacheSet(dev device.Device, numLayers int, capacity, headsKV, headDim uint64) (*KVCacheSet, error) {
	set := &KVCacheSet{Layers: make([]*KVCache, numLayers)}
	for i := 0; i < numLayers; i++ {
		c, err := NewKVCache(dev, capacity, headsKV, headDim)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		set.Layers[i] = c
	}
	return set, nil
}

// Release returns every layer's device buffers.
func (s *KVCacheSet) Release() {
	for _, c := range s.Layers {
		c.Release()
	}
}

// Reset rewinds every layer's position to zero, allowing the cache
// storage to be reused for a new generation without reallocating.
func (s *KVCacheSet) Reset() {
	for _, c := range s.Layers {
		c.s = 0
	}
}
