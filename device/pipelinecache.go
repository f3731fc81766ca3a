package device

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PipelineCache memoizes compiled ComputePipelines by label so that a
// kernel shared across many call sites (the ternary GEMV used by every
// BitLinear layer, for instance) is compiled exactly once per device.
// Concurrent compiles of the same label are collapsed via singleflight
// rather than racing the underlying device's shader compiler.
type PipelineCache struct {
	dev Device

	g singleflight.Group

	mu    sync.RWMutex
	cache map[string]ComputePipeline
}

// NewPipelineCache wraps dev with a compile-once-per-label cache.
func NewPipelineCache(dev Device) *PipelineCache {
	return &PipelineCache{
		dev:   dev,
		cache: make(map[string]ComputePipeline),
	}
}

// Get returns the cached pipeline for label, compiling wgsl's entryPoint on
// first use. Concurrent callers requesting the same label block on a
// single underlying compile.
func (c *PipelineCache) Get(ctx context.Context, label, wgsl, entryPoint string) (ComputePipeline, error) {
	c.mu.RLock()
	p, ok := c.cache[label]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.g.Do(label, func() (any, error) {
		c.mu.RLock()
		if p, ok := c.cache[label]; ok {
			c.mu.RUnlock()
			return p, nil
		}
		c.mu.RUnlock()

		p, err := c.dev.CompilePipeline(ctx, label, wgsl, entryPoint)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[label] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ComputePipeline), nil
}

// Len reports the number of distinct pipelines currently cached.
func (c *PipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
