package device

import (
	"context"
	"math/bits"
	"sync"
)

// BufferPool recycles Buffers bucketed by power-of-two size, avoiding a
// device allocation on every intermediate tensor in a forward pass. Buffers
// are returned to the bucket matching their rounded-up capacity, not their
// requested size, so a borrower must not assume Size() equals what it
// asked for.
type BufferPool struct {
	dev Device

	mu      sync.Mutex
	buckets map[uint64][]Buffer
	free    map[Buffer]bool // entries currently sitting in a bucket
	entries map[Buffer]bool // every buffer the pool has ever handed out, on loan or free

	// stats, guarded by mu.
	hits, misses uint64
}

// NewBufferPool wraps dev with a recycling allocator.
func NewBufferPool(dev Device) *BufferPool {
	return &BufferPool{
		dev:     dev,
		buckets: make(map[uint64][]Buffer),
		free:    make(map[Buffer]bool),
		entries: make(map[Buffer]bool),
	}
}

// bucketSize rounds size up to the next power of two, with a floor of 256
// bytes so tiny scalar buffers don't each occupy their own bucket.
func bucketSize(size uint64) uint64 {
	const floor = 256
	if size <= floor {
		return floor
	}
	return 1 << bits.Len64(size-1)
}

// Acquire returns a Buffer of at least size bytes with the given usage,
// reusing a pooled buffer when one of the right bucket and usage is idle.
func (p *BufferPool) Acquire(size uint64, usage Usage) (Buffer, error) {
	bs := bucketSize(size)

	p.mu.Lock()
	bucket := p.buckets[bs]
	for i, b := range bucket {
		if b.Usage() == usage {
			bucket[i] = bucket[len(bucket)-1]
			p.buckets[bs] = bucket[:len(bucket)-1]
			delete(p.free, b)
			p.hits++
			p.mu.Unlock()
			return b, nil
		}
	}
	p.misses++
	p.mu.Unlock()

	b, err := p.dev.CreateBuffer(bs, usage)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.entries[b] = true
	p.mu.Unlock()
	return b, nil
}

// Release returns b to the pool for reuse by a future Acquire of a
// matching bucket and usage. It does not call b.Release(); the underlying
// device allocation stays live until the pool itself is drained or
// destroyed. Releasing a buffer already sitting in the pool is a silent
// no-op, matching a borrower that races itself on an error path.
func (p *BufferPool) Release(b Buffer) {
	bs := bucketSize(b.Size())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free[b] {
		return
	}
	p.free[b] = true
	p.buckets[bs] = append(p.buckets[bs], b)
}

// Stats reports cumulative Acquire hit/miss counts, useful for sizing the
// pool during tuning.
func (p *BufferPool) Stats() (hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Drain trims the pool: every currently idle buffer is released back to
// the device and its bucket cleared. Buffers on loan (acquired but not
// yet Released) are unaffected and stay usable.
func (p *BufferPool) Drain(_ context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for bs, bucket := range p.buckets {
		for _, b := range bucket {
			b.Release()
			delete(p.free, b)
			delete(p.entries, b)
		}
		delete(p.buckets, bs)
	}
}

// Destroy walks the pool's entry table and releases every buffer it has
// ever handed out, whether idle or still on loan, then clears the pool.
// Any Buffer acquired from this pool is unusable once Destroy returns.
func (p *BufferPool) Destroy(_ context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for b := range p.entries {
		b.Release()
	}
	p.buckets = make(map[uint64][]Buffer)
	p.free = make(map[Buffer]bool)
	p.entries = make(map[Buffer]bool)
}
