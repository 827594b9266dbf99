// Package pool provides a size-classed buffer allocator backed by sync.Pool.
// A Pool is meant to be registered on an alloc.Dispatcher so that runtime
// allocations of recurring sizes recycle instead of hitting the Go heap.
package pool

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/shiba/alloc"
)

// DefaultClasses are the bucket capacities used when New receives none.
var DefaultClasses = []int{64, 256, 1024, 4096, 16384, 65536}

// A Pool hands out buffers from ascending capacity classes. Requests larger
// than the largest class fall through to the Go heap and are dropped again
// on Free.
type Pool struct {
	classes []int
	buckets []sync.Pool

	hits     atomic.Uint64
	misses   atomic.Uint64
	oversize atomic.Uint64
}

// Stats counts pool traffic. Hits reuse a recycled buffer, misses create a
// buffer in some class, oversize requests bypass the classes entirely.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Oversize uint64
}

// New creates a Pool with the given capacity classes, or DefaultClasses when
// none are given. Classes must be positive; duplicates collapse.
func New(classes ...int) *Pool {
	if len(classes) == 0 {
		classes = DefaultClasses
	}

	cs := slices.Clone(classes)
	slices.Sort(cs)
	cs = slices.Compact(cs)

	if cs[0] <= 0 {
		panic(fmt.Sprintf("pool class %d must be positive", cs[0]))
	}

	return &Pool{
		classes: cs,
		buckets: make([]sync.Pool, len(cs)),
	}
}

// Classes returns the pool's capacity classes in ascending order.
func (p *Pool) Classes() []int {
	return slices.Clone(p.classes)
}

// Allocate returns a buffer of length size drawn from the smallest class
// that fits. The buffer may contain stale bytes from a previous use.
func (p *Pool) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}

	idx, ok := slices.BinarySearch(p.classes, size)
	if !ok && idx == len(p.classes) {
		p.oversize.Add(1)
		return make([]byte, size)
	}

	if v := p.buckets[idx].Get(); v != nil {
		p.hits.Add(1)
		return v.([]byte)[:size]
	}

	p.misses.Add(1)

	return make([]byte, size, p.classes[idx])
}

// Free returns buf to the largest class its capacity covers. Buffers above
// the largest class, and buffers smaller than every class, are left to the
// garbage collector.
func (p *Pool) Free(buf []byte) {
	c := cap(buf)
	if c < p.classes[0] || c > p.classes[len(p.classes)-1] {
		return
	}

	idx, ok := slices.BinarySearch(p.classes, c)
	if !ok {
		idx--
	}

	p.buckets[idx].Put(buf[:p.classes[idx]])
}

// Funcs returns the registration pair for a dispatcher. Recycled buffers may
// carry stale bytes; zeroed allocation through the dispatcher clears them.
func (p *Pool) Funcs() (alloc.AllocateFunc, alloc.FreeFunc) {
	return p.Allocate, p.Free
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:     p.hits.Load(),
		Misses:   p.misses.Load(),
		Oversize: p.oversize.Load(),
	}
}
