// Package arena provides a block-based bump allocator for phase-scoped
// workloads such as loading a scene or building a frame. Individual frees
// are no-ops; Reset reclaims everything at once. An Arena can be registered
// on an alloc.Dispatcher through Funcs.
package arena

import (
	"sync"

	"github.com/sarchlab/shiba/alloc"
)

// DefaultBlockSize is the block size used when New receives a non-positive
// one.
const DefaultBlockSize = 64 * 1024

// Blocks double in size as the arena grows, up to this bound. A single
// request larger than the bound still gets a block of its own size.
const maxBlockSize = 1 << 20

// An Arena bump-allocates from a chain of blocks.
type Arena struct {
	mu        sync.Mutex
	blockSize int
	blocks    [][]byte
	used      int // offset into the last block
	sealed    int // bytes handed out from earlier blocks
	capacity  int
}

// Stats describes the arena's block chain.
type Stats struct {
	Blocks   int
	Used     int
	Capacity int
}

// New creates an Arena whose first block holds blockSize bytes.
func New(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	return &Arena{blockSize: blockSize}
}

// Allocate reserves size bytes from the current block, growing the chain
// when the block cannot fit the request. The result is capacity-clipped so
// appends cannot spill into a neighboring reservation.
func (a *Arena) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.blocks)
	if n == 0 || size > len(a.blocks[n-1])-a.used {
		a.grow(size)
		n = len(a.blocks)
	}

	block := a.blocks[n-1]
	start := a.used
	a.used += size

	return block[start:a.used:a.used]
}

// Free is a no-op. Arena memory comes back through Reset.
func (a *Arena) Free(buf []byte) {}

// Reset reclaims every reservation, keeping the first block for reuse.
// Buffers handed out before the reset must no longer be used.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.blocks) > 1 {
		a.blocks = a.blocks[:1]
	}

	a.used = 0
	a.sealed = 0
	a.capacity = 0

	if len(a.blocks) == 1 {
		a.capacity = cap(a.blocks[0])
	}
}

// Funcs returns the registration pair for a dispatcher. Reservations from a
// reused block may carry stale bytes; zeroed allocation through the
// dispatcher clears them.
func (a *Arena) Funcs() (alloc.AllocateFunc, alloc.FreeFunc) {
	return a.Allocate, a.Free
}

// Stats returns a snapshot of the block chain.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		Blocks:   len(a.blocks),
		Used:     a.sealed + a.used,
		Capacity: a.capacity,
	}
}

func (a *Arena) grow(minSize int) {
	size := a.blockSize
	if n := len(a.blocks); n > 0 {
		size = cap(a.blocks[n-1]) * 2
		if size > maxBlockSize {
			size = maxBlockSize
		}
		a.sealed += a.used
	}

	if size < minSize {
		size = minSize
	}

	a.blocks = append(a.blocks, make([]byte, size))
	a.capacity += size
	a.used = 0
}
