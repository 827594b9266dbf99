// Package alloc implements the allocation dispatch layer that lets a host
// application substitute its own memory-management routines into an
// embedded native runtime. A Dispatcher owns three override slots
// (allocate, traced-allocate, free) and routes every request either to a
// registered override or to the Go-heap default. Hooks can observe every
// dispatched request together with its call-site provenance.
package alloc

import (
	"sync/atomic"

	"github.com/rs/xid"
)

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Allocations       uint64
	FailedAllocations uint64
	Frees             uint64
	BytesRequested    uint64
	BytesFreed        uint64
}

// A Dispatcher owns the override slots of one embedded runtime and serves
// as the single point that all of the runtime's allocation and release
// requests flow through.
//
// Slot registration is a plain assignment. The dispatcher provides no
// locking. The host registers overrides at startup, before the runtime
// starts allocating.
type Dispatcher struct {
	HookableBase

	name string

	allocSlot  allocateSlot
	tracedSlot tracedSlot
	freeSlot   freeSlot

	allocations       atomic.Uint64
	failedAllocations atomic.Uint64
	frees             atomic.Uint64
	bytesRequested    atomic.Uint64
	bytesFreed        atomic.Uint64
}

// NewDispatcher creates a Dispatcher with all slots in their default state.
func NewDispatcher(name string) *Dispatcher {
	nameMustBeValid(name)

	d := &Dispatcher{name: name}

	d.allocSlot = goAllocate{}
	d.tracedSlot = passthroughTraced{d: d}
	d.freeSlot = goFree{}

	return d
}

func nameMustBeValid(name string) {
	if name == "" {
		panic("dispatcher name must not be empty")
	}
}

// Name returns the name of the dispatcher.
func (d *Dispatcher) Name() string {
	return d.name
}

// Allocate requests size bytes of memory. Requests of non-positive size
// return nil without consulting any slot. A nil result from the serving
// primitive propagates unchanged; the dispatcher never retries or
// substitutes.
func (d *Dispatcher) Allocate(size int) []byte {
	return d.AllocateTraced(size, CallSite{})
}

// AllocateTraced requests size bytes, carrying the call site that asked
// for them. The site is handed to a registered traced override exactly as
// given; it is never recomputed. Without a traced override the request is
// served by the allocate slot and the site is dropped.
func (d *Dispatcher) AllocateTraced(size int, site CallSite) []byte {
	if size <= 0 {
		return nil
	}

	buf := d.tracedSlot.allocate(size, site)

	return d.accountAllocate(buf, size, site)
}

// AllocateZeroed requests size bytes of zeroed memory.
func (d *Dispatcher) AllocateZeroed(size int) []byte {
	return d.AllocateZeroedTraced(size, CallSite{})
}

// AllocateZeroedTraced requests size bytes of zeroed memory, carrying
// call-site provenance. Overrides may recycle dirty buffers, so the result
// is cleared unless it came from the Go heap.
func (d *Dispatcher) AllocateZeroedTraced(size int, site CallSite) []byte {
	if size <= 0 {
		return nil
	}

	buf := d.tracedSlot.allocateZeroed(size, site)

	return d.accountAllocate(buf, size, site)
}

// Reallocate resizes buf by allocating through the dispatcher, copying
// min(len(buf), size) bytes, and releasing the old buffer through the free
// slot. A non-positive size frees buf and returns nil. If the new
// allocation fails, buf is left untouched and nil is returned.
func (d *Dispatcher) Reallocate(buf []byte, size int) []byte {
	if size <= 0 {
		d.Free(buf)
		return nil
	}

	newBuf := d.Allocate(size)
	if newBuf == nil {
		return nil
	}

	copy(newBuf, buf)
	d.Free(buf)

	return newBuf
}

// Free releases a buffer previously produced by this dispatcher. Freeing a
// nil or empty buffer is a no-op. Buffers must be paired with the
// dispatcher that produced them; freeing foreign buffers is undefined and
// not detected.
func (d *Dispatcher) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}

	d.frees.Add(1)
	d.bytesFreed.Add(uint64(len(buf)))

	if d.NumHooks() > 0 {
		d.InvokeHook(HookCtx{
			Domain: d,
			Pos:    HookPosFree,
			Event: Event{
				ID:      xid.New().String(),
				Size:    len(buf),
				Serving: d.freeSlot.name(),
			},
		})
	}

	d.freeSlot.free(buf)
}

// SetAllocator registers fn as the plain allocation override. The last
// registration wins. A nil fn restores the Go-heap default.
func (d *Dispatcher) SetAllocator(fn AllocateFunc) {
	if fn == nil {
		d.allocSlot = goAllocate{}
		return
	}

	d.allocSlot = funcAllocate{fn: fn}
}

// SetTracedAllocator registers fn as the traced allocation override,
// giving it every allocation together with the requesting call site. A nil
// fn restores the passthrough state.
func (d *Dispatcher) SetTracedAllocator(fn TracedAllocateFunc) {
	if fn == nil {
		d.tracedSlot = passthroughTraced{d: d}
		return
	}

	d.tracedSlot = funcTraced{fn: fn}
}

// SetDeallocator registers fn as the free override. A nil fn restores the
// default, which leaves reclamation to the garbage collector.
func (d *Dispatcher) SetDeallocator(fn FreeFunc) {
	if fn == nil {
		d.freeSlot = goFree{}
		return
	}

	d.freeSlot = funcFree{fn: fn}
}

// Strategy names the variants currently occupying the allocate, traced,
// and free slots.
func (d *Dispatcher) Strategy() (allocate, traced, free string) {
	return d.allocSlot.name(), d.tracedSlot.name(), d.freeSlot.name()
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Allocations:       d.allocations.Load(),
		FailedAllocations: d.failedAllocations.Load(),
		Frees:             d.frees.Load(),
		BytesRequested:    d.bytesRequested.Load(),
		BytesFreed:        d.bytesFreed.Load(),
	}
}

func (d *Dispatcher) accountAllocate(
	buf []byte,
	size int,
	site CallSite,
) []byte {
	if buf == nil {
		d.failedAllocations.Add(1)
		d.invokeAllocateHook(HookPosAllocateFail, size, site)

		return nil
	}

	d.allocations.Add(1)
	d.bytesRequested.Add(uint64(size))
	d.invokeAllocateHook(HookPosAllocate, size, site)

	return buf
}

func (d *Dispatcher) invokeAllocateHook(
	pos *HookPos,
	size int,
	site CallSite,
) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(HookCtx{
		Domain: d,
		Pos:    pos,
		Event: Event{
			ID:      xid.New().String(),
			Size:    size,
			Site:    site,
			Serving: d.tracedSlot.serving(),
		},
	})
}
