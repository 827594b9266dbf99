package alloc

// AllocateFunc is the shape of a plain allocation override.
type AllocateFunc func(size int) []byte

// TracedAllocateFunc is the shape of an allocation override that receives
// call-site provenance along with the size.
type TracedAllocateFunc func(size int, site CallSite) []byte

// FreeFunc is the shape of a deallocation override.
type FreeFunc func(buf []byte)

// An allocateSlot serves plain allocation requests. The slot is always
// occupied: goAllocate is the initial state and funcAllocate holds a
// registered override.
type allocateSlot interface {
	name() string
	allocate(size int) []byte
	allocateZeroed(size int) []byte
}

type goAllocate struct{}

func (goAllocate) name() string {
	return "go"
}

func (goAllocate) allocate(size int) []byte {
	return make([]byte, size)
}

func (goAllocate) allocateZeroed(size int) []byte {
	// make already zeroes.
	return make([]byte, size)
}

type funcAllocate struct {
	fn AllocateFunc
}

func (funcAllocate) name() string {
	return "custom"
}

func (s funcAllocate) allocate(size int) []byte {
	return s.fn(size)
}

func (s funcAllocate) allocateZeroed(size int) []byte {
	buf := s.fn(size)

	// Overrides may hand out recycled memory.
	clear(buf)

	return buf
}

// A tracedSlot serves provenance-carrying allocation requests. The unset
// state is passthroughTraced, which drops the site and falls through to
// whatever occupies the allocate slot, so tracing never has to be
// registered for allocation to work.
type tracedSlot interface {
	name() string
	serving() string
	allocate(size int, site CallSite) []byte
	allocateZeroed(size int, site CallSite) []byte
}

type passthroughTraced struct {
	d *Dispatcher
}

func (passthroughTraced) name() string {
	return "passthrough"
}

func (s passthroughTraced) serving() string {
	return s.d.allocSlot.name()
}

func (s passthroughTraced) allocate(size int, _ CallSite) []byte {
	return s.d.allocSlot.allocate(size)
}

func (s passthroughTraced) allocateZeroed(size int, _ CallSite) []byte {
	return s.d.allocSlot.allocateZeroed(size)
}

type funcTraced struct {
	fn TracedAllocateFunc
}

func (funcTraced) name() string {
	return "custom"
}

func (funcTraced) serving() string {
	return "traced"
}

func (s funcTraced) allocate(size int, site CallSite) []byte {
	return s.fn(size, site)
}

func (s funcTraced) allocateZeroed(size int, site CallSite) []byte {
	buf := s.fn(size, site)
	clear(buf)

	return buf
}

// A freeSlot releases buffers. goFree leaves reclamation to the garbage
// collector; funcFree holds a registered override.
type freeSlot interface {
	name() string
	free(buf []byte)
}

type goFree struct{}

func (goFree) name() string {
	return "go"
}

func (goFree) free([]byte) {}

type funcFree struct {
	fn FreeFunc
}

func (funcFree) name() string {
	return "custom"
}

func (s funcFree) free(buf []byte) {
	s.fn(buf)
}
