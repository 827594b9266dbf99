package alloc

// Default is the process-wide dispatcher used by runtimes that are not
// handed an explicit one. Hosts that follow the set-once-at-startup
// contract can register their overrides here and leave every call site
// unchanged.
var Default = NewDispatcher("default")

// Allocate requests size bytes from the Default dispatcher.
func Allocate(size int) []byte {
	return Default.Allocate(size)
}

// AllocateTraced requests size bytes from the Default dispatcher, carrying
// call-site provenance.
func AllocateTraced(size int, site CallSite) []byte {
	return Default.AllocateTraced(size, site)
}

// AllocateZeroed requests size bytes of zeroed memory from the Default
// dispatcher.
func AllocateZeroed(size int) []byte {
	return Default.AllocateZeroed(size)
}

// Reallocate resizes buf through the Default dispatcher.
func Reallocate(buf []byte, size int) []byte {
	return Default.Reallocate(buf, size)
}

// Free releases a buffer through the Default dispatcher.
func Free(buf []byte) {
	Default.Free(buf)
}

// SetAllocator registers the plain allocation override on the Default
// dispatcher.
func SetAllocator(fn AllocateFunc) {
	Default.SetAllocator(fn)
}

// SetTracedAllocator registers the traced allocation override on the
// Default dispatcher.
func SetTracedAllocator(fn TracedAllocateFunc) {
	Default.SetTracedAllocator(fn)
}

// SetDeallocator registers the free override on the Default dispatcher.
func SetDeallocator(fn FreeFunc) {
	Default.SetDeallocator(fn)
}
