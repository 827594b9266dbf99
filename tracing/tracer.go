// Package tracing turns allocation hook events into persistent records.
// A DBTracer observes a dispatcher and hands flat Records to a Backend,
// which stores them in a database or a CSV file. SiteStats aggregates the
// same events in memory, per call site.
package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/shiba/alloc"
)

// Operation names stored in trace records.
const (
	OpAllocate     = "allocate"
	OpAllocateFail = "allocate_fail"
	OpFree         = "free"
)

// A Record describes one allocation event in a flat, storage-friendly form.
// Field types are fixed-width so a Record can serve directly as a database
// row.
type Record struct {
	ID      string
	Op      string
	Size    int64
	File    string
	Line    int64
	Serving string
}

// A Backend stores trace records.
type Backend interface {
	// Write stores one record. Implementations may buffer.
	Write(rec Record)

	// Flush flushes buffered records to the storage.
	Flush()
}

// DBTracer is a hook that persists every allocation event through a
// Backend.
type DBTracer struct {
	mu         sync.Mutex
	backend    Backend
	terminated bool
}

// NewDBTracer creates a DBTracer over the given backend. The tracer
// flushes automatically at process exit.
func NewDBTracer(backend Backend) *DBTracer {
	t := &DBTracer{backend: backend}

	atexit.Register(func() { t.Terminate() })

	return t
}

// Func converts one hook event into a record.
func (t *DBTracer) Func(ctx alloc.HookCtx) {
	var op string

	switch ctx.Pos {
	case alloc.HookPosAllocate:
		op = OpAllocate
	case alloc.HookPosAllocateFail:
		op = OpAllocateFail
	case alloc.HookPosFree:
		op = OpFree
	default:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.backend.Write(Record{
		ID:      ctx.Event.ID,
		Op:      op,
		Size:    int64(ctx.Event.Size),
		File:    ctx.Event.Site.File,
		Line:    int64(ctx.Event.Site.Line),
		Serving: ctx.Event.Serving,
	})
}

// Terminate flushes the backend and stops recording. Events observed
// after Terminate are dropped, so the hooked dispatcher may outlive the
// storage behind the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
	t.terminated = true
}
