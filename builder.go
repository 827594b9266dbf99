package shiba

import (
	"io/fs"

	"github.com/rs/xid"

	"github.com/sarchlab/shiba/alloc"
	"github.com/sarchlab/shiba/assets"
	"github.com/sarchlab/shiba/datarecording"
	"github.com/sarchlab/shiba/monitoring"
	"github.com/sarchlab/shiba/tracing"
)

// Builder can be used to build an environment.
type Builder struct {
	dispatcherName  string
	allocator       alloc.AllocateFunc
	tracedAllocator alloc.TracedAllocateFunc
	deallocator     alloc.FreeFunc
	fsys            fs.FS
	tracingOn       bool
	traceOutput     string
	siteStatsOn     bool
	monitorOn       bool
	monitorPort     int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		dispatcherName: "main",
	}
}

// WithDispatcherName sets the name under which the dispatcher appears in
// traces and on the dashboard.
func (b Builder) WithDispatcherName(name string) Builder {
	b.dispatcherName = name
	return b
}

// WithAllocator registers fn as the plain allocation override.
func (b Builder) WithAllocator(fn alloc.AllocateFunc) Builder {
	b.allocator = fn
	return b
}

// WithTracedAllocator registers fn as the traced allocation override.
func (b Builder) WithTracedAllocator(fn alloc.TracedAllocateFunc) Builder {
	b.tracedAllocator = fn
	return b
}

// WithDeallocator registers fn as the free override.
func (b Builder) WithDeallocator(fn alloc.FreeFunc) Builder {
	b.deallocator = fn
	return b
}

// WithFS makes the loader read assets from fsys instead of the operating
// system.
func (b Builder) WithFS(fsys fs.FS) Builder {
	b.fsys = fsys
	return b
}

// WithTracing sets the environment to persist every allocation event into
// a trace database.
func (b Builder) WithTracing() Builder {
	b.tracingOn = true
	return b
}

// WithTraceOutput sets the custom output file name for the trace database.
func (b Builder) WithTraceOutput(path string) Builder {
	b.traceOutput = path
	return b
}

// WithSiteStats sets the environment to aggregate allocation totals per
// call site, in memory.
func (b Builder) WithSiteStats() Builder {
	b.siteStatsOn = true
	return b
}

// WithMonitoring sets the environment to serve a monitoring dashboard on
// the given port. Port 0 picks a free port.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.traceOutput != "" && !b.tracingOn {
		panic("trace output cannot be set when tracing is disabled")
	}
}

// Build builds the environment.
func (b Builder) Build() *Env {
	b.parametersMustBeValid()

	e := &Env{
		id: xid.New().String(),
	}

	e.dispatcher = alloc.NewDispatcher(b.dispatcherName)
	e.dispatcher.SetAllocator(b.allocator)
	e.dispatcher.SetTracedAllocator(b.tracedAllocator)
	e.dispatcher.SetDeallocator(b.deallocator)

	e.loader = assets.NewLoader(e.dispatcher)
	e.loader.SetFS(b.fsys)

	if b.tracingOn {
		outputPath := b.traceOutput
		if outputPath == "" {
			outputPath = "shiba_trace_" + e.id
		}

		e.recorder = datarecording.New(outputPath)
		e.tracer = tracing.NewDBTracer(
			tracing.NewRecorderBackend(e.recorder))
		e.dispatcher.AcceptHook(e.tracer)
	}

	if b.siteStatsOn {
		e.siteStats = tracing.NewSiteStats()
		e.dispatcher.AcceptHook(e.siteStats)
	}

	if b.monitorOn {
		e.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			e.monitor.WithPortNumber(b.monitorPort)
		}

		e.monitor.RegisterDispatcher(e.dispatcher)
		if e.siteStats != nil {
			e.monitor.RegisterSiteStats(e.dispatcher, e.siteStats)
		}

		e.monitor.StartServer()
	}

	return e
}
