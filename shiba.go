// Package shiba assembles the allocation dispatch layer, the asset
// loader, and the optional debug facilities into one environment that a
// host application owns explicitly.
package shiba

import (
	"github.com/sarchlab/shiba/alloc"
	"github.com/sarchlab/shiba/assets"
	"github.com/sarchlab/shiba/datarecording"
	"github.com/sarchlab/shiba/monitoring"
	"github.com/sarchlab/shiba/tracing"
)

// An Env provides the services that an embedded runtime host needs. Build
// one with a Builder.
type Env struct {
	id         string
	terminated bool

	dispatcher *alloc.Dispatcher
	loader     *assets.Loader

	recorder  datarecording.DataRecorder
	tracer    *tracing.DBTracer
	siteStats *tracing.SiteStats
	monitor   *monitoring.Monitor
}

// ID returns the unique identifier of the environment.
func (e *Env) ID() string {
	return e.id
}

// Dispatcher returns the allocation dispatcher of the environment.
func (e *Env) Dispatcher() *alloc.Dispatcher {
	return e.dispatcher
}

// Loader returns the asset loader of the environment.
func (e *Env) Loader() *assets.Loader {
	return e.loader
}

// Recorder returns the data recorder of the environment. It is nil unless
// tracing is enabled.
func (e *Env) Recorder() datarecording.DataRecorder {
	return e.recorder
}

// SiteStats returns the per-call-site aggregate of the environment. It is
// nil unless site stats are enabled.
func (e *Env) SiteStats() *tracing.SiteStats {
	return e.siteStats
}

// Monitor returns the monitor of the environment. It is nil unless
// monitoring is enabled.
func (e *Env) Monitor() *monitoring.Monitor {
	return e.monitor
}

// Terminate flushes and closes everything the environment owns. The
// dispatcher stays usable, but its requests are no longer traced.
// Terminating twice is a no-op.
func (e *Env) Terminate() {
	if e.terminated {
		return
	}
	e.terminated = true

	if e.tracer != nil {
		e.tracer.Terminate()
	}

	if e.recorder != nil {
		err := e.recorder.Close()
		if err != nil {
			panic(err)
		}
	}
}
