package alloc

import (
	"fmt"
	"runtime"
)

// A CallSite identifies the source location that requested an allocation.
// The zero value marks an unknown site.
type CallSite struct {
	File string
	Line int
}

// Here returns the CallSite of the caller. It is the Go counterpart of the
// FILE/LINE pair that native runtimes attach to their allocation macros.
func Here() CallSite {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return CallSite{}
	}

	return CallSite{File: file, Line: line}
}

// IsZero reports whether the site is unknown.
func (s CallSite) IsZero() bool {
	return s.File == "" && s.Line == 0
}

func (s CallSite) String() string {
	if s.IsZero() {
		return "unknown"
	}

	return fmt.Sprintf("%s:%d", s.File, s.Line)
}
