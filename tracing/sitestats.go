package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/shiba/alloc"
)

// A SiteRow aggregates the allocations attributed to one call site.
type SiteRow struct {
	File        string
	Line        int64
	Allocations uint64
	Bytes       uint64
	LastSize    int64
}

// SiteStats is a hook that aggregates allocation totals per call site,
// in memory. Allocations without provenance collect under the "unknown"
// site.
type SiteStats struct {
	mu    sync.Mutex
	sites map[alloc.CallSite]*SiteRow
}

// NewSiteStats creates an empty aggregate.
func NewSiteStats() *SiteStats {
	return &SiteStats{sites: make(map[alloc.CallSite]*SiteRow)}
}

// Func accumulates one allocation event.
func (s *SiteStats) Func(ctx alloc.HookCtx) {
	if ctx.Pos != alloc.HookPosAllocate {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sites[ctx.Event.Site]
	if !ok {
		row = &SiteRow{
			File: ctx.Event.Site.File,
			Line: int64(ctx.Event.Site.Line),
		}
		if row.File == "" {
			row.File = "unknown"
		}

		s.sites[ctx.Event.Site] = row
	}

	row.Allocations++
	row.Bytes += uint64(ctx.Event.Size)
	row.LastSize = int64(ctx.Event.Size)
}

// Snapshot returns a copy of every site row, most bytes first.
func (s *SiteStats) Snapshot() []SiteRow {
	s.mu.Lock()

	rows := make([]SiteRow, 0, len(s.sites))
	for _, row := range s.sites {
		rows = append(rows, *row)
	}

	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bytes != rows[j].Bytes {
			return rows[i].Bytes > rows[j].Bytes
		}

		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}

		return rows[i].Line < rows[j].Line
	})

	return rows
}

// Top returns the n sites with the most allocated bytes.
func (s *SiteStats) Top(n int) []SiteRow {
	rows := s.Snapshot()

	if n < 0 {
		n = 0
	}

	if n < len(rows) {
		rows = rows[:n]
	}

	return rows
}
