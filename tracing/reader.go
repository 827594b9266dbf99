package tracing

import (
	"database/sql"
	"fmt"
	"strings"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// RecordQuery selects trace records. Zero-valued fields are ignored.
type RecordQuery struct {
	// Use Op to select records of one operation, such as OpAllocate.
	Op string

	// Use File to select records attributed to one file.
	File string

	// Use MinSize to select records of at least MinSize bytes.
	MinSize int64

	// Limit caps the number of returned records. Zero means no cap.
	Limit int
}

// An OpSummary sums a trace per operation.
type OpSummary struct {
	Op    string
	Count int64
	Bytes int64
}

// A SiteSummary sums the allocate records attributed to one call site.
type SiteSummary struct {
	File        string
	Line        int64
	Allocations int64
	Bytes       int64
}

// A TraceReader parses a recorded trace database.
type TraceReader struct {
	*sql.DB
}

// NewTraceReader opens the trace database at filename.
func NewTraceReader(filename string) *TraceReader {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	return &TraceReader{DB: db}
}

// Summary returns per-operation totals, in operation name order.
func (r *TraceReader) Summary() []OpSummary {
	rows, err := r.Query("SELECT Op, COUNT(*), COALESCE(SUM(Size), 0) FROM " +
		TraceTableName + " GROUP BY Op ORDER BY Op")
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var summaries []OpSummary

	for rows.Next() {
		var s OpSummary

		err := rows.Scan(&s.Op, &s.Count, &s.Bytes)
		if err != nil {
			panic(err)
		}

		summaries = append(summaries, s)
	}

	mustHaveNoError(rows)

	return summaries
}

// ListSites aggregates allocate records per call site, most bytes first.
func (r *TraceReader) ListSites() []SiteSummary {
	rows, err := r.Query("SELECT File, Line, COUNT(*), COALESCE(SUM(Size), 0) FROM " +
		TraceTableName + " WHERE Op = '" + OpAllocate + "' " +
		"GROUP BY File, Line ORDER BY SUM(Size) DESC, File, Line")
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var sites []SiteSummary

	for rows.Next() {
		var s SiteSummary

		err := rows.Scan(&s.File, &s.Line, &s.Allocations, &s.Bytes)
		if err != nil {
			panic(err)
		}

		sites = append(sites, s)
	}

	mustHaveNoError(rows)

	return sites
}

// ListRecords returns the records selected by query, oldest first.
func (r *TraceReader) ListRecords(query RecordQuery) []Record {
	sqlStr := "SELECT ID, Op, Size, File, Line, Serving FROM " + TraceTableName

	var conds []string

	var args []any

	if query.Op != "" {
		conds = append(conds, "Op = ?")
		args = append(args, query.Op)
	}

	if query.File != "" {
		conds = append(conds, "File = ?")
		args = append(args, query.File)
	}

	if query.MinSize > 0 {
		conds = append(conds, "Size >= ?")
		args = append(args, query.MinSize)
	}

	if len(conds) > 0 {
		sqlStr += " WHERE " + strings.Join(conds, " AND ")
	}

	// Event IDs sort by creation time, so this keeps trace order.
	sqlStr += " ORDER BY ID"

	if query.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var rec Record

		err := rows.Scan(&rec.ID, &rec.Op, &rec.Size, &rec.File, &rec.Line,
			&rec.Serving)
		if err != nil {
			panic(err)
		}

		records = append(records, rec)
	}

	mustHaveNoError(rows)

	return records
}

func mustHaveNoError(rows *sql.Rows) {
	if err := rows.Err(); err != nil {
		panic(err)
	}
}
