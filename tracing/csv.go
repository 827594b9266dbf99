package tracing

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVBackend writes trace records as CSV rows. Writes buffer in memory and
// go out on Flush or when the buffer fills.
type CSVBackend struct {
	out io.Writer

	records    []Record
	bufferSize int
}

// NewCSVBackend creates a Backend that writes one row per record to w,
// preceded by a header row.
func NewCSVBackend(w io.Writer) *CSVBackend {
	b := &CSVBackend{
		out:        w,
		bufferSize: 1000,
	}

	fmt.Fprintf(w, "ID, Op, Size, File, Line, Serving\n")

	return b
}

// NewCSVFileBackend creates a CSV backend writing to path + ".csv". An
// empty path picks a unique name. The file flushes and closes at process
// exit.
func NewCSVFileBackend(path string) *CSVBackend {
	if path == "" {
		path = "shiba_trace_" + xid.New().String()
	}

	filename := path + ".csv"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}

	b := NewCSVBackend(file)

	atexit.Register(func() {
		b.Flush()

		err := file.Close()
		if err != nil {
			panic(err)
		}
	})

	return b
}

// Write buffers one record.
func (b *CSVBackend) Write(rec Record) {
	b.records = append(b.records, rec)
	if len(b.records) >= b.bufferSize {
		b.Flush()
	}
}

// Flush writes the buffered records out.
func (b *CSVBackend) Flush() {
	for _, rec := range b.records {
		fmt.Fprintf(b.out, "%s, %s, %d, %s, %d, %s\n",
			rec.ID, rec.Op, rec.Size, rec.File, rec.Line, rec.Serving)
	}

	b.records = nil
}
