package tracing

import (
	"github.com/sarchlab/shiba/datarecording"
)

// TraceTableName is the table recorder backends write records into.
const TraceTableName = "allocation_trace"

// recorderBackend stores records through a datarecording.DataRecorder.
type recorderBackend struct {
	recorder datarecording.DataRecorder
}

// NewRecorderBackend creates a Backend that writes every record into the
// allocation_trace table of rec. The recorder keeps its own batching.
func NewRecorderBackend(rec datarecording.DataRecorder) Backend {
	rec.CreateTable(TraceTableName, Record{})

	return &recorderBackend{recorder: rec}
}

func (b *recorderBackend) Write(rec Record) {
	b.recorder.InsertData(TraceTableName, rec)
}

func (b *recorderBackend) Flush() {
	b.recorder.Flush()
}
