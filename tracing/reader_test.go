package tracing

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiba/datarecording"
)

var _ = Describe("TraceReader", func() {
	var reader *TraceReader

	BeforeEach(func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "trace")

		recorder := datarecording.New(dbPath)
		backend := NewRecorderBackend(recorder)

		backend.Write(Record{
			ID: "01", Op: OpAllocate, Size: 100,
			File: "skeleton.c", Line: 10, Serving: "custom",
		})
		backend.Write(Record{
			ID: "02", Op: OpAllocate, Size: 50,
			File: "skeleton.c", Line: 10, Serving: "custom",
		})
		backend.Write(Record{
			ID: "03", Op: OpAllocate, Size: 80,
			File: "atlas.c", Line: 5, Serving: "custom",
		})
		backend.Write(Record{ID: "04", Op: OpFree, Size: 100, Serving: "go"})
		backend.Flush()
		Expect(recorder.Close()).To(Succeed())

		reader = NewTraceReader(dbPath + ".sqlite3")
	})

	AfterEach(func() {
		reader.Close()
	})

	It("should summarize the trace per operation", func() {
		summary := reader.Summary()

		Expect(summary).To(HaveLen(2))
		Expect(summary[0]).To(Equal(
			OpSummary{Op: OpAllocate, Count: 3, Bytes: 230}))
		Expect(summary[1]).To(Equal(
			OpSummary{Op: OpFree, Count: 1, Bytes: 100}))
	})

	It("should aggregate allocate records per site", func() {
		sites := reader.ListSites()

		Expect(sites).To(HaveLen(2))
		Expect(sites[0]).To(Equal(SiteSummary{
			File: "skeleton.c", Line: 10, Allocations: 2, Bytes: 150,
		}))
		Expect(sites[1]).To(Equal(SiteSummary{
			File: "atlas.c", Line: 5, Allocations: 1, Bytes: 80,
		}))
	})

	It("should filter records", func() {
		records := reader.ListRecords(RecordQuery{Op: OpAllocate, MinSize: 60})

		Expect(records).To(HaveLen(2))
		Expect(records[0].ID).To(Equal("01"))
		Expect(records[1].ID).To(Equal("03"))
	})

	It("should cap results at the limit", func() {
		records := reader.ListRecords(RecordQuery{Limit: 2})

		Expect(records).To(HaveLen(2))
	})
})
