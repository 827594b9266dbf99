package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/shiba/alloc"
)

type stubBackend struct {
	records []Record
	flushes int
}

func (b *stubBackend) Write(rec Record) {
	b.records = append(b.records, rec)
}

func (b *stubBackend) Flush() {
	b.flushes++
}

var _ = Describe("DBTracer", func() {
	var (
		backend    *stubBackend
		tracer     *DBTracer
		dispatcher *alloc.Dispatcher
	)

	BeforeEach(func() {
		backend = &stubBackend{}
		tracer = &DBTracer{backend: backend}
		dispatcher = alloc.NewDispatcher("traced")
		dispatcher.AcceptHook(tracer)
	})

	It("should record allocations with provenance", func() {
		buf := dispatcher.AllocateTraced(
			128, alloc.CallSite{File: "skeleton.c", Line: 77})

		Expect(buf).To(HaveLen(128))
		Expect(backend.records).To(HaveLen(1))

		rec := backend.records[0]
		Expect(rec.Op).To(Equal(OpAllocate))
		Expect(rec.Size).To(Equal(int64(128)))
		Expect(rec.File).To(Equal("skeleton.c"))
		Expect(rec.Line).To(Equal(int64(77)))
		Expect(rec.Serving).To(Equal("go"))
		Expect(rec.ID).NotTo(BeEmpty())
	})

	It("should record failed allocations", func() {
		dispatcher.SetAllocator(func(size int) []byte { return nil })

		buf := dispatcher.Allocate(64)

		Expect(buf).To(BeNil())
		Expect(backend.records).To(HaveLen(1))
		Expect(backend.records[0].Op).To(Equal(OpAllocateFail))
		Expect(backend.records[0].Size).To(Equal(int64(64)))
	})

	It("should record frees", func() {
		buf := dispatcher.Allocate(32)
		dispatcher.Free(buf)

		Expect(backend.records).To(HaveLen(2))
		Expect(backend.records[1].Op).To(Equal(OpFree))
		Expect(backend.records[1].Size).To(Equal(int64(32)))
	})

	It("should give each record a unique ID", func() {
		dispatcher.Allocate(8)
		dispatcher.Allocate(8)

		Expect(backend.records).To(HaveLen(2))
		Expect(backend.records[0].ID).NotTo(Equal(backend.records[1].ID))
	})

	It("should flush the backend on termination", func() {
		tracer.Terminate()

		Expect(backend.flushes).To(Equal(1))
	})

	It("should drop events observed after termination", func() {
		tracer.Terminate()

		dispatcher.Allocate(16)

		Expect(backend.records).To(BeEmpty())
	})
})
