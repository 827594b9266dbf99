package tracing

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CSVBackend", func() {
	var (
		out     *bytes.Buffer
		backend *CSVBackend
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		backend = NewCSVBackend(out)
	})

	It("should write a header row first", func() {
		Expect(out.String()).To(Equal("ID, Op, Size, File, Line, Serving\n"))
	})

	It("should buffer records until flushed", func() {
		backend.Write(Record{
			ID: "a", Op: OpAllocate, Size: 64,
			File: "skeleton.c", Line: 3, Serving: "go",
		})

		Expect(strings.Count(out.String(), "\n")).To(Equal(1))

		backend.Flush()

		Expect(out.String()).To(ContainSubstring("a, allocate, 64, skeleton.c, 3, go"))
	})

	It("should flush when the buffer fills", func() {
		for i := 0; i < 1000; i++ {
			backend.Write(Record{ID: "r", Op: OpFree})
		}

		Expect(strings.Count(out.String(), "\n")).To(Equal(1001))
	})
})
