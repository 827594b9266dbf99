package alloc

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = Describe("Default dispatcher", func() {
	AfterEach(func() {
		SetAllocator(nil)
		SetTracedAllocator(nil)
		SetDeallocator(nil)
	})

	It("should be named default", func() {
		gomega.Expect(Default.Name()).To(gomega.Equal("default"))
	})

	It("should forward package-level calls to the Default dispatcher", func() {
		sizes := []int{}
		SetAllocator(func(size int) []byte {
			sizes = append(sizes, size)
			return make([]byte, size)
		})

		buf := Allocate(40)
		Free(buf)

		gomega.Expect(sizes).To(gomega.Equal([]int{40}))
	})

	It("should forward traced allocations with their sites", func() {
		var got CallSite
		SetTracedAllocator(func(size int, site CallSite) []byte {
			got = site
			return make([]byte, size)
		})

		AllocateTraced(8, CallSite{File: "test.c", Line: 42})

		gomega.Expect(got).To(gomega.Equal(CallSite{File: "test.c", Line: 42}))
	})

	It("should forward zeroed and resized allocations", func() {
		buf := AllocateZeroed(6)
		gomega.Expect(buf).To(gomega.Equal(make([]byte, 6)))

		buf = Reallocate(buf, 12)
		gomega.Expect(buf).To(gomega.HaveLen(12))

		Free(buf)
	})
})
