package alloc

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Dispatcher", func() {
	var (
		mockCtrl *gomock.Controller
		d        *Dispatcher
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		d = NewDispatcher("test")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic on an empty name", func() {
		gomega.Expect(func() { NewDispatcher("") }).To(gomega.Panic())
	})

	It("should allocate from the Go heap by default", func() {
		buf := d.Allocate(64)

		gomega.Expect(buf).To(gomega.HaveLen(64))

		allocate, traced, free := d.Strategy()
		gomega.Expect(allocate).To(gomega.Equal("go"))
		gomega.Expect(traced).To(gomega.Equal("passthrough"))
		gomega.Expect(free).To(gomega.Equal("go"))
	})

	It("should return nil for non-positive sizes without dispatching", func() {
		calls := 0
		d.SetAllocator(func(size int) []byte {
			calls++
			return make([]byte, size)
		})

		gomega.Expect(d.Allocate(0)).To(gomega.BeNil())
		gomega.Expect(d.Allocate(-4)).To(gomega.BeNil())
		gomega.Expect(d.AllocateZeroed(0)).To(gomega.BeNil())
		gomega.Expect(calls).To(gomega.Equal(0))
	})

	It("should route every allocation through a registered override", func() {
		calls := 0
		d.SetAllocator(func(size int) []byte {
			calls++
			return make([]byte, size)
		})

		for i := 0; i < 5; i++ {
			gomega.Expect(d.Allocate(16)).To(gomega.HaveLen(16))
		}

		gomega.Expect(calls).To(gomega.Equal(5))
	})

	It("should pass provenance through unmodified", func() {
		var got CallSite
		d.SetTracedAllocator(func(size int, site CallSite) []byte {
			got = site
			return make([]byte, size)
		})

		d.AllocateTraced(32, CallSite{File: "test.c", Line: 42})

		gomega.Expect(got).To(gomega.Equal(CallSite{File: "test.c", Line: 42}))
	})

	It("should serve plain allocations through the traced override", func() {
		sites := []CallSite{}
		d.SetTracedAllocator(func(size int, site CallSite) []byte {
			sites = append(sites, site)
			return make([]byte, size)
		})

		d.Allocate(8)

		gomega.Expect(sites).To(gomega.HaveLen(1))
		gomega.Expect(sites[0].IsZero()).To(gomega.BeTrue())
	})

	It("should fall back to the allocate slot when no traced override is registered", func() {
		calls := 0
		d.SetAllocator(func(size int) []byte {
			calls++
			return make([]byte, size)
		})

		buf := d.AllocateTraced(24, CallSite{File: "atlas.c", Line: 9})

		gomega.Expect(buf).To(gomega.HaveLen(24))
		gomega.Expect(calls).To(gomega.Equal(1))
	})

	It("should propagate a nil result unchanged", func() {
		d.SetAllocator(func(size int) []byte { return nil })

		gomega.Expect(d.Allocate(1 << 20)).To(gomega.BeNil())
		gomega.Expect(d.Stats().FailedAllocations).To(gomega.Equal(uint64(1)))
	})

	It("should zero recycled buffers on zeroed allocation", func() {
		backing := make([]byte, 64)
		for i := range backing {
			backing[i] = 0xAB
		}
		d.SetAllocator(func(size int) []byte { return backing[:size] })

		buf := d.AllocateZeroed(8)

		gomega.Expect(buf).To(gomega.Equal(make([]byte, 8)))
	})

	It("should zero recycled buffers through a traced override", func() {
		backing := make([]byte, 64)
		for i := range backing {
			backing[i] = 0xCD
		}
		d.SetTracedAllocator(func(size int, _ CallSite) []byte {
			return backing[:size]
		})

		buf := d.AllocateZeroedTraced(16, Here())

		gomega.Expect(buf).To(gomega.Equal(make([]byte, 16)))
	})

	It("should revert to the default when registering nil", func() {
		d.SetAllocator(func(size int) []byte { return nil })
		d.SetTracedAllocator(func(size int, _ CallSite) []byte { return nil })
		d.SetDeallocator(func([]byte) {})

		d.SetAllocator(nil)
		d.SetTracedAllocator(nil)
		d.SetDeallocator(nil)

		fresh := NewDispatcher("fresh")
		gomega.Expect(d.Allocate(32)).To(gomega.Equal(fresh.Allocate(32)))

		allocate, traced, free := d.Strategy()
		gomega.Expect(allocate).To(gomega.Equal("go"))
		gomega.Expect(traced).To(gomega.Equal("passthrough"))
		gomega.Expect(free).To(gomega.Equal("go"))
	})

	It("should treat re-registration as last-wins", func() {
		first := 0
		second := 0

		d.SetAllocator(func(size int) []byte {
			first++
			return make([]byte, size)
		})
		d.SetAllocator(func(size int) []byte {
			second++
			return make([]byte, size)
		})

		d.Allocate(8)

		gomega.Expect(first).To(gomega.Equal(0))
		gomega.Expect(second).To(gomega.Equal(1))
	})

	It("should free through the override and skip empty buffers", func() {
		freed := 0
		d.SetDeallocator(func(buf []byte) { freed++ })

		d.Free(nil)
		d.Free([]byte{})

		buf := d.Allocate(4)
		d.Free(buf)

		gomega.Expect(freed).To(gomega.Equal(1))
	})

	It("should reallocate preserving contents", func() {
		buf := d.Allocate(4)
		copy(buf, []byte{1, 2, 3, 4})

		grown := d.Reallocate(buf, 8)
		gomega.Expect(grown).To(gomega.HaveLen(8))
		gomega.Expect(grown[:4]).To(gomega.Equal([]byte{1, 2, 3, 4}))

		shrunk := d.Reallocate(grown, 2)
		gomega.Expect(shrunk).To(gomega.Equal([]byte{1, 2}))

		gomega.Expect(d.Reallocate(shrunk, 0)).To(gomega.BeNil())
	})

	It("should leave the old buffer untouched when reallocation fails", func() {
		buf := d.Allocate(4)
		copy(buf, []byte{9, 9, 9, 9})

		d.SetAllocator(func(size int) []byte { return nil })

		gomega.Expect(d.Reallocate(buf, 8)).To(gomega.BeNil())
		gomega.Expect(buf).To(gomega.Equal([]byte{9, 9, 9, 9}))
	})

	It("should count allocations and frees", func() {
		buf1 := d.Allocate(10)
		buf2 := d.AllocateZeroed(20)
		d.Free(buf1)
		d.Free(buf2)

		stats := d.Stats()
		gomega.Expect(stats.Allocations).To(gomega.Equal(uint64(2)))
		gomega.Expect(stats.Frees).To(gomega.Equal(uint64(2)))
		gomega.Expect(stats.BytesRequested).To(gomega.Equal(uint64(30)))
		gomega.Expect(stats.BytesFreed).To(gomega.Equal(uint64(30)))
	})

	Context("with hooks", func() {
		It("should fire allocate hooks with pass-through sites", func() {
			var ctx HookCtx
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().
				Func(gomock.Any()).
				Do(func(c HookCtx) { ctx = c })

			d.AcceptHook(hook)
			d.AllocateTraced(16, CallSite{File: "skeleton.c", Line: 7})

			gomega.Expect(ctx.Domain).To(gomega.BeIdenticalTo(d))
			gomega.Expect(ctx.Pos).To(gomega.BeIdenticalTo(HookPosAllocate))
			gomega.Expect(ctx.Event.Size).To(gomega.Equal(16))
			gomega.Expect(ctx.Event.Site).
				To(gomega.Equal(CallSite{File: "skeleton.c", Line: 7}))
			gomega.Expect(ctx.Event.Serving).To(gomega.Equal("go"))
			gomega.Expect(ctx.Event.ID).NotTo(gomega.BeEmpty())
		})

		It("should fire fail hooks when the primitive returns nil", func() {
			d.SetAllocator(func(size int) []byte { return nil })

			var ctx HookCtx
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().
				Func(gomock.Any()).
				Do(func(c HookCtx) { ctx = c })

			d.AcceptHook(hook)
			d.Allocate(128)

			gomega.Expect(ctx.Pos).To(gomega.BeIdenticalTo(HookPosAllocateFail))
			gomega.Expect(ctx.Event.Size).To(gomega.Equal(128))
		})

		It("should fire free hooks before dispatching", func() {
			buf := d.Allocate(12)

			var ctx HookCtx
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().
				Func(gomock.Any()).
				Do(func(c HookCtx) { ctx = c })

			d.AcceptHook(hook)
			d.Free(buf)

			gomega.Expect(ctx.Pos).To(gomega.BeIdenticalTo(HookPosFree))
			gomega.Expect(ctx.Event.Size).To(gomega.Equal(12))
		})

		It("should name the serving variant in the event", func() {
			d.SetTracedAllocator(func(size int, _ CallSite) []byte {
				return make([]byte, size)
			})

			var ctx HookCtx
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().
				Func(gomock.Any()).
				Do(func(c HookCtx) { ctx = c })

			d.AcceptHook(hook)
			d.Allocate(8)

			gomega.Expect(ctx.Event.Serving).To(gomega.Equal("traced"))
		})

		It("should panic on duplicated hooks", func() {
			hook := NewMockHook(mockCtrl)

			d.AcceptHook(hook)

			gomega.Expect(func() { d.AcceptHook(hook) }).To(gomega.Panic())
			gomega.Expect(d.NumHooks()).To(gomega.Equal(1))
		})
	})
})
