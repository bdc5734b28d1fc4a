package tracing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/kmem/datarecording"
	"github.com/sarchlab/kmem/mem/frame"
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
	"github.com/sarchlab/kmem/mem/vm/mmu"
	"github.com/sarchlab/kmem/sim/hooking"
	"go.uber.org/mock/gomock"
)

type fixedContext struct {
	err error
}

func (c *fixedContext) TextBaseFrame() vm.Frame { return 0x40 }
func (c *fixedContext) DataBaseFrame() vm.Frame { return 0x80 }
func (c *fixedContext) SetError(err error)      { c.err = err }

func buildDescriptor(ctx addrspace.ExecutionContext) *addrspace.Descriptor {
	return addrspace.MakeBuilder().
		WithAllocator(frame.NewBitmapAllocator(0x100000, 64)).
		WithInvalidator(mmu.MakeBuilder().Build("MMU")).
		WithContext(ctx).
		Build("Proc[1].Memory")
}

var _ = Describe("MappingTracer", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockRecorder
		tracer   *MappingTracer
		as       *addrspace.Descriptor
		entries  []datarecording.Event
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockRecorder(mockCtrl)
		entries = nil

		recorder.EXPECT().
			Record(gomock.Any()).
			Do(func(e datarecording.Event) {
				entries = append(entries, e)
			}).
			AnyTimes()

		tracer = NewMappingTracer(recorder)
		as = buildDescriptor(&fixedContext{})
		as.AcceptHook(tracer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record a successful establish", func() {
		err := as.Establish(0, 2*vm.PageSize, 2*vm.PageSize, vm.PageSize, vm.PageSize)
		Expect(err).NotTo(HaveOccurred())

		Expect(entries).To(HaveLen(1))
		e := entries[0]
		Expect(e.ID).NotTo(BeEmpty())
		Expect(e.Domain).To(Equal("Proc[1].Memory"))
		Expect(e.Event).To(Equal(addrspace.HookPosEstablished.Name))
		Expect(e.TextSize).To(Equal(uint64(2 * vm.PageSize)))
		Expect(e.DataStart).To(Equal(uint64(2 * vm.PageSize)))
		Expect(e.StackSize).To(Equal(uint64(vm.PageSize)))
		Expect(e.MappedPages).To(Equal(5))
		Expect(e.Error).To(BeEmpty())
	})

	It("should record a failed establish with its error", func() {
		err := as.Establish(0, vm.UserSpaceSize, 0, 0, 0)
		Expect(errors.Is(err, vm.ErrOutOfMemory)).To(BeTrue())

		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Event).To(Equal(addrspace.HookPosEstablishFailed.Name))
		Expect(entries[0].Error).To(ContainSubstring("out of memory"))
	})

	It("should record clear and release", func() {
		Expect(as.Establish(0, vm.PageSize, vm.PageSize, 0, 0)).To(Succeed())
		as.Clear()
		as.Release()

		Expect(entries).To(HaveLen(3))
		Expect(entries[1].Event).To(Equal(addrspace.HookPosCleared.Name))
		Expect(entries[1].MappedPages).To(BeZero())
		Expect(entries[2].Event).To(Equal(addrspace.HookPosReleased.Name))
	})

	It("should give every row its own ID", func() {
		Expect(as.Establish(0, vm.PageSize, vm.PageSize, 0, 0)).To(Succeed())
		Expect(as.Establish(0, vm.PageSize, vm.PageSize, 0, 0)).To(Succeed())

		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ID).NotTo(Equal(entries[1].ID))
	})

	It("should ignore items that are not address-space events", func() {
		tracer.Func(hooking.HookCtx{
			Domain: as,
			Pos:    addrspace.HookPosEstablished,
			Item:   "not an event",
		})

		Expect(entries).To(BeEmpty())
	})

	It("should flush the recorder", func() {
		recorder.EXPECT().Flush()

		tracer.Flush()
	})
})

var _ = Describe("EventCounter", func() {
	It("should count events per position", func() {
		counter := NewEventCounter()
		as := buildDescriptor(&fixedContext{})
		as.AcceptHook(counter)

		Expect(as.Establish(0, vm.PageSize, 0, 0, 0)).To(Succeed())
		Expect(as.Establish(0, vm.PageSize, 0, 0, 0)).To(Succeed())
		Expect(as.Establish(vm.UserSpaceSize, 0, 0, 0, 0)).NotTo(Succeed())

		Expect(counter.Names()).To(Equal([]string{
			addrspace.HookPosEstablished.Name,
			addrspace.HookPosEstablishFailed.Name,
		}))
		Expect(counter.Count(addrspace.HookPosEstablished.Name)).
			To(Equal(uint64(2)))
		Expect(counter.Counts()).
			To(HaveKeyWithValue(addrspace.HookPosEstablishFailed.Name, uint64(1)))
	})
})
