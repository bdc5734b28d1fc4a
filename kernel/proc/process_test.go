package proc

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/kmem/mem/frame"
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
	"github.com/sarchlab/kmem/mem/vm/mmu"
)

var _ = Describe("Errno", func() {
	It("should map memory errors to error codes", func() {
		Expect(ErrnoFor(nil)).To(Equal(ENOERR))
		Expect(ErrnoFor(vm.ErrOutOfMemory)).To(Equal(ENOMEM))
		Expect(ErrnoFor(vm.ErrInvalidLayout)).To(Equal(EINVAL))
		Expect(ErrnoFor(errors.New("other"))).To(Equal(EINVAL))
		Expect(ENOMEM.String()).To(Equal("ENOMEM"))
		Expect(Errno(99).String()).To(Equal("Errno(99)"))
	})
})

var _ = Describe("Process", func() {
	var (
		allocator *frame.BitmapAllocator
		m         *mmu.Comp
		text      *Text
		p         *Process
	)

	BeforeEach(func() {
		allocator = frame.NewBitmapAllocator(0, 1024)
		m = mmu.MakeBuilder().Build("MMU")

		textAddr, err := allocator.Allocate(2 * vm.PageSize)
		Expect(err).NotTo(HaveOccurred())
		text = &Text{CoreAddress: textAddr, Size: 2 * vm.PageSize}

		procAddr, err := allocator.Allocate(4 * vm.PageSize)
		Expect(err).NotTo(HaveOccurred())

		b := addrspace.MakeBuilder().
			WithAllocator(allocator).
			WithInvalidator(m).
			WithLogger(GinkgoLogr)
		p = New(1, procAddr, 4*vm.PageSize, text, b)
	})

	It("should derive the base frames of its segments", func() {
		Expect(p.TextBaseFrame()).To(Equal(vm.Frame(0)))
		Expect(p.DataBaseFrame()).To(Equal(vm.Frame(2 + UserAreaPages)))
		Expect(text.RefCount).To(Equal(1))
		Expect(p.Memory.Name()).To(Equal("Proc[1].Memory"))
	})

	It("should use frame 0 as text base without text", func() {
		p.Text = nil

		Expect(p.TextBaseFrame()).To(Equal(vm.Frame(0)))
	})

	It("should translate through the MMU after a switch", func() {
		err := p.Memory.Establish(0x401000, 2*vm.PageSize,
			0x403000, vm.PageSize, vm.PageSize)
		Expect(err).NotTo(HaveOccurred())

		p.SwitchTo(m)

		pAddr, err := m.Translate(0x402010, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(pAddr).To(Equal(text.CoreAddress + vm.PageSize + 0x10))

		_, err = m.Translate(0x401000, true)
		Expect(err).To(MatchError(vm.ErrWriteProtected))

		pAddr, err = m.Translate(0x403000, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(pAddr).To(Equal(p.DataBaseFrame().Address()))

		pAddr, err = m.Translate(vm.UserSpaceSize-4, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(pAddr).To(Equal((p.DataBaseFrame() + 1).Address() + 0xffc))
	})

	It("should keep two processes isolated", func() {
		otherAddr, err := allocator.Allocate(4 * vm.PageSize)
		Expect(err).NotTo(HaveOccurred())
		other := New(2, otherAddr, 4*vm.PageSize, text,
			addrspace.MakeBuilder().
				WithAllocator(allocator).
				WithInvalidator(m))

		Expect(p.Memory.Establish(0, vm.PageSize, 0, vm.PageSize, 0)).
			To(Succeed())
		Expect(other.Memory.Establish(0, vm.PageSize, 0, vm.PageSize, 0)).
			To(Succeed())

		p.SwitchTo(m)
		mine, err := m.Translate(0x402000, true)
		Expect(err).NotTo(HaveOccurred())

		other.SwitchTo(m)
		theirs, err := m.Translate(0x402000, true)
		Expect(err).NotTo(HaveOccurred())

		Expect(mine).To(Equal(p.DataBaseFrame().Address()))
		Expect(theirs).To(Equal(other.DataBaseFrame().Address()))
		Expect(text.RefCount).To(Equal(2))
	})

	It("should record ENOMEM when the segments do not fit", func() {
		err := p.Memory.Establish(0, vm.UserSpaceSize, 0, 0, 0)

		Expect(err).To(HaveOccurred())
		Expect(p.Errno).To(Equal(ENOMEM))
	})

	It("should record EINVAL when the layout is impossible", func() {
		err := p.Memory.Establish(0, 3<<20, 0, 1<<20, 0)

		Expect(err).To(HaveOccurred())
		Expect(p.Errno).To(Equal(EINVAL))
	})

	It("should stop translating through the tables of an exited process", func() {
		Expect(p.Memory.Establish(0, vm.PageSize, 0, vm.PageSize,
			vm.PageSize)).To(Succeed())
		p.SwitchTo(m)

		_, err := m.Translate(0x402000, true)
		Expect(err).NotTo(HaveOccurred())

		p.Exit()

		Expect(m.ActiveTables()).To(BeNil())
		_, err = m.Translate(0x402000, true)
		Expect(err).To(MatchError(vm.ErrPageNotPresent))
	})

	It("should leave another process active when exiting", func() {
		other := New(2, 0x100000, 4*vm.PageSize, text,
			addrspace.MakeBuilder().
				WithAllocator(allocator).
				WithInvalidator(m))

		Expect(p.Memory.Establish(0, vm.PageSize, 0, vm.PageSize, 0)).
			To(Succeed())
		Expect(other.Memory.Establish(0, vm.PageSize, 0, vm.PageSize, 0)).
			To(Succeed())

		p.SwitchTo(m)
		other.SwitchTo(m)
		p.Exit()

		Expect(m.ActiveTables()).To(BeIdenticalTo(other.Memory.PageTables()))
		pAddr, err := m.Translate(0x402000, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(pAddr).To(Equal(other.DataBaseFrame().Address()))
	})

	It("should not serve stale translations after the tables are released", func() {
		Expect(p.Memory.Establish(0, vm.PageSize, 0, vm.PageSize, 0)).
			To(Succeed())
		p.SwitchTo(m)
		_, err := m.Translate(0x402000, true)
		Expect(err).NotTo(HaveOccurred())

		tables := m.ActiveTables()
		p.Memory.Release()

		Expect(m.ActiveTables()).To(BeIdenticalTo(tables))
		_, err = m.Translate(0x402000, true)
		Expect(err).To(MatchError(vm.ErrPageNotPresent))
	})

	It("should give back the page tables on exit", func() {
		free := allocator.FreeFrames()
		Expect(p.Memory.Establish(0, vm.PageSize, 0, 0, 0)).To(Succeed())
		Expect(allocator.FreeFrames()).To(Equal(free - 2))

		p.Exit()
		p.Exit()

		Expect(allocator.FreeFrames()).To(Equal(free))
		Expect(text.RefCount).To(BeZero())
	})
})
