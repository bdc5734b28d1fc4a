package mmu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/kmem/mem/vm"
)

var _ = Describe("MMU", func() {
	var (
		mmu    *Comp
		tables *vm.PageTableArray
	)

	BeforeEach(func() {
		mmu = MakeBuilder().
			WithTLBGeometry(4, 4).
			Build("MMU")

		tables = &vm.PageTableArray{}
		tables.Tables[vm.PrivateTable].Entries[1] =
			vm.PTE{Present: true, Writable: false, Frame: 0x100}
		tables.Tables[vm.PrivateTable].Entries[2] =
			vm.PTE{Present: true, Writable: true, Frame: 0x200}
	})

	It("should refuse to translate without active tables", func() {
		_, err := mmu.Translate(0x401000, false)

		Expect(err).To(MatchError(vm.ErrPageNotPresent))
	})

	It("should panic if the page size does not match the page tables", func() {
		Expect(func() {
			MakeBuilder().WithLog2PageSize(16).Build("MMU")
		}).To(Panic())
	})

	Context("with active tables", func() {
		BeforeEach(func() {
			mmu.Activate(tables)
		})

		It("should translate a present page", func() {
			pAddr, err := mmu.Translate(0x401abc, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(pAddr).To(Equal(uint64(0x100abc)))
		})

		It("should reject writes to read-only pages", func() {
			_, err := mmu.Translate(0x401000, true)

			Expect(err).To(MatchError(vm.ErrWriteProtected))
		})

		It("should allow writes to writable pages", func() {
			pAddr, err := mmu.Translate(0x402010, true)

			Expect(err).NotTo(HaveOccurred())
			Expect(pAddr).To(Equal(uint64(0x200010)))
		})

		It("should report unmapped pages", func() {
			_, err := mmu.Translate(0x403000, false)

			Expect(err).To(MatchError(vm.ErrPageNotPresent))
		})

		It("should report addresses beyond user space", func() {
			_, err := mmu.Translate(vm.UserSpaceSize, false)

			Expect(err).To(MatchError(vm.ErrAddressOutOfRange))
		})

		It("should serve repeated translations from the TLB", func() {
			_, err := mmu.Translate(0x401000, false)
			Expect(err).NotTo(HaveOccurred())
			_, err = mmu.Translate(0x401004, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(mmu.TLB().Stats().Hits).To(Equal(uint64(1)))
		})

		It("should keep serving stale entries until invalidated", func() {
			_, err := mmu.Translate(0x401000, false)
			Expect(err).NotTo(HaveOccurred())

			tables.Tables[vm.PrivateTable].Entries[1] = vm.PTE{}

			_, err = mmu.Translate(0x401000, false)
			Expect(err).NotTo(HaveOccurred())

			mmu.Invalidate()

			_, err = mmu.Translate(0x401000, false)
			Expect(err).To(MatchError(vm.ErrPageNotPresent))
		})

		It("should drop cached translations on a context switch", func() {
			_, err := mmu.Translate(0x401000, false)
			Expect(err).NotTo(HaveOccurred())

			other := &vm.PageTableArray{}
			mmu.Activate(other)

			Expect(mmu.ActiveTables()).To(BeIdenticalTo(other))
			_, err = mmu.Translate(0x401000, false)
			Expect(err).To(MatchError(vm.ErrPageNotPresent))
			Expect(mmu.NumReloads()).To(Equal(uint64(2)))
		})
	})
})
