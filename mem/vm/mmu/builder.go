package mmu

import (
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/tlb"
)

// A Builder can build MMU component
type Builder struct {
	log2PageSize uint64
	tlb          *tlb.Comp
	numSets      int
	numWays      int
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: vm.Log2PageSize,
		numSets:      1,
		numWays:      64,
	}
}

// WithLog2PageSize sets the page size that the mmu support.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithTLB sets the TLB that caches the translations of the MMU. If not set, a
// TLB is built from the set and way counts.
func (b Builder) WithTLB(t *tlb.Comp) Builder {
	b.tlb = t
	return b
}

// WithTLBGeometry sets the number of sets and ways of the TLB that the MMU
// builds for itself.
func (b Builder) WithTLBGeometry(numSets, numWays int) Builder {
	b.numSets = numSets
	b.numWays = numWays
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	if b.log2PageSize != vm.Log2PageSize {
		panic("page table page size does not match MMU page size")
	}

	mmu := new(Comp)
	mmu.name = name
	mmu.log2PageSize = b.log2PageSize
	mmu.tlb = b.tlb

	if mmu.tlb == nil {
		mmu.tlb = tlb.MakeBuilder().
			WithNumSets(b.numSets).
			WithNumWays(b.numWays).
			WithLog2PageSize(b.log2PageSize).
			Build(name + ".TLB")
	}

	return mmu
}
