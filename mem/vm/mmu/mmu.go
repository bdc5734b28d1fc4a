// Package mmu models the memory-management unit: the register that points at
// the active page tables and the TLB that caches their entries.
package mmu

import (
	"fmt"

	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/tlb"
)

// Comp is the default mmu implementation.
type Comp struct {
	name         string
	log2PageSize uint64

	tlb          *tlb.Comp
	activeTables *vm.PageTableArray
	numReloads   uint64
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// TLB returns the translation cache of the MMU.
func (c *Comp) TLB() *tlb.Comp {
	return c.tlb
}

// ActiveTables returns the page tables that the MMU currently translates with.
func (c *Comp) ActiveTables() *vm.PageTableArray {
	return c.activeTables
}

// NumReloads returns how many times the page directory has been reloaded.
func (c *Comp) NumReloads() uint64 {
	return c.numReloads
}

// Activate points the MMU at the page tables of the address space that is
// about to run and drops every translation cached for the previous one.
func (c *Comp) Activate(tables *vm.PageTableArray) {
	c.activeTables = tables
	c.Invalidate()
}

// Invalidate reloads the page directory, so that entries written since the
// last reload become visible, and flushes the TLB.
func (c *Comp) Invalidate() {
	c.numReloads++
	c.tlb.Flush()
}

// Translate returns the physical address that vAddr maps to in the active
// address space. Writing through a read-only entry fails with
// vm.ErrWriteProtected.
func (c *Comp) Translate(vAddr uint64, write bool) (uint64, error) {
	pte, err := c.lookup(vAddr)
	if err != nil {
		return 0, err
	}

	if write && !pte.Writable {
		return 0, fmt.Errorf("%w: 0x%x", vm.ErrWriteProtected, vAddr)
	}

	offset := vAddr & (1<<c.log2PageSize - 1)

	return pte.Frame.Address() + offset, nil
}

func (c *Comp) lookup(vAddr uint64) (vm.PTE, error) {
	if pte, found := c.tlb.Lookup(vAddr); found {
		return pte, nil
	}

	if c.activeTables == nil {
		return vm.PTE{}, fmt.Errorf("%w: no active page tables",
			vm.ErrPageNotPresent)
	}

	pte, err := c.activeTables.Lookup(vAddr)
	if err != nil {
		return vm.PTE{}, err
	}

	c.tlb.Insert(vAddr, pte)

	return pte, nil
}
