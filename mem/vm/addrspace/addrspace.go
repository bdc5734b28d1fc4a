// Package addrspace builds the page tables of a user address space from the
// sizes of its text, data and stack segments.
//
// A Descriptor owns the page-table array of exactly one process. Establish
// validates the requested sizes against the 8 MiB ceiling, rewrites every
// entry of the owned tables and invalidates the translation cache. Release
// returns the storage of the tables to the frame allocator.
package addrspace

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/sim/hooking"
)

// A FrameAllocator reserves and releases physical memory. The descriptor uses
// it only for the storage of its own page-table array.
type FrameAllocator interface {
	Allocate(size uint64) (uint64, error)
	Free(size, physAddr uint64)
}

// An Invalidator makes newly written page-table entries visible to the CPU.
type Invalidator interface {
	Invalidate()
}

// An ExecutionContext is the process on whose behalf the address space is
// established. It tells where the shared text image and the private
// data/stack region live in physical memory, and records failures.
type ExecutionContext interface {
	TextBaseFrame() vm.Frame
	DataBaseFrame() vm.Frame
	SetError(err error)
}

// Hook positions triggered by a Descriptor. The hook item is an Event.
var (
	HookPosEstablished     = &hooking.HookPos{Name: "Established"}
	HookPosEstablishFailed = &hooking.HookPos{Name: "EstablishFailed"}
	HookPosCleared         = &hooking.HookPos{Name: "Cleared"}
	HookPosReleased        = &hooking.HookPos{Name: "Released"}
)

// Event describes the state of an address space at a hook position.
type Event struct {
	TextStart   uint64
	TextSize    uint64
	DataStart   uint64
	DataSize    uint64
	StackSize   uint64
	MappedPages int
	Err         error
}

// Descriptor is the address space of one process.
type Descriptor struct {
	hooking.HookableBase

	name        string
	allocator   FrameAllocator
	invalidator Invalidator
	ctx         ExecutionContext
	log         logr.Logger

	textStartAddress uint64
	textSize         uint64
	dataStartAddress uint64
	dataSize         uint64
	stackSize        uint64
	established      bool

	pageTables     *vm.PageTableArray
	tableArrayAddr uint64
}

// Name returns the name of the address space.
func (d *Descriptor) Name() string {
	return d.name
}

// Establish maps the text, data and stack segments of the process. Text is
// mapped read-only from the shared text image, data and stack read-write from
// the private region, and the stack sits at the top of the address space.
//
// If the segments do not fit, Establish returns an error wrapping
// vm.ErrOutOfMemory or vm.ErrInvalidLayout, reports it to the execution
// context, and leaves the descriptor as it was.
func (d *Descriptor) Establish(
	textVirtualAddress, textSize uint64,
	dataVirtualAddress, dataSize uint64,
	stackSize uint64,
) error {
	if !fitsUnderCeiling(textVirtualAddress, textSize, dataSize, stackSize) {
		err := fmt.Errorf(
			"%w: text %d + data %d + stack %d bytes from 0x%x exceed %d bytes",
			vm.ErrOutOfMemory, textSize, dataSize, stackSize,
			textVirtualAddress, uint64(vm.UserSpaceSize))

		return d.fail(err)
	}

	l, err := planLayout(textSize, dataSize, stackSize)
	if err != nil {
		return d.fail(err)
	}

	err = d.ensurePageTables()
	if err != nil {
		return d.fail(err)
	}

	err = d.mapToPageTable(l)
	if err != nil {
		d.resetSegments()
		return d.fail(err)
	}

	d.textStartAddress = textVirtualAddress
	d.dataStartAddress = dataVirtualAddress
	d.textSize = textSize
	d.dataSize = dataSize
	d.stackSize = stackSize
	d.established = true

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosEstablished,
		Item:   d.event(nil),
	})

	return nil
}

func fitsUnderCeiling(textVA, textSize, dataSize, stackSize uint64) bool {
	if textVA > vm.UserSpaceSize ||
		textSize > vm.UserSpaceSize ||
		dataSize > vm.UserSpaceSize ||
		stackSize > vm.UserSpaceSize {
		return false
	}

	return textSize+dataSize+stackSize+vm.PageSize <= vm.UserSpaceSize-textVA
}

func (d *Descriptor) ensurePageTables() error {
	if d.pageTables != nil {
		return nil
	}

	physAddr, err := d.allocator.Allocate(tableArraySize)
	if err != nil {
		return fmt.Errorf("%w: cannot allocate page tables: %v",
			vm.ErrOutOfMemory, err)
	}

	d.pageTables = &vm.PageTableArray{}
	d.tableArrayAddr = physAddr + vm.KernelSpaceStartAddress

	return nil
}

func (d *Descriptor) fail(err error) error {
	d.ctx.SetError(err)
	d.log.Error(err, "cannot establish user page tables",
		"addressSpace", d.name)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosEstablishFailed,
		Item:   d.event(err),
	})

	return err
}

// Clear unmaps every page of the address space and forgets the segment
// sizes. The page-table storage stays owned by the descriptor; the frames
// behind the segments may be reclaimed by the caller. Clearing an address
// space that maps nothing does nothing.
func (d *Descriptor) Clear() {
	if !d.established {
		return
	}

	d.pageTables.Clear()
	d.invalidator.Invalidate()
	d.resetSegments()

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosCleared,
		Item:   d.event(nil),
	})
}

// Release returns the page-table storage to the frame allocator, drops the
// cached translations and resets the descriptor to its uninitialized state.
// Releasing twice is a no-op.
func (d *Descriptor) Release() {
	if d.pageTables == nil {
		return
	}

	d.pageTables.Clear()
	d.allocator.Free(tableArraySize,
		d.tableArrayAddr-vm.KernelSpaceStartAddress)
	d.invalidator.Invalidate()

	d.pageTables = nil
	d.tableArrayAddr = 0
	d.resetSegments()

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosReleased,
		Item:   d.event(nil),
	})
}

func (d *Descriptor) resetSegments() {
	d.textStartAddress = 0
	d.textSize = 0
	d.dataStartAddress = 0
	d.dataSize = 0
	d.stackSize = 0
	d.established = false
}

func (d *Descriptor) event(err error) Event {
	e := Event{
		TextStart: d.textStartAddress,
		TextSize:  d.textSize,
		DataStart: d.dataStartAddress,
		DataSize:  d.dataSize,
		StackSize: d.stackSize,
		Err:       err,
	}

	if d.pageTables != nil {
		for i := range d.pageTables.Tables {
			e.MappedPages += d.pageTables.Tables[i].NumPresent()
		}
	}

	return e
}

// TextStartAddress returns the virtual address of the text segment.
func (d *Descriptor) TextStartAddress() uint64 {
	return d.textStartAddress
}

// TextSize returns the size of the text segment in bytes.
func (d *Descriptor) TextSize() uint64 {
	return d.textSize
}

// DataStartAddress returns the virtual address of the data segment.
func (d *Descriptor) DataStartAddress() uint64 {
	return d.dataStartAddress
}

// DataSize returns the size of the data segment in bytes.
func (d *Descriptor) DataSize() uint64 {
	return d.dataSize
}

// StackSize returns the size of the stack segment in bytes.
func (d *Descriptor) StackSize() uint64 {
	return d.stackSize
}

// StackStartAddress returns the lowest virtual address of the stack, which
// grows down from the top of the address space.
func (d *Descriptor) StackStartAddress() uint64 {
	top := uint64(vm.UserSpaceStartAddress + vm.UserSpaceSize)
	return (top - d.stackSize) &^ (vm.PageSize - 1)
}

// IsEstablished tells whether the descriptor currently maps segments.
func (d *Descriptor) IsEstablished() bool {
	return d.established
}

// PageTables returns the page-table array owned by the descriptor, or nil if
// it has been released or never established. This is what a context switch
// points the MMU at.
func (d *Descriptor) PageTables() *vm.PageTableArray {
	return d.pageTables
}

// TableArrayAddress returns the kernel virtual address of the page-table
// storage, or zero if none is owned.
func (d *Descriptor) TableArrayAddress() uint64 {
	return d.tableArrayAddr
}
