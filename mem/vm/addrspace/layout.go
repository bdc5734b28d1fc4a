package addrspace

import (
	"fmt"

	"github.com/sarchlab/kmem/mem/vm"
)

// tableArraySize is the storage requested from the frame allocator for the
// page tables of one address space.
const tableArraySize = vm.TablesPerProcess * vm.PageTableSize

// textFirstSlot is the first slot of the private table that maps text. Slot 0
// is left unmapped.
const textFirstSlot = 1

// ReservedIdentitySlot is the slot of the reserved table that every address
// space maps to physical frame 0, writable. This exposes frame 0 to user
// mode.
//
// TODO: drop this mapping once nothing in user space is found to touch the
// first page.
const ReservedIdentitySlot = 0

var reservedIdentityEntry = vm.PTE{Present: true, Writable: true, Frame: 0}

// ReservedIdentityEntry returns the entry written at ReservedIdentitySlot.
func ReservedIdentityEntry() vm.PTE {
	return reservedIdentityEntry
}

type layout struct {
	textPages  int
	dataPages  int
	stackPages int
}

func (l layout) isText(slot int) bool {
	return slot >= textFirstSlot && slot < textFirstSlot+l.textPages
}

func (l layout) isData(slot int) bool {
	dataFirstSlot := textFirstSlot + l.textPages
	return slot >= dataFirstSlot && slot < dataFirstSlot+l.dataPages
}

func (l layout) isStack(slot int) bool {
	return slot >= vm.EntriesPerTable-l.stackPages
}

// planLayout turns segment sizes into page counts and checks that every
// segment lands inside the private table. Text and data grow up from slot 1
// and stack grows down from the last slot.
func planLayout(textSize, dataSize, stackSize uint64) (layout, error) {
	textPages := vm.PagesFor(textSize)
	dataPages := vm.PagesFor(dataSize)
	stackPages := vm.PagesFor(stackSize)

	if textPages+dataPages > vm.EntriesPerTable-textFirstSlot {
		return layout{}, fmt.Errorf(
			"%w: %d text and %d data pages do not fit in %d slots",
			vm.ErrInvalidLayout, textPages, dataPages,
			vm.EntriesPerTable-textFirstSlot)
	}

	if stackPages > vm.EntriesPerTable {
		return layout{}, fmt.Errorf(
			"%w: %d stack pages do not fit in %d slots",
			vm.ErrInvalidLayout, stackPages, vm.EntriesPerTable)
	}

	return layout{
		textPages:  int(textPages),
		dataPages:  int(dataPages),
		stackPages: int(stackPages),
	}, nil
}

// mapToPageTable rewrites every entry of the owned page tables.
//
// Each slot of the private table is claimed by at most one segment, checked
// in the order text, data, stack. When data and stack collide, data keeps the
// slot. Data and stack share one frame counter, so the stack continues right
// after the last data frame of the private region.
func (d *Descriptor) mapToPageTable(l layout) error {
	textBase := d.ctx.TextBaseFrame()
	nextDataFrame := d.ctx.DataBaseFrame()

	d.pageTables.Clear()

	private := &d.pageTables.Tables[vm.PrivateTable]
	for slot := 0; slot < vm.EntriesPerTable; slot++ {
		var pte vm.PTE

		switch {
		case l.isText(slot):
			pte = vm.PTE{
				Present:  true,
				Writable: false,
				Frame:    textBase + vm.Frame(slot-textFirstSlot),
			}
		case l.isData(slot), l.isStack(slot):
			pte = vm.PTE{
				Present:  true,
				Writable: true,
				Frame:    nextDataFrame,
			}
			nextDataFrame++
		default:
			continue
		}

		if err := private.Set(slot, pte); err != nil {
			return err
		}
	}

	err := d.pageTables.Tables[vm.ReservedTable].
		Set(ReservedIdentitySlot, reservedIdentityEntry)
	if err != nil {
		return err
	}

	d.invalidator.Invalidate()

	return nil
}
