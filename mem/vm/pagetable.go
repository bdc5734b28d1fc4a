package vm

import "fmt"

// PID stands for Process ID.
type PID uint32

// A PTE is an entry in a page table, maintaining the information about how to
// translate one virtual page to a physical frame. When Present is false,
// Writable and Frame carry no meaning.
type PTE struct {
	Present  bool
	Writable bool
	Frame    Frame
}

// A PageTable covers EntriesPerTable consecutive virtual pages.
type PageTable struct {
	Entries [EntriesPerTable]PTE
}

// Clear marks every entry of the table as not present.
func (t *PageTable) Clear() {
	for i := range t.Entries {
		t.Entries[i] = PTE{}
	}
}

// Entry returns the entry at the given slot.
func (t *PageTable) Entry(slot int) (PTE, error) {
	if err := slotMustBeInTable(slot); err != nil {
		return PTE{}, err
	}

	return t.Entries[slot], nil
}

// Set writes the entry at the given slot. A slot outside the table is
// reported as ErrInvalidLayout rather than written.
func (t *PageTable) Set(slot int, pte PTE) error {
	if err := slotMustBeInTable(slot); err != nil {
		return err
	}

	t.Entries[slot] = pte

	return nil
}

// NumPresent returns how many entries of the table are present.
func (t *PageTable) NumPresent() int {
	n := 0
	for _, e := range t.Entries {
		if e.Present {
			n++
		}
	}

	return n
}

func slotMustBeInTable(slot int) error {
	if slot < 0 || slot >= EntriesPerTable {
		return fmt.Errorf("%w: slot %d outside [0, %d)",
			ErrInvalidLayout, slot, EntriesPerTable)
	}

	return nil
}

// A PageTableArray holds all the page tables of one user address space.
type PageTableArray struct {
	Tables [TablesPerProcess]PageTable
}

// Clear marks every entry of every table as not present.
func (a *PageTableArray) Clear() {
	for i := range a.Tables {
		a.Tables[i].Clear()
	}
}

// Lookup returns the entry that maps the page containing vAddr. A page that is
// not present is reported as ErrPageNotPresent.
func (a *PageTableArray) Lookup(vAddr uint64) (PTE, error) {
	table, slot, err := Locate(vAddr)
	if err != nil {
		return PTE{}, err
	}

	pte, err := a.Tables[table].Entry(slot)
	if err != nil {
		return PTE{}, err
	}

	if !pte.Present {
		return PTE{}, fmt.Errorf("%w: 0x%x", ErrPageNotPresent, vAddr)
	}

	return pte, nil
}

// Locate splits a user virtual address into the index of its page table and
// the slot within that table.
func Locate(vAddr uint64) (table, slot int, err error) {
	if vAddr-UserSpaceStartAddress >= UserSpaceSize {
		return 0, 0, fmt.Errorf("%w: 0x%x", ErrAddressOutOfRange, vAddr)
	}

	vpn := (vAddr - UserSpaceStartAddress) >> Log2PageSize
	table = int(vpn >> log2EntriesPerTable)
	slot = int(vpn & (EntriesPerTable - 1))

	return table, slot, nil
}

// PagesFor returns the number of whole pages needed to hold size bytes.
func PagesFor(size uint64) uint64 {
	return (size + PageSize - 1) >> Log2PageSize
}
