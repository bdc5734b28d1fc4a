// Package vm provides the models for user address spaces: the fixed layout
// constants, page-table entries, page tables, and physical frames.
package vm

// Layout of a user address space. Two tables of 1024 entries with 4 KiB pages
// cover exactly the 8 MiB a user process may use.
const (
	Log2PageSize = 12
	PageSize     = 1 << Log2PageSize

	log2EntriesPerTable = 10
	EntriesPerTable     = 1 << log2EntriesPerTable

	UserSpaceSize         = 8 << 20
	UserSpaceStartAddress = 0
	TablesPerProcess      = UserSpaceSize / (EntriesPerTable * PageSize)

	// KernelSpaceStartAddress is where the kernel maps physical memory.
	// Subtracting it turns a kernel virtual address into a physical one.
	KernelSpaceStartAddress = 0xC0000000

	// PTESize is the size of one hardware entry. PageTableSize is the
	// storage a single table occupies.
	PTESize       = 4
	PageTableSize = EntriesPerTable * PTESize
)

// ReservedTable is the table reserved for fixed mappings and PrivateTable is
// the one that holds the process's text, data and stack.
const (
	ReservedTable = 0
	PrivateTable  = 1
)
