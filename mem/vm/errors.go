package vm

import "errors"

var (
	// ErrOutOfMemory is returned when the requested segments do not fit under
	// the address-space ceiling, or when no frames are left to back them.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidLayout is returned when a segment would land outside the
	// page table that should hold it.
	ErrInvalidLayout = errors.New("invalid address-space layout")

	// ErrPageNotPresent is returned when translating an unmapped page.
	ErrPageNotPresent = errors.New("page not present")

	// ErrWriteProtected is returned when writing through a read-only entry.
	ErrWriteProtected = errors.New("page is write protected")

	// ErrAddressOutOfRange is returned for addresses beyond the user space.
	ErrAddressOutOfRange = errors.New("address outside user space")
)
