package vm

// Frame describes a physical memory page index.
type Frame uint64

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uint64 {
	return uint64(f) << Log2PageSize
}

// FrameFromAddress returns the frame that contains the given physical address.
func FrameFromAddress(physAddr uint64) Frame {
	return Frame(physAddr >> Log2PageSize)
}
