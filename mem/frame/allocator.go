// Package frame provides a physical frame allocator that hands out contiguous
// runs of page-sized frames.
package frame

import (
	"fmt"
	"log"
	"sync"

	"github.com/sarchlab/kmem/mem/vm"
)

// An Allocator reserves and releases physical memory in page-sized units.
type Allocator interface {
	// Allocate reserves size bytes, rounded up to whole frames, and returns
	// the physical address of the first frame.
	Allocate(size uint64) (uint64, error)

	// Free releases a region returned by Allocate.
	Free(size, physAddr uint64)
}

// BitmapAllocator tracks the frames of one contiguous physical pool with a
// free bitmap. A set bit marks a reserved frame.
type BitmapAllocator struct {
	sync.Mutex

	// startFrame is the frame number for the first page in the pool. Bit i
	// of the bitmap corresponds to frame (startFrame + i).
	startFrame vm.Frame
	numFrames  uint64
	freeCount  uint64
	bitmap     []uint64

	// allocations remembers the frame count of every live region so that a
	// mismatching Free is caught.
	allocations map[vm.Frame]uint64
}

// NewBitmapAllocator creates an allocator that manages numFrames frames
// starting at the frame that contains baseAddr.
func NewBitmapAllocator(baseAddr uint64, numFrames uint64) *BitmapAllocator {
	return &BitmapAllocator{
		startFrame:  vm.FrameFromAddress(baseAddr + vm.PageSize - 1),
		numFrames:   numFrames,
		freeCount:   numFrames,
		bitmap:      make([]uint64, (numFrames+63)>>6),
		allocations: make(map[vm.Frame]uint64),
	}
}

// FreeFrames returns the number of frames that are not reserved.
func (a *BitmapAllocator) FreeFrames() uint64 {
	a.Lock()
	defer a.Unlock()

	return a.freeCount
}

// TotalFrames returns the size of the pool in frames.
func (a *BitmapAllocator) TotalFrames() uint64 {
	return a.numFrames
}

// Allocate reserves the first run of free frames large enough for size bytes.
func (a *BitmapAllocator) Allocate(size uint64) (uint64, error) {
	count := vm.PagesFor(size)
	if count == 0 {
		count = 1
	}

	a.Lock()
	defer a.Unlock()

	if count > a.freeCount {
		return 0, fmt.Errorf("%w: %d frames requested, %d free",
			vm.ErrOutOfMemory, count, a.freeCount)
	}

	first, found := a.findRun(count)
	if !found {
		return 0, fmt.Errorf("%w: no run of %d contiguous frames",
			vm.ErrOutOfMemory, count)
	}

	for i := first; i < first+count; i++ {
		a.markReserved(i)
	}

	a.freeCount -= count
	frame := a.startFrame + vm.Frame(first)
	a.allocations[frame] = count

	return frame.Address(), nil
}

// Free releases a region. Freeing a region that was not allocated, or with a
// size that differs from the allocation, panics.
func (a *BitmapAllocator) Free(size, physAddr uint64) {
	count := vm.PagesFor(size)
	if count == 0 {
		count = 1
	}

	frame := vm.FrameFromAddress(physAddr)

	a.Lock()
	defer a.Unlock()

	allocated, found := a.allocations[frame]
	if !found {
		log.Panicf("freeing frame 0x%x that is not allocated", uint64(frame))
	}

	if allocated != count {
		log.Panicf("freeing %d frames at 0x%x, but %d were allocated",
			count, uint64(frame), allocated)
	}

	first := uint64(frame - a.startFrame)
	for i := first; i < first+count; i++ {
		a.markFree(i)
	}

	a.freeCount += count
	delete(a.allocations, frame)
}

func (a *BitmapAllocator) findRun(count uint64) (uint64, bool) {
	runStart, runLen := uint64(0), uint64(0)

	for i := uint64(0); i < a.numFrames; i++ {
		if a.isReserved(i) {
			runLen = 0
			continue
		}

		if runLen == 0 {
			runStart = i
		}

		runLen++
		if runLen == count {
			return runStart, true
		}
	}

	return 0, false
}

func (a *BitmapAllocator) isReserved(index uint64) bool {
	return a.bitmap[index>>6]&(1<<(index&63)) != 0
}

func (a *BitmapAllocator) markReserved(index uint64) {
	a.bitmap[index>>6] |= 1 << (index & 63)
}

func (a *BitmapAllocator) markFree(index uint64) {
	a.bitmap[index>>6] &^= 1 << (index & 63)
}
