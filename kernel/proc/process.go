// Package proc holds the process record that the memory subsystem works on
// behalf of.
package proc

import (
	"fmt"

	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
)

// UserAreaPages is the number of pages at the start of a process's private
// region that hold the per-process user area. Data begins right after it.
const UserAreaPages = 1

// Text is a shared text image loaded into physical memory.
type Text struct {
	CoreAddress uint64
	Size        uint64
	RefCount    int
}

// An Activator can make a page-table array the one used for translation.
type Activator interface {
	Activate(tables *vm.PageTableArray)
	ActiveTables() *vm.PageTableArray
}

// Process is the record of one process.
type Process struct {
	PID   vm.PID
	Addr  uint64
	Size  uint64
	Text  *Text
	Errno Errno

	Memory *addrspace.Descriptor

	activator Activator
}

// New creates a process whose private region starts at the physical address
// addr. The address space is built with b, using the process as its
// execution context.
func New(pid vm.PID, addr, size uint64, text *Text, b addrspace.Builder) *Process {
	p := &Process{
		PID:  pid,
		Addr: addr,
		Size: size,
		Text: text,
	}

	if text != nil {
		text.RefCount++
	}

	p.Memory = b.WithContext(p).Build(fmt.Sprintf("Proc[%d].Memory", pid))

	return p
}

// TextBaseFrame returns the first frame of the shared text image, or frame 0
// if the process has no text.
func (p *Process) TextBaseFrame() vm.Frame {
	if p.Text == nil {
		return 0
	}

	return vm.FrameFromAddress(p.Text.CoreAddress)
}

// DataBaseFrame returns the first frame of the data segment, which follows
// the user area in the private region.
func (p *Process) DataBaseFrame() vm.Frame {
	return vm.FrameFromAddress(p.Addr) + UserAreaPages
}

// SetError records the error code for err.
func (p *Process) SetError(err error) {
	p.Errno = ErrnoFor(err)
}

// SwitchTo makes the process's page tables the active ones.
func (p *Process) SwitchTo(a Activator) {
	a.Activate(p.Memory.PageTables())
	p.activator = a
}

// Exit releases the address space and drops the reference to the text image.
// If the process's page tables are still the active ones, translation is
// detached from them first.
func (p *Process) Exit() {
	tables := p.Memory.PageTables()
	if p.activator != nil && tables != nil &&
		p.activator.ActiveTables() == tables {
		p.activator.Activate(nil)
	}

	p.activator = nil
	p.Memory.Release()

	if p.Text != nil {
		p.Text.RefCount--
		p.Text = nil
	}
}
