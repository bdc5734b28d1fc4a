package main

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/sarchlab/kmem/datarecording"
	"github.com/sarchlab/kmem/kernel/proc"
	"github.com/sarchlab/kmem/mem/frame"
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
	"github.com/sarchlab/kmem/mem/vm/mmu"
	"github.com/sarchlab/kmem/tracing"
)

// system is one process together with the memory hardware it runs on.
type system struct {
	cfg config

	allocator *frame.BitmapAllocator
	mmu       *mmu.Comp
	process   *proc.Process
	counter   *tracing.EventCounter
	tracer    *tracing.MappingTracer
}

func buildSystem(cfg config, log logr.Logger) *system {
	s := &system{
		cfg:       cfg,
		allocator: frame.NewBitmapAllocator(cfg.poolBase, cfg.physFrames),
		mmu:       mmu.MakeBuilder().Build("MMU"),
		counter:   tracing.NewEventCounter(),
	}

	text := &proc.Text{
		CoreAddress: cfg.textCore,
		Size:        cfg.textSize,
	}

	b := addrspace.MakeBuilder().
		WithAllocator(s.allocator).
		WithInvalidator(s.mmu).
		WithLogger(log)

	s.process = proc.New(1, cfg.procAddr,
		cfg.dataSize+cfg.stackSize+proc.UserAreaPages*vm.PageSize, text, b)
	s.process.Memory.AcceptHook(s.counter)

	return s
}

// attachRecorder records every event of the address space into recorder.
func (s *system) attachRecorder(recorder datarecording.Recorder) {
	s.tracer = tracing.NewMappingTracer(recorder)
	s.process.Memory.AcceptHook(s.tracer)
}

// establish builds the address space and makes it the active one.
func (s *system) establish() error {
	err := s.process.Memory.Establish(
		s.cfg.textVA, s.cfg.textSize,
		s.cfg.dataVA(), s.cfg.dataSize,
		s.cfg.stackSize)
	if err != nil {
		return err
	}

	s.process.SwitchTo(s.mmu)

	return nil
}

func (s *system) flush() {
	if s.tracer != nil {
		s.tracer.Flush()
	}
}

func (s *system) printSummary(w io.Writer) {
	d := s.process.Memory

	fmt.Fprintf(w, "%s\n", d.Name())
	fmt.Fprintf(w, "  private region: 0x%08x %d bytes\n",
		s.process.Addr, s.process.Size)
	fmt.Fprintf(w, "  text:  0x%08x %d bytes\n",
		d.TextStartAddress(), d.TextSize())
	fmt.Fprintf(w, "  data:  0x%08x %d bytes\n",
		d.DataStartAddress(), d.DataSize())
	fmt.Fprintf(w, "  stack: 0x%08x %d bytes\n",
		d.StackStartAddress(), d.StackSize())
	fmt.Fprintf(w, "  page tables at 0x%08x\n", d.TableArrayAddress())
}

func (s *system) printTables(w io.Writer) {
	tables := s.process.Memory.PageTables()
	if tables == nil {
		return
	}

	for t := range tables.Tables {
		for slot, pte := range tables.Tables[t].Entries {
			if !pte.Present {
				continue
			}

			access := "ro"
			if pte.Writable {
				access = "rw"
			}

			vAddr := uint64(vm.UserSpaceStartAddress) +
				uint64(t*vm.EntriesPerTable+slot)*vm.PageSize

			fmt.Fprintf(w, "  [%d][%4d] 0x%08x -> frame 0x%x %s\n",
				t, slot, vAddr, uint64(pte.Frame), access)
		}
	}
}
