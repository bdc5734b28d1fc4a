// Package tracing records what address spaces do by hooking into them.
package tracing

import (
	"github.com/rs/xid"
	"github.com/sarchlab/kmem/datarecording"
	"github.com/sarchlab/kmem/mem/vm/addrspace"
	"github.com/sarchlab/kmem/sim/hooking"
)

// MappingTracer is a hook that turns every address-space event into a
// recorded datarecording.Event.
type MappingTracer struct {
	recorder datarecording.Recorder
}

// NewMappingTracer creates a MappingTracer that writes into recorder.
func NewMappingTracer(recorder datarecording.Recorder) *MappingTracer {
	return &MappingTracer{recorder: recorder}
}

// Func records the event carried by the hook context. Contexts whose item is
// not an address-space event are ignored.
func (t *MappingTracer) Func(ctx hooking.HookCtx) {
	event, ok := ctx.Item.(addrspace.Event)
	if !ok {
		return
	}

	e := datarecording.Event{
		ID:          xid.New().String(),
		Event:       ctx.Pos.Name,
		TextStart:   event.TextStart,
		TextSize:    event.TextSize,
		DataStart:   event.DataStart,
		DataSize:    event.DataSize,
		StackSize:   event.StackSize,
		MappedPages: event.MappedPages,
	}

	if ctx.Domain != nil {
		e.Domain = ctx.Domain.Name()
	}

	if event.Err != nil {
		e.Error = event.Err.Error()
	}

	t.recorder.Record(e)
}

// Flush writes the buffered events into the database.
func (t *MappingTracer) Flush() {
	t.recorder.Flush()
}
