package addrspace

import (
	"github.com/go-logr/logr"
)

// A Builder can build address-space descriptors.
type Builder struct {
	allocator   FrameAllocator
	invalidator Invalidator
	ctx         ExecutionContext
	log         logr.Logger
}

// MakeBuilder creates a new builder. Diagnostics are discarded unless a
// logger is set.
func MakeBuilder() Builder {
	return Builder{
		log: logr.Discard(),
	}
}

// WithAllocator sets the frame allocator that provides the storage of the
// page tables.
func (b Builder) WithAllocator(a FrameAllocator) Builder {
	b.allocator = a
	return b
}

// WithInvalidator sets what is invoked after every rewrite of the page tables.
func (b Builder) WithInvalidator(i Invalidator) Builder {
	b.invalidator = i
	return b
}

// WithContext sets the process that the address space belongs to.
func (b Builder) WithContext(ctx ExecutionContext) Builder {
	b.ctx = ctx
	return b
}

// WithLogger sets the sink of diagnostic messages.
func (b Builder) WithLogger(log logr.Logger) Builder {
	b.log = log
	return b
}

// Build creates an uninitialized descriptor. It owns no page tables until the
// first successful Establish.
func (b Builder) Build(name string) *Descriptor {
	if b.allocator == nil {
		panic("address space " + name + " needs a frame allocator")
	}

	if b.invalidator == nil {
		panic("address space " + name + " needs an invalidator")
	}

	if b.ctx == nil {
		panic("address space " + name + " needs an execution context")
	}

	return &Descriptor{
		name:        name,
		allocator:   b.allocator,
		invalidator: b.invalidator,
		ctx:         b.ctx,
		log:         b.log.WithName(name),
	}
}
