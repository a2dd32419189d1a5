package transcoder

import (
	"sync"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
)

type Memory = ffiruntime.Memory
type Allocator = ffiruntime.Allocator

type Allocation struct {
	Ptr   uintptr
	Size  uintptr
	Align uintptr
}

// AllocationList records allocations made while encoding so a failed or
// finished operation can return them to the allocator in one sweep.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns to pool. Must call after Free(); list invalid after Release.
func (al *AllocationList) Release() {
	// Only pool small allocations to prevent memory bloat
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

func (al *AllocationList) FreeAndRelease(allocator Allocator) {
	al.Free(allocator)
	al.Release()
}

func (al *AllocationList) Add(ptr, size, align uintptr) {
	al.allocations = append(al.allocations, Allocation{
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
}

func (al *AllocationList) Free(allocator Allocator) {
	if allocator == nil {
		return
	}
	for _, a := range al.allocations {
		if a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
}

func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *AllocationList) Count() int {
	return len(al.allocations)
}

// Buffer is a value encoded into memory that outlives a single call.
// The caller owns it: nothing reclaims the allocation until Free.
type Buffer struct {
	addr   uintptr
	size   uintptr
	align  uintptr
	alloc  Allocator
	nested *AllocationList
}

// NewBuffer encodes value into a fresh allocation and hands ownership
// to the caller. Nested allocations (string payloads) are freed together
// with the buffer.
func NewBuffer(t ctypes.Type, value any, mem Memory, alloc Allocator, enc *Encoder) (*Buffer, error) {
	info, err := enc.compiler.layout.Calculate(t)
	if err != nil {
		return nil, err
	}

	addr, err := alloc.Alloc(info.Size, info.Align)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseEncode, info.Size, info.Align)
	}

	nested := NewAllocationList()
	if err := enc.Store(t, value, addr, mem, alloc, nested); err != nil {
		nested.FreeAndRelease(alloc)
		alloc.Free(addr, info.Size, info.Align)
		return nil, err
	}

	return &Buffer{
		addr:   addr,
		size:   info.Size,
		align:  info.Align,
		alloc:  alloc,
		nested: nested,
	}, nil
}

func (b *Buffer) Addr() uintptr { return b.addr }
func (b *Buffer) Size() uintptr { return b.size }

// Free releases the buffer and every nested allocation. The buffer is
// invalid afterwards; Free is not idempotent-checked beyond the nil addr.
func (b *Buffer) Free() {
	if b.addr == 0 {
		return
	}
	b.nested.FreeAndRelease(b.alloc)
	b.alloc.Free(b.addr, b.size, b.align)
	b.addr = 0
	b.nested = nil
}
