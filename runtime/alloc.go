package runtime

import (
	"fmt"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
)

// cAllocator serves native allocations through calloc and free.
type cAllocator struct {
	calloc *engine.Caller
	free   *engine.Caller
}

// callocAlignment is what calloc guarantees: suitable for any
// fundamental type. Stricter alignments need a dedicated allocator.
const callocAlignment = 16

// NewCAllocator binds calloc and free from lib. Allocations come back
// zeroed, which is what the marshaling layer assumes of fresh native
// memory.
func NewCAllocator(lib *Library) (ffiruntime.Allocator, error) {
	callocAddr, err := lib.Symbol("calloc")
	if err != nil {
		return nil, err
	}
	freeAddr, err := lib.Symbol("free")
	if err != nil {
		return nil, err
	}

	// calloc(nmemb, size) -> ptr; free(ptr). size_t and the pointer
	// each travel as one integer word.
	callocCaller, err := engine.NewCaller(callocAddr, engine.Plan{
		Args: []engine.Class{engine.ClassInt, engine.ClassInt},
		Ret:  engine.ClassInt,
	})
	if err != nil {
		return nil, err
	}
	freeCaller, err := engine.NewCaller(freeAddr, engine.Plan{
		Args: []engine.Class{engine.ClassInt},
		Ret:  engine.ClassVoid,
	})
	if err != nil {
		return nil, err
	}

	return &cAllocator{calloc: callocCaller, free: freeCaller}, nil
}

func (a *cAllocator) Alloc(size, align uintptr) (uintptr, error) {
	if align > callocAlignment {
		return 0, errors.Unsupported(errors.PhaseRuntime,
			fmt.Sprintf("allocation alignment %d (calloc guarantees %d)", align, callocAlignment))
	}
	if size == 0 {
		size = 1
	}
	ret, err := a.calloc.Call([]uint64{1, uint64(size)})
	if err != nil {
		return 0, err
	}
	if ret == 0 {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
	}
	return uintptr(ret), nil
}

func (a *cAllocator) Free(ptr, size, align uintptr) {
	if ptr == 0 {
		return
	}
	// The only possible Call error is a word count mismatch, which
	// cannot happen with a literal argument slice.
	_, _ = a.free.Call([]uint64{uint64(ptr)})
}

// Allocator returns the process allocator, binding calloc and free
// from the current process on first use. Failure is not cached;
// callers may retry.
func (r *Runtime) Allocator() (ffiruntime.Allocator, error) {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()
	if r.cAlloc != nil {
		return r.cAlloc, nil
	}

	lib := r.wrap(r.engine.Current(), CurrentProcess)
	a, err := NewCAllocator(lib)
	if err != nil {
		return nil, err
	}
	r.cAlloc = a
	return a, nil
}

// lazyAllocator defers binding the process allocator until something
// actually allocates, so operations on allocation-free types never
// touch the symbol table.
type lazyAllocator struct {
	rt *Runtime
}

func (la lazyAllocator) Alloc(size, align uintptr) (uintptr, error) {
	a, err := la.rt.Allocator()
	if err != nil {
		return 0, err
	}
	return a.Alloc(size, align)
}

func (la lazyAllocator) Free(ptr, size, align uintptr) {
	a, err := la.rt.Allocator()
	if err != nil {
		return
	}
	a.Free(ptr, size, align)
}
