package runtime

import (
	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/transcoder"
)

// Global is one bound exported variable. Get and Set move whole
// values; for piecemeal field access take Addr and use a StructValue
// over it.
//
// Nothing synchronizes access with native code. A global the library
// mutates concurrently needs whatever locking the library documents.
type Global struct {
	rt     *Runtime
	name   string
	symbol string
	addr   uintptr
	typ    ctypes.Type
}

// Name returns the binding name.
func (g *Global) Name() string {
	return g.name
}

// Addr returns the variable's native address.
func (g *Global) Addr() uintptr {
	return g.addr
}

// Type returns the declared type.
func (g *Global) Type() ctypes.Type {
	return g.typ
}

// Get reads the variable's current value: scalars come back as Go
// scalars, cstr as string (nil pointer as nil), structs as
// map[string]any. Union globals cannot be decoded dynamically; view
// those through a StructValue at Addr.
func (g *Global) Get() (any, error) {
	return g.rt.dec.Load(g.typ, g.addr, engine.NativeMemory{})
}

// View wraps an aggregate global in a borrowed StructValue for typed
// field access without copying.
func (g *Global) View() (*transcoder.StructValue, error) {
	return g.rt.dec.StructValueAt(g.typ, g.addr, engine.NativeMemory{})
}

// Set overwrites the variable with value, marshaled per the declared
// type.
//
// String payloads allocate from the process allocator and become
// native-owned: nothing tracks or frees them, and the previous
// pointee is not released. Swapping string globals repeatedly is a
// leak unless the native side frees the old buffers.
func (g *Global) Set(value any) error {
	return g.rt.enc.Store(g.typ, value, g.addr, engine.NativeMemory{}, lazyAllocator{g.rt}, nil)
}
