// Package ffiruntime provides a Go foreign function interface to native
// shared libraries.
//
// This library enables declaring and calling functions in dynamically
// loaded C libraries without cgo, with full marshaling between Go values
// and the platform C ABI: scalars, pointers, strings, structs, unions,
// arrays, callbacks, and exported global variables.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	ffiruntime/          Root package with core Memory and Allocator interfaces
//	├── runtime/         High-level API for loading libraries and binding calls
//	├── engine/          Low-level dynamic loader integration and call dispatch
//	├── ctypes/          C type descriptor model (scalars, pointers, aggregates)
//	├── cdecl/           C-like declaration text to descriptor parser
//	├── transcoder/      C ABI encoding/decoding between Go values and native memory
//	├── trampoline/      Live callback registry with invalidation
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load a library and call a function:
//
//	rt := runtime.New()
//	defer rt.Close()
//
//	lib, err := rt.Open(ctx, &runtime.LibrarySpec{Name: "m"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cos, err := lib.Bind(runtime.FuncDecl{
//	    Name:   "cos",
//	    Params: ctypes.Params(ctypes.F64{}),
//	    Ret:    ctypes.F64{},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := cos.Call(ctx, 1.0)
//	fmt.Println(result) // 0.5403023058681398
//
// # Type Model
//
// The library supports the portable C type surface:
//
//   - Scalars: bool, int8-int64, uint8-uint64, float, double
//   - Pointers: opaque void* and typed pointers
//   - Strings: NUL-terminated char* (UTF-8 or UTF-16 encoding)
//   - Aggregates: struct and union with C layout, fixed-size arrays
//   - Functions: typed signatures for calls and callbacks
//
// # Callbacks
//
// Expose Go functions to native code:
//
//	cmp, err := rt.NewCallback(sig, func(a, b uintptr) int32 {
//	    return compare(a, b)
//	})
//	defer cmp.Invalidate()
//	qsort.Call(ctx, base, n, size, cmp.Ptr())
//
// # Thread Safety
//
// Runtime and Library are safe for concurrent use. Proc and Global are
// safe for concurrent calls, but the library provides no atomicity for
// read-modify-write sequences on globals. Callbacks may be invoked from
// any native thread; the Go target must tolerate that.
//
// # Memory Model
//
// Memory passed to native code during a call is owned by the call frame
// and reclaimed when the call returns. Values that must outlive a call
// use owned buffers (pinned, reclaimed when unreachable) or borrowed
// views of native memory (never reclaimed by this library). Strings and
// aggregates returned by native code are borrowed: they remain owned by
// the callee and this library never frees them.
package ffiruntime
