// Package runtime provides the high-level API for calling native
// shared libraries.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt := runtime.New()
//	defer rt.Close()
//
//	// Open a library by bare name
//	lib, err := rt.Open(ctx, &runtime.LibrarySpec{Name: "m"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Bind a function
//	cos, err := lib.Bind(runtime.FuncDecl{
//	    Name:   "cos",
//	    Params: ctypes.Params(ctypes.F64{}),
//	    Ret:    ctypes.F64{},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Call it
//	result, err := cos.Call(ctx, math.Pi)
//	fmt.Println(result) // -1
//
// # Opening Libraries
//
// A LibrarySpec names what to open:
//
//	Open(ctx, &LibrarySpec{Name: "sqlite3"})               - bare name, platform candidates
//	Open(ctx, &LibrarySpec{Name: "z", Version: "1"})       - versioned candidates, most specific first
//	Open(ctx, &LibrarySpec{Name: "/usr/lib/libfoo.so.2"})  - explicit path, used verbatim
//	Open(ctx, &LibrarySpec{Resolver: findLib})             - caller-supplied resolution
//	Open(ctx, runtime.CurrentProcess)                      - symbols in the running binary
//
// Opening the same path twice shares one handle. Libraries stay
// resident after Close unless the engine was configured to unload.
//
// # Type Mapping
//
// Declared parameter types accept and produce these Go types:
//
//	Declaration      Go argument          Go result
//	─────────────────────────────────────────────────────
//	bool             bool                 bool
//	u8..s64          integers (widened)   uint8..int64
//	f32/f64          float32/float64      float32/float64
//	ptr              uintptr, []byte      uintptr
//	cstr             string               string
//	function         uintptr              uintptr
//	struct/union     map, Go struct,      *StructValue (borrowed)
//	                 *StructValue
//	rw scalar        *T                   written back after the call
//
// Aggregates always travel by address. A struct parameter copies the
// argument into call-private memory; pass a *StructValue to share
// memory with the callee instead. A struct return type means the
// function returns the aggregate's address.
//
// # Callbacks
//
// NewCallback turns a Go func into a native function pointer:
//
//	sig := ctypes.NewFunc(ctypes.S32{},
//	    ctypes.Params(ctypes.Ptr(nil), ctypes.Ptr(nil))...)
//	cmp, err := rt.NewCallback(sig, func(a, b uintptr) int32 {
//	    ...
//	})
//	defer cmp.Invalidate()
//
//	qsort.Call(ctx, base, n, size, cmp.Ptr())
//
// Callback pointers come from a fixed per-process pool and are never
// recycled: create them once and reuse them, do not mint one per call.
//
// # Globals
//
// Exported variables bind through Library.Global and move whole
// values on Get and Set. For field-level access over an aggregate
// global, use View.
//
// # Thread Safety
//
// Runtime, Library, Proc and Global are safe for concurrent use.
// Each call stages its arguments in a private frame; the underlying
// native function sees whatever concurrency the callers produce, so
// serialize calls into libraries that are not themselves thread-safe.
//
// Callbacks may be invoked from any native thread, concurrently.
//
// # Memory
//
// Arguments are marshaled into call-private memory released when the
// call returns; native code must not retain pointers it was handed.
// Memory lifted from native code (strings, StructValue views) is
// borrowed or copied, never freed. Global.Set on string-bearing types
// allocates from the process allocator and hands ownership to the
// native side.
package runtime
