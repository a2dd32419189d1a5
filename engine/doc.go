// Package engine provides the low-level dynamic loading and foreign
// call machinery.
//
// This package wraps purego to load shared libraries, resolve symbols,
// transfer control to native functions, and hand native code callable
// pointers into Go, without cgo.
//
// # Architecture
//
// The engine package provides four main types:
//
//	Engine     - Process-wide library cache and loader configuration
//	Library    - A loaded shared object with a symbol cache
//	Caller     - One native address bound to a fixed call plan
//	Trampoline - A native function pointer forwarding into a Go handler
//
// # Call Flow
//
//  1. Engine.Open (or OpenCandidates) loads a library once per identity
//  2. Library.Symbol resolves and caches the target address
//  3. PlanFor reduces a ctypes signature to register classes
//  4. NewCaller binds address and plan; Caller.Call transfers control
//
// # Slot Classes
//
// Every parameter and return lowers to one 64-bit word in one of three
// classes:
//
//	Class     Carries                              Register file
//	────────────────────────────────────────────────────────────
//	ClassInt  bool..u64/s64 widened, pointers,     integer
//	          string/aggregate/RW addresses
//	ClassF32  float bit pattern, low 32 bits       float
//	ClassF64  double bit pattern                   float
//
// All-integer signatures dispatch without reflection. Signatures with
// float slots go through a function registered at bind time so values
// reach the float registers.
//
// # Callbacks
//
// Trampolines give native code a stable C function pointer whose body
// is a Go handler:
//
//	tramp, err := engine.NewTrampoline(plan, func(words []uint64) uint64 {
//	    // lift words, run Go code, lower the result
//	})
//	// pass tramp.Ptr() wherever native code wants a function pointer
//
// The platform keeps a fixed per-process pool of trampoline slots and
// never reclaims them, so create trampolines for long-lived callbacks
// rather than per call.
//
// # Thread Safety
//
// Engine, Library, Caller and Trampoline are safe for concurrent use.
// Native code may invoke a trampoline from any thread; the Go handler
// behind it must tolerate that.
//
// # Known Limitations
//
// Variadic functions: C varargs calling conventions differ from fixed
// ones on several ABIs (notably darwin/arm64), and plans carry no
// variadic marker. Binding a variadic symbol calls it as if fixed,
// which is wrong on those platforms.
//
// By-value aggregate returns: a C function that returns a struct in
// registers cannot be described; aggregate-typed returns here mean the
// function returns a pointer to the aggregate.
//
// Windows: loading uses dlfcn, which purego exposes on darwin, freebsd
// and linux only. On other systems Open reports unsupported_type;
// supporting Windows would need LoadLibraryW plumbing.
//
// Most users should use the runtime package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
