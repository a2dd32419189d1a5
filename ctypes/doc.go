// Package ctypes models the portable C type surface used to declare
// foreign functions, aggregates and globals.
//
// Descriptors are plain Go values. Scalars are empty structs written
// inline; pointers, strings, aggregates and signatures are small structs
// compared and cached by pointer identity:
//
//	point, err := ctypes.NewStruct("point",
//		ctypes.Field{Name: "x", Type: ctypes.S64{}},
//		ctypes.Field{Name: "y", Type: ctypes.S64{}},
//	)
//
//	dist := ctypes.NewFunc(ctypes.F64{}, ctypes.Params(ctypes.Ptr(point), ctypes.Ptr(point))...)
//
// # Type Mapping
//
//	C type            Descriptor        Managed Go value
//	──────────────────────────────────────────────────────
//	bool              Bool{}            bool
//	int8_t..int64_t   S8{}..S64{}       int8..int64 (or any int kind in range)
//	uint8_t..uint64_t U8{}..U64{}       uint8..uint64
//	float, double     F32{}, F64{}      float32, float64
//	T*, void*         *Pointer          uintptr, nil for NULL
//	char*, wchar_t*   *CString          string (NULL return decodes to nil)
//	uint8_t* (buffer) *Bytes            []byte, borrowed for the call
//	struct, union     *Struct, *Union   tagged Go struct or transcoder.StructValue
//	T[N]              *Array            Go slice or array of mapped element
//	function pointer  *Func             runtime.Callback, *runtime.Proc or uintptr
//
// Integer widths are restricted to the fixed 8/16/32/64 set; the Int and
// Float constructors reject anything else.
//
// # Aggregates in Signatures
//
// Aggregate parameter and return positions are pointer-passed: declaring
// a *Struct parameter means the native function receives the struct's
// address, and an aggregate return means the native function returns an
// address, which is wrapped as a borrowed value. By-register aggregate
// passing is not modeled.
package ctypes
