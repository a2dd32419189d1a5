// Package transcoder converts Go values to and from C memory.
//
// This package handles bidirectional conversion between Go types and
// their C representations: object layout in native memory, and the
// 64-bit call words the dispatch layer passes across the boundary.
//
// # Overview
//
//	┌─────────────────────────────────────────────────────────────┐
//	│ Go Value ←→ [Transcoder] ←→ Native Memory / Call Words      │
//	└─────────────────────────────────────────────────────────────┘
//
// # Memory Layout
//
// Descriptors follow the platform C ABI for size and alignment:
//
//	Type            Size    Alignment
//	──────────────────────────────────
//	bool            1       1
//	u8/s8           1       1
//	u16/s16         2       2
//	u32/s32/f32     4       4
//	u64/s64/f64     8       8
//	pointer         word    word
//	char*           word    word (address of NUL-terminated data)
//	struct          sum     max field align (+ padding)
//	union           max     max member align
//	array[N]        N*elem  elem align
//
// # Key Types
//
//	Encoder      - Writes Go values into C memory and call frames
//	Decoder      - Reads C memory back into Go values
//	Compiler     - Pre-compiles descriptor ↔ Go type mappings
//	CompiledType - Both layouts side by side, cached
//	Frame        - Pinned arena backing one call's temporaries
//	StructValue  - Typed window over one aggregate in memory
//	Buffer       - Caller-owned encoded value that outlives a call
//
// # Call Flow
//
//  1. Encoder.EncodeArgs(params, args, frame) → []uint64
//  2. the dispatch layer makes the foreign call
//  3. Decoder.Lift(retType, word, mem) → Go value
//  4. Decoder.CopyBack(frame) applies rw slots
//  5. Frame.Release()
//
// # Dynamic vs Compiled
//
// The dynamic path (Store/Load with any, maps for structs) coerces
// numeric values losslessly and needs no preparation. The compiled
// path (Store/DecodeInto with Go structs) walks both layouts with
// unsafe offsets and demands exact field kinds:
//
//	u32 field ← uint32   compiled: only uint32
//	u32 field ← int(42)  dynamic: accepted, range checked
//
// Field matching tries the c:"name" tag, then case-insensitive
// comparison, then snake_case conversion of the Go name.
//
// # Strings
//
// C strings are NUL-terminated buffers addressed by pointer. Encoding
// a Go string allocates a payload and records it in an AllocationList;
// embedded NUL bytes are rejected. NULL decodes to nil on the dynamic
// path and to "" in compiled Go struct fields. Descriptors with the
// UTF16 encoding transcode to and from two-byte units.
//
// # Allocation
//
// Objects that outlive a call take an Allocator (typically the
// library's malloc/free pair) and record every nested allocation so
// failure or Buffer.Free can sweep them. Call temporaries skip the
// allocator entirely: a Frame pins managed buffers for the duration of
// the call and releases everything at once.
//
// # Thread Safety
//
// Compiler, Encoder, and Decoder are safe for concurrent use and share
// a compile cache when constructed together. Frames and StructValues
// are single-goroutine.
//
// # Error Handling
//
// Errors use the structured types from the errors package:
//
//	[encode] type_mismatch at user.name: Go type int, C type char*
//	[decode] out_of_bounds at items[5]: index 5 out of bounds (length 3)
package transcoder
