// Package cdecl parses C-like declaration text into type descriptors
// and binding declarations.
//
// This package turns prototypes written the way C headers write them
// into the descriptors the runtime binds with, so signatures can live
// in strings instead of descriptor literals.
//
// Basic usage:
//
//	f, err := cdecl.ParseFile(`
//		struct point { long x; long y; };
//		long hypot2(struct point* p);
//		extern int counter@g_counter;
//	`)
//	// f.Funcs, f.Globals, f.Structs["point"]
//
// Supported declarations:
//   - typedef NAME for any supported type, including array typedefs
//   - struct and union definitions with named fields and fixed arrays
//   - function prototypes with optional parameter names
//   - global variables, with optional extern
//   - @symbol alias after a declared name (puts@puts_impl) when the
//     binding name and the exported symbol differ
//   - rw marker on scalar parameters for pass-by-address copy-back
//   - // line and /* block */ comments
//
// Type notation: void, bool, char, wchar, the signed and unsigned
// integer forms (char, short, int, long, long long, LP64 widths),
// float, double, the <stdint.h> fixed-width names, T*, T[N], and
// struct/union/typedef references to earlier declarations in the same
// text.
//
// Three pointer spellings carry marshaling semantics: char* is a
// NUL-terminated string, wchar* a UTF-16 string, and unsigned char* or
// uint8_t* a borrowed byte buffer. signed char* stays a plain pointer
// to a small integer. Write void* where a bare address is meant.
//
// Not supported: function pointer declarators (declare void* and cast
// with ProcAt), variadic prototypes, bit fields, nested anonymous
// aggregates, initializers, and preprocessor directives.
package cdecl
