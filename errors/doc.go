// Package errors provides structured error types for the ffi-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/C type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("point", "x").
//		GoType("string").
//		CType("int32_t").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseEncode, path, "string", "int32_t")
//	err := errors.SymbolNotFound("libm.so.6", "frexp", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on (Phase, Kind), so callers can test for a category:
//
//	errors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindLibraryNotFound})
package errors
