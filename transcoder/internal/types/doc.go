// Package types defines the compiled type structures for fast transcoding.
//
// CompiledType holds precomputed layout information (size, alignment, offsets)
// for efficient encoding/decoding of C types. By compiling type metadata once,
// the transcoder avoids repeated layout and reflection work during calls.
//
// # Key Types
//
//   - CompiledType: Cached type metadata with native layout info
//   - Kind: Type discriminator (scalar, pointer, cstring, struct, union, ...)
//
// This package is internal to the transcoder.
package types
