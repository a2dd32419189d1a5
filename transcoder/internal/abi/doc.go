// Package abi provides internal utilities for C ABI encoding/decoding.
//
// This package contains type coercion helpers, overflow-checked
// arithmetic and alignment math used by the transcoder package when
// moving values between Go and native memory.
//
// # Contents
//
//   - coerce.go: lossless numeric coercion between Go values and C scalars
//   - abi.go: alignment, overflow-checked size math, safety limits
//
// This package is internal to the transcoder.
package abi
