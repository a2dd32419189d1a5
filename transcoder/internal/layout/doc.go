// Package layout computes C object layout for type descriptors.
//
// The calculator answers sizeof, alignof, and offsetof questions for the
// descriptors a foreign signature names. Results follow the platform C ABI
// rules every mainstream compiler implements:
//   - Scalars: size equals alignment (uint8_t=1, uint32_t=4, double=8).
//   - Pointers, C strings, and function pointers: one machine word.
//   - Structs: fields in declaration order, each aligned to its own
//     requirement, total size rounded up to the widest member alignment.
//   - Unions: every member at offset zero, size is the widest member
//     rounded up to the widest alignment.
//   - Arrays: element size times length, element alignment.
//
// # Usage
//
//	calc := layout.NewCalculator()
//	info, err := calc.Calculate(desc)
//	// info.Size, info.Align, info.FieldOffs available
//
// Calculators memoize by descriptor identity and detect aggregates that
// embed themselves by value. They are not safe for concurrent use; callers
// that share one across goroutines must serialize access.
//
// This package is internal to the transcoder.
package layout
