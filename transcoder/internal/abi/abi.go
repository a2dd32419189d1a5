package abi

import (
	"reflect"
	"unsafe"
)

// PtrSize is the native pointer size in bytes.
const PtrSize = unsafe.Sizeof(uintptr(0))

func SafeMul(a, b uintptr) (uintptr, bool) {
	if b != 0 && a > ^uintptr(0)/b {
		return 0, false
	}
	return a * b, true
}

func SafeAdd(a, b uintptr) (uintptr, bool) {
	if a > ^uintptr(0)-b {
		return 0, false
	}
	return a + b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

func AlignTo(offset, align uintptr) uintptr {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

const (
	MaxStringSize  = 1 << 30 // 1 GB cap on decoded string scans
	MaxArrayLength = 1 << 27 // 128M max elements
	MaxAlloc       = 1 << 30 // 1 GB max single allocation
)
