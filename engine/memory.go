package engine

import (
	"unsafe"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
)

// NativeMemory is the host process address space as a Memory. Every
// operation goes straight through raw pointers; the only guarded fault
// is the null address. Callers own the validity of everything else,
// exactly as they would with the pointer itself.
type NativeMemory struct{}

func nullAccess(op string) error {
	return errors.New(errors.PhaseRuntime, errors.KindNilPointer).
		Detail("%s at null address", op).
		Build()
}

// Read returns a view of native memory, not a copy. The view is valid
// for as long as the underlying allocation.
func (NativeMemory) Read(addr uintptr, length uintptr) ([]byte, error) {
	if addr == 0 {
		return nil, nullAccess("read")
	}
	if length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), nil
}

func (NativeMemory) Write(addr uintptr, data []byte) error {
	if addr == 0 {
		return nullAccess("write")
	}
	if len(data) == 0 {
		return nil
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data))
	copy(dst, data)
	return nil
}

func (NativeMemory) ReadU8(addr uintptr) (uint8, error) {
	if addr == 0 {
		return 0, nullAccess("read")
	}
	return *(*uint8)(unsafe.Pointer(addr)), nil
}

func (NativeMemory) ReadU16(addr uintptr) (uint16, error) {
	if addr == 0 {
		return 0, nullAccess("read")
	}
	return *(*uint16)(unsafe.Pointer(addr)), nil
}

func (NativeMemory) ReadU32(addr uintptr) (uint32, error) {
	if addr == 0 {
		return 0, nullAccess("read")
	}
	return *(*uint32)(unsafe.Pointer(addr)), nil
}

func (NativeMemory) ReadU64(addr uintptr) (uint64, error) {
	if addr == 0 {
		return 0, nullAccess("read")
	}
	return *(*uint64)(unsafe.Pointer(addr)), nil
}

func (NativeMemory) WriteU8(addr uintptr, value uint8) error {
	if addr == 0 {
		return nullAccess("write")
	}
	*(*uint8)(unsafe.Pointer(addr)) = value
	return nil
}

func (NativeMemory) WriteU16(addr uintptr, value uint16) error {
	if addr == 0 {
		return nullAccess("write")
	}
	*(*uint16)(unsafe.Pointer(addr)) = value
	return nil
}

func (NativeMemory) WriteU32(addr uintptr, value uint32) error {
	if addr == 0 {
		return nullAccess("write")
	}
	*(*uint32)(unsafe.Pointer(addr)) = value
	return nil
}

func (NativeMemory) WriteU64(addr uintptr, value uint64) error {
	if addr == 0 {
		return nullAccess("write")
	}
	*(*uint64)(unsafe.Pointer(addr)) = value
	return nil
}

// Compile-time check that NativeMemory implements ffiruntime.Memory
var _ ffiruntime.Memory = NativeMemory{}
