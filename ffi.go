package ffiruntime

// Memory represents a readable and writable view of native memory.
// Addresses are raw native addresses, not offsets.
type Memory interface {
	Read(addr uintptr, length uintptr) ([]byte, error)
	Write(addr uintptr, data []byte) error
	ReadU8(addr uintptr) (uint8, error)
	ReadU16(addr uintptr) (uint16, error)
	ReadU32(addr uintptr) (uint32, error)
	ReadU64(addr uintptr) (uint64, error)
	WriteU8(addr uintptr, value uint8) error
	WriteU16(addr uintptr, value uint16) error
	WriteU32(addr uintptr, value uint32) error
	WriteU64(addr uintptr, value uint64) error
}

// MemoryBounds reports the addressable byte range of a bounded Memory
// implementation. Process-wide native memory is unbounded and does not
// implement it.
type MemoryBounds interface {
	Bounds() (base uintptr, size uintptr)
}

// Allocator allocates native memory with explicit alignment. Returned
// addresses stay valid until freed and are safe to pass to foreign code.
type Allocator interface {
	Alloc(size, align uintptr) (uintptr, error)
	Free(ptr, size, align uintptr)
}
