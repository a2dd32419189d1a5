package transcoder

import (
	"reflect"
	"runtime"
	"sync"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
)

// Frame is the arena backing one foreign call. Encoded strings, rw
// slots, and aggregate temporaries live in pinned buffers that stay
// put until Release; byte views pin caller memory instead of copying
// it. Frames are single-goroutine and must not outlive their call.
type Frame struct {
	pinner    runtime.Pinner
	blocks    [][]byte
	copyBacks []copyBack
	words     []uint64
}

// copyBack records an rw slot whose post-call contents flow back into
// the managed destination.
type copyBack struct {
	slot uintptr
	typ  ctypes.Type
	dst  reflect.Value // pointer to the managed destination
}

var framePool = sync.Pool{
	New: func() any {
		return &Frame{}
	},
}

func NewFrame() *Frame {
	return framePool.Get().(*Frame)
}

const (
	maxPooledFrameBlocks = 32
	maxPooledFrameWords  = 64
)

// Release unpins every buffer and view and returns the frame to the
// pool. Addresses handed out by this frame are invalid afterwards.
func (f *Frame) Release() {
	f.pinner.Unpin()
	for i := range f.blocks {
		f.blocks[i] = nil
	}
	if cap(f.blocks) > maxPooledFrameBlocks || cap(f.words) > maxPooledFrameWords {
		return
	}
	f.blocks = f.blocks[:0]
	f.copyBacks = f.copyBacks[:0]
	f.words = f.words[:0]
	framePool.Put(f)
}

// Alloc carves a zeroed, pinned buffer out of the frame. Free is a
// no-op; the arena reclaims everything at Release.
func (f *Frame) Alloc(size, align uintptr) (uintptr, error) {
	if align == 0 {
		align = 1
	}
	if size == 0 {
		size = 1
	}
	total, ok := abi.SafeAdd(size, align-1)
	if !ok || total > abi.MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
	}

	buf := make([]byte, total)
	f.pinner.Pin(&buf[0])
	f.blocks = append(f.blocks, buf)

	return abi.AlignTo(uintptr(unsafe.Pointer(&buf[0])), align), nil
}

func (f *Frame) Free(ptr, size, align uintptr) {}

// PinBytes pins a managed byte slice for the frame's lifetime and
// returns its data address. The callee sees the caller's memory; no
// copy is made. Empty slices map to the null pointer.
func (f *Frame) PinBytes(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	f.pinner.Pin(p)
	return uintptr(p)
}

// pin pins an arbitrary managed pointer until Release.
func (f *Frame) pin(p unsafe.Pointer) uintptr {
	f.pinner.Pin(p)
	return uintptr(p)
}

func (f *Frame) addCopyBack(slot uintptr, t ctypes.Type, dst reflect.Value) {
	f.copyBacks = append(f.copyBacks, copyBack{slot: slot, typ: t, dst: dst})
}

// wordBuf returns the frame's call word buffer, empty and with room
// for n entries. The slice is valid until Release.
func (f *Frame) wordBuf(n int) []uint64 {
	if cap(f.words) < n {
		f.words = make([]uint64, 0, n)
	}
	return f.words[:0]
}

// rawMemory addresses process memory directly: offsets are absolute
// addresses with no bounds to check. Owned struct values use it for
// field access into their own pinned buffers.
type rawMemory struct{}

func (rawMemory) Read(addr uintptr, length uintptr) ([]byte, error) {
	if addr == 0 {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNilPointer).
			Detail("read from null address").
			Build()
	}
	if length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), nil
}

func (rawMemory) Write(addr uintptr, data []byte) error {
	if addr == 0 {
		return errors.New(errors.PhaseRuntime, errors.KindNilPointer).
			Detail("write to null address").
			Build()
	}
	if len(data) == 0 {
		return nil
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data))
	copy(dst, data)
	return nil
}

func (rawMemory) ReadU8(addr uintptr) (uint8, error) {
	return *(*uint8)(unsafe.Pointer(addr)), nil
}

func (rawMemory) ReadU16(addr uintptr) (uint16, error) {
	return *(*uint16)(unsafe.Pointer(addr)), nil
}

func (rawMemory) ReadU32(addr uintptr) (uint32, error) {
	return *(*uint32)(unsafe.Pointer(addr)), nil
}

func (rawMemory) ReadU64(addr uintptr) (uint64, error) {
	return *(*uint64)(unsafe.Pointer(addr)), nil
}

func (rawMemory) WriteU8(addr uintptr, value uint8) error {
	*(*uint8)(unsafe.Pointer(addr)) = value
	return nil
}

func (rawMemory) WriteU16(addr uintptr, value uint16) error {
	*(*uint16)(unsafe.Pointer(addr)) = value
	return nil
}

func (rawMemory) WriteU32(addr uintptr, value uint32) error {
	*(*uint32)(unsafe.Pointer(addr)) = value
	return nil
}

func (rawMemory) WriteU64(addr uintptr, value uint64) error {
	*(*uint64)(unsafe.Pointer(addr)) = value
	return nil
}

var _ Memory = rawMemory{}

// writePtr stores a native address using the platform word width.
func writePtr(mem Memory, addr, value uintptr) error {
	if PtrSize == 8 {
		return mem.WriteU64(addr, uint64(value))
	}
	return mem.WriteU32(addr, uint32(value))
}

func readPtr(mem Memory, addr uintptr) (uintptr, error) {
	if PtrSize == 8 {
		v, err := mem.ReadU64(addr)
		return uintptr(v), err
	}
	v, err := mem.ReadU32(addr)
	return uintptr(v), err
}
