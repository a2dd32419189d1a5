package transcoder

import (
	goerrors "errors"
	"testing"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
)

// testMem is a bounded little-endian memory for codec tests. Addresses
// are offsets into the buffer, so out-of-range access fails instead of
// touching process memory.
type testMem struct {
	data []byte
}

func newTestMem(size int) *testMem {
	return &testMem{data: make([]byte, size)}
}

func (m *testMem) check(addr, length uintptr) error {
	if addr+length > uintptr(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseRuntime, nil, int(addr+length), len(m.data))
	}
	return nil
}

func (m *testMem) Read(addr uintptr, length uintptr) ([]byte, error) {
	if err := m.check(addr, length); err != nil {
		return nil, err
	}
	return m.data[addr : addr+length], nil
}

func (m *testMem) Write(addr uintptr, data []byte) error {
	if err := m.check(addr, uintptr(len(data))); err != nil {
		return err
	}
	copy(m.data[addr:], data)
	return nil
}

func (m *testMem) ReadU8(addr uintptr) (uint8, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

func (m *testMem) ReadU16(addr uintptr) (uint16, error) {
	if err := m.check(addr, 2); err != nil {
		return 0, err
	}
	return uint16(m.data[addr]) | uint16(m.data[addr+1])<<8, nil
}

func (m *testMem) ReadU32(addr uintptr) (uint32, error) {
	if err := m.check(addr, 4); err != nil {
		return 0, err
	}
	return uint32(m.data[addr]) | uint32(m.data[addr+1])<<8 |
		uint32(m.data[addr+2])<<16 | uint32(m.data[addr+3])<<24, nil
}

func (m *testMem) ReadU64(addr uintptr) (uint64, error) {
	lo, err := m.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadU32(addr + 4)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (m *testMem) WriteU8(addr uintptr, value uint8) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.data[addr] = value
	return nil
}

func (m *testMem) WriteU16(addr uintptr, value uint16) error {
	if err := m.check(addr, 2); err != nil {
		return err
	}
	m.data[addr] = byte(value)
	m.data[addr+1] = byte(value >> 8)
	return nil
}

func (m *testMem) WriteU32(addr uintptr, value uint32) error {
	if err := m.check(addr, 4); err != nil {
		return err
	}
	m.data[addr] = byte(value)
	m.data[addr+1] = byte(value >> 8)
	m.data[addr+2] = byte(value >> 16)
	m.data[addr+3] = byte(value >> 24)
	return nil
}

func (m *testMem) WriteU64(addr uintptr, value uint64) error {
	if err := m.WriteU32(addr, uint32(value)); err != nil {
		return err
	}
	return m.WriteU32(addr+4, uint32(value>>32))
}

func (m *testMem) mustWriteU8(t *testing.T, addr uintptr, value uint8) {
	t.Helper()
	if err := m.WriteU8(addr, value); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
}

func (m *testMem) mustWriteU16(t *testing.T, addr uintptr, value uint16) {
	t.Helper()
	if err := m.WriteU16(addr, value); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
}

func (m *testMem) mustWriteU32(t *testing.T, addr uintptr, value uint32) {
	t.Helper()
	if err := m.WriteU32(addr, value); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
}

func (m *testMem) mustWriteU64(t *testing.T, addr uintptr, value uint64) {
	t.Helper()
	if err := m.WriteU64(addr, value); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}
}

// testAlloc is a bump allocator over testMem addresses. Frees are
// recorded so tests can assert ownership transfers.
type testAlloc struct {
	offset uintptr
	freed  []Allocation
}

func newTestAlloc(start uintptr) *testAlloc {
	return &testAlloc{offset: start}
}

func (a *testAlloc) Alloc(size, align uintptr) (uintptr, error) {
	a.offset = alignTo(a.offset, align)
	addr := a.offset
	a.offset += size
	return addr, nil
}

func (a *testAlloc) Free(ptr, size, align uintptr) {
	a.freed = append(a.freed, Allocation{Ptr: ptr, Size: size, Align: align})
}

// wantKind asserts the structured phase and kind of an error.
func wantKind(t *testing.T, err error, phase errors.Phase, kind errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want [%s] %s error, got nil", phase, kind)
	}
	var fe *errors.Error
	if !goerrors.As(err, &fe) {
		t.Fatalf("want structured error, got %T: %v", err, err)
	}
	if fe.Phase != phase || fe.Kind != kind {
		t.Fatalf("got [%s] %s, want [%s] %s (%v)", fe.Phase, fe.Kind, phase, kind, err)
	}
}

func TestAllocationListFreesEverything(t *testing.T) {
	alloc := newTestAlloc(0)
	list := NewAllocationList()
	defer list.Release()

	a1, _ := alloc.Alloc(16, 8)
	list.Add(a1, 16, 8)
	a2, _ := alloc.Alloc(7, 1)
	list.Add(a2, 7, 1)

	if list.Count() != 2 {
		t.Fatalf("Count = %d, want 2", list.Count())
	}

	list.Free(alloc)
	if len(alloc.freed) != 2 {
		t.Fatalf("freed %d allocations, want 2", len(alloc.freed))
	}
	if alloc.freed[0] != (Allocation{Ptr: a1, Size: 16, Align: 8}) {
		t.Errorf("first free = %+v", alloc.freed[0])
	}
	if list.Count() != 0 {
		t.Errorf("Count after Free = %d, want 0", list.Count())
	}
}

func TestAllocationListReleaseAndReuse(t *testing.T) {
	list := NewAllocationList()
	list.Add(0x1000, 8, 8)
	list.Release()

	// a fresh list from the pool starts empty
	next := NewAllocationList()
	defer next.Release()
	if next.Count() != 0 {
		t.Fatalf("pooled list not reset: Count = %d", next.Count())
	}
}

func TestNewBufferOwnsNestedAllocations(t *testing.T) {
	desc, err := ctypes.NewStruct("msg",
		ctypes.Field{Name: "id", Type: ctypes.U32{}},
		ctypes.Field{Name: "text", Type: &ctypes.CString{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	mem := newTestMem(4096)
	alloc := newTestAlloc(64)
	enc := NewEncoder()

	buf, err := NewBuffer(desc, map[string]any{"id": uint32(7), "text": "hi"}, mem, alloc, enc)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	if buf.Addr() == 0 {
		t.Fatal("buffer has no address")
	}

	id, err := mem.ReadU32(buf.Addr())
	if err != nil || id != 7 {
		t.Fatalf("id = %d (%v), want 7", id, err)
	}

	textOff, err := OffsetOf(desc, "text")
	if err != nil {
		t.Fatal(err)
	}
	strPtr, err := readPtr(mem, buf.Addr()+textOff)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := mem.ReadU8(strPtr); b != 'h' {
		t.Errorf("string payload starts with %q, want 'h'", b)
	}

	buf.Free()
	// base allocation plus the string payload
	if len(alloc.freed) != 2 {
		t.Fatalf("freed %d allocations, want 2", len(alloc.freed))
	}
	if buf.Addr() != 0 {
		t.Error("Addr still set after Free")
	}
	buf.Free() // second Free is a no-op
	if len(alloc.freed) != 2 {
		t.Error("double Free released again")
	}
}

func TestNewBufferFreesOnEncodeFailure(t *testing.T) {
	desc, err := ctypes.NewStruct("rec",
		ctypes.Field{Name: "a", Type: ctypes.U32{}},
		ctypes.Field{Name: "b", Type: ctypes.U32{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	mem := newTestMem(4096)
	alloc := newTestAlloc(64)

	_, err = NewBuffer(desc, map[string]any{"a": uint32(1), "b": "nope"}, mem, alloc, NewEncoder())
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)
	if len(alloc.freed) == 0 {
		t.Error("failed encode leaked the base allocation")
	}
}
