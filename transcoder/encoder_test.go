package transcoder

import (
	"math"
	"testing"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
)

func TestStoreScalars(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	tests := []struct {
		name     string
		typ      ctypes.Type
		value    any
		readBack func() any
		want     any
	}{
		{"bool_true", ctypes.Bool{}, true, func() any { v, _ := mem.ReadU8(0); return v != 0 }, true},
		{"bool_false", ctypes.Bool{}, false, func() any { v, _ := mem.ReadU8(0); return v != 0 }, false},
		{"u8", ctypes.U8{}, uint8(42), func() any { v, _ := mem.ReadU8(0); return v }, uint8(42)},
		{"s8", ctypes.S8{}, int8(-10), func() any { v, _ := mem.ReadU8(0); return int8(v) }, int8(-10)},
		{"u16", ctypes.U16{}, uint16(1234), func() any { v, _ := mem.ReadU16(0); return v }, uint16(1234)},
		{"s16", ctypes.S16{}, int16(-567), func() any { v, _ := mem.ReadU16(0); return int16(v) }, int16(-567)},
		{"u32", ctypes.U32{}, uint32(123456), func() any { v, _ := mem.ReadU32(0); return v }, uint32(123456)},
		{"s32", ctypes.S32{}, int32(-78901), func() any { v, _ := mem.ReadU32(0); return int32(v) }, int32(-78901)},
		{"u64", ctypes.U64{}, uint64(123456789012), func() any { v, _ := mem.ReadU64(0); return v }, uint64(123456789012)},
		{"s64", ctypes.S64{}, int64(-987654321098), func() any { v, _ := mem.ReadU64(0); return int64(v) }, int64(-987654321098)},
		{"f32", ctypes.F32{}, float32(3.5), func() any { v, _ := mem.ReadU32(0); return math.Float32frombits(v) }, float32(3.5)},
		{"f64", ctypes.F64{}, 2.25, func() any { v, _ := mem.ReadU64(0); return math.Float64frombits(v) }, 2.25},
		// lossless coercions
		{"u32_from_int", ctypes.U32{}, 7, func() any { v, _ := mem.ReadU32(0); return v }, uint32(7)},
		{"s32_from_float64", ctypes.S32{}, float64(-3), func() any { v, _ := mem.ReadU32(0); return int32(v) }, int32(-3)},
		{"u8_from_int", ctypes.U8{}, 200, func() any { v, _ := mem.ReadU8(0); return v }, uint8(200)},
		{"f64_from_int", ctypes.F64{}, 5, func() any { v, _ := mem.ReadU64(0); return math.Float64frombits(v) }, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := enc.Store(tt.typ, tt.value, 0, mem, nil, nil); err != nil {
				t.Fatalf("Store failed: %v", err)
			}
			if got := tt.readBack(); got != tt.want {
				t.Errorf("read back %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoreScalarRejects(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	tests := []struct {
		name  string
		typ   ctypes.Type
		value any
		kind  errors.Kind
	}{
		{"u8_overflow", ctypes.U8{}, 300, errors.KindOverflow},
		{"s8_overflow", ctypes.S8{}, -200, errors.KindOverflow},
		{"u16_negative", ctypes.U16{}, -1, errors.KindOverflow},
		{"u32_negative", ctypes.U32{}, -1, errors.KindOverflow},
		{"s32_overflow", ctypes.S32{}, int64(math.MaxInt32) + 1, errors.KindOverflow},
		{"f32_precision_loss", ctypes.F32{}, 1.0000000001, errors.KindOverflow},
		{"s32_fractional", ctypes.S32{}, 1.5, errors.KindOverflow},
		{"bool_from_int", ctypes.Bool{}, 1, errors.KindTypeMismatch},
		{"u32_from_string", ctypes.U32{}, "12", errors.KindTypeMismatch},
		{"u32_from_nil", ctypes.U32{}, nil, errors.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enc.Store(tt.typ, tt.value, 0, mem, nil, nil)
			wantKind(t, err, errors.PhaseEncode, tt.kind)
		})
	}
}

func TestStorePointer(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)
	ptr := ctypes.Ptr(nil)

	if err := enc.Store(ptr, nil, 0, mem, nil, nil); err != nil {
		t.Fatalf("Store nil failed: %v", err)
	}
	if v, _ := readPtr(mem, 0); v != 0 {
		t.Errorf("nil stored as %#x, want 0", v)
	}

	if err := enc.Store(ptr, uintptr(0xBEEF), 0, mem, nil, nil); err != nil {
		t.Fatalf("Store uintptr failed: %v", err)
	}
	if v, _ := readPtr(mem, 0); v != 0xBEEF {
		t.Errorf("stored %#x, want 0xBEEF", v)
	}

	err := enc.Store(ptr, "not a pointer", 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)

	// managed slices have no stable address outside a call frame
	err = enc.Store(ptr, []byte{1, 2, 3}, 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindUnsupported)
}

func TestStoreCString(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(1024)
	alloc := newTestAlloc(128)
	allocs := NewAllocationList()
	defer allocs.Release()

	cstr := &ctypes.CString{}
	if err := enc.Store(cstr, "hello", 0, mem, alloc, allocs); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	p, err := readPtr(mem, 0)
	if err != nil || p == 0 {
		t.Fatalf("no string pointer stored (%v)", err)
	}
	data, _ := mem.Read(p, 6)
	if string(data) != "hello\x00" {
		t.Errorf("payload = %q, want hello NUL", data)
	}
	if allocs.Count() != 1 {
		t.Errorf("allocation not recorded: Count = %d", allocs.Count())
	}

	// NULL is a null pointer, not an empty buffer
	if err := enc.Store(cstr, nil, 8, mem, alloc, allocs); err != nil {
		t.Fatalf("Store nil failed: %v", err)
	}
	if v, _ := readPtr(mem, 8); v != 0 {
		t.Errorf("nil string stored as %#x, want 0", v)
	}

	err = enc.Store(cstr, "bad\x00byte", 16, mem, alloc, allocs)
	wantKind(t, err, errors.PhaseEncode, errors.KindInvalidEncoding)
}

func TestStoreWideCString(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(1024)
	alloc := newTestAlloc(128)

	wide := &ctypes.CString{Encoding: ctypes.UTF16}
	if err := enc.Store(wide, "héllo", 0, mem, alloc, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	p, _ := readPtr(mem, 0)
	if p%2 != 0 {
		t.Errorf("wide string at odd address %#x", p)
	}
	units := []uint16{'h', 0xE9, 'l', 'l', 'o', 0}
	for i, want := range units {
		got, err := mem.ReadU16(p + uintptr(i)*2)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("unit %d = %#x, want %#x", i, got, want)
		}
	}
}

func TestStoreStructFromMap(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	desc, err := ctypes.NewStruct("point",
		ctypes.Field{Name: "x", Type: ctypes.U32{}},
		ctypes.Field{Name: "y", Type: ctypes.U32{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	// leftover bytes prove the zero fill
	mem.mustWriteU32(t, 4, 0xFFFFFFFF)

	if err := enc.Store(desc, map[string]any{"x": uint32(3)}, 0, mem, nil, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if x, _ := mem.ReadU32(0); x != 3 {
		t.Errorf("x = %d, want 3", x)
	}
	if y, _ := mem.ReadU32(4); y != 0 {
		t.Errorf("absent field y = %d, want 0", y)
	}

	err = enc.Store(desc, map[string]any{"x": uint32(1), "z": uint32(2)}, 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindFieldUnknown)
}

func TestStoreStructFromGoStruct(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	desc, err := ctypes.NewStruct("sample",
		ctypes.Field{Name: "flags", Type: ctypes.U8{}},
		ctypes.Field{Name: "count", Type: ctypes.U32{}},
		ctypes.Field{Name: "user_id", Type: ctypes.U64{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	type sample struct {
		Flags  uint8
		Count  uint32 `c:"count"`
		UserID uint64
	}

	in := sample{Flags: 9, Count: 77, UserID: 123456789}
	if err := enc.Store(desc, &in, 0, mem, nil, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// C layout: flags@0, count@4, user_id@8
	if v, _ := mem.ReadU8(0); v != 9 {
		t.Errorf("flags = %d, want 9", v)
	}
	if v, _ := mem.ReadU32(4); v != 77 {
		t.Errorf("count = %d, want 77", v)
	}
	if v, _ := mem.ReadU64(8); v != 123456789 {
		t.Errorf("user_id = %d, want 123456789", v)
	}

	// non-pointer structs work through an addressable copy
	if err := enc.Store(desc, sample{Flags: 1, Count: 2, UserID: 3}, 32, mem, nil, nil); err != nil {
		t.Fatalf("Store by value failed: %v", err)
	}
	if v, _ := mem.ReadU32(36); v != 2 {
		t.Errorf("count = %d, want 2", v)
	}
}

func TestStoreStructFromStructValue(t *testing.T) {
	desc, err := ctypes.NewStruct("pair",
		ctypes.Field{Name: "a", Type: ctypes.U32{}},
		ctypes.Field{Name: "b", Type: ctypes.U32{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	src, err := NewStructValue(desc)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Release()
	if err := src.SetField("a", uint32(11)); err != nil {
		t.Fatal(err)
	}
	if err := src.SetField("b", uint32(22)); err != nil {
		t.Fatal(err)
	}

	enc := NewEncoder()
	mem := newTestMem(256)
	if err := enc.Store(desc, src, 0, mem, nil, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if a, _ := mem.ReadU32(0); a != 11 {
		t.Errorf("a = %d, want 11", a)
	}
	if b, _ := mem.ReadU32(4); b != 22 {
		t.Errorf("b = %d, want 22", b)
	}

	other, err := ctypes.NewStruct("pair",
		ctypes.Field{Name: "a", Type: ctypes.U32{}},
		ctypes.Field{Name: "b", Type: ctypes.U32{}},
	)
	if err != nil {
		t.Fatal(err)
	}
	// descriptors are identity: a structurally equal struct is a different type
	err = enc.Store(other, src, 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)
}

func TestStoreUnionNeedsStructValue(t *testing.T) {
	desc, err := ctypes.NewUnion("num",
		ctypes.Field{Name: "i", Type: ctypes.U32{}},
		ctypes.Field{Name: "f", Type: ctypes.F32{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	enc := NewEncoder()
	mem := newTestMem(64)
	err = enc.Store(desc, map[string]any{"i": uint32(1)}, 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindUnsupported)
}

func TestStoreArray(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	arr, err := ctypes.NewArray(ctypes.U32{}, 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.Store(arr, []uint32{10, 20, 30}, 0, mem, nil, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	for i, want := range []uint32{10, 20, 30} {
		if v, _ := mem.ReadU32(uintptr(i) * 4); v != want {
			t.Errorf("elem %d = %d, want %d", i, v, want)
		}
	}

	err = enc.Store(arr, []uint32{1, 2}, 0, mem, nil, nil)
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)

	bytes, err := ctypes.NewArray(ctypes.U8{}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Store(bytes, []byte{1, 2, 3, 4}, 16, mem, nil, nil); err != nil {
		t.Fatalf("byte array Store failed: %v", err)
	}
	if data, _ := mem.Read(16, 4); string(data) != "\x01\x02\x03\x04" {
		t.Errorf("byte array = %v", data)
	}
}

func TestStoreErrorPaths(t *testing.T) {
	enc := NewEncoder()
	mem := newTestMem(256)

	inner, err := ctypes.NewStruct("inner",
		ctypes.Field{Name: "deep_val", Type: ctypes.U8{}},
	)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := ctypes.NewStruct("outer",
		ctypes.Field{Name: "in", Type: inner},
	)
	if err != nil {
		t.Fatal(err)
	}

	storeErr := enc.Store(outer, map[string]any{
		"in": map[string]any{"deep_val": "nope"},
	}, 0, mem, nil, nil)
	wantKind(t, storeErr, errors.PhaseEncode, errors.KindTypeMismatch)

	fe := storeErr.(*errors.Error)
	if len(fe.Path) != 2 || fe.Path[0] != "in" || fe.Path[1] != "deep_val" {
		t.Errorf("error path = %v, want [in deep_val]", fe.Path)
	}
}

func TestEncodeArgsWords(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := ctypes.Params(ctypes.U32{}, ctypes.S32{}, ctypes.F32{}, ctypes.F64{}, ctypes.Bool{})
	words, err := enc.EncodeArgs(params, []any{uint32(7), int32(-2), float32(1.5), 2.5, true}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	neg2 := int64(-2)
	want := []uint64{
		7,
		uint64(neg2), // sign extended
		uint64(math.Float32bits(1.5)),
		math.Float64bits(2.5),
		1,
	}
	if len(words) != len(want) {
		t.Fatalf("got %d words, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %#x, want %#x", i, words[i], want[i])
		}
	}
}

func TestEncodeArgsCountMismatch(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := ctypes.Params(ctypes.U32{}, ctypes.U32{})
	_, err := enc.EncodeArgs(params, []any{uint32(1)}, frame)
	wantKind(t, err, errors.PhaseEncode, errors.KindSignatureMismatch)
}

func TestEncodeArgsCStringLivesInFrame(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := []ctypes.Param{{Name: "path", Type: &ctypes.CString{}}}
	words, err := enc.EncodeArgs(params, []any{"/tmp"}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	data, err := rawMemory{}.Read(uintptr(words[0]), 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/tmp\x00" {
		t.Errorf("payload = %q", data)
	}

	// NULL crosses as the zero word
	words, err = enc.EncodeArgs(params, []any{nil}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs nil failed: %v", err)
	}
	if words[0] != 0 {
		t.Errorf("nil string word = %#x, want 0", words[0])
	}
}

func TestEncodeArgsRWScalar(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	val := uint32(41)
	params := []ctypes.Param{ctypes.RW(ctypes.U32{})}
	words, err := enc.EncodeArgs(params, []any{&val}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	slot := uintptr(words[0])
	if slot == 0 {
		t.Fatal("rw argument crossed by value, want a slot address")
	}
	if got, _ := (rawMemory{}).ReadU32(slot); got != 41 {
		t.Errorf("slot holds %d, want 41", got)
	}
	if len(frame.copyBacks) != 1 {
		t.Fatalf("copyBacks = %d, want 1", len(frame.copyBacks))
	}

	// non-pointer argument cannot receive the result
	_, err = enc.EncodeArgs(params, []any{uint32(41)}, frame)
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)

	var nilPtr *uint32
	_, err = enc.EncodeArgs(params, []any{nilPtr}, frame)
	wantKind(t, err, errors.PhaseEncode, errors.KindNilPointer)
}

func TestEncodeArgsBytesArePinnedNotCopied(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	buf := []byte{1, 2, 3, 4}
	params := []ctypes.Param{{Name: "data", Type: &ctypes.Bytes{}}}
	words, err := enc.EncodeArgs(params, []any{buf}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	if uintptr(words[0]) != uintptr(unsafe.Pointer(&buf[0])) {
		t.Fatal("byte view was copied, want the slice's own address")
	}

	// a callee write through the address lands in the slice
	if err := (rawMemory{}).WriteU8(uintptr(words[0]), 99); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 99 {
		t.Errorf("buf[0] = %d, want 99", buf[0])
	}
}

func TestEncodeArgsScalarPointerPinned(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	out := uint64(0)
	params := []ctypes.Param{{Name: "out", Type: ctypes.Ptr(ctypes.U64{})}}
	words, err := enc.EncodeArgs(params, []any{&out}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}
	if uintptr(words[0]) != uintptr(unsafe.Pointer(&out)) {
		t.Fatal("scalar pointer was not passed through")
	}
}

func TestEncodeArgsStructValueSharesMemory(t *testing.T) {
	desc, err := ctypes.NewStruct("timespec",
		ctypes.Field{Name: "sec", Type: ctypes.S64{}},
		ctypes.Field{Name: "nsec", Type: ctypes.S64{}},
	)
	if err != nil {
		t.Fatal(err)
	}
	sv, err := NewStructValue(desc)
	if err != nil {
		t.Fatal(err)
	}
	defer sv.Release()

	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := []ctypes.Param{{Name: "ts", Type: ctypes.Ptr(desc)}}
	words, err := enc.EncodeArgs(params, []any{sv}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}
	if uintptr(words[0]) != sv.Addr() {
		t.Fatalf("struct value crossed at %#x, want its own address %#x", words[0], sv.Addr())
	}
}

func TestEncodeArgsMapMarshalsToTemporary(t *testing.T) {
	desc, err := ctypes.NewStruct("point",
		ctypes.Field{Name: "x", Type: ctypes.S32{}},
		ctypes.Field{Name: "y", Type: ctypes.S32{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := []ctypes.Param{{Name: "p", Type: ctypes.Ptr(desc)}}
	words, err := enc.EncodeArgs(params, []any{map[string]any{"x": int32(-1), "y": int32(2)}}, frame)
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}
	if words[0] == 0 {
		t.Fatal("no temporary allocated")
	}

	x, _ := rawMemory{}.ReadU32(uintptr(words[0]))
	y, _ := rawMemory{}.ReadU32(uintptr(words[0]) + 4)
	if int32(x) != -1 || int32(y) != 2 {
		t.Errorf("temporary holds (%d, %d), want (-1, 2)", int32(x), int32(y))
	}
}

func TestEncodeArgsErrorNamesParameter(t *testing.T) {
	enc := NewEncoder()
	frame := NewFrame()
	defer frame.Release()

	params := []ctypes.Param{
		{Name: "fd", Type: ctypes.S32{}},
		{Name: "mode", Type: ctypes.U32{}},
	}
	_, err := enc.EncodeArgs(params, []any{int32(1), "rw"}, frame)
	wantKind(t, err, errors.PhaseEncode, errors.KindTypeMismatch)

	fe := err.(*errors.Error)
	if len(fe.Path) == 0 || fe.Path[0] != "mode" {
		t.Errorf("error path = %v, want to start with mode", fe.Path)
	}
}
