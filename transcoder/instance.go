package transcoder

import (
	"runtime"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
)

// Package default codec pair behind the convenience constructors.
var (
	defaultCompiler = NewCompiler()
	defaultEncoder  = NewEncoderWithCompiler(defaultCompiler)
	defaultDecoder  = NewDecoderWithCompiler(defaultCompiler)
)

// StructValue is a typed window over one aggregate in memory. Owned
// values (NewStructValue) back themselves with pinned managed memory
// and stay valid until Release. Borrowed views (StructValueAt) address
// memory somebody else owns and are only as durable as that memory.
//
// Unions are only reachable this way: the active member is the
// caller's knowledge, so fields are read and written by name with no
// dynamic representation in between.
type StructValue struct {
	desc   ctypes.Type
	fields []ctypes.Field
	info   LayoutInfo
	addr   uintptr
	mem    Memory
	enc    *Encoder
	dec    *Decoder

	// owned backing, nil for borrowed views
	buf    []byte
	pinner *runtime.Pinner
}

// NewStructValue allocates a zeroed, pinned value of the given struct
// or union type. The caller must Release it.
func NewStructValue(desc ctypes.Type) (*StructValue, error) {
	return newOwnedStructValue(desc, defaultEncoder, defaultDecoder)
}

// StructValueAt wraps the aggregate at addr without taking ownership.
func StructValueAt(desc ctypes.Type, addr uintptr, mem Memory) (*StructValue, error) {
	return newStructValueAt(desc, addr, mem, defaultEncoder, defaultDecoder)
}

// NewStructValue allocates an owned value sharing this decoder's
// compile cache.
func (d *Decoder) NewStructValue(desc ctypes.Type) (*StructValue, error) {
	return newOwnedStructValue(desc, NewEncoderWithCompiler(d.compiler), d)
}

// StructValueAt wraps the aggregate at addr, sharing this decoder's
// compile cache.
func (d *Decoder) StructValueAt(desc ctypes.Type, addr uintptr, mem Memory) (*StructValue, error) {
	return newStructValueAt(desc, addr, mem, NewEncoderWithCompiler(d.compiler), d)
}

func newOwnedStructValue(desc ctypes.Type, enc *Encoder, dec *Decoder) (*StructValue, error) {
	fields, ok := aggregateFields(desc)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseRuntime, "struct values wrap structs and unions, not "+ctypes.Name(desc))
	}
	info, err := enc.compiler.layout.Calculate(desc)
	if err != nil {
		return nil, err
	}

	total, ok := abi.SafeAdd(info.Size, info.Align-1)
	if !ok || total > MaxAlloc {
		return nil, errors.AllocationFailed(errors.PhaseRuntime, info.Size, info.Align)
	}
	buf := make([]byte, total)
	pinner := new(runtime.Pinner)
	pinner.Pin(&buf[0])

	return &StructValue{
		desc:   desc,
		fields: fields,
		info:   info,
		addr:   abi.AlignTo(uintptr(unsafe.Pointer(&buf[0])), info.Align),
		mem:    rawMemory{},
		enc:    enc,
		dec:    dec,
		buf:    buf,
		pinner: pinner,
	}, nil
}

func newStructValueAt(desc ctypes.Type, addr uintptr, mem Memory, enc *Encoder, dec *Decoder) (*StructValue, error) {
	fields, ok := aggregateFields(desc)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseRuntime, "struct values wrap structs and unions, not "+ctypes.Name(desc))
	}
	if addr == 0 {
		return nil, errors.NilPointer(errors.PhaseRuntime, nil, ctypes.Name(desc))
	}
	info, err := enc.compiler.layout.Calculate(desc)
	if err != nil {
		return nil, err
	}

	return &StructValue{
		desc:   desc,
		fields: fields,
		info:   info,
		addr:   addr,
		mem:    mem,
		enc:    enc,
		dec:    dec,
	}, nil
}

func aggregateFields(desc ctypes.Type) ([]ctypes.Field, bool) {
	switch t := desc.(type) {
	case *ctypes.Struct:
		return t.Fields, true
	case *ctypes.Union:
		return t.Fields, true
	}
	return nil, false
}

// Addr returns the native address of the value. Passing it to a call
// hands the callee the value's actual bytes, not a copy.
func (v *StructValue) Addr() uintptr { return v.addr }

// Desc returns the type descriptor the value was created with.
func (v *StructValue) Desc() ctypes.Type { return v.desc }

// Size returns the C size of the aggregate in bytes.
func (v *StructValue) Size() uintptr { return v.info.Size }

// Owned reports whether the value backs itself with managed memory.
func (v *StructValue) Owned() bool { return v.buf != nil }

// Bytes returns a copy of the value's current contents.
func (v *StructValue) Bytes() ([]byte, error) {
	if v.addr == 0 {
		return nil, errors.Closed("struct value")
	}
	data, err := v.mem.Read(v.addr, v.info.Size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Field reads one field by name. Union fields reinterpret the same
// bytes; reading a member other than the last one written is the same
// type pun it would be in C.
func (v *StructValue) Field(name string) (any, error) {
	f, off, err := v.lookup(name, errors.PhaseDecode)
	if err != nil {
		return nil, err
	}
	val, err := v.dec.loadValue(f.Type, v.addr+off, v.mem)
	if err != nil {
		return nil, notePath(err, name)
	}
	return val, nil
}

// SetField writes one field by name. String fields are rejected: their
// payloads need an allocator, which a bare view does not have.
func (v *StructValue) SetField(name string, value any) error {
	f, off, err := v.lookup(name, errors.PhaseEncode)
	if err != nil {
		return err
	}
	if err := v.enc.storeValue(f.Type, value, v.addr+off, v.mem, nil, nil); err != nil {
		return notePath(err, name)
	}
	return nil
}

// Struct returns a borrowed view of an embedded struct or union field.
// The view shares this value's memory and lifetime.
func (v *StructValue) Struct(name string) (*StructValue, error) {
	f, off, err := v.lookup(name, errors.PhaseDecode)
	if err != nil {
		return nil, err
	}
	if _, ok := aggregateFields(f.Type); !ok {
		return nil, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			CType(ctypes.Name(f.Type)).
			Detail("field %q is not a struct or union", name).
			Build()
	}
	return newStructValueAt(f.Type, v.addr+off, v.mem, v.enc, v.dec)
}

func (v *StructValue) lookup(name string, phase errors.Phase) (ctypes.Field, uintptr, error) {
	if v.addr == 0 {
		return ctypes.Field{}, 0, errors.Closed("struct value")
	}
	for _, f := range v.fields {
		if f.Name == name {
			return f, v.info.FieldOffs[name], nil
		}
	}
	return ctypes.Field{}, 0, errors.FieldUnknown(phase, nil, name)
}

// Release unpins an owned value's backing memory and invalidates the
// handle. Releasing a borrowed view only invalidates the handle; the
// underlying memory is untouched. Release is idempotent.
func (v *StructValue) Release() {
	if v.addr == 0 {
		return
	}
	v.addr = 0
	if v.pinner != nil {
		v.pinner.Unpin()
		v.pinner = nil
		v.buf = nil
	}
}
