package transcoder

import (
	"math"
	"reflect"
	"unicode/utf16"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
	"github.com/wippyai/ffi-runtime/transcoder/internal/types"
)

// Decoder reads native memory back into managed values. The dynamic
// path produces any-typed values; DecodeInto fills Go structs through
// the compiled walk. Decoders are safe for concurrent use.
type Decoder struct {
	compiler *Compiler
}

func NewDecoder() *Decoder {
	return &Decoder{compiler: NewCompiler()}
}

// NewDecoderWithCompiler shares a compile cache with other codecs.
func NewDecoderWithCompiler(c *Compiler) *Decoder {
	return &Decoder{compiler: c}
}

// Load reads the value at addr according to t. Scalars come back as
// their natural Go types, pointers as uintptr, strings as string or
// nil for NULL, structs as map[string]any, and arrays as slices.
func (d *Decoder) Load(t ctypes.Type, addr uintptr, mem Memory) (any, error) {
	return d.loadValue(t, addr, mem)
}

func (d *Decoder) loadValue(t ctypes.Type, addr uintptr, mem Memory) (any, error) {
	if t == nil {
		return nil, errors.Unsupported(errors.PhaseDecode, "void has no value representation")
	}

	switch ct := t.(type) {
	case ctypes.Bool:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return nil, err
		}
		return v != 0, nil

	case ctypes.U8:
		return mem.ReadU8(addr)

	case ctypes.S8:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return nil, err
		}
		return int8(v), nil

	case ctypes.U16:
		return mem.ReadU16(addr)

	case ctypes.S16:
		v, err := mem.ReadU16(addr)
		if err != nil {
			return nil, err
		}
		return int16(v), nil

	case ctypes.U32:
		return mem.ReadU32(addr)

	case ctypes.S32:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return nil, err
		}
		return int32(v), nil

	case ctypes.U64:
		return mem.ReadU64(addr)

	case ctypes.S64:
		v, err := mem.ReadU64(addr)
		if err != nil {
			return nil, err
		}
		return int64(v), nil

	case ctypes.F32:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(v), nil

	case ctypes.F64:
		v, err := mem.ReadU64(addr)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil

	case *ctypes.Pointer, *ctypes.Func:
		return readPtr(mem, addr)

	case *ctypes.CString:
		p, err := readPtr(mem, addr)
		if err != nil {
			return nil, err
		}
		if p == 0 {
			// NULL is absence, not ""
			return nil, nil
		}
		return d.decodeCString(p, ct.Encoding, mem)

	case *ctypes.Bytes:
		return nil, errors.Unsupported(errors.PhaseDecode, "byte views carry no length to decode by")

	case *ctypes.Struct:
		return d.loadStruct(ct, addr, mem)

	case *ctypes.Union:
		return nil, errors.Unsupported(errors.PhaseDecode, ctypes.Name(t)+" has no dynamic decoding: the active member is not knowable; use a StructValue")

	case *ctypes.Array:
		return d.loadArray(ct, addr, mem)
	}

	return nil, errors.Unsupported(errors.PhaseDecode, "type "+ctypes.Name(t))
}

func (d *Decoder) loadStruct(t *ctypes.Struct, addr uintptr, mem Memory) (map[string]any, error) {
	info, err := d.compiler.layout.Calculate(t)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		v, err := d.loadValue(f.Type, addr+info.FieldOffs[f.Name], mem)
		if err != nil {
			return nil, notePath(err, f.Name)
		}
		out[f.Name] = v
	}
	return out, nil
}

// loadArray produces typed slices for scalar elements and []any for
// everything else.
func (d *Decoder) loadArray(t *ctypes.Array, addr uintptr, mem Memory) (any, error) {
	elemInfo, err := d.compiler.layout.Calculate(t.Elem)
	if err != nil {
		return nil, err
	}
	n := t.Len
	stride := elemInfo.Size

	switch t.Elem.(type) {
	case ctypes.U8:
		data, err := mem.Read(addr, uintptr(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, data)
		return out, nil
	case ctypes.S8:
		data, err := mem.Read(addr, uintptr(n))
		if err != nil {
			return nil, err
		}
		out := make([]int8, n)
		for i, b := range data {
			out[i] = int8(b)
		}
		return out, nil
	case ctypes.Bool:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (bool, error) {
			v, err := mem.ReadU8(a)
			return v != 0, err
		})
	case ctypes.U16:
		return loadScalarSlice(addr, stride, n, mem.ReadU16)
	case ctypes.S16:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (int16, error) {
			v, err := mem.ReadU16(a)
			return int16(v), err
		})
	case ctypes.U32:
		return loadScalarSlice(addr, stride, n, mem.ReadU32)
	case ctypes.S32:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (int32, error) {
			v, err := mem.ReadU32(a)
			return int32(v), err
		})
	case ctypes.U64:
		return loadScalarSlice(addr, stride, n, mem.ReadU64)
	case ctypes.S64:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (int64, error) {
			v, err := mem.ReadU64(a)
			return int64(v), err
		})
	case ctypes.F32:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (float32, error) {
			v, err := mem.ReadU32(a)
			return math.Float32frombits(v), err
		})
	case ctypes.F64:
		return loadScalarSlice(addr, stride, n, func(a uintptr) (float64, error) {
			v, err := mem.ReadU64(a)
			return math.Float64frombits(v), err
		})
	}

	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := d.loadValue(t.Elem, addr+uintptr(i)*stride, mem)
		if err != nil {
			return nil, noteIndex(err, i)
		}
		out[i] = v
	}
	return out, nil
}

func loadScalarSlice[T any](addr, stride uintptr, n int, read func(uintptr) (T, error)) ([]T, error) {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		v, err := read(addr + uintptr(i)*stride)
		if err != nil {
			return nil, noteIndex(err, i)
		}
		out[i] = v
	}
	return out, nil
}

// DecodeInto reads the aggregate at addr into the Go value out points
// to, compiling the mapping on first use. out must be a non-nil
// pointer to a struct or fixed-size array.
func (d *Decoder) DecodeInto(t ctypes.Type, addr uintptr, mem Memory, out any) error {
	if !isAggregate(t) {
		return errors.Unsupported(errors.PhaseDecode, "DecodeInto takes aggregate types, not "+ctypes.Name(t))
	}

	rv := reflect.ValueOf(out)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer {
		return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			GoType(abi.TypeName(out)).
			CType(ctypes.Name(t)).
			Detail("destination must be a pointer").
			Build()
	}
	if rv.IsNil() {
		return errors.NilPointer(errors.PhaseDecode, nil, rv.Type().String())
	}

	compiled, err := d.compiler.Compile(t, rv.Type())
	if err != nil {
		return err
	}
	return d.decodeCompiled(compiled, rv.UnsafePointer(), addr, mem)
}

// decodeCompiled walks a compiled type, reading C memory at addr and
// writing Go memory at dst. Mirror of the encoder's compiled walk.
func (d *Decoder) decodeCompiled(ct *types.CompiledType, dst unsafe.Pointer, addr uintptr, mem Memory) error {
	switch ct.Kind {
	case types.KindBool:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return err
		}
		*(*bool)(dst) = v != 0
		return nil
	case types.KindU8:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return err
		}
		*(*uint8)(dst) = v
		return nil
	case types.KindS8:
		v, err := mem.ReadU8(addr)
		if err != nil {
			return err
		}
		*(*int8)(dst) = int8(v)
		return nil
	case types.KindU16:
		v, err := mem.ReadU16(addr)
		if err != nil {
			return err
		}
		*(*uint16)(dst) = v
		return nil
	case types.KindS16:
		v, err := mem.ReadU16(addr)
		if err != nil {
			return err
		}
		*(*int16)(dst) = int16(v)
		return nil
	case types.KindU32:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return err
		}
		*(*uint32)(dst) = v
		return nil
	case types.KindS32:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return err
		}
		*(*int32)(dst) = int32(v)
		return nil
	case types.KindU64:
		v, err := mem.ReadU64(addr)
		if err != nil {
			return err
		}
		*(*uint64)(dst) = v
		return nil
	case types.KindS64:
		v, err := mem.ReadU64(addr)
		if err != nil {
			return err
		}
		*(*int64)(dst) = int64(v)
		return nil
	case types.KindF32:
		v, err := mem.ReadU32(addr)
		if err != nil {
			return err
		}
		*(*float32)(dst) = math.Float32frombits(v)
		return nil
	case types.KindF64:
		v, err := mem.ReadU64(addr)
		if err != nil {
			return err
		}
		*(*float64)(dst) = math.Float64frombits(v)
		return nil
	case types.KindPointer, types.KindFunc:
		p, err := readPtr(mem, addr)
		if err != nil {
			return err
		}
		*(*uintptr)(dst) = p
		return nil
	case types.KindCString:
		p, err := readPtr(mem, addr)
		if err != nil {
			return err
		}
		if p == 0 {
			// a Go string field cannot hold NULL; it comes back ""
			*(*string)(dst) = ""
			return nil
		}
		s, err := d.decodeCString(p, ct.Encoding, mem)
		if err != nil {
			return err
		}
		*(*string)(dst) = s
		return nil
	case types.KindStruct:
		for i := range ct.Fields {
			f := &ct.Fields[i]
			if err := d.decodeCompiled(f.Type, unsafe.Add(dst, f.GoOffset), addr+f.Offset, mem); err != nil {
				return notePath(err, f.CName)
			}
		}
		return nil
	case types.KindArray:
		elem := ct.ElemType
		for i := 0; i < ct.Len; i++ {
			elemDst := unsafe.Add(dst, uintptr(i)*elem.GoSize)
			if err := d.decodeCompiled(elem, elemDst, addr+uintptr(i)*elem.Size, mem); err != nil {
				return noteIndex(err, i)
			}
		}
		return nil
	}
	return errors.Unsupported(errors.PhaseDecode, "compiled kind")
}

// Lift reconstructs a return value from its call word. NULL strings
// lift to nil, never to ""; aggregate returns are borrowed views of
// the callee's memory.
func (d *Decoder) Lift(t ctypes.Type, word uint64, mem Memory) (any, error) {
	if t == nil {
		return nil, nil
	}

	switch ct := t.(type) {
	case ctypes.Bool:
		return word != 0, nil
	case ctypes.U8:
		return uint8(word), nil
	case ctypes.S8:
		return int8(word), nil
	case ctypes.U16:
		return uint16(word), nil
	case ctypes.S16:
		return int16(word), nil
	case ctypes.U32:
		return uint32(word), nil
	case ctypes.S32:
		return int32(word), nil
	case ctypes.U64:
		return word, nil
	case ctypes.S64:
		return int64(word), nil
	case ctypes.F32:
		return math.Float32frombits(uint32(word)), nil
	case ctypes.F64:
		return math.Float64frombits(word), nil
	case *ctypes.Pointer, *ctypes.Func:
		return uintptr(word), nil
	case *ctypes.CString:
		if word == 0 {
			return nil, nil
		}
		return d.decodeCString(uintptr(word), ct.Encoding, mem)
	case *ctypes.Struct, *ctypes.Union:
		if word == 0 {
			return nil, nil
		}
		return d.StructValueAt(t, uintptr(word), mem)
	case *ctypes.Array:
		return nil, errors.Unsupported(errors.PhaseDecode, "C functions do not return arrays")
	case *ctypes.Bytes:
		return nil, errors.Unsupported(errors.PhaseDecode, "byte views carry no length to decode by")
	}

	return nil, errors.Unsupported(errors.PhaseDecode, "type "+ctypes.Name(t))
}

// decodeCString copies a NUL-terminated buffer out of native memory.
// The scan is unit at a time so a bounded Memory faults cleanly instead
// of over-reading, and capped so a missing terminator cannot spin.
func (d *Decoder) decodeCString(addr uintptr, enc ctypes.Encoding, mem Memory) (string, error) {
	if enc == ctypes.UTF16 {
		return d.decodeWideString(addr, mem)
	}

	var buf []byte
	for n := uintptr(0); ; n++ {
		if n >= MaxStringSize {
			return "", errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Detail("string not terminated within %d bytes", int64(MaxStringSize)).
				Build()
		}
		b, err := mem.ReadU8(addr + n)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func (d *Decoder) decodeWideString(addr uintptr, mem Memory) (string, error) {
	var units []uint16
	for n := uintptr(0); ; n++ {
		if n >= MaxStringSize/2 {
			return "", errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Detail("string not terminated within %d units", int64(MaxStringSize/2)).
				Build()
		}
		u, err := mem.ReadU16(addr + n*2)
		if err != nil {
			return "", err
		}
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// CopyBack applies a frame's rw slots to their managed destinations.
// It runs after the foreign call, so failures surface as decode-phase
// marshal errors: the call's side effects stand.
func (d *Decoder) CopyBack(frame *Frame) error {
	for i := range frame.copyBacks {
		cb := &frame.copyBacks[i]
		val, err := d.loadValue(cb.typ, cb.slot, rawMemory{})
		if err != nil {
			return errors.MarshalFailed(errors.PhaseDecode, nil, err, "copy back rw argument")
		}

		rv := reflect.ValueOf(val)
		dst := cb.dst.Elem()
		switch {
		case rv.Type() == dst.Type():
			dst.Set(rv)
		case rv.Type().ConvertibleTo(dst.Type()):
			dst.Set(rv.Convert(dst.Type()))
		default:
			return errors.TypeMismatch(errors.PhaseDecode, nil, dst.Type().String(), ctypes.Name(cb.typ))
		}
	}
	return nil
}
