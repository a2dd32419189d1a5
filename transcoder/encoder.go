package transcoder

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf16"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
	"github.com/wippyai/ffi-runtime/transcoder/internal/types"
)

// Limits on data crossing the boundary, shared with the decoder.
const (
	MaxStringSize  = abi.MaxStringSize
	MaxArrayLength = abi.MaxArrayLength
	MaxAlloc       = abi.MaxAlloc
)

// Encoder writes managed values into native memory according to their
// C descriptors. Dynamic values (any, map[string]any) are checked per
// call; Go structs go through the compiler once and walk field offsets
// after that. Encoders are safe for concurrent use.
type Encoder struct {
	compiler *Compiler
}

func NewEncoder() *Encoder {
	return &Encoder{compiler: NewCompiler()}
}

// NewEncoderWithCompiler shares a compile cache with other codecs.
func NewEncoderWithCompiler(c *Compiler) *Encoder {
	return &Encoder{compiler: c}
}

// Store writes value at addr according to t. Out-of-line data (string
// payloads) is placed through alloc and recorded in allocs so the
// caller can free it; allocs may be nil when an arena owns the memory.
func (e *Encoder) Store(t ctypes.Type, value any, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	return e.storeValue(t, value, addr, mem, alloc, allocs)
}

func (e *Encoder) storeValue(t ctypes.Type, value any, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	if t == nil {
		return errors.Unsupported(errors.PhaseEncode, "void has no value representation")
	}

	switch ct := t.(type) {
	case ctypes.Bool:
		b, ok := value.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(value), "bool")
		}
		var v uint8
		if b {
			v = 1
		}
		return mem.WriteU8(addr, v)

	case ctypes.U8:
		v, ok := abi.CoerceToUint64(value)
		if !ok || v > math.MaxUint8 {
			return encodeValueError(value, t)
		}
		return mem.WriteU8(addr, uint8(v))

	case ctypes.S8:
		v, ok := abi.CoerceToInt64(value)
		if !ok || v < math.MinInt8 || v > math.MaxInt8 {
			return encodeValueError(value, t)
		}
		return mem.WriteU8(addr, uint8(int8(v)))

	case ctypes.U16:
		v, ok := abi.CoerceToUint64(value)
		if !ok || v > math.MaxUint16 {
			return encodeValueError(value, t)
		}
		return mem.WriteU16(addr, uint16(v))

	case ctypes.S16:
		v, ok := abi.CoerceToInt64(value)
		if !ok || v < math.MinInt16 || v > math.MaxInt16 {
			return encodeValueError(value, t)
		}
		return mem.WriteU16(addr, uint16(int16(v)))

	case ctypes.U32:
		v, ok := abi.CoerceToUint32(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU32(addr, v)

	case ctypes.S32:
		v, ok := abi.CoerceToInt32(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU32(addr, uint32(v))

	case ctypes.U64:
		v, ok := abi.CoerceToUint64(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU64(addr, v)

	case ctypes.S64:
		v, ok := abi.CoerceToInt64(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU64(addr, uint64(v))

	case ctypes.F32:
		v, ok := abi.CoerceToFloat32(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU32(addr, math.Float32bits(v))

	case ctypes.F64:
		v, ok := abi.CoerceToFloat64(value)
		if !ok {
			return encodeValueError(value, t)
		}
		return mem.WriteU64(addr, math.Float64bits(v))

	case *ctypes.Pointer:
		return e.storePointer(ct, value, addr, mem)

	case *ctypes.CString:
		switch v := value.(type) {
		case nil:
			return writePtr(mem, addr, 0)
		case string:
			ptr, err := e.encodeCString(v, ct.Encoding, mem, alloc, allocs)
			if err != nil {
				return err
			}
			return writePtr(mem, addr, ptr)
		}
		return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(value), ctypes.Name(t))

	case *ctypes.Bytes:
		return errors.Unsupported(errors.PhaseEncode, "byte views cross only as call parameters")

	case *ctypes.Func:
		switch v := value.(type) {
		case nil:
			return writePtr(mem, addr, 0)
		case uintptr:
			return writePtr(mem, addr, v)
		}
		return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			GoType(abi.TypeName(value)).
			CType(ctypes.Name(t)).
			Detail("function pointers cross as resolved callback or proc addresses").
			Build()

	case *ctypes.Struct:
		return e.storeStruct(ct, value, addr, mem, alloc, allocs)

	case *ctypes.Union:
		if sv, ok := value.(*StructValue); ok {
			return e.storeAggregateCopy(ct, sv, addr, mem)
		}
		return errors.Unsupported(errors.PhaseEncode, ctypes.Name(t)+" has no dynamic encoding; use a StructValue")

	case *ctypes.Array:
		return e.storeArray(ct, value, addr, mem, alloc, allocs)
	}

	return errors.Unsupported(errors.PhaseEncode, "type "+ctypes.Name(t))
}

func (e *Encoder) storePointer(t *ctypes.Pointer, value any, addr uintptr, mem Memory) error {
	switch v := value.(type) {
	case nil:
		return writePtr(mem, addr, 0)
	case uintptr:
		return writePtr(mem, addr, v)
	case unsafe.Pointer:
		return writePtr(mem, addr, uintptr(v))
	case *StructValue:
		if v.addr == 0 {
			return errors.NilPointer(errors.PhaseEncode, nil, "*transcoder.StructValue")
		}
		if t.Elem != nil && v.desc != t.Elem {
			return errors.TypeMismatch(errors.PhaseEncode, nil, ctypes.Name(v.desc)+" value", ctypes.Name(t))
		}
		return writePtr(mem, addr, v.addr)
	case []byte:
		return errors.Unsupported(errors.PhaseEncode, "managed []byte crosses only as a pinned call argument")
	}
	return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(value), ctypes.Name(t))
}

// storeStruct dispatches on the managed representation: a StructValue
// copies bytes, a map encodes per field, and a Go struct goes through
// the compiled walk.
func (e *Encoder) storeStruct(t *ctypes.Struct, value any, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	switch v := value.(type) {
	case *StructValue:
		return e.storeAggregateCopy(t, v, addr, mem)
	case map[string]any:
		return e.storeStructMap(t, v, addr, mem, alloc, allocs)
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return errors.NilPointer(errors.PhaseEncode, nil, "nil")
	}
	compiled, err := e.compiler.Compile(t, rv.Type())
	if err != nil {
		return err
	}

	var base unsafe.Pointer
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
		}
		base = rv.UnsafePointer()
	} else {
		// non-pointer structs are copied to get an addressable base
		tmp := reflect.New(rv.Type())
		tmp.Elem().Set(rv)
		base = tmp.UnsafePointer()
	}
	return e.storeCompiled(compiled, base, addr, mem, alloc, allocs)
}

// storeAggregateCopy assigns one aggregate's bytes over another, the
// moral equivalent of *dst = *src in C.
func (e *Encoder) storeAggregateCopy(t ctypes.Type, sv *StructValue, addr uintptr, mem Memory) error {
	if sv.addr == 0 {
		return errors.NilPointer(errors.PhaseEncode, nil, "*transcoder.StructValue")
	}
	if sv.desc != t {
		return errors.TypeMismatch(errors.PhaseEncode, nil, ctypes.Name(sv.desc)+" value", ctypes.Name(t))
	}
	data, err := sv.mem.Read(sv.addr, sv.info.Size)
	if err != nil {
		return err
	}
	return mem.Write(addr, data)
}

// storeStructMap encodes map keys field by field. Absent keys leave
// their fields zeroed, matching designated initializer behavior;
// unknown keys are an error.
func (e *Encoder) storeStructMap(t *ctypes.Struct, m map[string]any, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	info, err := e.compiler.layout.Calculate(t)
	if err != nil {
		return err
	}
	if err := mem.Write(addr, make([]byte, info.Size)); err != nil {
		return err
	}

	seen := 0
	for _, f := range t.Fields {
		v, ok := m[f.Name]
		if !ok {
			continue
		}
		seen++
		if err := e.storeValue(f.Type, v, addr+info.FieldOffs[f.Name], mem, alloc, allocs); err != nil {
			return notePath(err, f.Name)
		}
	}
	if seen != len(m) {
		for key := range m {
			if !structHasField(t, key) {
				return errors.FieldUnknown(errors.PhaseEncode, nil, key)
			}
		}
	}
	return nil
}

func structHasField(t *ctypes.Struct, name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (e *Encoder) storeArray(t *ctypes.Array, value any, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	elemInfo, err := e.compiler.layout.Calculate(t.Elem)
	if err != nil {
		return err
	}

	// []byte writes straight through for byte element arrays
	if b, ok := value.([]byte); ok {
		if _, isU8 := t.Elem.(ctypes.U8); isU8 {
			if len(b) != t.Len {
				return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
					GoType("[]byte").
					CType(ctypes.Name(t)).
					Detail("array length mismatch: Go %d, C %d", len(b), t.Len).
					Build()
			}
			return mem.Write(addr, b)
		}
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(value), ctypes.Name(t))
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
	}
	if rv.Len() != t.Len {
		return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			GoType(rv.Type().String()).
			CType(ctypes.Name(t)).
			Detail("array length mismatch: Go %d, C %d", rv.Len(), t.Len).
			Build()
	}

	for i := 0; i < rv.Len(); i++ {
		elemAddr := addr + uintptr(i)*elemInfo.Size
		if err := e.storeValue(t.Elem, rv.Index(i).Interface(), elemAddr, mem, alloc, allocs); err != nil {
			return noteIndex(err, i)
		}
	}
	return nil
}

// storeCompiled walks a compiled type, reading Go memory at src and
// writing C memory at addr. No reflection on the hot path.
func (e *Encoder) storeCompiled(ct *types.CompiledType, src unsafe.Pointer, addr uintptr, mem Memory, alloc Allocator, allocs *AllocationList) error {
	switch ct.Kind {
	case types.KindBool:
		var v uint8
		if *(*bool)(src) {
			v = 1
		}
		return mem.WriteU8(addr, v)
	case types.KindU8:
		return mem.WriteU8(addr, *(*uint8)(src))
	case types.KindS8:
		return mem.WriteU8(addr, uint8(*(*int8)(src)))
	case types.KindU16:
		return mem.WriteU16(addr, *(*uint16)(src))
	case types.KindS16:
		return mem.WriteU16(addr, uint16(*(*int16)(src)))
	case types.KindU32:
		return mem.WriteU32(addr, *(*uint32)(src))
	case types.KindS32:
		return mem.WriteU32(addr, uint32(*(*int32)(src)))
	case types.KindU64:
		return mem.WriteU64(addr, *(*uint64)(src))
	case types.KindS64:
		return mem.WriteU64(addr, uint64(*(*int64)(src)))
	case types.KindF32:
		return mem.WriteU32(addr, math.Float32bits(*(*float32)(src)))
	case types.KindF64:
		return mem.WriteU64(addr, math.Float64bits(*(*float64)(src)))
	case types.KindPointer, types.KindFunc:
		return writePtr(mem, addr, *(*uintptr)(src))
	case types.KindCString:
		// a Go string cannot express NULL; "" encodes as an empty buffer
		ptr, err := e.encodeCString(*(*string)(src), ct.Encoding, mem, alloc, allocs)
		if err != nil {
			return err
		}
		return writePtr(mem, addr, ptr)
	case types.KindStruct:
		for i := range ct.Fields {
			f := &ct.Fields[i]
			if err := e.storeCompiled(f.Type, unsafe.Add(src, f.GoOffset), addr+f.Offset, mem, alloc, allocs); err != nil {
				return notePath(err, f.CName)
			}
		}
		return nil
	case types.KindArray:
		elem := ct.ElemType
		for i := 0; i < ct.Len; i++ {
			elemSrc := unsafe.Add(src, uintptr(i)*elem.GoSize)
			if err := e.storeCompiled(elem, elemSrc, addr+uintptr(i)*elem.Size, mem, alloc, allocs); err != nil {
				return noteIndex(err, i)
			}
		}
		return nil
	}
	return errors.Unsupported(errors.PhaseEncode, "compiled kind "+strconv.Itoa(int(ct.Kind)))
}

// encodeCString allocates and fills a NUL-terminated buffer, returning
// its address. The allocation is recorded in allocs when non-nil.
func (e *Encoder) encodeCString(s string, enc ctypes.Encoding, mem Memory, alloc Allocator, allocs *AllocationList) (uintptr, error) {
	if enc == ctypes.UTF16 {
		return e.encodeWideString(s, mem, alloc, allocs)
	}

	if alloc == nil {
		return 0, errors.Unsupported(errors.PhaseEncode, "string payload needs an allocator")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return 0, errors.New(errors.PhaseEncode, errors.KindInvalidEncoding).
			Detail("string contains an embedded NUL").
			Build()
	}
	size := uintptr(len(s)) + 1
	if size > MaxStringSize {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, 1)
	}

	ptr, err := alloc.Alloc(size, 1)
	if err != nil {
		return 0, err
	}
	if allocs != nil {
		allocs.Add(ptr, size, 1)
	}

	buf := make([]byte, size)
	copy(buf, s)
	if err := mem.Write(ptr, buf); err != nil {
		return 0, err
	}
	return ptr, nil
}

func (e *Encoder) encodeWideString(s string, mem Memory, alloc Allocator, allocs *AllocationList) (uintptr, error) {
	if alloc == nil {
		return 0, errors.Unsupported(errors.PhaseEncode, "string payload needs an allocator")
	}
	units := utf16.Encode([]rune(s))
	for _, u := range units {
		if u == 0 {
			return 0, errors.New(errors.PhaseEncode, errors.KindInvalidEncoding).
				Detail("string contains an embedded NUL").
				Build()
		}
	}

	count := uintptr(len(units)) + 1
	size, ok := abi.SafeMul(count, 2)
	if !ok || size > MaxStringSize {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, 2)
	}

	ptr, err := alloc.Alloc(size, 2)
	if err != nil {
		return 0, err
	}
	if allocs != nil {
		allocs.Add(ptr, size, 2)
	}

	for i, u := range units {
		if err := mem.WriteU16(ptr+uintptr(i)*2, u); err != nil {
			return 0, err
		}
	}
	if err := mem.WriteU16(ptr+uintptr(len(units))*2, 0); err != nil {
		return 0, err
	}
	return ptr, nil
}

// EncodeArgs lowers a call's arguments into machine words, one per
// parameter. Integers widen into the word, floats travel as raw bit
// patterns, and everything pointer-shaped crosses as an address whose
// backing stays pinned in the frame until Release. The returned slice
// is owned by the frame.
func (e *Encoder) EncodeArgs(params []ctypes.Param, args []any, frame *Frame) ([]uint64, error) {
	if len(args) != len(params) {
		return nil, errors.New(errors.PhaseEncode, errors.KindSignatureMismatch).
			Detail("have %d arguments, want %d", len(args), len(params)).
			Build()
	}

	words := frame.wordBuf(len(params))
	for i := range params {
		word, err := e.encodeArg(&params[i], args[i], frame)
		if err != nil {
			return nil, notePath(err, argLabel(&params[i], i))
		}
		words = append(words, word)
	}
	return words, nil
}

func argLabel(p *ctypes.Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "arg" + strconv.Itoa(i)
}

func (e *Encoder) encodeArg(p *ctypes.Param, arg any, frame *Frame) (uint64, error) {
	if p.RW {
		return e.encodeInOut(p.Type, arg, frame)
	}

	switch t := p.Type.(type) {
	case ctypes.Bool:
		b, ok := arg.(bool)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(arg), "bool")
		}
		if b {
			return 1, nil
		}
		return 0, nil

	case ctypes.U8:
		v, ok := abi.CoerceToUint64(arg)
		if !ok || v > math.MaxUint8 {
			return 0, encodeValueError(arg, t)
		}
		return v, nil

	case ctypes.S8:
		v, ok := abi.CoerceToInt64(arg)
		if !ok || v < math.MinInt8 || v > math.MaxInt8 {
			return 0, encodeValueError(arg, t)
		}
		return uint64(v), nil

	case ctypes.U16:
		v, ok := abi.CoerceToUint64(arg)
		if !ok || v > math.MaxUint16 {
			return 0, encodeValueError(arg, t)
		}
		return v, nil

	case ctypes.S16:
		v, ok := abi.CoerceToInt64(arg)
		if !ok || v < math.MinInt16 || v > math.MaxInt16 {
			return 0, encodeValueError(arg, t)
		}
		return uint64(v), nil

	case ctypes.U32:
		v, ok := abi.CoerceToUint32(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return uint64(v), nil

	case ctypes.S32:
		v, ok := abi.CoerceToInt32(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return uint64(int64(v)), nil

	case ctypes.U64:
		v, ok := abi.CoerceToUint64(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return v, nil

	case ctypes.S64:
		v, ok := abi.CoerceToInt64(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return uint64(v), nil

	case ctypes.F32:
		f, ok := abi.CoerceToFloat32(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return uint64(math.Float32bits(f)), nil

	case ctypes.F64:
		f, ok := abi.CoerceToFloat64(arg)
		if !ok {
			return 0, encodeValueError(arg, t)
		}
		return math.Float64bits(f), nil

	case *ctypes.Pointer:
		return e.encodePointerArg(t, arg, frame)

	case *ctypes.CString:
		if arg == nil {
			return 0, nil
		}
		s, ok := arg.(string)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(arg), ctypes.Name(t))
		}
		ptr, err := e.encodeCString(s, t.Encoding, rawMemory{}, frame, nil)
		if err != nil {
			return 0, err
		}
		return uint64(ptr), nil

	case *ctypes.Bytes:
		if arg == nil {
			return 0, nil
		}
		b, ok := arg.([]byte)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(arg), ctypes.Name(t))
		}
		return uint64(frame.PinBytes(b)), nil

	case *ctypes.Func:
		if arg == nil {
			return 0, nil
		}
		if fp, ok := arg.(uintptr); ok {
			return uint64(fp), nil
		}
		return 0, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			GoType(abi.TypeName(arg)).
			CType(ctypes.Name(t)).
			Detail("function arguments cross as resolved callback or proc addresses").
			Build()

	case *ctypes.Struct, *ctypes.Union, *ctypes.Array:
		// aggregate positions are pointer-passed
		return e.encodeAggregateArg(p.Type, arg, frame)
	}

	return 0, errors.Unsupported(errors.PhaseEncode, "parameter type "+ctypes.Name(p.Type))
}

func (e *Encoder) encodePointerArg(t *ctypes.Pointer, arg any, frame *Frame) (uint64, error) {
	switch v := arg.(type) {
	case nil:
		return 0, nil
	case uintptr:
		return uint64(v), nil
	case unsafe.Pointer:
		return uint64(uintptr(v)), nil
	case *StructValue:
		if v.addr == 0 {
			return 0, errors.NilPointer(errors.PhaseEncode, nil, "*transcoder.StructValue")
		}
		if t.Elem != nil && v.desc != t.Elem {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, ctypes.Name(v.desc)+" value", ctypes.Name(t))
		}
		return uint64(v.addr), nil
	case []byte:
		return uint64(frame.PinBytes(v)), nil
	}

	if t.Elem != nil {
		// *T for a scalar element pins the Go value so the callee can
		// write through it
		if kind, ok := scalarKind(t.Elem); ok {
			rv := reflect.ValueOf(arg)
			if rv.Kind() == reflect.Pointer {
				if rv.IsNil() {
					return 0, errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
				}
				if err := validateScalar(kind, rv.Type().Elem(), nil); err == nil {
					return uint64(frame.pin(rv.UnsafePointer())), nil
				}
			}
		}
		// maps and Go structs marshal into a frame temporary; callee
		// writes land in the copy, use a StructValue to share memory
		if isAggregate(t.Elem) {
			return e.encodeAggregateArg(t.Elem, arg, frame)
		}
	}

	return 0, errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(arg), ctypes.Name(t))
}

func (e *Encoder) encodeAggregateArg(t ctypes.Type, arg any, frame *Frame) (uint64, error) {
	if sv, ok := arg.(*StructValue); ok {
		if sv.addr == 0 {
			return 0, errors.NilPointer(errors.PhaseEncode, nil, "*transcoder.StructValue")
		}
		if sv.desc != t {
			return 0, errors.TypeMismatch(errors.PhaseEncode, nil, ctypes.Name(sv.desc)+" value", ctypes.Name(t))
		}
		return uint64(sv.addr), nil
	}

	info, err := e.compiler.layout.Calculate(t)
	if err != nil {
		return 0, err
	}
	addr, err := frame.Alloc(info.Size, info.Align)
	if err != nil {
		return 0, err
	}
	if err := e.storeValue(t, arg, addr, rawMemory{}, frame, nil); err != nil {
		return 0, err
	}
	return uint64(addr), nil
}

// encodeInOut stages an rw scalar: the current value goes into a frame
// slot, the slot address crosses the boundary, and the decoder copies
// the post-call contents back into the pointee.
func (e *Encoder) encodeInOut(t ctypes.Type, arg any, frame *Frame) (uint64, error) {
	if _, ok := scalarKind(t); !ok {
		return 0, errors.Unsupported(errors.PhaseEncode, "rw applies to scalar parameters, not "+ctypes.Name(t))
	}

	rv := reflect.ValueOf(arg)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer {
		return 0, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			GoType(abi.TypeName(arg)).
			CType(ctypes.Name(t)).
			Detail("rw parameters take a pointer to the argument").
			Build()
	}
	if rv.IsNil() {
		return 0, errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
	}

	info, err := e.compiler.layout.Calculate(t)
	if err != nil {
		return 0, err
	}
	slot, err := frame.Alloc(info.Size, info.Align)
	if err != nil {
		return 0, err
	}
	if err := e.storeValue(t, rv.Elem().Interface(), slot, rawMemory{}, frame, nil); err != nil {
		return 0, err
	}

	frame.addCopyBack(slot, t, rv)
	return uint64(slot), nil
}

func scalarKind(t ctypes.Type) (TypeKind, bool) {
	switch t.(type) {
	case ctypes.Bool:
		return KindBool, true
	case ctypes.U8:
		return KindU8, true
	case ctypes.S8:
		return KindS8, true
	case ctypes.U16:
		return KindU16, true
	case ctypes.S16:
		return KindS16, true
	case ctypes.U32:
		return KindU32, true
	case ctypes.S32:
		return KindS32, true
	case ctypes.U64:
		return KindU64, true
	case ctypes.S64:
		return KindS64, true
	case ctypes.F32:
		return KindF32, true
	case ctypes.F64:
		return KindF64, true
	}
	return KindBool, false
}

// encodeValueError picks overflow for numeric values that do not fit
// and type mismatch for everything else.
func encodeValueError(value any, t ctypes.Type) *errors.Error {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr, float32, float64:
		return errors.Overflow(errors.PhaseEncode, nil, value, ctypes.Name(t))
	}
	return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(value), ctypes.Name(t))
}
