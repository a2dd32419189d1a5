package ctypes

import (
	"fmt"
	"strings"

	"github.com/wippyai/ffi-runtime/errors"
)

// Type is implemented by all C type descriptors. Descriptors are
// immutable after construction; aggregate descriptors are compared and
// cached by pointer identity.
type Type interface {
	// String returns the C notation name used in diagnostics.
	String() string
	isType()
}

// Encoding selects the wire representation of a CString.
type Encoding uint8

const (
	// UTF8 is a NUL-terminated byte string, the platform default.
	UTF8 Encoding = iota
	// UTF16 is a 2-byte-unit NUL-terminated string for wchar_t APIs.
	UTF16
)

// Scalar types. Each is an empty struct so descriptors can be written
// inline, e.g. ctypes.U32{}.

type Bool struct{}
type U8 struct{}
type S8 struct{}
type U16 struct{}
type S16 struct{}
type U32 struct{}
type S32 struct{}
type U64 struct{}
type S64 struct{}
type F32 struct{}
type F64 struct{}

func (Bool) isType() {}
func (U8) isType()   {}
func (S8) isType()   {}
func (U16) isType()  {}
func (S16) isType()  {}
func (U32) isType()  {}
func (S32) isType()  {}
func (U64) isType()  {}
func (S64) isType()  {}
func (F32) isType()  {}
func (F64) isType()  {}

func (Bool) String() string { return "bool" }
func (U8) String() string   { return "uint8_t" }
func (S8) String() string   { return "int8_t" }
func (U16) String() string  { return "uint16_t" }
func (S16) String() string  { return "int16_t" }
func (U32) String() string  { return "uint32_t" }
func (S32) String() string  { return "int32_t" }
func (U64) String() string  { return "uint64_t" }
func (S64) String() string  { return "int64_t" }
func (F32) String() string  { return "float" }
func (F64) String() string  { return "double" }

// Pointer is a native pointer. A nil Elem means an opaque void*.
// Managed values cross as uintptr (or untyped nil for NULL).
type Pointer struct {
	Elem Type
}

func (*Pointer) isType() {}

func (p *Pointer) String() string {
	if p.Elem == nil {
		return "void*"
	}
	return p.Elem.String() + "*"
}

// CString is a NUL-terminated string pointer. Managed values cross as
// Go strings; the native buffer is borrowed for the duration of a call
// when passed in, and copied out when returned. A NULL return decodes
// to an absent value, never to "".
type CString struct {
	Encoding Encoding
}

func (*CString) isType() {}

func (s *CString) String() string {
	if s.Encoding == UTF16 {
		return "wchar_t*"
	}
	return "char*"
}

// Bytes is a borrowed view of a Go []byte passed as a base pointer.
// Parameter positions only: the slice must stay alive until the call
// returns, and there is no length to recover a Bytes result by.
type Bytes struct{}

func (*Bytes) isType() {}

func (*Bytes) String() string { return "uint8_t*" }

// Field is one named member of a struct or union. A field whose Type
// is an aggregate embeds it in place; wrap it in a Pointer to reference
// it instead.
type Field struct {
	Name string
	Type Type
}

// Struct is a C struct: ordered named fields with C layout.
type Struct struct {
	Name   string
	Fields []Field
}

func (*Struct) isType() {}

func (s *Struct) String() string {
	if s.Name == "" {
		return "struct"
	}
	return "struct " + s.Name
}

// Union is a C union: all fields at offset zero.
type Union struct {
	Name   string
	Fields []Field
}

func (*Union) isType() {}

func (u *Union) String() string {
	if u.Name == "" {
		return "union"
	}
	return "union " + u.Name
}

// Array is a fixed-size C array. Len is always explicit; there is no
// unbounded array descriptor.
type Array struct {
	Elem Type
	Len  int
}

func (*Array) isType() {}

func (a *Array) String() string {
	elem := "void"
	if a.Elem != nil {
		elem = a.Elem.String()
	}
	return fmt.Sprintf("%s[%d]", elem, a.Len)
}

// Param is one parameter of a function signature. RW marks a scalar
// that is passed by address and copied back into the managed argument
// after the call returns.
type Param struct {
	Name string
	Type Type
	RW   bool
}

// Func is a C function signature. A nil Ret means void. Aggregate
// parameter and return positions are pointer-passed: the native side
// receives and returns addresses, never aggregates in registers.
type Func struct {
	Params []Param
	Ret    Type
}

func (*Func) isType() {}

func (f *Func) String() string {
	var b strings.Builder
	b.WriteString(Name(f.Ret))
	b.WriteString(" (*)(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Name(p.Type))
	}
	b.WriteByte(')')
	return b.String()
}

// Name returns the C notation name of t, with nil mapping to "void".
func Name(t Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

// IsScalar reports whether t is one of the fixed-width value types.
// Pointers, strings and aggregates are not scalars.
func IsScalar(t Type) bool {
	switch t.(type) {
	case Bool, U8, S8, U16, S16, U32, S32, U64, S64, F32, F64:
		return true
	}
	return false
}

// Int returns the integer descriptor for the given width in bits.
// Widths outside the fixed 8/16/32/64 set are rejected.
func Int(width int, signed bool) (Type, error) {
	switch width {
	case 8:
		if signed {
			return S8{}, nil
		}
		return U8{}, nil
	case 16:
		if signed {
			return S16{}, nil
		}
		return U16{}, nil
	case 32:
		if signed {
			return S32{}, nil
		}
		return U32{}, nil
	case 64:
		if signed {
			return S64{}, nil
		}
		return U64{}, nil
	}
	return nil, errors.Unsupported(errors.PhaseCompile,
		fmt.Sprintf("integer width %d (want 8, 16, 32 or 64)", width))
}

// Float returns the floating point descriptor for the given width in bits.
func Float(width int) (Type, error) {
	switch width {
	case 32:
		return F32{}, nil
	case 64:
		return F64{}, nil
	}
	return nil, errors.Unsupported(errors.PhaseCompile,
		fmt.Sprintf("float width %d (want 32 or 64)", width))
}

// Ptr returns a typed pointer descriptor. Ptr(nil) is void*.
func Ptr(elem Type) *Pointer {
	return &Pointer{Elem: elem}
}

// NewStruct builds a struct descriptor, validating field names and types.
func NewStruct(name string, fields ...Field) (*Struct, error) {
	if err := validateFields("struct", name, fields); err != nil {
		return nil, err
	}
	return &Struct{Name: name, Fields: fields}, nil
}

// NewUnion builds a union descriptor, validating field names and types.
func NewUnion(name string, fields ...Field) (*Union, error) {
	if err := validateFields("union", name, fields); err != nil {
		return nil, err
	}
	return &Union{Name: name, Fields: fields}, nil
}

// NewArray builds a fixed-size array descriptor.
func NewArray(elem Type, length int) (*Array, error) {
	if elem == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "array element type is nil")
	}
	if length < 1 {
		return nil, errors.InvalidInput(errors.PhaseCompile,
			fmt.Sprintf("array length %d (want >= 1)", length))
	}
	return &Array{Elem: elem, Len: length}, nil
}

// NewFunc builds a function signature. ret may be nil for void.
func NewFunc(ret Type, params ...Param) *Func {
	return &Func{Params: params, Ret: ret}
}

// Params builds a by-value parameter list from types.
func Params(types ...Type) []Param {
	params := make([]Param, len(types))
	for i, t := range types {
		params[i] = Param{Type: t}
	}
	return params
}

// RW marks a scalar parameter as pass-by-address with copy-back.
func RW(t Type) Param {
	return Param{Type: t, RW: true}
}

func validateFields(kind, name string, fields []Field) error {
	if len(fields) == 0 {
		return errors.InvalidInput(errors.PhaseCompile,
			fmt.Sprintf("%s %q has no fields", kind, name))
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return errors.InvalidInput(errors.PhaseCompile,
				fmt.Sprintf("%s %q field %d has no name", kind, name, i))
		}
		if f.Type == nil {
			return errors.InvalidData(errors.PhaseCompile, []string{name, f.Name}, "field type is nil")
		}
		if _, dup := seen[f.Name]; dup {
			return errors.InvalidData(errors.PhaseCompile, []string{name, f.Name}, "duplicate field name")
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
