package types

import (
	"reflect"

	"github.com/wippyai/ffi-runtime/ctypes"
)

// CompiledType pairs a C type descriptor with a resolved Go
// representation and precomputed layout. Compilation happens once per
// (descriptor, Go type) pair; the result is shared and read-only.
type CompiledType struct {
	GoType   reflect.Type    // mapped Go type; nil for dynamic access paths
	Desc     ctypes.Type     // source descriptor
	ElemType *CompiledType   // array element or typed pointer referent
	Fields   []Field         // struct and union members
	GoSize   uintptr         // size of the Go representation
	Size     uintptr         // native size
	Align    uintptr         // native alignment
	Len      int             // array length
	Encoding ctypes.Encoding // cstring wire encoding
	Kind     Kind
}

// Field is one compiled member of a struct or union.
type Field struct {
	Type     *CompiledType
	Name     string  // Go struct field name; empty for dynamic access
	CName    string  // declared C member name
	GoOffset uintptr // offset in the Go struct
	Offset   uintptr // offset in the native layout
	Index    int     // Go struct field index; -1 for dynamic access
}

func (ct *CompiledType) IsScalar() bool {
	return ct.Kind.IsScalar()
}

// IsPure reports whether encoding values of this type touches only the
// destination buffer: no side allocations for string or byte payloads.
func (ct *CompiledType) IsPure() bool {
	switch ct.Kind {
	case KindCString, KindBytes:
		return false
	case KindStruct, KindUnion:
		for _, f := range ct.Fields {
			if !f.Type.IsPure() {
				return false
			}
		}
		return true
	case KindArray:
		return ct.ElemType == nil || ct.ElemType.IsPure()
	default:
		return true
	}
}
