package types

type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindPointer
	KindCString
	KindBytes
	KindStruct
	KindUnion
	KindArray
	KindFunc
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindU8:      "u8",
	KindS8:      "s8",
	KindU16:     "u16",
	KindS16:     "s16",
	KindU32:     "u32",
	KindS32:     "s32",
	KindU64:     "u64",
	KindS64:     "s64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindPointer: "pointer",
	KindCString: "cstring",
	KindBytes:   "bytes",
	KindStruct:  "struct",
	KindUnion:   "union",
	KindArray:   "array",
	KindFunc:    "func",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) IsScalar() bool {
	return k <= KindF64
}

// IsWordLike reports whether values of this kind cross the call
// boundary in an integer register.
func (k Kind) IsWordLike() bool {
	switch k {
	case KindF32, KindF64:
		return false
	default:
		return true
	}
}

// IsAggregate reports whether this kind has C object layout with
// members (structs, unions and arrays).
func (k Kind) IsAggregate() bool {
	switch k {
	case KindStruct, KindUnion, KindArray:
		return true
	default:
		return false
	}
}
