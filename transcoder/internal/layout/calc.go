package layout

import (
	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
)

// Info is the native layout of one type: total size, alignment and,
// for structs and unions, member offsets by declared name.
type Info struct {
	Size      uintptr
	Align     uintptr
	FieldOffs map[string]uintptr
}

// Calculator computes C ABI layouts. Aggregate results are cached by
// descriptor identity, so a descriptor shared between signatures is
// laid out exactly once and consistently.
type Calculator struct {
	cache    map[ctypes.Type]Info
	visiting map[ctypes.Type]bool
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache:    make(map[ctypes.Type]Info),
		visiting: make(map[ctypes.Type]bool),
	}
}

func (c *Calculator) Calculate(t ctypes.Type) (Info, error) {
	switch typ := t.(type) {
	case nil:
		return Info{}, errors.Unsupported(errors.PhaseLayout, "void has no object layout")
	case ctypes.Bool, ctypes.U8, ctypes.S8:
		return Info{Size: 1, Align: 1}, nil
	case ctypes.U16, ctypes.S16:
		return Info{Size: 2, Align: 2}, nil
	case ctypes.U32, ctypes.S32, ctypes.F32:
		return Info{Size: 4, Align: 4}, nil
	case ctypes.U64, ctypes.S64, ctypes.F64:
		return Info{Size: 8, Align: 8}, nil
	case *ctypes.Pointer, *ctypes.CString, *ctypes.Bytes, *ctypes.Func:
		return Info{Size: abi.PtrSize, Align: abi.PtrSize}, nil
	case *ctypes.Struct:
		return c.calculateCached(typ, func() (Info, error) { return c.calculateStruct(typ) })
	case *ctypes.Union:
		return c.calculateCached(typ, func() (Info, error) { return c.calculateUnion(typ) })
	case *ctypes.Array:
		return c.calculateCached(typ, func() (Info, error) { return c.calculateArray(typ) })
	default:
		return Info{}, errors.Unsupported(errors.PhaseLayout, ctypes.Name(t))
	}
}

// calculateCached wraps aggregate calculation with memoization and
// cycle detection. A value-embedded cycle has no finite size; it must
// be broken with a pointer field.
func (c *Calculator) calculateCached(t ctypes.Type, calc func() (Info, error)) (Info, error) {
	if cached, ok := c.cache[t]; ok {
		return cached, nil
	}
	if c.visiting[t] {
		return Info{}, errors.New(errors.PhaseLayout, errors.KindInvalidData).
			CType(ctypes.Name(t)).
			Detail("recursive aggregate embeds itself; use a pointer field").
			Build()
	}
	c.visiting[t] = true
	defer delete(c.visiting, t)

	info, err := calc()
	if err != nil {
		return Info{}, err
	}
	c.cache[t] = info
	return info, nil
}

func (c *Calculator) calculateStruct(s *ctypes.Struct) (Info, error) {
	if len(s.Fields) == 0 {
		return Info{}, errors.InvalidData(errors.PhaseLayout, []string{s.Name}, "struct has no fields")
	}

	fieldOffs := make(map[string]uintptr, len(s.Fields))
	maxAlign := uintptr(1)
	offset := uintptr(0)

	for _, field := range s.Fields {
		fieldLayout, err := c.Calculate(field.Type)
		if err != nil {
			return Info{}, prependPath(err, s.Name, field.Name)
		}

		offset = abi.AlignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		next, ok := abi.SafeAdd(offset, fieldLayout.Size)
		if !ok {
			return Info{}, errors.Overflow(errors.PhaseLayout, []string{s.Name, field.Name}, offset, "size_t")
		}
		offset = next
	}

	totalSize := abi.AlignTo(offset, maxAlign)

	return Info{
		Size:      totalSize,
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}, nil
}

func (c *Calculator) calculateUnion(u *ctypes.Union) (Info, error) {
	if len(u.Fields) == 0 {
		return Info{}, errors.InvalidData(errors.PhaseLayout, []string{u.Name}, "union has no fields")
	}

	fieldOffs := make(map[string]uintptr, len(u.Fields))
	maxAlign := uintptr(1)
	maxSize := uintptr(0)

	for _, field := range u.Fields {
		fieldLayout, err := c.Calculate(field.Type)
		if err != nil {
			return Info{}, prependPath(err, u.Name, field.Name)
		}

		fieldOffs[field.Name] = 0

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}
		if fieldLayout.Size > maxSize {
			maxSize = fieldLayout.Size
		}
	}

	return Info{
		Size:      abi.AlignTo(maxSize, maxAlign),
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}, nil
}

func (c *Calculator) calculateArray(a *ctypes.Array) (Info, error) {
	if a.Elem == nil {
		return Info{}, errors.InvalidData(errors.PhaseLayout, nil, "array element type is nil")
	}
	if a.Len < 1 {
		return Info{}, errors.InvalidData(errors.PhaseLayout, nil, "array length must be at least 1")
	}
	if a.Len > abi.MaxArrayLength {
		return Info{}, errors.OutOfBounds(errors.PhaseLayout, nil, a.Len, abi.MaxArrayLength)
	}

	elemLayout, err := c.Calculate(a.Elem)
	if err != nil {
		return Info{}, err
	}

	size, ok := abi.SafeMul(elemLayout.Size, uintptr(a.Len))
	if !ok || size > abi.MaxAlloc {
		return Info{}, errors.Overflow(errors.PhaseLayout, nil, a.Len, "size_t")
	}

	return Info{
		Size:  size,
		Align: elemLayout.Align,
	}, nil
}

func prependPath(err error, elems ...string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append(elems, e.Path...)
		return e
	}
	return err
}
