package transcoder

import (
	"sync"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder/internal/abi"
	"github.com/wippyai/ffi-runtime/transcoder/internal/layout"
)

type LayoutInfo = layout.Info

// LayoutCalculator answers sizeof/alignof/offsetof questions for type
// descriptors. Results are memoized per descriptor identity. Safe for
// concurrent use.
type LayoutCalculator struct {
	mu   sync.Mutex
	calc *layout.Calculator
}

func NewLayoutCalculator() *LayoutCalculator {
	return &LayoutCalculator{
		calc: layout.NewCalculator(),
	}
}

func (lc *LayoutCalculator) Calculate(t ctypes.Type) (LayoutInfo, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.calc.Calculate(t)
}

var alignTo = abi.AlignTo

// PtrSize is the machine word size; pointers, C strings, and function
// pointers all occupy one word.
const PtrSize = abi.PtrSize

var defaultLayout = NewLayoutCalculator()

// SizeOf reports the C object size of a descriptor, including padding.
func SizeOf(t ctypes.Type) (uintptr, error) {
	info, err := defaultLayout.Calculate(t)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// AlignOf reports the C alignment requirement of a descriptor.
func AlignOf(t ctypes.Type) (uintptr, error) {
	info, err := defaultLayout.Calculate(t)
	if err != nil {
		return 0, err
	}
	return info.Align, nil
}

// OffsetOf reports the byte offset of a named field inside a struct or
// union descriptor. Union members are all at offset zero.
func OffsetOf(t ctypes.Type, field string) (uintptr, error) {
	switch t.(type) {
	case *ctypes.Struct, *ctypes.Union:
	default:
		return 0, errors.New(errors.PhaseLayout, errors.KindUnsupported).
			CType(ctypes.Name(t)).
			Detail("offsetof requires a struct or union descriptor").
			Build()
	}

	info, err := defaultLayout.Calculate(t)
	if err != nil {
		return 0, err
	}
	off, ok := info.FieldOffs[field]
	if !ok {
		return 0, errors.FieldUnknown(errors.PhaseLayout, nil, field)
	}
	return off, nil
}
