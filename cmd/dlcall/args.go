package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/ffi-runtime/ctypes"
)

// rwSlot tracks an rw argument so its post-call value can be shown.
type rwSlot struct {
	name  string
	value func() any
}

// convertArgs turns command-line strings into call arguments per the
// bound signature. rw parameters become typed pointers; the returned
// slots read them back after the call.
func convertArgs(params []ctypes.Param, raw []string) ([]any, []rwSlot, error) {
	if len(raw) != len(params) {
		return nil, nil, fmt.Errorf("function takes %d arguments, got %d", len(params), len(raw))
	}

	args := make([]any, len(params))
	var slots []rwSlot
	for i := range params {
		p := &params[i]
		value := strings.TrimSpace(raw[i])
		arg, slot, err := convertArg(value, p, i)
		if err != nil {
			return nil, nil, err
		}
		args[i] = arg
		if slot != nil {
			slots = append(slots, *slot)
		}
	}
	return args, slots, nil
}

func convertArg(value string, p *ctypes.Param, index int) (any, *rwSlot, error) {
	label := p.Name
	if label == "" {
		label = fmt.Sprintf("arg%d", index)
	}

	if p.RW {
		arg, read, err := scalarPointer(p.Type, value)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", label, err)
		}
		return arg, &rwSlot{name: label, value: read}, nil
	}

	arg, err := scalarValue(p.Type, value)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", label, err)
	}
	return arg, nil, nil
}

// scalarValue parses one argument string per the declared type.
func scalarValue(t ctypes.Type, value string) (any, error) {
	switch t.(type) {
	case *ctypes.CString:
		return value, nil
	case ctypes.Bool:
		return value == "true" || value == "1", nil
	case ctypes.U8, ctypes.U16, ctypes.U32, ctypes.U64:
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
		}
		return v, nil
	case ctypes.S8, ctypes.S16, ctypes.S32, ctypes.S64:
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
		}
		return v, nil
	case ctypes.F32, ctypes.F64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
		}
		return v, nil
	case *ctypes.Pointer, *ctypes.Func:
		if value == "" || value == "null" || value == "NULL" || value == "0" {
			return nil, nil
		}
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		return uintptr(v), nil
	}
	return nil, fmt.Errorf("cannot build %s from a command-line string", ctypes.Name(t))
}

// scalarPointer parses value and stages it behind a typed pointer for
// an rw parameter, returning a reader for the post-call contents.
func scalarPointer(t ctypes.Type, value string) (any, func() any, error) {
	switch t.(type) {
	case ctypes.Bool:
		v := value == "true" || value == "1"
		return &v, func() any { return v }, nil
	case ctypes.U8:
		return parsedUint(t, value, func(n uint64) (any, func() any) {
			v := uint8(n)
			return &v, func() any { return v }
		})
	case ctypes.U16:
		return parsedUint(t, value, func(n uint64) (any, func() any) {
			v := uint16(n)
			return &v, func() any { return v }
		})
	case ctypes.U32:
		return parsedUint(t, value, func(n uint64) (any, func() any) {
			v := uint32(n)
			return &v, func() any { return v }
		})
	case ctypes.U64:
		return parsedUint(t, value, func(n uint64) (any, func() any) {
			v := n
			return &v, func() any { return v }
		})
	case ctypes.S8:
		return parsedInt(t, value, func(n int64) (any, func() any) {
			v := int8(n)
			return &v, func() any { return v }
		})
	case ctypes.S16:
		return parsedInt(t, value, func(n int64) (any, func() any) {
			v := int16(n)
			return &v, func() any { return v }
		})
	case ctypes.S32:
		return parsedInt(t, value, func(n int64) (any, func() any) {
			v := int32(n)
			return &v, func() any { return v }
		})
	case ctypes.S64:
		return parsedInt(t, value, func(n int64) (any, func() any) {
			v := n
			return &v, func() any { return v }
		})
	case ctypes.F32:
		return parsedFloat(t, value, func(n float64) (any, func() any) {
			v := float32(n)
			return &v, func() any { return v }
		})
	case ctypes.F64:
		return parsedFloat(t, value, func(n float64) (any, func() any) {
			v := n
			return &v, func() any { return v }
		})
	}
	return nil, nil, fmt.Errorf("rw applies to scalar parameters, not %s", ctypes.Name(t))
}

func parsedUint(t ctypes.Type, value string, wrap func(uint64) (any, func() any)) (any, func() any, error) {
	if value == "" {
		value = "0"
	}
	n, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
	}
	arg, read := wrap(n)
	return arg, read, nil
}

func parsedInt(t ctypes.Type, value string, wrap func(int64) (any, func() any)) (any, func() any, error) {
	if value == "" {
		value = "0"
	}
	n, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
	}
	arg, read := wrap(n)
	return arg, read, nil
}

func parsedFloat(t ctypes.Type, value string, wrap func(float64) (any, func() any)) (any, func() any, error) {
	if value == "" {
		value = "0"
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s value %q", ctypes.Name(t), value)
	}
	arg, read := wrap(n)
	return arg, read, nil
}
