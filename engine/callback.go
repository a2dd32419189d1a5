package engine

import (
	"fmt"
	"math"
	"reflect"

	"github.com/ebitengine/purego"

	"github.com/wippyai/ffi-runtime/errors"
)

// Handler receives one lowered word per callback parameter and returns
// the result word, using the same slot conventions as Caller.Call.
// Native code may invoke a handler from any thread, concurrently.
type Handler func(words []uint64) uint64

// Trampoline is a native-callable function pointer that forwards to a
// Go handler. The underlying slot is never released: the platform
// supports a fixed pool of them per process, so trampolines are for
// long-lived callbacks, not per-call lambdas.
type Trampoline struct {
	ptr  uintptr
	plan Plan
}

// NewTrampoline builds a native entry point for the plan. Arguments
// arriving from native code are lowered to words, handed to the
// handler, and its result word is raised back per the return class.
func NewTrampoline(plan Plan, handler Handler) (*Trampoline, error) {
	if handler == nil {
		return nil, errors.NilPointer(errors.PhaseBind, nil, "callback handler")
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}

	fn := reflect.MakeFunc(plan.funcType(), func(in []reflect.Value) []reflect.Value {
		words := make([]uint64, len(in))
		for i, v := range in {
			switch plan.Args[i] {
			case ClassF32:
				words[i] = uint64(math.Float32bits(float32(v.Float())))
			case ClassF64:
				words[i] = math.Float64bits(v.Float())
			default:
				words[i] = uint64(v.Uint())
			}
		}

		ret := handler(words)

		switch plan.Ret {
		case ClassVoid:
			return nil
		case ClassF32:
			return []reflect.Value{reflect.ValueOf(math.Float32frombits(uint32(ret)))}
		case ClassF64:
			return []reflect.Value{reflect.ValueOf(math.Float64frombits(ret))}
		default:
			return []reflect.Value{reflect.ValueOf(uintptr(ret))}
		}
	})

	ptr, err := newCallbackPtr(fn.Interface())
	if err != nil {
		return nil, err
	}
	return &Trampoline{ptr: ptr, plan: plan}, nil
}

// Ptr returns the native function pointer. It stays callable for the
// process lifetime; whether the handler behind it still wants to be
// called is the registration layer's concern.
func (t *Trampoline) Ptr() uintptr {
	return t.ptr
}

// Plan returns the trampoline's call plan.
func (t *Trampoline) Plan() Plan {
	return t.plan
}

// newCallbackPtr converts the per-process callback pool running dry
// from a panic into an error.
func newCallbackPtr(fn any) (ptr uintptr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.PhaseBind, errors.KindAllocation,
				fmt.Errorf("%v", r), "create native trampoline")
		}
	}()
	return purego.NewCallback(fn), nil
}
