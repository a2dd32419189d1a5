package engine

import (
	"fmt"
	"math"
	"reflect"

	"github.com/ebitengine/purego"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
)

// MaxArgs is the most parameters one foreign call or callback may
// declare. It matches the argument slots purego can dispatch through
// on every supported platform.
const MaxArgs = 15

// Class is the register class of one call slot. Everything that is
// not a float travels as an integer word: scalars widened in place,
// pointers, string addresses and aggregate addresses alike.
type Class uint8

const (
	ClassVoid Class = iota
	ClassInt
	ClassF32
	ClassF64
)

func (c Class) String() string {
	switch c {
	case ClassVoid:
		return "void"
	case ClassInt:
		return "int"
	case ClassF32:
		return "f32"
	case ClassF64:
		return "f64"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ClassOf maps a type descriptor to its call slot class. Aggregates
// class as ClassInt: parameter and return positions carry their
// address, never the aggregate itself. A nil descriptor is void.
func ClassOf(t ctypes.Type) Class {
	switch t.(type) {
	case nil:
		return ClassVoid
	case ctypes.F32:
		return ClassF32
	case ctypes.F64:
		return ClassF64
	default:
		return ClassInt
	}
}

// Plan is the slot-level lowering of one signature: one class per
// parameter plus the return class. RW parameters and aggregates are
// already reduced to addresses here.
type Plan struct {
	Args []Class
	Ret  Class
}

// PlanFor builds the call plan for a signature. It fails on void
// parameters and on signatures longer than MaxArgs.
func PlanFor(sig *ctypes.Func) (Plan, error) {
	if sig == nil {
		return Plan{}, errors.NilPointer(errors.PhaseBind, nil, "*ctypes.Func")
	}
	if len(sig.Params) > MaxArgs {
		return Plan{}, errors.Unsupported(errors.PhaseBind,
			fmt.Sprintf("%d parameters (limit %d)", len(sig.Params), MaxArgs))
	}

	plan := Plan{Ret: ClassOf(sig.Ret)}
	if len(sig.Params) == 0 {
		return plan, nil
	}
	plan.Args = make([]Class, len(sig.Params))
	for i, p := range sig.Params {
		if p.Type == nil {
			return Plan{}, errors.InvalidData(errors.PhaseBind,
				[]string{fmt.Sprintf("param[%d]", i)}, "parameter type is nil")
		}
		if p.RW {
			// Passed by address of a scratch slot, copied back after.
			plan.Args[i] = ClassInt
			continue
		}
		plan.Args[i] = ClassOf(p.Type)
	}
	return plan, nil
}

func (p Plan) validate() error {
	if len(p.Args) > MaxArgs {
		return errors.Unsupported(errors.PhaseBind,
			fmt.Sprintf("%d parameters (limit %d)", len(p.Args), MaxArgs))
	}
	for i, c := range p.Args {
		if c == ClassVoid {
			return errors.InvalidData(errors.PhaseBind,
				[]string{fmt.Sprintf("param[%d]", i)}, "void parameter")
		}
	}
	return nil
}

func (p Plan) hasFloats() bool {
	if p.Ret == ClassF32 || p.Ret == ClassF64 {
		return true
	}
	for _, c := range p.Args {
		if c == ClassF32 || c == ClassF64 {
			return true
		}
	}
	return false
}

var (
	uintptrType = reflect.TypeOf(uintptr(0))
	float32Type = reflect.TypeOf(float32(0))
	float64Type = reflect.TypeOf(float64(0))
)

func (c Class) reflectType() reflect.Type {
	switch c {
	case ClassF32:
		return float32Type
	case ClassF64:
		return float64Type
	default:
		return uintptrType
	}
}

// funcType is the Go function type equivalent to the plan: uintptr for
// integer slots, float32/float64 for float slots, at most one result.
func (p Plan) funcType() reflect.Type {
	in := make([]reflect.Type, len(p.Args))
	for i, c := range p.Args {
		in[i] = c.reflectType()
	}
	var out []reflect.Type
	if p.Ret != ClassVoid {
		out = []reflect.Type{p.Ret.reflectType()}
	}
	return reflect.FuncOf(in, out, false)
}

// Caller invokes one native function address through a fixed plan.
// All-integer signatures dispatch directly; signatures with float
// slots go through a function registered at construction time so the
// values reach the right registers.
//
// Caller is safe for concurrent use.
type Caller struct {
	addr uintptr
	plan Plan

	// set only for plans with float slots
	fn reflect.Value
}

// NewCaller binds addr to a call plan. The address must be non-zero;
// nothing validates that it actually points at code matching the plan.
func NewCaller(addr uintptr, plan Plan) (*Caller, error) {
	if addr == 0 {
		return nil, errors.NilPointer(errors.PhaseBind, nil, "function address")
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}

	c := &Caller{addr: addr, plan: plan}
	if plan.hasFloats() {
		fnPtr := reflect.New(plan.funcType())
		purego.RegisterFunc(fnPtr.Interface(), addr)
		c.fn = fnPtr.Elem()
	}
	return c, nil
}

// Addr returns the bound native address.
func (c *Caller) Addr() uintptr {
	return c.addr
}

// Plan returns the bound call plan.
func (c *Caller) Plan() Plan {
	return c.plan
}

// Call transfers control to the native function. words holds one
// lowered word per parameter: integer slots as-is, f32 slots with the
// bit pattern in the low half, f64 slots as the full bit pattern. The
// result comes back the same way; for void it is zero.
//
// The call blocks until the native function returns. There is no
// cancellation once control has crossed.
func (c *Caller) Call(words []uint64) (uint64, error) {
	if len(words) != len(c.plan.Args) {
		return 0, errors.InvalidInput(errors.PhaseCall,
			fmt.Sprintf("call plan takes %d words, got %d", len(c.plan.Args), len(words)))
	}

	if !c.fn.IsValid() {
		var buf [MaxArgs]uintptr
		for i, w := range words {
			buf[i] = uintptr(w)
		}
		r1, _, _ := purego.SyscallN(c.addr, buf[:len(words)]...)
		return uint64(r1), nil
	}

	in := make([]reflect.Value, len(words))
	for i, w := range words {
		switch c.plan.Args[i] {
		case ClassF32:
			in[i] = reflect.ValueOf(math.Float32frombits(uint32(w)))
		case ClassF64:
			in[i] = reflect.ValueOf(math.Float64frombits(w))
		default:
			in[i] = reflect.ValueOf(uintptr(w))
		}
	}

	out := c.fn.Call(in)

	switch c.plan.Ret {
	case ClassVoid:
		return 0, nil
	case ClassF32:
		return uint64(math.Float32bits(float32(out[0].Float()))), nil
	case ClassF64:
		return math.Float64bits(out[0].Float()), nil
	default:
		return uint64(out[0].Uint()), nil
	}
}
