package runtime

import (
	"context"
	"fmt"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder"
)

// nativeCaller dispatches lowered argument words to native code.
// *engine.Caller is the production implementation.
type nativeCaller interface {
	Call(words []uint64) (uint64, error)
}

// Proc is one bound native function: a resolved address plus the
// signature that governs marshaling. Procs are safe for concurrent
// use; every call stages its arguments in a private frame.
type Proc struct {
	rt     *Runtime
	name   string
	symbol string
	addr   uintptr
	sig    *ctypes.Func
	caller nativeCaller
}

// Name returns the binding name.
func (p *Proc) Name() string {
	return p.name
}

// Addr returns the resolved native address.
func (p *Proc) Addr() uintptr {
	return p.addr
}

// Sig returns the bound signature.
func (p *Proc) Sig() *ctypes.Func {
	return p.sig
}

// Call invokes the native function with args marshaled per the bound
// signature.
//
// Arguments follow the encoder's conventions: Go scalars for scalar
// parameters, string for cstr, []byte or uintptr for raw pointers,
// maps, Go structs or StructValues for aggregates, and pointers to
// scalars for rw parameters. The result is the lifted return value:
// nil for void, a Go scalar, a string for cstr, a uintptr for
// pointers, or a borrowed StructValue when the signature declares an
// aggregate return address.
//
// The context is checked before control transfers. Once the native
// function is running there is no cancellation; ctx does not bound
// the call's duration.
func (p *Proc) Call(ctx context.Context, args ...any) (any, error) {
	if len(args) != len(p.sig.Params) {
		return nil, errors.SignatureMismatch(errors.PhaseCall, p.symbol,
			fmt.Sprintf("takes %d arguments, got %d", len(p.sig.Params), len(args)))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindClosed, err, "context done before call")
	}

	frame := transcoder.NewFrame()
	defer frame.Release()

	words, err := p.rt.enc.EncodeArgs(p.sig.Params, args, frame)
	if err != nil {
		return nil, err
	}

	ret, err := p.caller.Call(words)
	if err != nil {
		return nil, err
	}

	// The native call has executed; rw copy-back failures after this
	// point report PhaseDecode so callers know side effects stand.
	if err := p.rt.dec.CopyBack(frame); err != nil {
		return nil, err
	}

	return p.rt.dec.Lift(p.sig.Ret, ret, engine.NativeMemory{})
}

// ProcAt binds a raw function address, for pointers that arrive
// outside the symbol tables: vtable entries, callback slots handed
// over by the library, addresses resolved elsewhere.
func (r *Runtime) ProcAt(addr uintptr, sig *ctypes.Func) (*Proc, error) {
	if sig == nil {
		return nil, errors.NilPointer(errors.PhaseBind, nil, "*ctypes.Func")
	}
	plan, err := engine.PlanFor(sig)
	if err != nil {
		return nil, err
	}
	if err := validateSignature(sig); err != nil {
		return nil, err
	}
	caller, err := engine.NewCaller(addr, plan)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("proc@0x%x", addr)
	return &Proc{
		rt:     r,
		name:   label,
		symbol: label,
		addr:   addr,
		sig:    sig,
		caller: caller,
	}, nil
}
