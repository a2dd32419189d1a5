package runtime

import (
	"fmt"
	"math"
	"reflect"
	goruntime "runtime"
	"strings"
	"sync/atomic"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/trampoline"
	"github.com/wippyai/ffi-runtime/transcoder"
)

// Callback is a Go function exposed as a native code pointer.
type Callback struct {
	rt     *Runtime
	name   string
	sig    *ctypes.Func
	tramp  *engine.Trampoline
	handle trampoline.Handle
}

// NewCallback exposes target as a native function pointer declared by
// sig. The target's Go signature must match the declaration exactly:
//
//	bool                 bool
//	u8..s64              uint8..int64
//	f32, f64             float32, float64
//	ptr, function types  uintptr
//	cstr                 string (decoded copy; NULL arrives as "")
//	struct, union        *transcoder.StructValue (borrowed, by address)
//
// rw parameters, byte buffers and array parameters have no callback
// lifting, and only void, scalar and pointer results are supported.
//
// Native code may invoke the callback from any thread, concurrently;
// the target must tolerate that. Argument memory lifted from native
// code is only valid during the invocation: StructValue views borrow
// the caller's memory and must not be retained.
//
// The underlying trampoline slot comes from a fixed per-process pool
// and is never recycled, so callbacks are for long-lived
// registrations, not per-call lambdas.
func (r *Runtime) NewCallback(sig *ctypes.Func, target any) (*Callback, error) {
	if sig == nil {
		return nil, errors.NilPointer(errors.PhaseBind, nil, "*ctypes.Func")
	}
	fn := reflect.ValueOf(target)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", target)).
			Detail("callback target must be a Go func").
			Build()
	}
	if fn.IsNil() {
		return nil, errors.NilPointer(errors.PhaseBind, nil, fn.Type().String())
	}

	name := callbackName(fn)
	if err := checkCallbackSignature(name, fn.Type(), sig); err != nil {
		return nil, err
	}
	plan, err := engine.PlanFor(sig)
	if err != nil {
		return nil, err
	}

	// The handle is not known until registration, and registration
	// wants the trampoline pointer. The handler reads it through an
	// atomic slot; native code cannot invoke the pointer before
	// NewCallback returns it.
	var handle atomic.Uint32
	handler := r.callbackHandler(name, fn, sig, &handle)

	tramp, err := engine.NewTrampoline(plan, handler)
	if err != nil {
		return nil, err
	}

	h := r.callbacks.Register(name, tramp.Ptr(), target)
	if h == 0 {
		return nil, errors.Closed("callback registry")
	}
	handle.Store(uint32(h))

	return &Callback{rt: r, name: name, sig: sig, tramp: tramp, handle: h}, nil
}

// Ptr returns the native function pointer to hand to foreign code.
func (c *Callback) Ptr() uintptr {
	return c.tramp.Ptr()
}

// Handle returns the registry handle for this callback.
func (c *Callback) Handle() trampoline.Handle {
	return c.handle
}

// Sig returns the declared signature.
func (c *Callback) Sig() *ctypes.Func {
	return c.sig
}

// Name returns the registry name, derived from the target function.
func (c *Callback) Name() string {
	return c.name
}

// Invalidate retires the callback. The native pointer stays callable,
// but an invocation after Invalidate panics with a revoked error
// naming the callback instead of reaching the target.
func (c *Callback) Invalidate() {
	c.rt.callbacks.Invalidate(c.handle)
}

func (r *Runtime) callbackHandler(name string, fn reflect.Value, sig *ctypes.Func, handle *atomic.Uint32) engine.Handler {
	return func(words []uint64) uint64 {
		if !r.callbacks.Live(trampoline.Handle(handle.Load())) {
			panic(errors.Revoked(name))
		}

		in := make([]reflect.Value, len(sig.Params))
		for i := range sig.Params {
			v, err := r.liftCallbackArg(sig.Params[i].Type, words[i])
			if err != nil {
				panic(err)
			}
			in[i] = v
		}

		out := fn.Call(in)
		return lowerCallbackResult(sig.Ret, out)
	}
}

// liftCallbackArg raises one argument word into the Go value the
// target expects.
func (r *Runtime) liftCallbackArg(t ctypes.Type, word uint64) (reflect.Value, error) {
	switch t.(type) {
	case ctypes.Bool:
		return reflect.ValueOf(byte(word) != 0), nil
	case ctypes.U8:
		return reflect.ValueOf(uint8(word)), nil
	case ctypes.S8:
		return reflect.ValueOf(int8(word)), nil
	case ctypes.U16:
		return reflect.ValueOf(uint16(word)), nil
	case ctypes.S16:
		return reflect.ValueOf(int16(word)), nil
	case ctypes.U32:
		return reflect.ValueOf(uint32(word)), nil
	case ctypes.S32:
		return reflect.ValueOf(int32(word)), nil
	case ctypes.U64:
		return reflect.ValueOf(word), nil
	case ctypes.S64:
		return reflect.ValueOf(int64(word)), nil
	case ctypes.F32:
		return reflect.ValueOf(math.Float32frombits(uint32(word))), nil
	case ctypes.F64:
		return reflect.ValueOf(math.Float64frombits(word)), nil
	case *ctypes.Pointer, *ctypes.Func:
		return reflect.ValueOf(uintptr(word)), nil
	case *ctypes.CString:
		if word == 0 {
			return reflect.ValueOf(""), nil
		}
		v, err := r.dec.Lift(t, word, engine.NativeMemory{})
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v.(string)), nil
	case *ctypes.Struct, *ctypes.Union:
		if word == 0 {
			return reflect.Zero(reflectStructValue), nil
		}
		sv, err := r.dec.StructValueAt(t, uintptr(word), engine.NativeMemory{})
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(sv), nil
	}
	return reflect.Value{}, errors.Unsupported(errors.PhaseDecode, ctypes.Name(t)+" callback parameters")
}

// lowerCallbackResult packs the target's result into the return word.
func lowerCallbackResult(ret ctypes.Type, out []reflect.Value) uint64 {
	switch ret.(type) {
	case nil:
		return 0
	case ctypes.Bool:
		if out[0].Bool() {
			return 1
		}
		return 0
	case ctypes.F32:
		return uint64(math.Float32bits(float32(out[0].Float())))
	case ctypes.F64:
		return math.Float64bits(out[0].Float())
	case ctypes.S8, ctypes.S16, ctypes.S32, ctypes.S64:
		return uint64(out[0].Int())
	default:
		// unsigned scalars, pointers and function pointers
		return uint64(out[0].Uint())
	}
}

// checkCallbackSignature verifies the Go target against the declared
// signature so mismatches fail at creation, not mid-invocation.
func checkCallbackSignature(name string, ft reflect.Type, sig *ctypes.Func) error {
	if ft.IsVariadic() {
		return errors.SignatureMismatch(errors.PhaseBind, name, "variadic Go funcs cannot back callbacks")
	}
	if ft.NumIn() != len(sig.Params) {
		return errors.SignatureMismatch(errors.PhaseBind, name,
			fmt.Sprintf("target takes %d parameters, declaration has %d", ft.NumIn(), len(sig.Params)))
	}

	for i := range sig.Params {
		p := &sig.Params[i]
		if p.RW {
			return errors.Unsupported(errors.PhaseBind, "rw parameters in callback signatures")
		}
		want, err := callbackParamType(p.Type)
		if err != nil {
			return err
		}
		if got := ft.In(i); got != want {
			return errors.SignatureMismatch(errors.PhaseBind, name,
				fmt.Sprintf("parameter %d is %s, declaration wants %s", i, got, want))
		}
	}

	want, err := callbackResultType(sig.Ret)
	if err != nil {
		return err
	}
	if want == nil {
		if ft.NumOut() != 0 {
			return errors.SignatureMismatch(errors.PhaseBind, name, "declaration is void but target returns a value")
		}
		return nil
	}
	if ft.NumOut() != 1 {
		return errors.SignatureMismatch(errors.PhaseBind, name,
			fmt.Sprintf("target returns %d values, want 1", ft.NumOut()))
	}
	if got := ft.Out(0); got != want {
		return errors.SignatureMismatch(errors.PhaseBind, name,
			fmt.Sprintf("result is %s, declaration wants %s", got, want))
	}
	return nil
}

func callbackParamType(t ctypes.Type) (reflect.Type, error) {
	switch t.(type) {
	case ctypes.Bool:
		return reflectBool, nil
	case ctypes.U8:
		return reflectU8, nil
	case ctypes.S8:
		return reflectS8, nil
	case ctypes.U16:
		return reflectU16, nil
	case ctypes.S16:
		return reflectS16, nil
	case ctypes.U32:
		return reflectU32, nil
	case ctypes.S32:
		return reflectS32, nil
	case ctypes.U64:
		return reflectU64, nil
	case ctypes.S64:
		return reflectS64, nil
	case ctypes.F32:
		return reflectF32, nil
	case ctypes.F64:
		return reflectF64, nil
	case *ctypes.Pointer, *ctypes.Func:
		return reflectUintptr, nil
	case *ctypes.CString:
		return reflectString, nil
	case *ctypes.Struct, *ctypes.Union:
		return reflectStructValue, nil
	}
	return nil, errors.Unsupported(errors.PhaseBind, ctypes.Name(t)+" callback parameters")
}

func callbackResultType(t ctypes.Type) (reflect.Type, error) {
	switch t.(type) {
	case nil:
		return nil, nil
	case ctypes.Bool:
		return reflectBool, nil
	case ctypes.U8:
		return reflectU8, nil
	case ctypes.S8:
		return reflectS8, nil
	case ctypes.U16:
		return reflectU16, nil
	case ctypes.S16:
		return reflectS16, nil
	case ctypes.U32:
		return reflectU32, nil
	case ctypes.S32:
		return reflectS32, nil
	case ctypes.U64:
		return reflectU64, nil
	case ctypes.S64:
		return reflectS64, nil
	case ctypes.F32:
		return reflectF32, nil
	case ctypes.F64:
		return reflectF64, nil
	case *ctypes.Pointer, *ctypes.Func:
		return reflectUintptr, nil
	}
	return nil, errors.Unsupported(errors.PhaseBind, ctypes.Name(t)+" callback results")
}

// callbackName names a callback after its Go target for registry
// diagnostics.
func callbackName(fn reflect.Value) string {
	if f := goruntime.FuncForPC(fn.Pointer()); f != nil {
		name := f.Name()
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		return name
	}
	return "callback"
}

var (
	reflectBool        = reflect.TypeOf(false)
	reflectU8          = reflect.TypeOf(uint8(0))
	reflectS8          = reflect.TypeOf(int8(0))
	reflectU16         = reflect.TypeOf(uint16(0))
	reflectS16         = reflect.TypeOf(int16(0))
	reflectU32         = reflect.TypeOf(uint32(0))
	reflectS32         = reflect.TypeOf(int32(0))
	reflectU64         = reflect.TypeOf(uint64(0))
	reflectS64         = reflect.TypeOf(int64(0))
	reflectF32         = reflect.TypeOf(float32(0))
	reflectF64         = reflect.TypeOf(float64(0))
	reflectUintptr     = reflect.TypeOf(uintptr(0))
	reflectString      = reflect.TypeOf("")
	reflectStructValue = reflect.TypeOf((*transcoder.StructValue)(nil))
)
