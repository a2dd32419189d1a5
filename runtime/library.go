package runtime

import (
	goerrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/transcoder"
)

// FuncDecl declares one native function to bind. Name doubles as the
// exported symbol unless Symbol overrides it.
type FuncDecl struct {
	Name   string
	Symbol string
	Params []ctypes.Param
	Ret    ctypes.Type
}

// GlobalDecl declares one exported variable to bind. Name doubles as
// the exported symbol unless Symbol overrides it.
type GlobalDecl struct {
	Name   string
	Symbol string
	Type   ctypes.Type
}

// Library is an opened native library plus the bindings made against
// it. It is safe for concurrent use.
type Library struct {
	rt   *Runtime
	lib  *engine.Library
	name string

	mu    sync.RWMutex
	procs map[string]*Proc
}

// Name returns the name the library was opened under.
func (l *Library) Name() string {
	return l.name
}

// Path returns the path that resolved at open time, empty for the
// current process.
func (l *Library) Path() string {
	return l.lib.Path()
}

// Symbol resolves a raw symbol address with no signature attached.
func (l *Library) Symbol(name string) (uintptr, error) {
	return l.lib.Symbol(name)
}

// Bind resolves decl's symbol and prepares it for calling. The
// binding is cached under decl.Name; binding the same name again
// replaces the cached entry.
func (l *Library) Bind(decl FuncDecl) (*Proc, error) {
	name, symbol := bindingNames(decl.Name, decl.Symbol)
	if symbol == "" {
		return nil, errors.InvalidInput(errors.PhaseBind, "function declaration has no name")
	}

	sig := ctypes.NewFunc(decl.Ret, decl.Params...)
	p, err := l.bind(name, symbol, sig)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.procs[name] = p
	l.mu.Unlock()
	return p, nil
}

// BindAll binds every declaration, trying all of them before
// reporting. Declarations whose symbols the library does not export
// are collected into a single MissingSymbolsError; any other failure
// aborts immediately. Bindings made before a failure stay cached.
func (l *Library) BindAll(decls ...FuncDecl) error {
	var missing []string
	for i := range decls {
		_, err := l.Bind(decls[i])
		if err == nil {
			continue
		}
		var fe *errors.Error
		if goerrors.As(err, &fe) && fe.Kind == errors.KindSymbolNotFound {
			_, symbol := bindingNames(decls[i].Name, decls[i].Symbol)
			missing = append(missing, symbol)
			continue
		}
		return err
	}
	if len(missing) > 0 {
		return errors.NewMissingSymbolsError(l.displayName(), missing)
	}
	return nil
}

// Proc returns a binding made earlier under name.
func (l *Library) Proc(name string) (*Proc, bool) {
	l.mu.RLock()
	p, ok := l.procs[name]
	l.mu.RUnlock()
	return p, ok
}

// Func binds name with the given signature. The cached binding is
// reused when it was made with the same signature value, so callers
// that keep one *ctypes.Func per function get the cached Proc back
// without re-planning.
func (l *Library) Func(name string, sig *ctypes.Func) (*Proc, error) {
	if sig == nil {
		return nil, errors.NilPointer(errors.PhaseBind, nil, "*ctypes.Func")
	}

	l.mu.RLock()
	p, ok := l.procs[name]
	l.mu.RUnlock()
	if ok && p.sig == sig {
		return p, nil
	}

	p, err := l.bind(name, name, sig)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.procs[name] = p
	l.mu.Unlock()
	return p, nil
}

// Global binds decl and returns an accessor for the variable.
func (l *Library) Global(decl GlobalDecl) (*Global, error) {
	name, symbol := bindingNames(decl.Name, decl.Symbol)
	if symbol == "" {
		return nil, errors.InvalidInput(errors.PhaseBind, "global declaration has no name")
	}
	if decl.Type == nil {
		return nil, errors.InvalidData(errors.PhaseBind, []string{name}, "global type is nil")
	}
	if _, err := transcoder.SizeOf(decl.Type); err != nil {
		return nil, err
	}

	addr, err := l.lib.Symbol(symbol)
	if err != nil {
		return nil, err
	}

	return &Global{
		rt:     l.rt,
		name:   name,
		symbol: symbol,
		addr:   addr,
		typ:    decl.Type,
	}, nil
}

// Close releases the library handle. Whether the library actually
// unloads is an engine configuration matter; by default libraries
// stay resident and Close only drops the reference.
func (l *Library) Close() error {
	return l.lib.Close()
}

func (l *Library) bind(name, symbol string, sig *ctypes.Func) (*Proc, error) {
	plan, err := engine.PlanFor(sig)
	if err != nil {
		return nil, err
	}
	if err := validateSignature(sig); err != nil {
		return nil, err
	}

	addr, err := l.lib.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	caller, err := engine.NewCaller(addr, plan)
	if err != nil {
		return nil, err
	}
	Logger().Debug("function bound",
		zap.String("symbol", symbol),
		zap.Uintptr("addr", addr))

	return &Proc{
		rt:     l.rt,
		name:   name,
		symbol: symbol,
		addr:   addr,
		sig:    sig,
		caller: caller,
	}, nil
}

func (l *Library) displayName() string {
	if p := l.lib.Path(); p != "" {
		return p
	}
	return l.name
}

// bindingNames resolves the name/symbol pair of a declaration: each
// defaults to the other when empty.
func bindingNames(name, symbol string) (string, string) {
	if symbol == "" {
		symbol = name
	}
	if name == "" {
		name = symbol
	}
	return name, symbol
}

// validateSignature rejects declarations the marshaling layer could
// never serve, so the failure lands at bind time instead of at first
// call.
func validateSignature(sig *ctypes.Func) error {
	for i := range sig.Params {
		p := &sig.Params[i]
		if p.RW && !ctypes.IsScalar(p.Type) {
			return errors.Unsupported(errors.PhaseBind, "rw on "+ctypes.Name(p.Type)+" parameters")
		}
		if _, err := transcoder.SizeOf(p.Type); err != nil {
			return err
		}
	}
	switch sig.Ret.(type) {
	case nil:
		return nil
	case *ctypes.Array, *ctypes.Bytes:
		return errors.Unsupported(errors.PhaseBind, ctypes.Name(sig.Ret)+" return values")
	}
	_, err := transcoder.SizeOf(sig.Ret)
	return err
}
