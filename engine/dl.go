package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/errors"
)

// LoadMode controls how the dynamic loader binds and scopes symbols.
// The zero value means BindNow|ScopeGlobal.
type LoadMode int

const (
	// BindLazy defers symbol resolution to first use.
	BindLazy LoadMode = 1 << iota
	// BindNow resolves every undefined symbol at load time.
	BindNow
	// ScopeLocal keeps the library's symbols out of the global scope.
	ScopeLocal
	// ScopeGlobal makes the library's symbols available to later loads.
	ScopeGlobal
)

// Config holds engine configuration.
type Config struct {
	// Mode is the load mode passed to the OS loader. Zero means
	// BindNow|ScopeGlobal.
	Mode LoadMode

	// AllowUnload enables reference-counted unloading: when the last
	// handle for an identity is closed the library is dlclosed. The
	// default keeps every loaded library resident for the process
	// lifetime, so resolved addresses can never dangle.
	AllowUnload bool
}

// Engine owns the process-wide library cache. Opening the same
// identity twice returns the same Library; concurrent first opens of
// one identity perform exactly one load.
//
// Engine is safe for concurrent use.
type Engine struct {
	cfg Config

	// openLib performs the OS load; tests substitute it.
	openLib func(path string, mode LoadMode) (uintptr, error)

	mu   sync.Mutex
	libs map[string]*Library

	self     *Library
	selfOnce sync.Once
}

// NewEngine creates an engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(Config{})
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		openLib: dlOpen,
		libs:    make(map[string]*Library),
	}
}

// Library is one loaded dynamic library: an OS handle plus a symbol
// cache. Libraries are shared between callers; identity is the exact
// string passed to Open.
//
// Library is safe for concurrent use.
type Library struct {
	eng  *Engine
	path string

	once    sync.Once
	handle  uintptr
	openErr error

	mu   sync.RWMutex
	syms map[string]uintptr

	refs   atomic.Int64
	closed atomic.Bool
}

// Open loads the library at path, or returns the already-loaded
// Library for the same path. The path is handed to the OS loader
// verbatim: bare sonames search the standard locations, anything with
// a separator is taken literally. Failure reports library_not_found
// wrapping the loader's error.
func (e *Engine) Open(path string) (*Library, error) {
	if path == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty library path")
	}

	e.mu.Lock()
	lib, ok := e.libs[path]
	if !ok {
		lib = &Library{eng: e, path: path, syms: make(map[string]uintptr)}
		e.libs[path] = lib
	}
	e.mu.Unlock()

	lib.once.Do(func() {
		lib.handle, lib.openErr = e.openLib(path, e.mode())
		if lib.openErr == nil {
			debugf("loaded library %s (handle %#x)", path, lib.handle)
		}
	})
	if lib.openErr != nil {
		// Drop the failed entry so a later attempt can retry the load.
		e.mu.Lock()
		if e.libs[path] == lib {
			delete(e.libs, path)
		}
		e.mu.Unlock()
		return nil, errors.LibraryNotFound(path, lib.openErr)
	}

	lib.refs.Add(1)
	return lib, nil
}

// OpenCandidates tries each candidate in order and returns the first
// library that loads. name identifies the request in the error when
// every candidate fails.
func (e *Engine) OpenCandidates(name string, candidates []string) (*Library, error) {
	if len(candidates) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no load candidates for "+name)
	}
	var lastErr error
	for _, c := range candidates {
		lib, err := e.Open(c)
		if err == nil {
			return lib, nil
		}
		lastErr = err
		debugf("candidate %s failed: %v", c, err)
	}
	return nil, errors.LibraryNotFound(name, lastErr)
}

// Current returns the pseudo-library for the host process itself.
// Symbol resolves against everything already linked into the process;
// Close on it is a no-op.
func (e *Engine) Current() *Library {
	e.selfOnce.Do(func() {
		e.self = &Library{
			eng:    e,
			handle: dlCurrentProcess(),
			syms:   make(map[string]uintptr),
		}
	})
	return e.self
}

// Close unloads every library the engine still holds, when unloading
// is enabled. With the default configuration it only clears the cache
// and leaves the libraries resident.
func (e *Engine) Close() error {
	e.mu.Lock()
	libs := e.libs
	e.libs = make(map[string]*Library)
	e.mu.Unlock()

	var firstErr error
	for _, lib := range libs {
		if !e.cfg.AllowUnload {
			continue
		}
		if lib.closed.CompareAndSwap(false, true) {
			if err := dlClose(lib.handle); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) mode() LoadMode {
	if e.cfg.Mode == 0 {
		return BindNow | ScopeGlobal
	}
	return e.cfg.Mode
}

// Path returns the identity the library was opened under. It is empty
// for the current-process pseudo-library.
func (l *Library) Path() string {
	return l.path
}

// Handle exposes the raw OS handle. On some platforms the
// current-process handle is legitimately zero.
func (l *Library) Handle() uintptr {
	return l.handle
}

// Symbol resolves name to its address, caching the result. Resolution
// failure reports symbol_not_found wrapping the loader's error.
func (l *Library) Symbol(name string) (uintptr, error) {
	if name == "" {
		return 0, errors.InvalidInput(errors.PhaseResolve, "empty symbol name")
	}
	if l.closed.Load() {
		return 0, errors.Closed("library " + l.displayName())
	}

	l.mu.RLock()
	addr, ok := l.syms[name]
	l.mu.RUnlock()
	if ok {
		return addr, nil
	}

	addr, err := dlSym(l.handle, name)
	if err != nil {
		return 0, errors.SymbolNotFound(l.displayName(), name, err)
	}

	l.mu.Lock()
	l.syms[name] = addr
	l.mu.Unlock()
	return addr, nil
}

// Close releases one reference. When unloading is enabled and this was
// the last reference, the library is removed from the engine cache and
// dlclosed; any address resolved from it is invalid afterwards. With
// the default configuration Close never unloads.
func (l *Library) Close() error {
	if l == l.eng.self {
		return nil
	}
	if l.refs.Add(-1) > 0 || !l.eng.cfg.AllowUnload {
		return nil
	}
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	l.eng.mu.Lock()
	if l.eng.libs[l.path] == l {
		delete(l.eng.libs, l.path)
	}
	l.eng.mu.Unlock()

	l.mu.Lock()
	l.syms = make(map[string]uintptr)
	l.mu.Unlock()

	if err := dlClose(l.handle); err != nil {
		Logger().Warn("dlclose failed",
			zap.String("library", l.path),
			zap.Error(err))
		return err
	}
	debugf("unloaded library %s", l.path)
	return nil
}

func (l *Library) displayName() string {
	if l.path == "" {
		return "<current process>"
	}
	return l.path
}
