package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/trampoline"
	"github.com/wippyai/ffi-runtime/transcoder"
)

// Config carries runtime construction options.
type Config struct {
	// Engine controls how native libraries are opened: binding mode,
	// symbol scope, and whether Close actually unloads.
	Engine engine.Config
}

type Runtime struct {
	engine    *engine.Engine
	callbacks *trampoline.Table

	compiler *transcoder.Compiler
	enc      *transcoder.Encoder
	dec      *transcoder.Decoder

	allocMu sync.Mutex
	cAlloc  ffiruntime.Allocator
}

func New() *Runtime {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) *Runtime {
	c := transcoder.NewCompiler()
	return &Runtime{
		engine:    engine.NewEngineWithConfig(cfg.Engine),
		callbacks: trampoline.NewTable(),
		compiler:  c,
		enc:       transcoder.NewEncoderWithCompiler(c),
		dec:       transcoder.NewDecoderWithCompiler(c),
	}
}

// Open loads the library the spec names and returns a handle for
// binding its symbols. A nil or zero spec opens the current process.
//
// Opening the same path twice returns the same underlying handle;
// libraries stay resident until the engine itself is closed unless
// the engine was configured with AllowUnload.
func (r *Runtime) Open(ctx context.Context, spec *LibrarySpec) (*Library, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindClosed, err, "context done before open")
	}

	if spec.isCurrent() {
		return r.wrap(r.engine.Current(), spec), nil
	}

	candidates, err := spec.candidates()
	if err != nil {
		return nil, err
	}
	lib, err := r.engine.OpenCandidates(spec.label(), candidates)
	if err != nil {
		return nil, err
	}
	Logger().Debug("library opened",
		zap.String("name", spec.label()),
		zap.String("path", lib.Path()))
	return r.wrap(lib, spec), nil
}

func (r *Runtime) wrap(lib *engine.Library, spec *LibrarySpec) *Library {
	return &Library{
		rt:    r,
		lib:   lib,
		name:  spec.label(),
		procs: make(map[string]*Proc),
	}
}

// Callbacks exposes the live-callback registry. Every callback minted
// by NewCallback is tracked here until invalidated.
func (r *Runtime) Callbacks() *trampoline.Table {
	return r.callbacks
}

// Close invalidates all callbacks and releases engine resources.
// Procs bound through this runtime must not be called afterwards.
func (r *Runtime) Close() error {
	if err := r.callbacks.Close(); err != nil {
		return err
	}
	return r.engine.Close()
}
