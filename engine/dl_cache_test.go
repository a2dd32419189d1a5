package engine

import (
	goerrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/ffi-runtime/errors"
)

// countingOpener stands in for the OS loader so cache behavior can be
// observed without loading anything.
type countingOpener struct {
	loads atomic.Int32
	fail  atomic.Bool
	mode  atomic.Int64
}

func (o *countingOpener) open(path string, mode LoadMode) (uintptr, error) {
	// Stretch the load so concurrent opens actually overlap.
	time.Sleep(time.Millisecond)
	o.mode.Store(int64(mode))
	n := o.loads.Add(1)
	if o.fail.Load() {
		return 0, goerrors.New("injected load failure")
	}
	return uintptr(0x1000 + n), nil
}

func TestOpenConcurrentDedup(t *testing.T) {
	op := &countingOpener{}
	e := NewEngine()
	e.openLib = op.open

	const workers = 16
	libs := make([]*Library, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lib, err := e.Open("libfake.so.1")
			if err != nil {
				errs <- err
				return
			}
			libs[i] = lib
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if n := op.loads.Load(); n != 1 {
		t.Fatalf("loader invoked %d times for one identity, want 1", n)
	}
	for i := 1; i < workers; i++ {
		if libs[i] != libs[0] {
			t.Fatalf("goroutine %d got a different Library value", i)
		}
	}
	if libs[0].Handle() == 0 {
		t.Fatal("loaded library has handle 0")
	}
}

func TestOpenRetryAfterFailure(t *testing.T) {
	op := &countingOpener{}
	op.fail.Store(true)
	e := NewEngine()
	e.openLib = op.open

	_, err := e.Open("libflaky.so")
	wantKind(t, err, errors.PhaseLoad, errors.KindLibraryNotFound)

	// The failed entry must not stick: the next attempt reaches the
	// loader again and can succeed.
	op.fail.Store(false)
	lib, err := e.Open("libflaky.so")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Handle() == 0 {
		t.Fatal("retry produced handle 0")
	}
	if n := op.loads.Load(); n != 2 {
		t.Fatalf("loader invoked %d times, want 2 (one failure, one retry)", n)
	}
}

func TestOpenModePassthrough(t *testing.T) {
	op := &countingOpener{}
	e := NewEngine()
	e.openLib = op.open
	if _, err := e.Open("libdefaultmode.so"); err != nil {
		t.Fatal(err)
	}
	if got := LoadMode(op.mode.Load()); got != BindNow|ScopeGlobal {
		t.Errorf("default mode = %d, want BindNow|ScopeGlobal", got)
	}

	op = &countingOpener{}
	e = NewEngineWithConfig(Config{Mode: BindLazy | ScopeLocal})
	e.openLib = op.open
	if _, err := e.Open("liblazymode.so"); err != nil {
		t.Fatal(err)
	}
	if got := LoadMode(op.mode.Load()); got != BindLazy|ScopeLocal {
		t.Errorf("configured mode = %d, want BindLazy|ScopeLocal", got)
	}
}
