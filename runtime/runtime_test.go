package runtime

import (
	"context"
	goerrors "errors"
	"math"
	"os"
	goruntime "runtime"
	"sort"
	"testing"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
)

// The tests below exercise real libraries and skip when the host does
// not provide them.

// openMath returns a library exporting the C math functions, falling
// back to the current process for platforms that fold libm into libc.
func openMath(t *testing.T) (*Runtime, *Library) {
	t.Helper()
	ctx := context.Background()
	rt := New()
	t.Cleanup(func() { rt.Close() })

	specs := []*LibrarySpec{
		{Name: "m", Version: "6"},
		{Name: "m"},
		CurrentProcess,
	}
	for _, spec := range specs {
		lib, err := rt.Open(ctx, spec)
		if err != nil {
			continue
		}
		if _, err := lib.Symbol("cos"); err == nil {
			return rt, lib
		}
	}
	t.Skip("no math library available")
	return nil, nil
}

// openLibc returns a library exporting the C standard functions.
func openLibc(t *testing.T) (*Runtime, *Library) {
	t.Helper()
	ctx := context.Background()
	rt := New()
	t.Cleanup(func() { rt.Close() })

	specs := []*LibrarySpec{
		CurrentProcess,
		{Name: "c", Version: "6"},
		{Name: "c"},
	}
	for _, spec := range specs {
		lib, err := rt.Open(ctx, spec)
		if err != nil {
			continue
		}
		if _, err := lib.Symbol("strlen"); err == nil {
			return rt, lib
		}
	}
	t.Skip("no C library available")
	return nil, nil
}

func TestOpenMissingLibrary(t *testing.T) {
	ctx := context.Background()
	rt := New()
	defer rt.Close()

	_, err := rt.Open(ctx, &LibrarySpec{Name: "ffi-no-such-library-xyz"})
	if err == nil {
		t.Fatal("expected error for missing library")
	}
	var fe *errors.Error
	if !goerrors.As(err, &fe) || fe.Kind != errors.KindLibraryNotFound {
		t.Errorf("error = %v, want library_not_found", err)
	}
}

func TestOpenContextDone(t *testing.T) {
	rt := New()
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.Open(ctx, CurrentProcess)
	if err == nil {
		t.Fatal("expected error from done context")
	}
	if !goerrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in the chain", err)
	}
}

func TestOpenCurrentProcess(t *testing.T) {
	ctx := context.Background()
	rt := New()
	defer rt.Close()

	lib, err := rt.Open(ctx, CurrentProcess)
	if err != nil {
		t.Fatalf("open current process: %v", err)
	}
	if lib.Name() != "current process" {
		t.Errorf("name = %q", lib.Name())
	}

	// nil spec means the same thing
	lib2, err := rt.Open(ctx, nil)
	if err != nil {
		t.Fatalf("open nil spec: %v", err)
	}
	if lib2.Path() != lib.Path() {
		t.Errorf("nil spec opened %q, current process %q", lib2.Path(), lib.Path())
	}
}

func TestMathCos(t *testing.T) {
	_, lib := openMath(t)
	ctx := context.Background()

	cos, err := lib.Bind(FuncDecl{
		Name:   "cos",
		Params: ctypes.Params(ctypes.F64{}),
		Ret:    ctypes.F64{},
	})
	if err != nil {
		t.Fatalf("bind cos: %v", err)
	}

	got, err := cos.Call(ctx, math.Pi)
	if err != nil {
		t.Fatalf("call cos: %v", err)
	}
	if v := got.(float64); math.Abs(v+1) > 1e-12 {
		t.Errorf("cos(pi) = %v, want -1", v)
	}
}

func TestMathFrexpCopyBack(t *testing.T) {
	_, lib := openMath(t)
	ctx := context.Background()

	frexp, err := lib.Bind(FuncDecl{
		Name: "frexp",
		Params: []ctypes.Param{
			{Type: ctypes.F64{}},
			ctypes.RW(ctypes.S32{}),
		},
		Ret: ctypes.F64{},
	})
	if err != nil {
		t.Fatalf("bind frexp: %v", err)
	}

	exp := int32(0)
	got, err := frexp.Call(ctx, 16.0, &exp)
	if err != nil {
		t.Fatalf("call frexp: %v", err)
	}
	if got != 0.5 {
		t.Errorf("mantissa = %v, want 0.5", got)
	}
	if exp != 5 {
		t.Errorf("exponent = %d, want 5", exp)
	}
}

func TestLibcStrlen(t *testing.T) {
	_, lib := openLibc(t)
	ctx := context.Background()

	strlen, err := lib.Bind(FuncDecl{
		Name:   "strlen",
		Params: ctypes.Params(&ctypes.CString{}),
		Ret:    ctypes.U64{},
	})
	if err != nil {
		t.Fatalf("bind strlen: %v", err)
	}

	got, err := strlen.Call(ctx, "hello world")
	if err != nil {
		t.Fatalf("call strlen: %v", err)
	}
	if got != uint64(11) {
		t.Errorf("strlen = %v, want 11", got)
	}
}

func TestLibcGetenv(t *testing.T) {
	_, lib := openLibc(t)
	ctx := context.Background()

	getenv, err := lib.Bind(FuncDecl{
		Name:   "getenv",
		Params: ctypes.Params(&ctypes.CString{}),
		Ret:    &ctypes.CString{},
	})
	if err != nil {
		t.Fatalf("bind getenv: %v", err)
	}

	// PATH is inherited into the C environ at exec time.
	got, err := getenv.Call(ctx, "PATH")
	if err != nil {
		t.Fatalf("call getenv: %v", err)
	}
	if want := os.Getenv("PATH"); got != want {
		t.Errorf("getenv(PATH) = %v, want %q", got, want)
	}

	// A miss returns NULL, lifted as nil rather than "".
	got, err = getenv.Call(ctx, "FFI_RUNTIME_NOT_SET_FOR_SURE")
	if err != nil {
		t.Fatalf("call getenv: %v", err)
	}
	if got != nil {
		t.Errorf("getenv(miss) = %v, want nil", got)
	}
}

func TestLibcQsortCallback(t *testing.T) {
	rt, lib := openLibc(t)
	ctx := context.Background()

	qsort, err := lib.Bind(FuncDecl{
		Name: "qsort",
		Params: ctypes.Params(
			ctypes.Ptr(nil),
			ctypes.U64{},
			ctypes.U64{},
			ctypes.Ptr(nil),
		),
		Ret: nil,
	})
	if err != nil {
		t.Fatalf("bind qsort: %v", err)
	}

	cmpSig := ctypes.NewFunc(ctypes.S32{}, ctypes.Params(ctypes.Ptr(nil), ctypes.Ptr(nil))...)
	cmp, err := rt.NewCallback(cmpSig, func(a, b uintptr) int32 {
		va := *(*int32)(unsafe.Pointer(a))
		vb := *(*int32)(unsafe.Pointer(b))
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	})
	if err != nil {
		t.Fatalf("create comparator: %v", err)
	}
	defer cmp.Invalidate()

	vals := []int32{5, 2, 9, 1, 7, 2}
	_, err = qsort.Call(ctx,
		uintptr(unsafe.Pointer(&vals[0])),
		uint64(len(vals)),
		uint64(unsafe.Sizeof(vals[0])),
		cmp.Ptr(),
	)
	goruntime.KeepAlive(vals)
	if err != nil {
		t.Fatalf("call qsort: %v", err)
	}

	if !sort.SliceIsSorted(vals, func(i, j int) bool { return vals[i] < vals[j] }) {
		t.Errorf("not sorted: %v", vals)
	}
}

func TestLibcStdoutGlobal(t *testing.T) {
	_, lib := openLibc(t)

	var g *Global
	var err error
	for _, name := range []string{"stdout", "__stdoutp"} {
		g, err = lib.Global(GlobalDecl{Name: name, Type: ctypes.Ptr(nil)})
		if err == nil {
			break
		}
	}
	if err != nil {
		t.Skipf("no stdout data symbol: %v", err)
	}

	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.(uintptr) == 0 {
		t.Error("stdout FILE* is NULL")
	}
}

func TestBindAllMissingSymbols(t *testing.T) {
	_, lib := openLibc(t)

	err := lib.BindAll(
		FuncDecl{Name: "strlen", Params: ctypes.Params(&ctypes.CString{}), Ret: ctypes.U64{}},
		FuncDecl{Name: "ffi_no_such_symbol_xyz", Ret: ctypes.S32{}},
	)
	if err == nil {
		t.Fatal("expected missing symbol report")
	}
	var me *errors.MissingSymbolsError
	if !goerrors.As(err, &me) {
		t.Fatalf("error = %T, want MissingSymbolsError", err)
	}
	if len(me.Symbols) != 1 || me.Symbols[0].Symbol != "ffi_no_such_symbol_xyz" {
		t.Errorf("missing = %+v", me.Symbols)
	}

	// the resolvable declaration bound anyway
	if _, ok := lib.Proc("strlen"); !ok {
		t.Error("strlen not cached after BindAll")
	}
}

func TestBindAliasSymbol(t *testing.T) {
	_, lib := openLibc(t)
	ctx := context.Background()

	// Bind strlen under a different Go-side name.
	length, err := lib.Bind(FuncDecl{
		Name:   "length",
		Symbol: "strlen",
		Params: ctypes.Params(&ctypes.CString{}),
		Ret:    ctypes.U64{},
	})
	if err != nil {
		t.Fatalf("bind alias: %v", err)
	}
	if length.Name() != "length" {
		t.Errorf("name = %q, want length", length.Name())
	}

	got, err := length.Call(ctx, "abc")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != uint64(3) {
		t.Errorf("length(abc) = %v, want 3", got)
	}

	if _, ok := lib.Proc("length"); !ok {
		t.Error("alias not cached under its binding name")
	}
}

func TestFuncSignatureCache(t *testing.T) {
	_, lib := openLibc(t)

	sig := ctypes.NewFunc(ctypes.U64{}, ctypes.Params(&ctypes.CString{})...)
	p1, err := lib.Func("strlen", sig)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	p2, err := lib.Func("strlen", sig)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if p1 != p2 {
		t.Error("same signature value did not hit the cache")
	}

	other := ctypes.NewFunc(ctypes.U64{}, ctypes.Params(&ctypes.CString{})...)
	p3, err := lib.Func("strlen", other)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if p3 == p1 {
		t.Error("different signature value returned the cached proc")
	}
}

func TestProcessAllocator(t *testing.T) {
	rt := New()
	defer rt.Close()

	alloc, err := rt.Allocator()
	if err != nil {
		t.Skipf("no process allocator: %v", err)
	}

	ptr, err := alloc.Alloc(64, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	defer alloc.Free(ptr, 64, 8)

	mem := engine.NativeMemory{}
	b, err := mem.Read(ptr, 64)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %#x, want zeroed allocation", i, v)
		}
	}

	if err := mem.WriteU64(ptr, 0xdeadbeef); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := mem.ReadU64(ptr)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got != 0xdeadbeef {
		t.Errorf("read back %#x", got)
	}
}

func TestBindValidation(t *testing.T) {
	_, lib := openLibc(t)

	// rw aggregates are not a thing; the declaration must not bind.
	point, err := ctypes.NewStruct("point",
		ctypes.Field{Name: "x", Type: ctypes.S64{}},
	)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	_, err = lib.Bind(FuncDecl{
		Name:   "strlen",
		Params: []ctypes.Param{{Type: point, RW: true}},
		Ret:    ctypes.U64{},
	})
	if err == nil {
		t.Error("rw struct parameter bound")
	}

	// array returns have no calling convention
	arr, err := ctypes.NewArray(ctypes.S32{}, 4)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	_, err = lib.Bind(FuncDecl{Name: "strlen", Ret: arr})
	if err == nil {
		t.Error("array return bound")
	}

	// empty declaration
	_, err = lib.Bind(FuncDecl{})
	if err == nil {
		t.Error("empty declaration bound")
	}
}
