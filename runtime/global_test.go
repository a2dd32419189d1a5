package runtime

import (
	goruntime "runtime"
	"testing"
	"unsafe"

	"github.com/wippyai/ffi-runtime/ctypes"
)

// The globals under test live in Go memory; a Global only needs an
// address, so these tests run without loading any library.

func TestGlobalScalar(t *testing.T) {
	rt := New()
	defer rt.Close()

	cell := int32(7)
	g := &Global{
		rt:     rt,
		name:   "cell",
		symbol: "cell",
		addr:   uintptr(unsafe.Pointer(&cell)),
		typ:    ctypes.S32{},
	}

	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != int32(7) {
		t.Errorf("get = %v (%T), want int32 7", got, got)
	}

	if err := g.Set(int32(42)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cell != 42 {
		t.Errorf("cell = %d after set, want 42", cell)
	}
	goruntime.KeepAlive(&cell)
}

func TestGlobalFloat(t *testing.T) {
	rt := New()
	defer rt.Close()

	cell := 1.5
	g := &Global{
		rt:   rt,
		name: "cell",
		addr: uintptr(unsafe.Pointer(&cell)),
		typ:  ctypes.F64{},
	}

	if err := g.Set(2.25); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 2.25 {
		t.Errorf("get = %v, want 2.25", got)
	}
	goruntime.KeepAlive(&cell)
}

func TestGlobalStructView(t *testing.T) {
	rt := New()
	defer rt.Close()

	point, err := ctypes.NewStruct("point",
		ctypes.Field{Name: "x", Type: ctypes.S64{}},
		ctypes.Field{Name: "y", Type: ctypes.S64{}},
	)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}

	buf := make([]byte, 16)
	g := &Global{
		rt:   rt,
		name: "origin",
		addr: uintptr(unsafe.Pointer(&buf[0])),
		typ:  point,
	}

	view, err := g.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if err := view.SetField("x", int64(11)); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if err := view.SetField("y", int64(-4)); err != nil {
		t.Fatalf("set field: %v", err)
	}

	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("get = %T, want map", got)
	}
	if m["x"] != int64(11) || m["y"] != int64(-4) {
		t.Errorf("get = %v, want {11 -4}", m)
	}
	goruntime.KeepAlive(buf)
}

func TestGlobalCString(t *testing.T) {
	rt := New()
	defer rt.Close()

	msg := append([]byte("native"), 0)
	cell := uintptr(unsafe.Pointer(&msg[0]))
	g := &Global{
		rt:   rt,
		name: "banner",
		addr: uintptr(unsafe.Pointer(&cell)),
		typ:  &ctypes.CString{},
	}

	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "native" {
		t.Errorf("get = %v, want %q", got, "native")
	}

	// A NULL char* lifts as nil, not as an empty string.
	cell = 0
	got, err = g.Get()
	if err != nil {
		t.Fatalf("get null: %v", err)
	}
	if got != nil {
		t.Errorf("get = %v, want nil for NULL", got)
	}
	goruntime.KeepAlive(msg)
	goruntime.KeepAlive(&cell)
}

func TestGlobalSetWholeStruct(t *testing.T) {
	rt := New()
	defer rt.Close()

	pair, err := ctypes.NewStruct("pair",
		ctypes.Field{Name: "lo", Type: ctypes.U32{}},
		ctypes.Field{Name: "hi", Type: ctypes.U32{}},
	)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}

	buf := make([]byte, 8)
	g := &Global{
		rt:   rt,
		name: "range",
		addr: uintptr(unsafe.Pointer(&buf[0])),
		typ:  pair,
	}

	if err := g.Set(map[string]any{"lo": uint32(3), "hi": uint32(9)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := g.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m := got.(map[string]any)
	if m["lo"] != uint32(3) || m["hi"] != uint32(9) {
		t.Errorf("get = %v, want {3 9}", m)
	}
	goruntime.KeepAlive(buf)
}
