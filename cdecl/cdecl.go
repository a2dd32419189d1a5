package cdecl

import (
	"fmt"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/runtime"
)

// File holds everything a piece of declaration text declared. Funcs
// and Globals keep source order, ready for Library.Bind/BindAll and
// Library.Global.
type File struct {
	Typedefs map[string]ctypes.Type
	Structs  map[string]*ctypes.Struct
	Unions   map[string]*ctypes.Union
	Funcs    []runtime.FuncDecl
	Globals  []runtime.GlobalDecl
}

// ParseFile parses declaration text. Declarations may reference any
// struct, union or typedef declared earlier in the same text.
func ParseFile(src string) (*File, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, file: newFile()}
	if err := p.parseFile(); err != nil {
		return nil, err
	}
	return p.file, nil
}

// ParseFunc parses text declaring exactly one function. Type
// declarations may accompany it:
//
//	decl, err := cdecl.ParseFunc(`
//		struct point { long x; long y; };
//		long hypot2(struct point* p);
//	`)
func ParseFunc(src string) (runtime.FuncDecl, error) {
	f, err := ParseFile(src)
	if err != nil {
		return runtime.FuncDecl{}, err
	}
	if len(f.Funcs) != 1 {
		return runtime.FuncDecl{}, errors.InvalidInput(errors.PhaseParse,
			fmt.Sprintf("expected one function declaration, found %d", len(f.Funcs)))
	}
	return f.Funcs[0], nil
}

// ParseType parses a single type expression built from the built-in
// types, such as "unsigned long" or "char**". A nil result is void.
// Struct, union and typedef names need ParseFile, which carries the
// declarations to resolve them against.
func ParseType(src string) (ctypes.Type, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, file: newFile()}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	typ, err = p.arraySuffix(typ)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, parseErr(t.line, "unexpected %q after type", t.value)
	}
	return typ, nil
}

func newFile() *File {
	return &File{
		Typedefs: make(map[string]ctypes.Type),
		Structs:  make(map[string]*ctypes.Struct),
		Unions:   make(map[string]*ctypes.Union),
	}
}
