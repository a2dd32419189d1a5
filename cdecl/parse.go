package cdecl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/runtime"
)

// keywords cannot name declarations, fields or typedefs.
var keywords = map[string]bool{
	"typedef": true, "struct": true, "union": true, "extern": true,
	"const": true, "rw": true,
	"void": true, "bool": true, "_Bool": true,
	"char": true, "wchar": true, "wchar_t": true,
	"signed": true, "unsigned": true, "short": true, "int": true,
	"long": true, "float": true, "double": true,
}

var stdintTypes = map[string]ctypes.Type{
	"int8_t":   ctypes.S8{},
	"uint8_t":  ctypes.U8{},
	"int16_t":  ctypes.S16{},
	"uint16_t": ctypes.U16{},
	"int32_t":  ctypes.S32{},
	"uint32_t": ctypes.U32{},
	"int64_t":  ctypes.S64{},
	"uint64_t": ctypes.U64{},
}

func parseErr(line int, format string, args ...any) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Detail("line %d: %s", line, fmt.Sprintf(format, args...)).
		Build()
}

func unsupportedAt(line int, what string) error {
	return errors.New(errors.PhaseParse, errors.KindUnsupported).
		Detail("line %d: %s", line, what).
		Build()
}

func notDeclaredAt(line int, what string) error {
	return errors.New(errors.PhaseParse, errors.KindNotFound).
		Detail("line %d: %s is not declared", line, what).
		Build()
}

type parser struct {
	toks []token
	pos  int
	file *File
}

func (p *parser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) next() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	t := &p.toks[p.pos]
	p.pos++
	return t
}

// line is the line of the next token, or of the last one at EOF.
func (p *parser) line() int {
	if t := p.peek(); t != nil {
		return t.line
	}
	if n := len(p.toks); n > 0 {
		return p.toks[n-1].line
	}
	return 1
}

func (p *parser) accept(punct string) bool {
	t := p.peek()
	if t == nil || t.kind != tokPunct || t.value != punct {
		return false
	}
	p.pos++
	return true
}

func (p *parser) expect(punct string) error {
	t := p.next()
	if t == nil {
		return parseErr(p.line(), "expected %q, got end of input", punct)
	}
	if t.kind != tokPunct || t.value != punct {
		return parseErr(t.line, "expected %q, got %q", punct, t.value)
	}
	return nil
}

func (p *parser) acceptIdent(kw string) bool {
	t := p.peek()
	if t == nil || t.kind != tokIdent || t.value != kw {
		return false
	}
	p.pos++
	return true
}

func (p *parser) expectIdent() (*token, error) {
	t := p.next()
	if t == nil {
		return nil, parseErr(p.line(), "expected identifier, got end of input")
	}
	if t.kind != tokIdent {
		return nil, parseErr(t.line, "expected identifier, got %q", t.value)
	}
	return t, nil
}

func (p *parser) expectName(what string) (*token, error) {
	t, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if keywords[t.value] {
		return nil, parseErr(t.line, "cannot use keyword %q as a %s name", t.value, what)
	}
	return t, nil
}

func (p *parser) parseFile() error {
	for p.peek() != nil {
		if err := p.parseDecl(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseDecl() error {
	switch {
	case p.acceptIdent("typedef"):
		return p.parseTypedef()
	case p.peekAggregateDef():
		return p.parseAggregateDef()
	default:
		return p.parseObjectDecl()
	}
}

// peekAggregateDef reports whether the next tokens begin a struct or
// union definition, as opposed to a reference in a type position.
func (p *parser) peekAggregateDef() bool {
	t := p.peek()
	if t == nil || t.kind != tokIdent || (t.value != "struct" && t.value != "union") {
		return false
	}
	if p.pos+2 >= len(p.toks) {
		return false
	}
	name := p.toks[p.pos+1]
	brace := p.toks[p.pos+2]
	return name.kind == tokIdent && brace.kind == tokPunct && brace.value == "{"
}

func (p *parser) parseTypedef() error {
	typ, err := p.parseType()
	if err != nil {
		return err
	}
	if typ == nil {
		return parseErr(p.line(), "cannot typedef void")
	}
	name, err := p.expectName("typedef")
	if err != nil {
		return err
	}
	typ, err = p.arraySuffix(typ)
	if err != nil {
		return err
	}
	if _, dup := p.file.Typedefs[name.value]; dup {
		return parseErr(name.line, "typedef %q redefined", name.value)
	}
	p.file.Typedefs[name.value] = typ
	return p.expect(";")
}

func (p *parser) parseAggregateDef() error {
	kw, _ := p.expectIdent()
	name, err := p.expectName(kw.value)
	if err != nil {
		return err
	}
	if err := p.expect("{"); err != nil {
		return err
	}

	var fields []ctypes.Field
	for !p.accept("}") {
		fs, err := p.parseFields()
		if err != nil {
			return err
		}
		fields = append(fields, fs...)
	}

	if kw.value == "struct" {
		if _, dup := p.file.Structs[name.value]; dup {
			return parseErr(name.line, "struct %q redefined", name.value)
		}
		st, err := ctypes.NewStruct(name.value, fields...)
		if err != nil {
			return err
		}
		p.file.Structs[name.value] = st
	} else {
		if _, dup := p.file.Unions[name.value]; dup {
			return parseErr(name.line, "union %q redefined", name.value)
		}
		un, err := ctypes.NewUnion(name.value, fields...)
		if err != nil {
			return err
		}
		p.file.Unions[name.value] = un
	}
	return p.expect(";")
}

// parseFields reads one field line: a type followed by one or more
// comma-separated declarators, each with an optional array suffix.
func (p *parser) parseFields() ([]ctypes.Field, error) {
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, parseErr(p.line(), "fields cannot be void")
	}

	var fields []ctypes.Field
	for {
		name, err := p.expectName("field")
		if err != nil {
			return nil, err
		}
		ft, err := p.arraySuffix(typ)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ctypes.Field{Name: name.value, Type: ft})
		if !p.accept(",") {
			break
		}
	}
	return fields, p.expect(";")
}

func (p *parser) parseObjectDecl() error {
	p.acceptIdent("extern")

	typ, err := p.parseType()
	if err != nil {
		return err
	}
	name, err := p.expectName("declaration")
	if err != nil {
		return err
	}
	symbol, err := p.aliasSuffix()
	if err != nil {
		return err
	}

	if p.accept("(") {
		return p.parseFuncDecl(typ, name, symbol)
	}
	return p.parseGlobalDecl(typ, name, symbol)
}

// aliasSuffix reads an optional @symbol alias after a declared name.
func (p *parser) aliasSuffix() (string, error) {
	if !p.accept("@") {
		return "", nil
	}
	sym, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	return sym.value, nil
}

func (p *parser) parseFuncDecl(ret ctypes.Type, name *token, symbol string) error {
	if _, ok := ret.(*ctypes.Array); ok {
		return parseErr(name.line, "functions cannot return arrays")
	}

	params, err := p.parseParams()
	if err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}

	p.file.Funcs = append(p.file.Funcs, runtime.FuncDecl{
		Name:   name.value,
		Symbol: symbol,
		Params: params,
		Ret:    ret,
	})
	return nil
}

func (p *parser) parseParams() ([]ctypes.Param, error) {
	if p.accept(")") {
		return nil, nil
	}
	// (void) is an empty parameter list, not one void parameter.
	if t := p.peek(); t != nil && t.kind == tokIdent && t.value == "void" {
		if n := p.pos + 1; n < len(p.toks) && p.toks[n].kind == tokPunct && p.toks[n].value == ")" {
			p.pos += 2
			return nil, nil
		}
	}

	var params []ctypes.Param
	for {
		if t := p.peek(); t != nil && t.kind == tokEllipsis {
			return nil, unsupportedAt(t.line, "variadic functions")
		}
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if !p.accept(",") {
			break
		}
	}
	return params, p.expect(")")
}

func (p *parser) parseParam() (ctypes.Param, error) {
	var param ctypes.Param
	line := p.line()
	if p.acceptIdent("rw") {
		param.RW = true
	}

	typ, err := p.parseType()
	if err != nil {
		return param, err
	}
	if typ == nil {
		return param, parseErr(line, "parameters cannot be void")
	}

	if t := p.peek(); t != nil && t.kind == tokIdent && !keywords[t.value] {
		p.pos++
		param.Name = t.value
	}

	// Arrays decay to element pointers, as in C parameter adjustment.
	typ, err = p.arraySuffix(typ)
	if err != nil {
		return param, err
	}
	if arr, ok := typ.(*ctypes.Array); ok {
		typ = ctypes.Ptr(arr.Elem)
	}

	param.Type = typ
	if param.RW && !ctypes.IsScalar(typ) {
		return param, unsupportedAt(line, "rw on "+ctypes.Name(typ)+" parameters")
	}
	return param, nil
}

func (p *parser) parseGlobalDecl(typ ctypes.Type, name *token, symbol string) error {
	if typ == nil {
		return parseErr(name.line, "globals cannot be void")
	}
	typ, err := p.arraySuffix(typ)
	if err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}

	p.file.Globals = append(p.file.Globals, runtime.GlobalDecl{
		Name:   name.value,
		Symbol: symbol,
		Type:   typ,
	})
	return nil
}

// arraySuffix wraps typ in array descriptors for each [N] that
// follows. Inner dimensions bind tighter: m[2][3] is two arrays of
// three elements.
func (p *parser) arraySuffix(typ ctypes.Type) (ctypes.Type, error) {
	if !p.accept("[") {
		return typ, nil
	}
	t := p.next()
	if t == nil {
		return nil, parseErr(p.line(), "expected array length, got end of input")
	}
	if t.kind != tokNumber {
		return nil, parseErr(t.line, "expected array length, got %q", t.value)
	}
	n, err := strconv.Atoi(t.value)
	if err != nil {
		return nil, parseErr(t.line, "array length %q: %v", t.value, err)
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	elem, err := p.arraySuffix(typ)
	if err != nil {
		return nil, err
	}
	return ctypes.NewArray(elem, n)
}

type baseClass int

const (
	basePlain baseClass = iota
	baseVoid
	baseChar  // plain char: int behind no star, string behind one
	baseUChar // unsigned char: byte buffer behind one star
	baseWide  // wchar: UTF-16 string behind one star, no value form
)

type baseType struct {
	typ   ctypes.Type
	class baseClass
	line  int
}

// parseType parses a type expression: optional const, a base type,
// then pointer stars. A nil result with nil error is void.
func (p *parser) parseType() (ctypes.Type, error) {
	p.acceptIdent("const")

	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}

	stars := 0
	for p.accept("*") {
		stars++
		p.acceptIdent("const")
	}

	return base.apply(stars)
}

func (p *parser) parseBase() (baseType, error) {
	t, err := p.expectIdent()
	if err != nil {
		return baseType{}, err
	}

	switch t.value {
	case "void":
		return baseType{class: baseVoid, line: t.line}, nil
	case "bool", "_Bool":
		return baseType{typ: ctypes.Bool{}, line: t.line}, nil
	case "float":
		return baseType{typ: ctypes.F32{}, line: t.line}, nil
	case "double":
		return baseType{typ: ctypes.F64{}, line: t.line}, nil
	case "char":
		return baseType{class: baseChar, line: t.line}, nil
	case "wchar", "wchar_t":
		return baseType{class: baseWide, line: t.line}, nil
	case "signed", "unsigned", "short", "int", "long":
		return p.parseIntBase(t)
	case "struct", "union":
		return p.parseAggregateRef(t)
	}

	if typ, ok := stdintTypes[t.value]; ok {
		// uint8_t* keeps byte-buffer semantics, like unsigned char*.
		if t.value == "uint8_t" {
			return baseType{class: baseUChar, line: t.line}, nil
		}
		return baseType{typ: typ, line: t.line}, nil
	}
	if typ, ok := p.file.Typedefs[t.value]; ok {
		return baseType{typ: typ, line: t.line}, nil
	}
	return baseType{}, notDeclaredAt(t.line, fmt.Sprintf("type %q", t.value))
}

// parseIntBase resolves multiword integer types (unsigned long long,
// short int, ...). first is the keyword already consumed.
func (p *parser) parseIntBase(first *token) (baseType, error) {
	words := []string{first.value}
	for {
		t := p.peek()
		if t == nil || t.kind != tokIdent {
			break
		}
		switch t.value {
		case "signed", "unsigned", "char", "short", "int", "long":
			words = append(words, t.value)
			p.pos++
			continue
		}
		break
	}

	var signed, unsigned, char, short, plainInt bool
	longs := 0
	for _, w := range words {
		switch w {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "char":
			char = true
		case "short":
			short = true
		case "int":
			plainInt = true
		case "long":
			longs++
		}
	}

	if t := p.peek(); t != nil && t.kind == tokIdent && t.value == "double" && longs > 0 {
		return baseType{}, unsupportedAt(first.line, "long double")
	}

	bad := func() (baseType, error) {
		return baseType{}, parseErr(first.line, "invalid type %q", strings.Join(words, " "))
	}
	if signed && unsigned {
		return bad()
	}

	switch {
	case char:
		if short || plainInt || longs > 0 {
			return bad()
		}
		if unsigned {
			return baseType{class: baseUChar, line: first.line}, nil
		}
		// signed char is an explicit small integer, not text.
		return baseType{typ: ctypes.S8{}, line: first.line}, nil
	case short:
		if longs > 0 {
			return bad()
		}
		return intBase(first.line, unsigned, ctypes.U16{}, ctypes.S16{}), nil
	case longs == 1 || longs == 2:
		return intBase(first.line, unsigned, ctypes.U64{}, ctypes.S64{}), nil
	case longs > 2:
		return bad()
	default:
		return intBase(first.line, unsigned, ctypes.U32{}, ctypes.S32{}), nil
	}
}

func intBase(line int, unsigned bool, u, s ctypes.Type) baseType {
	if unsigned {
		return baseType{typ: u, line: line}
	}
	return baseType{typ: s, line: line}
}

// parseAggregateRef resolves "struct name" or "union name" against
// the definitions seen so far. There are no forward references; a
// self-referential pointer field must be declared void*.
func (p *parser) parseAggregateRef(kw *token) (baseType, error) {
	name, err := p.expectIdent()
	if err != nil {
		return baseType{}, err
	}
	if kw.value == "struct" {
		if st, ok := p.file.Structs[name.value]; ok {
			return baseType{typ: st, line: kw.line}, nil
		}
	} else {
		if un, ok := p.file.Unions[name.value]; ok {
			return baseType{typ: un, line: kw.line}, nil
		}
	}
	return baseType{}, notDeclaredAt(name.line, kw.value+" "+name.value)
}

func (b baseType) apply(stars int) (ctypes.Type, error) {
	var typ ctypes.Type
	switch b.class {
	case baseVoid:
		if stars == 0 {
			return nil, nil
		}
		typ = ctypes.Ptr(nil)
		stars--
	case baseChar:
		if stars == 0 {
			return ctypes.S8{}, nil
		}
		typ = &ctypes.CString{}
		stars--
	case baseUChar:
		if stars == 0 {
			return ctypes.U8{}, nil
		}
		typ = &ctypes.Bytes{}
		stars--
	case baseWide:
		if stars == 0 {
			return nil, unsupportedAt(b.line, "wchar as a value type (only wchar* strings)")
		}
		typ = &ctypes.CString{Encoding: ctypes.UTF16}
		stars--
	default:
		typ = b.typ
	}
	for ; stars > 0; stars-- {
		typ = ctypes.Ptr(typ)
	}
	return typ, nil
}
