package transcoder

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/errors"
)

// Compiler maps Go types onto C type descriptors once, producing a
// CompiledType that carries both layouts side by side. Results are
// cached; scalar descriptors compare by value, aggregates by pointer
// identity.
type Compiler struct {
	layout *LayoutCalculator
	cache  sync.Map // cacheKey -> *CompiledType
}

type cacheKey struct {
	goType reflect.Type
	desc   ctypes.Type
}

func NewCompiler() *Compiler {
	return &Compiler{
		layout: NewLayoutCalculator(),
	}
}

func (c *Compiler) Compile(desc ctypes.Type, goType reflect.Type) (*CompiledType, error) {
	if desc == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			CType("void").
			Detail("void has no value mapping").
			Build()
	}
	if goType == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("Go type cannot be nil").
			Build()
	}

	// Callers hand in &struct for aggregates; the pointer is not part of
	// the mapping unless the descriptor itself is a pointer.
	if goType.Kind() == reflect.Ptr && isAggregate(desc) {
		goType = goType.Elem()
	}

	key := cacheKey{desc: desc, goType: goType}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*CompiledType), nil
	}

	ct, err := c.compile(desc, goType, nil)
	if err != nil {
		return nil, err
	}

	c.cache.Store(key, ct)
	return ct, nil
}

func isAggregate(t ctypes.Type) bool {
	switch t.(type) {
	case *ctypes.Struct, *ctypes.Union, *ctypes.Array:
		return true
	}
	return false
}

func (c *Compiler) compile(desc ctypes.Type, goType reflect.Type, path []string) (*CompiledType, error) {
	info, err := c.layout.Calculate(desc)
	if err != nil {
		return nil, err
	}

	switch t := desc.(type) {
	case ctypes.Bool:
		return c.compileScalar(KindBool, desc, goType, info, path)
	case ctypes.U8:
		return c.compileScalar(KindU8, desc, goType, info, path)
	case ctypes.S8:
		return c.compileScalar(KindS8, desc, goType, info, path)
	case ctypes.U16:
		return c.compileScalar(KindU16, desc, goType, info, path)
	case ctypes.S16:
		return c.compileScalar(KindS16, desc, goType, info, path)
	case ctypes.U32:
		return c.compileScalar(KindU32, desc, goType, info, path)
	case ctypes.S32:
		return c.compileScalar(KindS32, desc, goType, info, path)
	case ctypes.U64:
		return c.compileScalar(KindU64, desc, goType, info, path)
	case ctypes.S64:
		return c.compileScalar(KindS64, desc, goType, info, path)
	case ctypes.F32:
		return c.compileScalar(KindF32, desc, goType, info, path)
	case ctypes.F64:
		return c.compileScalar(KindF64, desc, goType, info, path)
	case *ctypes.Pointer:
		return c.compileWord(KindPointer, desc, goType, info, path)
	case *ctypes.Func:
		return c.compileWord(KindFunc, desc, goType, info, path)
	case *ctypes.CString:
		return c.compileCString(t, goType, info, path)
	case *ctypes.Struct:
		return c.compileStruct(t, goType, info, path)
	case *ctypes.Union:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			CType(t.String()).
			Detail("unions have no Go struct mapping; use a StructValue").
			Build()
	case *ctypes.Array:
		return c.compileArray(t, goType, info, path)
	case *ctypes.Bytes:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			CType(t.String()).
			Detail("byte views are parameter-only; use a pointer field").
			Build()
	default:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported descriptor: %T", desc).
			Build()
	}
}

func (c *Compiler) compileScalar(kind TypeKind, desc ctypes.Type, goType reflect.Type, info LayoutInfo, path []string) (*CompiledType, error) {
	if err := validateScalar(kind, goType, path); err != nil {
		return nil, err
	}

	return &CompiledType{
		GoType: goType,
		Desc:   desc,
		GoSize: goType.Size(),
		Size:   info.Size,
		Align:  info.Align,
		Kind:   kind,
	}, nil
}

func validateScalar(kind TypeKind, goType reflect.Type, path []string) error {
	var valid bool
	var expected string

	switch kind {
	case KindBool:
		valid = goType.Kind() == reflect.Bool
		expected = "bool"
	case KindU8:
		valid = goType.Kind() == reflect.Uint8
		expected = "uint8"
	case KindS8:
		valid = goType.Kind() == reflect.Int8
		expected = "int8"
	case KindU16:
		valid = goType.Kind() == reflect.Uint16
		expected = "uint16"
	case KindS16:
		valid = goType.Kind() == reflect.Int16
		expected = "int16"
	case KindU32:
		valid = goType.Kind() == reflect.Uint32
		expected = "uint32"
	case KindS32:
		valid = goType.Kind() == reflect.Int32
		expected = "int32"
	case KindU64:
		// uint is 64-bit on every supported target
		valid = goType.Kind() == reflect.Uint64 || goType.Kind() == reflect.Uint
		expected = "uint64"
	case KindS64:
		valid = goType.Kind() == reflect.Int64 || goType.Kind() == reflect.Int
		expected = "int64"
	case KindF32:
		valid = goType.Kind() == reflect.Float32
		expected = "float32"
	case KindF64:
		valid = goType.Kind() == reflect.Float64
		expected = "float64"
	}

	if !valid {
		return errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), expected)
	}
	return nil
}

// compileWord handles descriptors stored as a raw machine word: typed
// and opaque pointers plus function pointers. Addresses never carry a
// Go pointer type inside an aggregate since nothing keeps the referent
// alive once it is written out.
func (c *Compiler) compileWord(kind TypeKind, desc ctypes.Type, goType reflect.Type, info LayoutInfo, path []string) (*CompiledType, error) {
	switch goType.Kind() {
	case reflect.Uintptr, reflect.UnsafePointer:
	default:
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "uintptr or unsafe.Pointer")
	}

	return &CompiledType{
		GoType: goType,
		Desc:   desc,
		GoSize: goType.Size(),
		Size:   info.Size,
		Align:  info.Align,
		Kind:   kind,
	}, nil
}

func (c *Compiler) compileCString(t *ctypes.CString, goType reflect.Type, info LayoutInfo, path []string) (*CompiledType, error) {
	if goType.Kind() != reflect.String {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "string")
	}

	return &CompiledType{
		GoType:   goType,
		Desc:     t,
		GoSize:   goType.Size(),
		Size:     info.Size,
		Align:    info.Align,
		Encoding: t.Encoding,
		Kind:     KindCString,
	}, nil
}

func (c *Compiler) compileStruct(s *ctypes.Struct, goType reflect.Type, info LayoutInfo, path []string) (*CompiledType, error) {
	if goType.Kind() != reflect.Struct {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "struct")
	}

	fields := make([]CompiledField, 0, len(s.Fields))
	for _, cf := range s.Fields {
		goField, found := findGoField(goType, cf.Name)
		if !found {
			return nil, errors.FieldMissing(errors.PhaseCompile, path, cf.Name)
		}

		fieldPath := append(append([]string{}, path...), cf.Name)
		fieldType, err := c.compile(cf.Type, goField.Type, fieldPath)
		if err != nil {
			return nil, err
		}

		fields = append(fields, CompiledField{
			Type:     fieldType,
			Name:     goField.Name,
			CName:    cf.Name,
			GoOffset: goField.Offset,
			Offset:   info.FieldOffs[cf.Name],
			Index:    goField.Index[0],
		})
	}

	return &CompiledType{
		GoType: goType,
		Desc:   s,
		GoSize: goType.Size(),
		Size:   info.Size,
		Align:  info.Align,
		Fields: fields,
		Kind:   KindStruct,
	}, nil
}

func (c *Compiler) compileArray(a *ctypes.Array, goType reflect.Type, info LayoutInfo, path []string) (*CompiledType, error) {
	if goType.Kind() != reflect.Array {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "array")
	}
	if goType.Len() != a.Len {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			Path(path...).
			GoType(goType.String()).
			CType(a.String()).
			Detail("array length mismatch: Go %d, C %d", goType.Len(), a.Len).
			Build()
	}

	elemPath := append(append([]string{}, path...), "["+strconv.Itoa(a.Len)+"]")
	elemType, err := c.compile(a.Elem, goType.Elem(), elemPath)
	if err != nil {
		return nil, err
	}

	return &CompiledType{
		GoType:   goType,
		Desc:     a,
		GoSize:   goType.Size(),
		Size:     info.Size,
		Align:    info.Align,
		ElemType: elemType,
		Len:      a.Len,
		Kind:     KindArray,
	}, nil
}

// findGoField matches by: 1) c:"name" tag, 2) case-insensitive,
// 3) snake_case conversion of the Go name.
func findGoField(goType reflect.Type, cName string) (reflect.StructField, bool) {
	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)
		if !field.IsExported() {
			continue
		}

		if tag := field.Tag.Get("c"); tag != "" {
			if tag == "-" {
				continue
			}
			if tag == cName {
				return field, true
			}
			continue
		}

		if strings.EqualFold(field.Name, cName) {
			return field, true
		}

		if toSnakeCase(field.Name) == cName {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// break on lower-to-upper and at the end of an acronym run
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				result.WriteByte('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
