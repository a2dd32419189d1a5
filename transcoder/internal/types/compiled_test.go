package types

import (
	"reflect"
	"testing"
)

func TestCompiledTypeIsScalar(t *testing.T) {
	scalarType := &CompiledType{Kind: KindU32}
	if !scalarType.IsScalar() {
		t.Error("u32 should be scalar")
	}

	stringType := &CompiledType{Kind: KindCString}
	if stringType.IsScalar() {
		t.Error("cstring should not be scalar")
	}
}

func TestCompiledTypeIsPure(t *testing.T) {
	t.Run("scalar_is_pure", func(t *testing.T) {
		ct := &CompiledType{Kind: KindU32}
		if !ct.IsPure() {
			t.Error("scalar should be pure")
		}
	})

	t.Run("cstring_not_pure", func(t *testing.T) {
		ct := &CompiledType{Kind: KindCString}
		if ct.IsPure() {
			t.Error("cstring should not be pure")
		}
	})

	t.Run("bytes_not_pure", func(t *testing.T) {
		ct := &CompiledType{Kind: KindBytes}
		if ct.IsPure() {
			t.Error("bytes should not be pure")
		}
	})

	t.Run("pointer_is_pure", func(t *testing.T) {
		ct := &CompiledType{Kind: KindPointer}
		if !ct.IsPure() {
			t.Error("pointer should be pure")
		}
	})

	t.Run("pure_struct", func(t *testing.T) {
		ct := &CompiledType{
			Kind: KindStruct,
			Fields: []Field{
				{Type: &CompiledType{Kind: KindU32}},
				{Type: &CompiledType{Kind: KindBool}},
			},
		}
		if !ct.IsPure() {
			t.Error("struct with only scalars should be pure")
		}
	})

	t.Run("impure_struct", func(t *testing.T) {
		ct := &CompiledType{
			Kind: KindStruct,
			Fields: []Field{
				{Type: &CompiledType{Kind: KindU32}},
				{Type: &CompiledType{Kind: KindCString}},
			},
		}
		if ct.IsPure() {
			t.Error("struct with cstring should not be pure")
		}
	})

	t.Run("pure_union", func(t *testing.T) {
		ct := &CompiledType{
			Kind: KindUnion,
			Fields: []Field{
				{Type: &CompiledType{Kind: KindS64}},
				{Type: &CompiledType{Kind: KindF64}},
			},
		}
		if !ct.IsPure() {
			t.Error("union with only scalars should be pure")
		}
	})

	t.Run("pure_array", func(t *testing.T) {
		ct := &CompiledType{
			Kind:     KindArray,
			ElemType: &CompiledType{Kind: KindF32},
		}
		if !ct.IsPure() {
			t.Error("array of f32 should be pure")
		}
	})

	t.Run("impure_array", func(t *testing.T) {
		ct := &CompiledType{
			Kind:     KindArray,
			ElemType: &CompiledType{Kind: KindCString},
		}
		if ct.IsPure() {
			t.Error("array of cstring should not be pure")
		}
	})

	t.Run("nested_impure_struct", func(t *testing.T) {
		inner := &CompiledType{
			Kind:   KindStruct,
			Fields: []Field{{Type: &CompiledType{Kind: KindCString}}},
		}
		ct := &CompiledType{
			Kind:   KindStruct,
			Fields: []Field{{Type: inner}},
		}
		if ct.IsPure() {
			t.Error("struct nesting a cstring should not be pure")
		}
	})
}

func TestFieldStructure(t *testing.T) {
	field := Field{
		Name:     "Origin",
		CName:    "origin",
		GoOffset: 8,
		Offset:   4,
		Type:     &CompiledType{Kind: KindU32},
		Index:    1,
	}

	if field.Name != "Origin" {
		t.Error("Name not set correctly")
	}
	if field.CName != "origin" {
		t.Error("CName not set correctly")
	}
	if field.GoOffset != 8 {
		t.Error("GoOffset not set correctly")
	}
	if field.Offset != 4 {
		t.Error("Offset not set correctly")
	}
	if field.Index != 1 {
		t.Error("Index not set correctly")
	}
}

func TestCompiledTypeGoType(t *testing.T) {
	ct := &CompiledType{
		GoType: reflect.TypeOf(uint32(0)),
		GoSize: 4,
		Size:   4,
		Align:  4,
		Kind:   KindU32,
	}

	if ct.GoType.Kind() != reflect.Uint32 {
		t.Error("GoType not set correctly")
	}
	if ct.GoSize != 4 {
		t.Error("GoSize not set correctly")
	}
}
