package fury

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldMode(t *testing.T) {
	user := TypeDescriptor{ID: NAMED_EXT, Namespace: "test", Name: "Tag"}
	other := TypeDescriptor{ID: NAMED_EXT, Namespace: "test", Name: "Other"}
	list := TypeDescriptor{ID: LIST, Elem: &TypeDescriptor{ID: STRING}}
	dynamic := TypeDescriptor{ID: UNKNOWN}

	raw := func(id TypeID) FieldDescriptor { return FieldDescriptor{Type: TypeDescriptor{ID: id}, Encoding: id} }
	val := func(d TypeDescriptor) FieldDescriptor { return FieldDescriptor{Type: d, Encoding: fieldValue} }
	dyn := FieldDescriptor{Type: dynamic, Encoding: fieldDynamic}

	tests := []struct {
		name          string
		remote, local FieldDescriptor
		mode          int
		ok            bool
	}{
		{"same raw", raw(INT32), raw(INT32), readRaw, true},
		{"widen signed", raw(INT8), raw(INT64), readRaw, true},
		{"widen unsigned", raw(UINT16), raw(UINT), readRaw, true},
		{"widen float", raw(FLOAT32), raw(FLOAT64), readRaw, true},
		{"narrow", raw(INT64), raw(INT32), 0, false},
		{"sign change", raw(INT32), raw(UINT32), 0, false},
		{"int to float", raw(INT32), raw(FLOAT64), 0, false},
		{"string to bool", raw(STRING), raw(BOOL), 0, false},
		{"raw user types", FieldDescriptor{Type: user, Encoding: STRING}, FieldDescriptor{Type: user, Encoding: STRING}, readRaw, true},
		{"raw user type renamed", FieldDescriptor{Type: user, Encoding: STRING}, FieldDescriptor{Type: other, Encoding: STRING}, 0, false},
		{"raw user type to builtin", FieldDescriptor{Type: user, Encoding: STRING}, raw(STRING), 0, false},
		{"raw into interface", raw(STRING), dyn, readRaw, true},
		{"interface to interface", dyn, dyn, readFramed, true},
		{"interface into value", dyn, val(list), readDynamic, true},
		{"value into interface", val(list), dyn, readBoxed, true},
		{"same value", val(list), val(list), readFramed, true},
		{"different value", val(list), val(TypeDescriptor{ID: LIST, Elem: &TypeDescriptor{ID: INT}}), 0, false},
		{"value into raw", val(list), raw(STRING), 0, false},
		{"raw into value", raw(STRING), val(list), 0, false},
		{"interface into raw", dyn, raw(INT), 0, false},
	}
	for _, tt := range tests {
		mode, ok := fieldMode(&tt.local, &tt.remote)
		if ok != tt.ok || (ok && mode != tt.mode) {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tt.name, mode, ok, tt.mode, tt.ok)
		}
	}
}

func TestSchemaEncoding(t *testing.T) {
	f := New(WithRequireRegistration(false))
	ss, err := f.serializers.get(reflect.TypeOf(PersonV2{}))
	require.NoError(t, err)
	local, err := ss.(*structSerializer).getSchema()
	require.NoError(t, err)

	require.Len(t, local.Fields, 5)
	require.Equal(t, "Email", local.Fields[2].Name)
	require.Equal(t, STRING, local.Fields[2].Encoding)
	require.Equal(t, fieldValue, local.Fields[3].Encoding)
	require.Equal(t, fieldDynamic, local.Fields[4].Encoding)

	cache := newSchemaCache()
	remote, err := cache.decode(NewByteBuffer(local.encoded))
	require.NoError(t, err)
	require.True(t, remote.cached)
	require.Nil(t, remote.typ)
	require.Equal(t, local.Type, remote.Type)
	require.Len(t, remote.Fields, len(local.Fields))
	for i := range local.Fields {
		l, r := local.Fields[i], remote.Fields[i]
		if l.Name != r.Name || l.Encoding != r.Encoding || !l.Type.Equal(r.Type) || r.index != -1 {
			t.Errorf("field %d: %+v != %+v", i, r, l)
		}
	}

	// the same bytes give the same schema
	again, err := cache.decode(NewByteBuffer(append([]byte(nil), local.encoded...)))
	require.NoError(t, err)
	require.Same(t, remote, again)
}

func TestSchemaChecksum(t *testing.T) {
	f := New(WithRequireRegistration(false))
	ss, err := f.serializers.get(reflect.TypeOf(PersonV1{}))
	require.NoError(t, err)
	s, err := ss.(*structSerializer).getSchema()
	require.NoError(t, err)

	bad := append([]byte(nil), s.encoded...)
	bad[len(bad)-1] ^= 1
	_, err = newSchemaCache().decode(NewByteBuffer(bad))
	var de *DeserializationError
	require.ErrorAs(t, err, &de)
	require.Equal(t, errSchemaChecksum, de.Msg)

	_, err = newSchemaCache().decode(NewByteBuffer(s.encoded[:len(s.encoded)-1]))
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, de, ErrTruncated)
}

func TestLargeSchema(t *testing.T) {
	s := &StructSchema{Type: TypeDescriptor{ID: STRUCT, UserID: 1}}
	for i := 0; i < 200; i++ {
		s.Fields = append(s.Fields, FieldDescriptor{
			Name:     fmt.Sprintf("field_with_a_rather_long_name_%03d", i),
			Type:     TypeDescriptor{ID: INT64},
			Encoding: INT64,
		})
	}
	encoded, _ := encodeSchema(s)
	require.Greater(t, len(encoded), schemaSizeMask)

	got, err := newSchemaCache().decode(NewByteBuffer(encoded))
	require.NoError(t, err)
	require.Len(t, got.Fields, 200)
	require.Equal(t, "field_with_a_rather_long_name_199", got.Fields[199].Name)
}

func TestSchemaCacheLimit(t *testing.T) {
	cache := newSchemaCache()
	cache.limit = 1

	schema := func(name string) []byte {
		b, _ := encodeSchema(&StructSchema{
			Type:   TypeDescriptor{ID: STRUCT, UserID: 1},
			Fields: []FieldDescriptor{{Name: name, Type: TypeDescriptor{ID: BOOL}, Encoding: BOOL}},
		})
		return b
	}

	first, err := cache.decode(NewByteBuffer(schema("a")))
	require.NoError(t, err)
	second, err := cache.decode(NewByteBuffer(schema("b")))
	require.NoError(t, err)
	require.True(t, first.cached)
	require.False(t, second.cached)

	third, err := cache.decode(NewByteBuffer(schema("b")))
	require.NoError(t, err)
	require.NotSame(t, second, third)
}

func TestFingerprint(t *testing.T) {
	a := New()
	require.NoError(t, a.Register(PersonV1{}, 5))
	b := New()
	require.NoError(t, b.RegisterNamed(PersonV1{}, "test", "Person"))

	schema := func(f *Fury) *StructSchema {
		ss, err := f.serializers.get(reflect.TypeOf(PersonV1{}))
		require.NoError(t, err)
		s, err := ss.(*structSerializer).getSchema()
		require.NoError(t, err)
		return s
	}

	// the fingerprint covers the fields, not the registration
	require.Equal(t, schema(a).fingerprint, schema(b).fingerprint)
	require.NotEqual(t, schema(a).encoded, schema(b).encoded)
}
