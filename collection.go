package fury

import (
	"reflect"
	"sync"
)

type sliceSerializer struct {
	bytes bool
	raw   bool
	elem  TypeID
}

func newSliceSerializer(f *Fury, t reflect.Type) *sliceSerializer {
	s := &sliceSerializer{}
	s.elem, s.raw = f.serializers.rawEncoding(t.Elem())
	s.bytes = s.raw && s.elem == UINT8
	return s
}

func (s *sliceSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	if s.bytes {
		ctx.buf.WriteBytes(v.Bytes())
		return nil
	}
	n := v.Len()
	ctx.buf.WriteVaruint64(uint64(n))
	if s.raw {
		for i := 0; i < n; i++ {
			writeRaw(ctx.buf, s.elem, v.Index(i))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if err := ctx.WriteValue(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceSerializer) Read(ctx *ReadContext, typ reflect.Type, v reflect.Value) error {
	if s.bytes {
		n := ctx.buf.ReadLength(ctx.maxBinary)
		sl := reflect.MakeSlice(typ, n, n)
		copy(sl.Bytes(), ctx.buf.ReadBinary(n))
		v.Set(sl)
		ctx.Bind(sl)
		return nil
	}
	n := ctx.buf.ReadLength(ctx.maxCollection)
	sl := reflect.MakeSlice(typ, n, n)
	v.Set(sl)
	ctx.Bind(sl)
	for i := 0; i < n; i++ {
		var err error
		if s.raw {
			err = ctx.readRawInto(s.elem, sl.Index(i))
		} else {
			err = ctx.ReadValue(sl.Index(i))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type arraySerializer struct {
	raw  bool
	elem TypeID
}

func newArraySerializer(f *Fury, t reflect.Type) *arraySerializer {
	s := &arraySerializer{}
	s.elem, s.raw = f.serializers.rawEncoding(t.Elem())
	return s
}

func (s *arraySerializer) Write(ctx *WriteContext, v reflect.Value) error {
	n := v.Len()
	ctx.buf.WriteVaruint64(uint64(n))
	for i := 0; i < n; i++ {
		if s.raw {
			writeRaw(ctx.buf, s.elem, v.Index(i))
			continue
		}
		if err := ctx.WriteValue(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *arraySerializer) Read(ctx *ReadContext, typ reflect.Type, v reflect.Value) error {
	start := ctx.buf.ReaderIndex()
	n := ctx.buf.ReadLength(ctx.maxCollection)
	if n != typ.Len() {
		return corrupt(start, errBadArrayLen)
	}
	for i := 0; i < n; i++ {
		var err error
		if s.raw {
			err = ctx.readRawInto(s.elem, v.Index(i))
		} else {
			err = ctx.ReadValue(v.Index(i))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type mapSerializer struct {
	keyRaw, elemRaw bool
	key, elem       TypeID
}

func newMapSerializer(f *Fury, t reflect.Type) *mapSerializer {
	s := &mapSerializer{}
	s.key, s.keyRaw = f.serializers.rawEncoding(t.Key())
	s.elem, s.elemRaw = f.serializers.rawEncoding(t.Elem())
	return s
}

func (s *mapSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	ctx.buf.WriteVaruint64(uint64(v.Len()))
	iter := v.MapRange()
	for iter.Next() {
		if err := s.writeEntry(ctx, iter.Key(), s.keyRaw, s.key); err != nil {
			return err
		}
		if err := s.writeEntry(ctx, iter.Value(), s.elemRaw, s.elem); err != nil {
			return err
		}
	}
	return nil
}

func (s *mapSerializer) writeEntry(ctx *WriteContext, v reflect.Value, raw bool, id TypeID) error {
	if raw {
		writeRaw(ctx.buf, id, v)
		return nil
	}
	return ctx.WriteValue(v)
}

func (s *mapSerializer) Read(ctx *ReadContext, typ reflect.Type, v reflect.Value) error {
	n := ctx.buf.ReadLength(ctx.maxCollection)
	m := reflect.MakeMapWithSize(typ, n)
	v.Set(m)
	ctx.Bind(m)

	keyType, elemType := typ.Key(), typ.Elem()
	for i := 0; i < n; i++ {
		start := ctx.buf.ReaderIndex()
		k := reflect.New(keyType).Elem()
		if err := s.readEntry(ctx, k, s.keyRaw, s.key); err != nil {
			return err
		}
		if !k.Comparable() {
			return &DeserializationError{Offset: start, Msg: "unhashable map key of type " + k.Type().String()}
		}
		e := reflect.New(elemType).Elem()
		if err := s.readEntry(ctx, e, s.elemRaw, s.elem); err != nil {
			return err
		}
		m.SetMapIndex(k, e)
	}
	return nil
}

func (s *mapSerializer) readEntry(ctx *ReadContext, v reflect.Value, raw bool, id TypeID) error {
	if raw {
		return ctx.readRawInto(id, v)
	}
	return ctx.ReadValue(v)
}

// ptrSerializer writes the pointee as a framed value so that pointers to
// reference types keep their own identity.
type ptrSerializer struct{}

func (ptrSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	return ctx.WriteValue(v.Elem())
}

func (ptrSerializer) Read(ctx *ReadContext, typ reflect.Type, v reflect.Value) error {
	p := reflect.New(typ.Elem())
	v.Set(p)
	ctx.Bind(p)
	return ctx.ReadValue(p.Elem())
}

// syncMapSerializer writes a sync.Map as its entries, keys and values framed
// with their dynamic types.
type syncMapSerializer struct{}

func (syncMapSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	m := addressable(v).Addr().Interface().(*sync.Map)

	var entries []interface{}
	m.Range(func(k, e interface{}) bool {
		entries = append(entries, k, e)
		return true
	})

	ctx.buf.WriteVaruint64(uint64(len(entries) / 2))
	for i := range entries {
		if err := ctx.WriteValue(reflect.ValueOf(&entries[i]).Elem()); err != nil {
			return err
		}
	}
	return nil
}

func (syncMapSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	m := v.Addr().Interface().(*sync.Map)
	n := ctx.buf.ReadLength(ctx.maxCollection)
	for i := 0; i < n; i++ {
		start := ctx.buf.ReaderIndex()
		var k, e interface{}
		if err := ctx.ReadValue(reflect.ValueOf(&k).Elem()); err != nil {
			return err
		}
		if k != nil && !reflect.ValueOf(k).Comparable() {
			return &DeserializationError{Offset: start, Msg: "unhashable sync.Map key"}
		}
		if err := ctx.ReadValue(reflect.ValueOf(&e).Elem()); err != nil {
			return err
		}
		m.Store(k, e)
	}
	return nil
}

// addressable returns v itself when it can be addressed and an addressable
// copy otherwise.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}
