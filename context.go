package fury

import (
	"errors"
	"reflect"

	"github.com/sirupsen/logrus"
)

// WriteContext carries the state of one serialize call.
type WriteContext struct {
	fury       *Fury
	buf        *ByteBuffer
	refs       *refWriter
	track      bool
	compatible bool
	meta       *MetaContext
	names      map[nameKey]uint32
	depth      int
	maxDepth   int
	adapters   map[interface{}]interface{}
}

func (c *WriteContext) reset() {
	c.buf.Reset()
	c.refs.reset()
	clear(c.names)
	clear(c.adapters)
	c.depth = 0
	c.meta = nil
}

// Buffer returns the buffer the document is written to.
func (c *WriteContext) Buffer() *ByteBuffer { return c.buf }

// Adapter returns the call-scoped value stored under key, creating it on first
// use. Serializers keep stream state here that must not outlive the call.
func (c *WriteContext) Adapter(key interface{}, create func() interface{}) interface{} {
	a, ok := c.adapters[key]
	if !ok {
		a = create()
		c.adapters[key] = a
	}
	return a
}

// WriteValue writes v as a framed value: a reference flag, a type descriptor
// when v's declared type is an interface, then the payload.
func (c *WriteContext) WriteValue(v reflect.Value) error {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > c.maxDepth {
		return ErrDepthExceeded
	}

	dynamic := v.Kind() == reflect.Interface
	if dynamic {
		if v.IsNil() {
			c.buf.WriteInt8(nullFlag)
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			c.buf.WriteInt8(nullFlag)
			return nil
		}
	}

	k, hasIdentity := identity(v)
	switch {
	case !hasIdentity:
		c.buf.WriteInt8(notNullValueFlag)
	case c.track:
		if id, seen := c.refs.trackWrite(k); seen {
			c.buf.WriteInt8(refFlag)
			c.buf.WriteVaruint32(uint32(id))
			return nil
		}
		c.buf.WriteInt8(refValueFlag)
	default:
		if !c.refs.enter(k) {
			return ErrCyclicGraph
		}
		defer c.refs.leave(k)
		c.buf.WriteInt8(notNullValueFlag)
	}

	t := v.Type()
	if dynamic {
		d, err := c.fury.types.Resolve(t)
		if err != nil {
			return err
		}
		writeDescriptor(c.buf, d, c.names)
	}

	s, err := c.fury.serializers.get(t)
	if err != nil {
		return err
	}
	return s.Write(c, v)
}

func (c *WriteContext) writeSchema(s *StructSchema) {
	handle, known := c.meta.shareSchema(s)
	marker := handle << 1
	if known {
		marker |= 1
	}
	c.buf.WriteVaruint32(marker)
	if !known {
		c.fury.cfg.Logger.WithFields(logrus.Fields{"type": s.Type.String(), "handle": handle}).Debug("fury: new schema handle")
		c.buf.WriteBinary(s.encoded)
	}
}

// ReadContext carries the state of one deserialize call.
type ReadContext struct {
	fury       *Fury
	buf        *ByteBuffer
	refs       *refReader
	track      bool
	compatible bool
	generic    bool
	meta       *MetaContext
	names      []nameKey
	pending    int32
	depth      int
	maxDepth   int
	adapters   map[interface{}]interface{}

	maxCollection int
	maxBinary     int
}

func (c *ReadContext) reset() {
	c.buf = nil
	c.refs.reset()
	c.names = c.names[:0]
	clear(c.adapters)
	c.pending = -1
	c.depth = 0
	c.meta = nil
}

// Buffer returns the buffer the document is read from.
func (c *ReadContext) Buffer() *ByteBuffer { return c.buf }

// Adapter is the read side counterpart of WriteContext.Adapter.
func (c *ReadContext) Adapter(key interface{}, create func() interface{}) interface{} {
	a, ok := c.adapters[key]
	if !ok {
		a = create()
		c.adapters[key] = a
	}
	return a
}

// MaxCollectionSize is the element limit serializers should pass to
// ByteBuffer.ReadLength.
func (c *ReadContext) MaxCollectionSize() int { return c.maxCollection }

// MaxBinarySize is the byte limit for binary and string payloads.
func (c *ReadContext) MaxBinarySize() int { return c.maxBinary }

// Bind registers the instance being read under the reference id its frame
// reserved. Serializers of reference types call it right after allocating the
// instance; a second call within one frame is ignored.
func (c *ReadContext) Bind(v reflect.Value) {
	if c.pending >= 0 {
		c.refs.bind(c.pending, v)
		c.pending = -1
	}
}

// ReadValue reads a framed value into v, which must be settable.
func (c *ReadContext) ReadValue(v reflect.Value) error {
	c.depth++
	defer func() { c.depth-- }()
	start := c.buf.ReaderIndex()
	if c.depth > c.maxDepth {
		return &DeserializationError{Offset: start, Err: ErrDepthExceeded}
	}

	flag := c.buf.ReadInt8()
	switch flag {
	case nullFlag:
		v.Set(reflect.Zero(v.Type()))
		return nil
	case refFlag:
		if !c.track {
			return corrupt(start, errRefsDisabled)
		}
		obj, ok := c.refs.resolveReference(c.buf.ReadVaruint32())
		if !ok {
			return corrupt(start, errBadRefID)
		}
		if !obj.IsValid() {
			return corrupt(start, errIncompleteRef)
		}
		return c.assign(start, v, obj)
	case refValueFlag:
		if !c.track {
			return corrupt(start, errRefsDisabled)
		}
	case notNullValueFlag:
	default:
		return corrupt(start, errBadRefFlag)
	}

	t := v.Type()
	target := v
	boxed := t.Kind() == reflect.Interface
	if boxed {
		var err error
		if t, err = c.lookup(c.readFrameDescriptor()); err != nil {
			return err
		}
		if !t.AssignableTo(v.Type()) {
			return corrupt(start, errNotAssignable)
		}
		target = reflect.New(t).Elem()
	}

	outer := c.pending
	id := int32(-1)
	if flag == refValueFlag {
		id = c.refs.preRegister()
	}
	c.pending = id

	s, err := c.fury.serializers.get(t)
	if err == nil {
		err = s.Read(c, t, target)
	}
	if id >= 0 && c.pending == id {
		c.refs.bind(id, target)
	}
	c.pending = outer
	if err != nil {
		return err
	}
	if boxed {
		v.Set(target)
	}
	return nil
}

type frameDescriptor struct {
	d      TypeDescriptor
	offset int
}

func (c *ReadContext) readFrameDescriptor() frameDescriptor {
	offset := c.buf.ReaderIndex()
	return frameDescriptor{readDescriptor(c.buf, &c.names, 0), offset}
}

// lookup resolves a descriptor read at offset. Readers that accept generic
// values map unknown struct types to UnknownStruct.
func (c *ReadContext) lookup(fd frameDescriptor) (reflect.Type, error) {
	t, err := c.fury.types.lookup(fd.d, c.generic)
	if err == nil {
		return t, nil
	}
	var unknown *UnknownTypeError
	if errors.As(err, &unknown) {
		unknown.Offset = fd.offset
		return nil, unknown
	}
	var de *DeserializationError
	if errors.As(err, &de) && de.Offset == 0 {
		de.Offset = fd.offset
	}
	return nil, err
}

// assign stores a value that was read with its own type into v.
func (c *ReadContext) assign(offset int, v, value reflect.Value) error {
	if value.Type().AssignableTo(v.Type()) {
		v.Set(value)
		return nil
	}
	return corrupt(offset, errNotAssignable)
}

// readRaw reads a raw value and boxes it in its built-in type.
func (c *ReadContext) readRaw(id TypeID) reflect.Value {
	switch id {
	case BOOL:
		return reflect.ValueOf(c.buf.ReadBool())
	case INT8:
		return reflect.ValueOf(c.buf.ReadInt8())
	case INT16:
		return reflect.ValueOf(c.buf.ReadInt16())
	case INT32:
		return reflect.ValueOf(c.buf.ReadVarint32())
	case INT64:
		return reflect.ValueOf(c.buf.ReadVarint64())
	case INT:
		return reflect.ValueOf(int(c.buf.ReadVarint64()))
	case UINT8:
		return reflect.ValueOf(c.buf.ReadUint8())
	case UINT16:
		return reflect.ValueOf(c.buf.ReadUint16())
	case UINT32:
		return reflect.ValueOf(c.buf.ReadVaruint32())
	case UINT64:
		return reflect.ValueOf(c.buf.ReadVaruint64())
	case UINT:
		return reflect.ValueOf(uint(c.buf.ReadVaruint64()))
	case FLOAT32:
		return reflect.ValueOf(c.buf.ReadFloat32())
	case FLOAT64:
		return reflect.ValueOf(c.buf.ReadFloat64())
	case STRING:
		return reflect.ValueOf(c.buf.ReadString(c.maxBinary))
	}
	panic(corrupt(c.buf.ReaderIndex(), errBadTypeID))
}

// readRawInto reads a raw value encoded as id into v. Integers and floats
// widen to v's kind within their class; interface destinations get the boxed
// value.
func (c *ReadContext) readRawInto(id TypeID, v reflect.Value) error {
	start := c.buf.ReaderIndex()
	if v.Kind() == reflect.Interface {
		return c.assign(start, v, c.readRaw(id))
	}

	switch id {
	case BOOL:
		b := c.buf.ReadBool()
		if v.Kind() == reflect.Bool {
			v.SetBool(b)
			return nil
		}
	case STRING:
		s := c.buf.ReadString(c.maxBinary)
		if v.Kind() == reflect.String {
			v.SetString(s)
			return nil
		}
	case INT8, INT16, INT32, INT64, INT:
		var n int64
		switch id {
		case INT8:
			n = int64(c.buf.ReadInt8())
		case INT16:
			n = int64(c.buf.ReadInt16())
		case INT32:
			n = int64(c.buf.ReadVarint32())
		default:
			n = c.buf.ReadVarint64()
		}
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if v.OverflowInt(n) {
				return corrupt(start, errOverflow)
			}
			v.SetInt(n)
			return nil
		}
	case UINT8, UINT16, UINT32, UINT64, UINT:
		var n uint64
		switch id {
		case UINT8:
			n = uint64(c.buf.ReadUint8())
		case UINT16:
			n = uint64(c.buf.ReadUint16())
		case UINT32:
			n = uint64(c.buf.ReadVaruint32())
		default:
			n = c.buf.ReadVaruint64()
		}
		switch v.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if v.OverflowUint(n) {
				return corrupt(start, errOverflow)
			}
			v.SetUint(n)
			return nil
		}
	case FLOAT32, FLOAT64:
		var f float64
		if id == FLOAT32 {
			f = float64(c.buf.ReadFloat32())
		} else {
			f = c.buf.ReadFloat64()
		}
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			if v.OverflowFloat(f) {
				return corrupt(start, errOverflow)
			}
			v.SetFloat(f)
			return nil
		}
	default:
		return corrupt(start, errBadTypeID)
	}
	return corrupt(start, errNotAssignable)
}

// readSchema reads a schema marker and, for a new handle, the schema itself.
func (c *ReadContext) readSchema() (*StructSchema, error) {
	start := c.buf.ReaderIndex()
	marker := c.buf.ReadVaruint32()
	handle := marker >> 1
	if marker&1 == 1 {
		s := c.meta.resolveSchema(handle)
		if s == nil {
			return nil, corrupt(start, errBadSchemaHandle)
		}
		return s, nil
	}
	if handle != c.meta.nextReadHandle() {
		return nil, corrupt(start, errBadSchemaHandle)
	}
	s, err := c.fury.schemas.decode(c.buf)
	if err != nil {
		return nil, err
	}
	c.meta.addReadSchema(s)
	return s, nil
}
