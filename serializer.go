package fury

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// Serializer writes and reads the payload of values of one type. Null and
// reference markers and type descriptors are handled by the contexts; a
// Serializer recurses into nested values through WriteValue and ReadValue.
//
// Read receives a settable value of typ. Serializers of reference types must
// call ctx.Bind with the new instance before reading anything that could refer
// back to it.
type Serializer interface {
	Write(ctx *WriteContext, value reflect.Value) error
	Read(ctx *ReadContext, typ reflect.Type, value reflect.Value) error
}

// SerializerFactory supplies serializers for types that share a capability
// rather than an exact type.
type SerializerFactory interface {
	Match(t reflect.Type) (Serializer, bool)
}

// SerializerFactoryFunc adapts a function to SerializerFactory.
type SerializerFactoryFunc func(t reflect.Type) (Serializer, bool)

func (f SerializerFactoryFunc) Match(t reflect.Type) (Serializer, bool) { return f(t) }

// serializerRegistry owns the type to serializer bindings. A binding is fixed
// the first time a type is resolved.
type serializerRegistry struct {
	fury *Fury

	mu        sync.RWMutex
	custom    map[reflect.Type]Serializer
	bound     map[reflect.Type]Serializer
	factories []SerializerFactory
	builtins  []SerializerFactory
	native    bool
	logger    logrus.FieldLogger
}

func newSerializerRegistry(f *Fury) *serializerRegistry {
	r := &serializerRegistry{
		fury:   f,
		custom: make(map[reflect.Type]Serializer),
		bound:  make(map[reflect.Type]Serializer),
		native: f.cfg.NativeFallback,
		logger: f.cfg.Logger,
	}
	r.builtins = []SerializerFactory{
		SerializerFactoryFunc(matchLockedWrapper),
		SerializerFactoryFunc(matchBinaryMarshaler),
	}
	if r.native {
		r.builtins = append(r.builtins, SerializerFactoryFunc(matchGob))
	}
	return r
}

func (r *serializerRegistry) register(t reflect.Type, s Serializer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bound[t]; ok {
		return ErrBindingStable
	}
	r.custom[t] = s
	return nil
}

func (r *serializerRegistry) addFactory(f SerializerFactory) {
	r.mu.Lock()
	r.factories = append(r.factories, f)
	r.mu.Unlock()
}

// get returns the serializer bound to t, binding one on first use.
func (r *serializerRegistry) get(t reflect.Type) (Serializer, error) {
	r.mu.RLock()
	s, ok := r.bound[t]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := r.choose(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.bound[t]; ok {
		s = existing
	} else {
		r.bound[t] = s
		if _, ok := s.(*gobSerializer); ok {
			r.logger.WithField("type", t.String()).Warn("fury: type is encoded with gob, which is slow; register a serializer for it")
		}
	}
	r.mu.Unlock()
	return s, nil
}

// choose applies the selection order: exact registration, built-in exact type,
// capability factories, then the reflective serializers by kind.
func (r *serializerRegistry) choose(t reflect.Type) (Serializer, error) {
	r.mu.RLock()
	s, ok := r.custom[t]
	factories := r.factories
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	if t == unknownStructType {
		return unknownStructSerializer{}, nil
	}

	if id, ok := builtinIDs[t]; ok {
		switch id {
		case UNKNOWN:
			return nil, &NoSerializerError{Type: t}
		case BINARY:
			return newSliceSerializer(r.fury, t), nil
		case TIMESTAMP:
			return marshalerSerializer{}, nil
		case DURATION:
			return primitiveSerializer{INT64}, nil
		case SYNC_MAP:
			return syncMapSerializer{}, nil
		case COMPLEX64, COMPLEX128:
			if !r.native {
				return nil, &NoSerializerError{Type: t}
			}
			return &gobSerializer{}, nil
		}
		return primitiveSerializer{id}, nil
	}

	for _, f := range factories {
		if s, ok := f.Match(t); ok {
			return s, nil
		}
	}
	for _, f := range r.builtins {
		if s, ok := f.Match(t); ok {
			return s, nil
		}
	}

	if id, ok := primitiveID(t); ok {
		return primitiveSerializer{id}, nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return &structSerializer{typ: t, fury: r.fury}, nil
	case reflect.Slice:
		return newSliceSerializer(r.fury, t), nil
	case reflect.Array:
		return newArraySerializer(r.fury, t), nil
	case reflect.Map:
		return newMapSerializer(r.fury, t), nil
	case reflect.Ptr:
		return ptrSerializer{}, nil
	case reflect.Complex64, reflect.Complex128:
		if r.native {
			return &gobSerializer{}, nil
		}
	}
	return nil, &NoSerializerError{Type: t}
}

// check walks the types a value of t can contain and reports the first one
// without a serializer. Under strict registration every user type reached
// from t, other than t itself, must already be registered. It does not bind
// anything.
func (r *serializerRegistry) check(t reflect.Type, seen map[reflect.Type]bool) error {
	if t.Kind() == reflect.Interface || seen[t] {
		return nil
	}
	if len(seen) > 0 && r.fury.cfg.RequireRegistration && isUserType(t) && !r.fury.types.registered(t) {
		return &UnregisteredTypeError{Type: t, Reason: "registration is required"}
	}
	seen[t] = true

	s, err := r.choose(t)
	if err != nil {
		return err
	}

	switch s.(type) {
	case *structSerializer:
		for _, f := range r.fury.tags.Get(t) {
			if err := r.check(t.Field(f.index).Type, seen); err != nil {
				return err
			}
		}
	case *sliceSerializer, *arraySerializer, ptrSerializer:
		return r.check(t.Elem(), seen)
	case *mapSerializer:
		if err := r.check(t.Key(), seen); err != nil {
			return err
		}
		return r.check(t.Elem(), seen)
	}
	return nil
}

// rawEncoding returns the raw encoding for values of t written without a
// frame. Only primitive kinds bound to the primitive serializer qualify.
func (r *serializerRegistry) rawEncoding(t reflect.Type) (TypeID, bool) {
	id, ok := primitiveID(t)
	if !ok {
		return 0, false
	}
	s, err := r.get(t)
	if err != nil {
		return 0, false
	}
	_, ok = s.(primitiveSerializer)
	return id, ok
}

// primitiveSerializer handles bool, numeric and string kinds.
type primitiveSerializer struct{ id TypeID }

func (s primitiveSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	writeRaw(ctx.buf, s.id, v)
	return nil
}

func (s primitiveSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	return ctx.readRawInto(s.id, v)
}

func writeRaw(buf *ByteBuffer, id TypeID, v reflect.Value) {
	switch id {
	case BOOL:
		buf.WriteBool(v.Bool())
	case INT8:
		buf.WriteInt8(int8(v.Int()))
	case INT16:
		buf.WriteInt16(int16(v.Int()))
	case INT32:
		buf.WriteVarint32(int32(v.Int()))
	case INT64, INT:
		buf.WriteVarint64(v.Int())
	case UINT8:
		buf.WriteUint8(uint8(v.Uint()))
	case UINT16:
		buf.WriteUint16(uint16(v.Uint()))
	case UINT32:
		buf.WriteVaruint32(uint32(v.Uint()))
	case UINT64, UINT:
		buf.WriteVaruint64(v.Uint())
	case FLOAT32:
		buf.WriteFloat32(float32(v.Float()))
	case FLOAT64:
		buf.WriteFloat64(v.Float())
	case STRING:
		buf.WriteString(v.String())
	}
}
