package fury

import (
	"encoding/binary"
	"errors"
	"reflect"
	"runtime"
	"sync"
)

// Fury serializes object graphs. A Fury owns its type and serializer
// registrations; register types before serializing concurrently.
type Fury struct {
	cfg         Config
	types       *TypeRegistry
	serializers *serializerRegistry
	tags        tagsCache
	schemas     *schemaCache

	// default session, used by Serialize and Deserialize with meta sharing
	session *Session

	writePool sync.Pool
	readPool  sync.Pool
}

// New returns an engine configured by opts on top of the defaults: reference
// tracking on, schema-consistent structs, registration required.
func New(opts ...Option) *Fury {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	cfg.normalize()

	f := &Fury{cfg: cfg, schemas: newSchemaCache()}
	f.serializers = newSerializerRegistry(f)
	f.types = newTypeRegistry(&f.cfg, f.structBinding)

	f.writePool.New = func() interface{} {
		return &WriteContext{
			fury:     f,
			buf:      NewByteBuffer(make([]byte, 0, 64)),
			refs:     newRefWriter(),
			names:    make(map[nameKey]uint32),
			adapters: make(map[interface{}]interface{}),
			maxDepth: f.cfg.MaxDepth,
		}
	}
	f.readPool.New = func() interface{} {
		return &ReadContext{
			fury:          f,
			refs:          &refReader{},
			pending:       -1,
			adapters:      make(map[interface{}]interface{}),
			maxDepth:      f.cfg.MaxDepth,
			maxCollection: f.cfg.MaxCollectionSize,
			maxBinary:     f.cfg.MaxBinarySize,
		}
	}

	if cfg.MetaShare {
		f.session = f.NewSession()
	}
	return f
}

// Config returns the settings the engine runs with.
func (f *Fury) Config() Config { return f.cfg }

// TypeRegistry returns the engine's type registrations.
func (f *Fury) TypeRegistry() *TypeRegistry { return f.types }

func (f *Fury) structBinding(t reflect.Type) (bool, error) {
	s, err := f.serializers.get(t)
	if err != nil {
		return false, err
	}
	_, ok := s.(*structSerializer)
	return ok, nil
}

// typeOf accepts a value, a pointer to a value or a reflect.Type.
func typeOf(v interface{}) (reflect.Type, error) {
	if t, ok := v.(reflect.Type); ok {
		return t, nil
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New("fury: cannot register the nil interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t, nil
}

// Register binds the type of v to a numeric id.
func (f *Fury) Register(v interface{}, id uint32) error {
	t, err := typeOf(v)
	if err != nil {
		return err
	}
	if err := f.checkRegistration(t); err != nil {
		return err
	}
	return f.types.RegisterID(t, id)
}

// RegisterNamed binds the type of v to a namespace and name.
func (f *Fury) RegisterNamed(v interface{}, namespace, name string) error {
	t, err := typeOf(v)
	if err != nil {
		return err
	}
	if err := f.checkRegistration(t); err != nil {
		return err
	}
	return f.types.RegisterName(t, namespace, name)
}

// checkRegistration makes sure values of t can be written before t is bound.
// Types the registry refuses are left to it so they fail with a
// RegistrationError.
func (f *Fury) checkRegistration(t reflect.Type) error {
	if !isUserType(t) {
		return nil
	}
	return f.serializers.check(t, make(map[reflect.Type]bool))
}

// RegisterSerializer makes s the serializer for the type of v. It fails with
// ErrBindingStable once the type has been serialized or deserialized.
func (f *Fury) RegisterSerializer(v interface{}, s Serializer) error {
	t, err := typeOf(v)
	if err != nil {
		return err
	}
	return f.serializers.register(t, s)
}

// RegisterFactory adds a factory consulted, in registration order, for types
// without an exact serializer.
func (f *Fury) RegisterFactory(factory SerializerFactory) {
	f.serializers.addFactory(factory)
}

// Serialize encodes v into a new document.
func (f *Fury) Serialize(v interface{}) ([]byte, error) {
	if f.session != nil {
		return f.session.Serialize(v)
	}
	return f.serialize(v, nil)
}

// Deserialize decodes a document into a new value.
func (f *Fury) Deserialize(b []byte) (interface{}, error) {
	if f.session != nil {
		return f.session.Deserialize(b)
	}
	return f.deserialize(b, nil)
}

// DeserializeInto decodes a document into the value ptr points to. The target
// is left untouched when decoding fails.
func (f *Fury) DeserializeInto(b []byte, ptr interface{}) error {
	if f.session != nil {
		return f.session.DeserializeInto(b, ptr)
	}
	return f.deserializeInto(b, ptr, nil)
}

func (f *Fury) serialize(v interface{}, meta *MetaContext) (b []byte, err error) {
	ctx := f.writePool.Get().(*WriteContext)
	defer func() {
		ctx.reset()
		f.writePool.Put(ctx)
	}()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}

			if s, ok := r.(string); ok {
				err = errors.New(s)
			} else {
				err = r.(error)
			}
		}
	}()

	flags := f.cfg.headerFlags() &^ flagMetaShare
	if meta != nil {
		flags |= flagMetaShare
	} else {
		meta = NewMetaContext()
	}

	ctx.meta = meta
	ctx.track = f.cfg.RefTracking
	ctx.compatible = f.cfg.Mode == Compatible

	ctx.buf.WriteUint32(magicHeaderBytes)
	ctx.buf.WriteUint8(currentVersion)
	ctx.buf.WriteUint8(flags)

	if err := ctx.WriteValue(reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return append([]byte(nil), ctx.buf.Bytes()...), nil
}

func readHeader(b []byte) (byte, error) {
	if len(b) < headerSize || binary.LittleEndian.Uint32(b) != magicHeaderBytes {
		if LooksLikeGob(b) {
			return 0, ErrForeignFormat
		}
		return 0, ErrBadHeader
	}
	if b[4] != currentVersion {
		return 0, ErrBadVersion
	}
	flags := b[5]
	if flags&^(flagRefTracking|flagCompatible|flagMetaShare|flagStrict) != 0 {
		return 0, ErrBadHeader
	}
	return flags, nil
}

func (f *Fury) deserialize(b []byte, meta *MetaContext) (interface{}, error) {
	var out interface{}
	if err := f.decode(b, reflect.ValueOf(&out).Elem(), meta); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Fury) deserializeInto(b []byte, ptr interface{}, meta *MetaContext) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrExpectedPointer
	}
	target := rv.Elem()
	f.types.prepare(target.Type(), f.tags.Get, make(map[reflect.Type]bool))

	out, err := f.deserialize(b, meta)
	if err != nil {
		return err
	}
	if out == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	ov := reflect.ValueOf(out)
	switch {
	case ov.Type().AssignableTo(target.Type()):
		target.Set(ov)
	case ov.Kind() == reflect.Ptr && ov.Type().Elem().AssignableTo(target.Type()):
		target.Set(ov.Elem())
	case target.Kind() == reflect.Ptr && ov.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(ov)
		target.Set(p)
	default:
		return &DeserializationError{Offset: headerSize, Msg: errNotAssignable + ": " + ov.Type().String() + " into " + target.Type().String()}
	}
	return nil
}

func (f *Fury) decode(b []byte, out reflect.Value, meta *MetaContext) (err error) {
	flags, err := readHeader(b)
	if err != nil {
		return err
	}
	if flags&flagMetaShare == 0 {
		meta = NewMetaContext()
	} else if meta == nil {
		return ErrMetaShare
	}

	ctx := f.readPool.Get().(*ReadContext)
	defer func() {
		ctx.reset()
		f.readPool.Put(ctx)
	}()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}

			if s, ok := r.(string); ok {
				err = errors.New(s)
			} else {
				err = r.(error)
			}
		}
	}()

	ctx.buf = NewByteBuffer(b)
	ctx.buf.SetReaderIndex(headerSize)
	ctx.meta = meta
	ctx.track = flags&flagRefTracking != 0
	ctx.compatible = flags&flagCompatible != 0
	ctx.generic = ctx.compatible && !f.cfg.RequireRegistration

	if err := ctx.ReadValue(out); err != nil {
		return err
	}
	if ctx.buf.Remaining() != 0 {
		return corrupt(ctx.buf.ReaderIndex(), "trailing bytes after document")
	}
	return nil
}
