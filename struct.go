package fury

import (
	"reflect"
	"sync"
)

// WriteHook is implemented by struct types that need to prepare themselves
// before their fields are written.
type WriteHook interface {
	BeforeWrite() error
}

// ReadHook is implemented by struct types that fix up derived state once all
// their fields are populated.
type ReadHook interface {
	AfterRead() error
}

// structSerializer is the reflective serializer for struct types. The schema
// is built on first use so that recursive types can refer to themselves.
type structSerializer struct {
	typ  reflect.Type
	fury *Fury

	once   sync.Once
	schema *StructSchema
	err    error

	plans sync.Map // *StructSchema -> *readPlan
}

func (s *structSerializer) getSchema() (*StructSchema, error) {
	s.once.Do(func() {
		s.schema, s.err = buildSchema(s.fury, s.typ)
	})
	return s.schema, s.err
}

func (s *structSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	schema, err := s.getSchema()
	if err != nil {
		return err
	}

	if schema.beforeWrite {
		v = addressable(v)
		if err := v.Addr().Interface().(WriteHook).BeforeWrite(); err != nil {
			return err
		}
	}

	if ctx.compatible {
		ctx.writeSchema(schema)
	} else {
		ctx.buf.WriteInt32(schema.fingerprint)
	}

	for i := range schema.Fields {
		f := &schema.Fields[i]
		fv := v.Field(f.index)
		if f.raw() {
			writeRaw(ctx.buf, f.Encoding, fv)
			continue
		}
		if err := ctx.WriteValue(fv); err != nil {
			return err
		}
	}
	return nil
}

func (s *structSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	schema, err := s.getSchema()
	if err != nil {
		return err
	}

	if ctx.compatible {
		err = s.readCompatible(ctx, schema, v)
	} else {
		err = s.readConsistent(ctx, schema, v)
	}
	if err != nil {
		return err
	}

	if schema.afterRead {
		return v.Addr().Interface().(ReadHook).AfterRead()
	}
	return nil
}

func (s *structSerializer) readConsistent(ctx *ReadContext, schema *StructSchema, v reflect.Value) error {
	start := ctx.buf.ReaderIndex()
	if ctx.buf.ReadInt32() != schema.fingerprint {
		return corrupt(start, errStructHash+": "+s.typ.String())
	}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		fv := v.Field(f.index)
		var err error
		if f.raw() {
			err = ctx.readRawInto(f.Encoding, fv)
		} else {
			err = ctx.ReadValue(fv)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *structSerializer) readCompatible(ctx *ReadContext, schema *StructSchema, v reflect.Value) error {
	remote, err := ctx.readSchema()
	if err != nil {
		return err
	}
	p, err := s.plan(schema, remote)
	if err != nil {
		return err
	}
	for i := range p.steps {
		if err := ctx.readField(&p.steps[i], v); err != nil {
			return err
		}
	}
	return nil
}

// plan returns the read plan for documents written with remote. Plans are
// kept only for schemas held by the engine's schema cache.
func (s *structSerializer) plan(local, remote *StructSchema) (*readPlan, error) {
	if remote.cached {
		if p, ok := s.plans.Load(remote); ok {
			return p.(*readPlan), nil
		}
	}
	p, err := reconcile(local, remote)
	if err != nil {
		return nil, err
	}
	if remote.cached {
		s.plans.Store(remote, p)
	}
	return p, nil
}

func (c *ReadContext) readField(step *planStep, v reflect.Value) error {
	rf := step.remote
	if step.mode == readSkip {
		_, err := c.readFieldGeneric(rf)
		return err
	}

	start := c.buf.ReaderIndex()
	fv := v.Field(step.index)
	switch step.mode {
	case readRaw:
		return c.readRawInto(rf.Encoding, fv)
	case readFramed:
		return c.ReadValue(fv)
	}

	// readBoxed and readDynamic read by the writer's declared type and check
	// the result against the local field afterwards
	tmp, err := c.readFieldGeneric(rf)
	if err != nil {
		return err
	}
	if !tmp.IsValid() || isNilValue(tmp) {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	return c.assign(start, fv, tmp)
}

// readFieldGeneric reads one remote field without a local destination. It
// returns the invalid Value for null.
func (c *ReadContext) readFieldGeneric(rf *FieldDescriptor) (reflect.Value, error) {
	if rf.raw() {
		return c.readRaw(rf.Encoding), nil
	}

	if rf.Encoding == fieldDynamic {
		var x interface{}
		if err := c.ReadValue(reflect.ValueOf(&x).Elem()); err != nil {
			return reflect.Value{}, err
		}
		if x == nil {
			return reflect.Value{}, nil
		}
		return reflect.ValueOf(x), nil
	}

	t, err := c.lookup(frameDescriptor{rf.Type, c.buf.ReaderIndex()})
	if err != nil {
		return reflect.Value{}, err
	}
	tmp := reflect.New(t).Elem()
	if err := c.ReadValue(tmp); err != nil {
		return reflect.Value{}, err
	}
	return tmp, nil
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
