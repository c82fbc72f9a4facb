package fury

import (
	"encoding"
	"reflect"
	"sync"
	"unsafe"
)

var (
	mutexType             = reflect.TypeOf(sync.Mutex{})
	rwMutexType           = reflect.TypeOf(sync.RWMutex{})
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// matchLockedWrapper recognizes structs made of a mutex guarding a single map
// or slice, such as
//
//	type Counts struct {
//		mu sync.Mutex
//		m  map[string]int
//	}
//
// and serializes them as the guarded collection.
func matchLockedWrapper(t reflect.Type) (Serializer, bool) {
	if t.Kind() != reflect.Struct || t.NumField() != 2 {
		return nil, false
	}
	s := &lockedSerializer{lock: -1, data: -1}
	for i := 0; i < 2; i++ {
		f := t.Field(i)
		switch {
		case f.Type == mutexType || f.Type == rwMutexType:
			s.lock = i
		case f.Type.Kind() == reflect.Map || f.Type.Kind() == reflect.Slice:
			s.data = i
		}
	}
	if s.lock < 0 || s.data < 0 {
		return nil, false
	}
	s.rw = t.Field(s.lock).Type == rwMutexType
	return s, true
}

type lockedSerializer struct {
	lock, data int
	rw         bool
}

// field returns field i of v, reachable even when unexported.
func field(v reflect.Value, i int) reflect.Value {
	f := v.Field(i)
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}

func (s *lockedSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	v = addressable(v)
	mu := field(v, s.lock).Addr().Interface()
	if s.rw {
		l := mu.(*sync.RWMutex)
		l.RLock()
		defer l.RUnlock()
	} else {
		l := mu.(*sync.Mutex)
		l.Lock()
		defer l.Unlock()
	}
	return ctx.WriteValue(field(v, s.data))
}

func (s *lockedSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	return ctx.ReadValue(field(v, s.data))
}

// matchBinaryMarshaler binds types implementing encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler to their own encoding.
func matchBinaryMarshaler(t reflect.Type) (Serializer, bool) {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		return nil, false
	}
	pt := reflect.PointerTo(t)
	if !pt.Implements(binaryMarshalerType) || !pt.Implements(binaryUnmarshalerType) {
		return nil, false
	}
	return marshalerSerializer{}, true
}

type marshalerSerializer struct{}

func (marshalerSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	data, err := addressable(v).Addr().Interface().(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return err
	}
	ctx.buf.WriteBytes(data)
	return nil
}

func (marshalerSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	start := ctx.buf.ReaderIndex()
	data := ctx.buf.ReadBytes(ctx.maxBinary)
	if err := v.Addr().Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(data); err != nil {
		return &DeserializationError{Offset: start, Msg: v.Type().String(), Err: err}
	}
	return nil
}
