package fury

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type typeEntry struct {
	typ       reflect.Type
	named     bool
	id        uint32
	namespace string
	name      string
	auto      bool
}

func (e *typeEntry) sameDescriptor(o *typeEntry) bool {
	if e.named != o.named {
		return false
	}
	if e.named {
		return e.namespace == o.namespace && e.name == o.name
	}
	return e.id == o.id
}

func (e *typeEntry) descriptor(isStruct bool) TypeDescriptor {
	switch {
	case e.named && isStruct:
		return TypeDescriptor{ID: NAMED_STRUCT, Namespace: e.namespace, Name: e.name}
	case e.named:
		return TypeDescriptor{ID: NAMED_EXT, Namespace: e.namespace, Name: e.name}
	case isStruct:
		return TypeDescriptor{ID: STRUCT, UserID: e.id}
	}
	return TypeDescriptor{ID: EXT, UserID: e.id}
}

// TypeRegistry maps Go types to wire descriptors and back. Registrations are
// expected during setup; lookups are safe for concurrent use.
type TypeRegistry struct {
	mu     sync.RWMutex
	strict bool
	byType map[reflect.Type]*typeEntry
	byID   map[uint32]*typeEntry
	byName map[nameKey]*typeEntry
	descs  map[reflect.Type]*TypeDescriptor

	// structBinding reports whether t is bound to the reflective struct
	// serializer, which decides between the STRUCT and EXT categories.
	structBinding func(t reflect.Type) (bool, error)
	logger        logrus.FieldLogger

	// bounds on array types built from stream descriptors
	maxArrayLen   int
	maxArrayBytes int
}

func newTypeRegistry(cfg *Config, structBinding func(reflect.Type) (bool, error)) *TypeRegistry {
	return &TypeRegistry{
		strict:        cfg.RequireRegistration,
		maxArrayLen:   cfg.MaxCollectionSize,
		maxArrayBytes: cfg.MaxBinarySize,
		byType:        make(map[reflect.Type]*typeEntry),
		byID:          make(map[uint32]*typeEntry),
		byName:        make(map[nameKey]*typeEntry),
		descs:         make(map[reflect.Type]*TypeDescriptor),
		structBinding: structBinding,
		logger:        cfg.Logger,
	}
}

// isUserType reports whether t needs a registration to travel by name or id.
func isUserType(t reflect.Type) bool {
	if _, ok := builtinIDs[t]; ok || t.Kind() == reflect.Interface {
		return false
	}
	if t.Name() != "" {
		return true
	}
	return t.Kind() == reflect.Struct
}

// RegisterID binds t to a numeric id.
func (r *TypeRegistry) RegisterID(t reflect.Type, id uint32) error {
	return r.register(&typeEntry{typ: t, id: id})
}

// RegisterName binds t to a (namespace, name) pair.
func (r *TypeRegistry) RegisterName(t reflect.Type, namespace, name string) error {
	if name == "" {
		return &RegistrationError{Type: t, Existing: "empty type name"}
	}
	return r.register(&typeEntry{typ: t, named: true, namespace: namespace, name: name})
}

func (r *TypeRegistry) register(e *typeEntry) error {
	if !isUserType(e.typ) {
		return &RegistrationError{Type: e.typ, Descriptor: e.descriptor(false), Existing: "only named types and struct types can be registered"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byType[e.typ]; ok {
		if old.sameDescriptor(e) {
			return nil
		}
		return &RegistrationError{Type: e.typ, Descriptor: e.descriptor(false), Existing: "type already registered as " + old.descriptor(false).String()}
	}

	if e.named {
		k := nameKey{e.namespace, e.name}
		if other, ok := r.byName[k]; ok {
			return &RegistrationError{Type: e.typ, Descriptor: e.descriptor(false), Existing: "descriptor already bound to " + other.typ.String()}
		}
		r.byName[k] = e
	} else {
		if other, ok := r.byID[e.id]; ok {
			return &RegistrationError{Type: e.typ, Descriptor: e.descriptor(false), Existing: "descriptor already bound to " + other.typ.String()}
		}
		r.byID[e.id] = e
	}
	r.byType[e.typ] = e
	return nil
}

func (r *TypeRegistry) registered(t reflect.Type) bool {
	r.mu.RLock()
	_, ok := r.byType[t]
	r.mu.RUnlock()
	return ok
}

func (r *TypeRegistry) entryFor(t reflect.Type) (*typeEntry, error) {
	r.mu.RLock()
	e, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	if r.strict {
		return nil, &UnregisteredTypeError{Type: t, Reason: "registration is required"}
	}
	ns, name, ok := autoName(t)
	if !ok {
		return nil, &UnregisteredTypeError{Type: t, Reason: "anonymous and predeclared types must be registered explicitly"}
	}

	e = &typeEntry{typ: t, named: true, namespace: ns, name: name, auto: true}
	if err := r.register(e); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"type": t.String(), "namespace": ns, "name": name}).Debug("fury: auto-registered type")

	r.mu.RLock()
	e = r.byType[t]
	r.mu.RUnlock()
	return e, nil
}

// Resolve returns the descriptor written for values of type t.
func (r *TypeRegistry) Resolve(t reflect.Type) (*TypeDescriptor, error) {
	r.mu.RLock()
	d, ok := r.descs[t]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := r.build(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.descs[t]; ok {
		d = existing
	} else {
		r.descs[t] = d
	}
	r.mu.Unlock()
	return d, nil
}

func (r *TypeRegistry) build(t reflect.Type) (*TypeDescriptor, error) {
	if id, ok := builtinIDs[t]; ok {
		return &TypeDescriptor{ID: id}, nil
	}

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Uintptr:
		return nil, &NoSerializerError{Type: t}
	case reflect.Interface:
		// the concrete type travels with each value
		return &TypeDescriptor{ID: UNKNOWN}, nil
	}

	if t == unknownStructType {
		return nil, &UnregisteredTypeError{Type: t, Reason: "values of unknown struct types cannot be written back"}
	}
	if isUserType(t) {
		e, err := r.entryFor(t)
		if err != nil {
			return nil, err
		}
		isStruct, err := r.structBinding(t)
		if err != nil {
			return nil, err
		}
		d := e.descriptor(isStruct)
		return &d, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		elem, err := r.Resolve(t.Elem())
		if err != nil {
			return nil, err
		}
		return &TypeDescriptor{ID: PTR, Elem: elem}, nil
	case reflect.Slice:
		elem, err := r.Resolve(t.Elem())
		if err != nil {
			return nil, err
		}
		return &TypeDescriptor{ID: LIST, Elem: elem}, nil
	case reflect.Array:
		elem, err := r.Resolve(t.Elem())
		if err != nil {
			return nil, err
		}
		return &TypeDescriptor{ID: ARRAY, Len: t.Len(), Elem: elem}, nil
	case reflect.Map:
		key, err := r.Resolve(t.Key())
		if err != nil {
			return nil, err
		}
		elem, err := r.Resolve(t.Elem())
		if err != nil {
			return nil, err
		}
		return &TypeDescriptor{ID: MAP, Key: key, Elem: elem}, nil
	}
	return nil, &NoSerializerError{Type: t}
}

// Lookup returns the Go type a descriptor read from a stream stands for. It
// never creates registrations, so a strict registry only yields registered
// types.
func (r *TypeRegistry) Lookup(d TypeDescriptor) (reflect.Type, error) {
	return r.lookup(d, false)
}

// lookup resolves d; with generic set, struct descriptors without a
// registration resolve to UnknownStruct.
func (r *TypeRegistry) lookup(d TypeDescriptor, generic bool) (reflect.Type, error) {
	switch d.ID {
	case LIST, PTR, ARRAY:
		elem, err := r.lookup(*d.Elem, generic)
		if err != nil {
			return nil, err
		}
		switch d.ID {
		case LIST:
			return reflect.SliceOf(elem), nil
		case PTR:
			return reflect.PointerTo(elem), nil
		}
		if d.Len > r.maxArrayLen {
			return nil, &DeserializationError{Msg: "array type " + d.String(), Err: ErrSizeExceeded}
		}
		if elem.Size() != 0 && uintptr(d.Len) > uintptr(r.maxArrayBytes)/elem.Size() {
			return nil, &DeserializationError{Msg: "array type " + d.String(), Err: ErrSizeExceeded}
		}
		return reflect.ArrayOf(d.Len, elem), nil
	case MAP:
		key, err := r.lookup(*d.Key, generic)
		if err != nil {
			return nil, err
		}
		elem, err := r.lookup(*d.Elem, generic)
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			return nil, &DeserializationError{Msg: "map key type " + key.String() + " is not comparable"}
		}
		return reflect.MapOf(key, elem), nil
	case STRUCT, EXT, NAMED_STRUCT, NAMED_EXT:
		r.mu.RLock()
		var e *typeEntry
		if d.ID == STRUCT || d.ID == EXT {
			e = r.byID[d.UserID]
		} else {
			e = r.byName[nameKey{d.Namespace, d.Name}]
		}
		r.mu.RUnlock()
		if e == nil {
			if generic && d.isStruct() {
				return unknownStructType, nil
			}
			return nil, &UnknownTypeError{Descriptor: d}
		}
		isStruct, err := r.structBinding(e.typ)
		if err != nil {
			return nil, err
		}
		if isStruct != d.isStruct() {
			return nil, &DeserializationError{Msg: errBadKind + ": " + d.String()}
		}
		return e.typ, nil
	}
	if t, ok := builtinTypes[d.ID]; ok {
		return t, nil
	}
	return nil, &DeserializationError{Msg: errBadTypeID}
}

// prepare auto-registers the named types reachable from t so that a
// non-strict reader can resolve them by name.
func (r *TypeRegistry) prepare(t reflect.Type, fields func(reflect.Type) []fieldTag, seen map[reflect.Type]bool) {
	if r.strict || seen[t] {
		return
	}
	seen[t] = true

	if isUserType(t) {
		// unsupported types surface as errors when a value of them is read
		_, _ = r.Resolve(t)
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Array:
		r.prepare(t.Elem(), fields, seen)
	case reflect.Map:
		r.prepare(t.Key(), fields, seen)
		r.prepare(t.Elem(), fields, seen)
	case reflect.Struct:
		for _, f := range fields(t) {
			r.prepare(t.Field(f.index).Type, fields, seen)
		}
	}
}
