package fury

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// TypeDescriptor identifies a type on the wire. Built-in leaf types are a bare
// ID; composite types carry their element descriptors; user types carry either
// a registered numeric id or a (namespace, name) pair.
type TypeDescriptor struct {
	ID        TypeID
	UserID    uint32
	Namespace string
	Name      string
	Len       int
	Key       *TypeDescriptor
	Elem      *TypeDescriptor
}

var builtinNames = [...]string{
	UNKNOWN:    "any",
	BOOL:       "bool",
	INT8:       "int8",
	INT16:      "int16",
	INT32:      "int32",
	INT64:      "int64",
	INT:        "int",
	UINT8:      "uint8",
	UINT16:     "uint16",
	UINT32:     "uint32",
	UINT64:     "uint64",
	UINT:       "uint",
	FLOAT32:    "float32",
	FLOAT64:    "float64",
	STRING:     "string",
	BINARY:     "[]byte",
	TIMESTAMP:  "time.Time",
	DURATION:   "time.Duration",
	SYNC_MAP:   "sync.Map",
	COMPLEX64:  "complex64",
	COMPLEX128: "complex128",
}

func (d TypeDescriptor) String() string {
	switch d.ID {
	case LIST:
		return "[]" + d.Elem.String()
	case ARRAY:
		return fmt.Sprintf("[%d]%s", d.Len, d.Elem)
	case MAP:
		return fmt.Sprintf("map[%s]%s", d.Key, d.Elem)
	case PTR:
		return "*" + d.Elem.String()
	case STRUCT, EXT:
		return fmt.Sprintf("#%d", d.UserID)
	case NAMED_STRUCT, NAMED_EXT:
		if d.Namespace == "" {
			return d.Name
		}
		return d.Namespace + "." + d.Name
	}
	if int(d.ID) < len(builtinNames) && builtinNames[d.ID] != "" {
		return builtinNames[d.ID]
	}
	return fmt.Sprintf("type(%d)", d.ID)
}

// IsUser reports whether d names a registered or auto-named user type.
func (d TypeDescriptor) IsUser() bool {
	switch d.ID {
	case STRUCT, NAMED_STRUCT, EXT, NAMED_EXT:
		return true
	}
	return false
}

func (d TypeDescriptor) isStruct() bool { return d.ID == STRUCT || d.ID == NAMED_STRUCT }

// Equal compares descriptors structurally.
func (d TypeDescriptor) Equal(o TypeDescriptor) bool {
	if d.ID != o.ID || d.UserID != o.UserID || d.Len != o.Len ||
		d.Namespace != o.Namespace || d.Name != o.Name {
		return false
	}
	return descPtrEqual(d.Key, o.Key) && descPtrEqual(d.Elem, o.Elem)
}

func descPtrEqual(a, b *TypeDescriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

var (
	anyType      = reflect.TypeOf((*interface{})(nil)).Elem()
	bytesType    = reflect.TypeOf([]byte(nil))
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	syncMapType  = reflect.TypeOf((*sync.Map)(nil)).Elem()
)

// builtin leaf types, both directions
var (
	builtinTypes = map[TypeID]reflect.Type{
		UNKNOWN:    anyType,
		BOOL:       reflect.TypeOf(false),
		INT8:       reflect.TypeOf(int8(0)),
		INT16:      reflect.TypeOf(int16(0)),
		INT32:      reflect.TypeOf(int32(0)),
		INT64:      reflect.TypeOf(int64(0)),
		INT:        reflect.TypeOf(0),
		UINT8:      reflect.TypeOf(uint8(0)),
		UINT16:     reflect.TypeOf(uint16(0)),
		UINT32:     reflect.TypeOf(uint32(0)),
		UINT64:     reflect.TypeOf(uint64(0)),
		UINT:       reflect.TypeOf(uint(0)),
		FLOAT32:    reflect.TypeOf(float32(0)),
		FLOAT64:    reflect.TypeOf(float64(0)),
		STRING:     reflect.TypeOf(""),
		BINARY:     bytesType,
		TIMESTAMP:  timeType,
		DURATION:   durationType,
		SYNC_MAP:   syncMapType,
		COMPLEX64:  reflect.TypeOf(complex64(0)),
		COMPLEX128: reflect.TypeOf(complex128(0)),
	}
	builtinIDs = func() map[reflect.Type]TypeID {
		m := make(map[reflect.Type]TypeID, len(builtinTypes))
		for id, t := range builtinTypes {
			m[t] = id
		}
		return m
	}()
)

// primitiveID returns the raw encoding used for t when t has a primitive kind.
func primitiveID(t reflect.Type) (TypeID, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return BOOL, true
	case reflect.Int8:
		return INT8, true
	case reflect.Int16:
		return INT16, true
	case reflect.Int32:
		return INT32, true
	case reflect.Int64:
		return INT64, true
	case reflect.Int:
		return INT, true
	case reflect.Uint8:
		return UINT8, true
	case reflect.Uint16:
		return UINT16, true
	case reflect.Uint32:
		return UINT32, true
	case reflect.Uint64:
		return UINT64, true
	case reflect.Uint:
		return UINT, true
	case reflect.Float32:
		return FLOAT32, true
	case reflect.Float64:
		return FLOAT64, true
	case reflect.String:
		return STRING, true
	}
	return 0, false
}

func isRawKind(id TypeID) bool { return id >= BOOL && id <= STRING }

func numericRank(id TypeID) (class, rank int) {
	switch id {
	case INT8:
		return 1, 1
	case INT16:
		return 1, 2
	case INT32:
		return 1, 3
	case INT64, INT:
		return 1, 4
	case UINT8:
		return 2, 1
	case UINT16:
		return 2, 2
	case UINT32:
		return 2, 3
	case UINT64, UINT:
		return 2, 4
	case FLOAT32:
		return 3, 1
	case FLOAT64:
		return 3, 2
	}
	return 0, 0
}

// widens reports whether a raw value encoded as from can be stored in a field
// encoded as to. Only same-signedness widening is allowed.
func widens(from, to TypeID) bool {
	if from == to {
		return true
	}
	fc, fr := numericRank(from)
	tc, tr := numericRank(to)
	return fc != 0 && fc == tc && fr <= tr
}

// isRefKind reports whether values of t have identity worth tracking.
func isRefKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr:
		return t.Elem().Size() != 0
	case reflect.Map, reflect.Slice:
		return true
	}
	return false
}

type nameKey struct{ namespace, name string }

// writeDescriptor encodes d. With a non-nil names table, repeated user type
// names are written as back-references into the table.
func writeDescriptor(buf *ByteBuffer, d *TypeDescriptor, names map[nameKey]uint32) {
	buf.WriteVaruint32(uint32(d.ID))
	switch d.ID {
	case LIST, PTR:
		writeDescriptor(buf, d.Elem, names)
	case ARRAY:
		buf.WriteVaruint64(uint64(d.Len))
		writeDescriptor(buf, d.Elem, names)
	case MAP:
		writeDescriptor(buf, d.Key, names)
		writeDescriptor(buf, d.Elem, names)
	case STRUCT, EXT:
		buf.WriteVaruint32(d.UserID)
	case NAMED_STRUCT, NAMED_EXT:
		k := nameKey{d.Namespace, d.Name}
		if names != nil {
			if idx, ok := names[k]; ok {
				buf.WriteVaruint32(idx<<1 | 1)
				return
			}
			names[k] = uint32(len(names))
		}
		buf.WriteVaruint32(0)
		buf.WriteString(d.Namespace)
		buf.WriteString(d.Name)
	}
}

const maxDescriptorNesting = 64

func readDescriptor(buf *ByteBuffer, names *[]nameKey, nesting int) TypeDescriptor {
	start := buf.ReaderIndex()
	if nesting > maxDescriptorNesting {
		panic(&DeserializationError{Offset: start, Msg: "type descriptor nested too deeply", Err: ErrDepthExceeded})
	}
	id := TypeID(buf.ReadVaruint32())
	if id > maxTypeID {
		panic(corrupt(start, errBadTypeID))
	}
	d := TypeDescriptor{ID: id}
	switch id {
	case LIST, PTR:
		elem := readDescriptor(buf, names, nesting+1)
		d.Elem = &elem
	case ARRAY:
		n := buf.ReadVaruint64()
		if n > defaultMaxCollectionSize {
			panic(&DeserializationError{Offset: start, Err: ErrSizeExceeded})
		}
		d.Len = int(n)
		elem := readDescriptor(buf, names, nesting+1)
		d.Elem = &elem
	case MAP:
		key := readDescriptor(buf, names, nesting+1)
		elem := readDescriptor(buf, names, nesting+1)
		d.Key, d.Elem = &key, &elem
	case STRUCT, EXT:
		d.UserID = buf.ReadVaruint32()
	case NAMED_STRUCT, NAMED_EXT:
		marker := buf.ReadVaruint32()
		if marker&1 == 1 {
			idx := int(marker >> 1)
			if names == nil || idx >= len(*names) {
				panic(corrupt(start, errBadNameRef))
			}
			k := (*names)[idx]
			d.Namespace, d.Name = k.namespace, k.name
			break
		}
		if marker != 0 {
			panic(corrupt(start, errBadNameRef))
		}
		d.Namespace = buf.ReadString(maxNameLength)
		d.Name = buf.ReadString(maxNameLength)
		if names != nil {
			*names = append(*names, nameKey{d.Namespace, d.Name})
		}
	}
	return d
}

// autoName is the (namespace, name) pair used for unregistered named types.
func autoName(t reflect.Type) (string, string, bool) {
	if t.Name() == "" || t.PkgPath() == "" {
		return "", "", false
	}
	return t.PkgPath(), t.Name(), true
}
