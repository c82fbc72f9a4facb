package fury

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"reflect"
	"sync"

	"github.com/dchest/siphash"
	"github.com/spaolacci/murmur3"
)

// FieldDescriptor describes one serialized field of a struct type.
type FieldDescriptor struct {
	Name string
	// Type is the declared type of the field.
	Type TypeDescriptor
	// Encoding is a raw primitive id, fieldValue or fieldDynamic.
	Encoding TypeID

	index int // local field index, -1 in remote schemas
}

func (f *FieldDescriptor) raw() bool { return isRawKind(f.Encoding) }

// StructSchema is the ordered field list of one struct type.
type StructSchema struct {
	Type   TypeDescriptor
	Fields []FieldDescriptor

	typ         reflect.Type // nil for schemas read from a stream
	encoded     []byte
	fingerprint int32

	beforeWrite bool
	afterRead   bool

	// remote schemas held by the engine cache; only those get a cached plan
	cached bool
}

var (
	writeHookType = reflect.TypeOf((*WriteHook)(nil)).Elem()
	readHookType  = reflect.TypeOf((*ReadHook)(nil)).Elem()
)

func buildSchema(f *Fury, t reflect.Type) (*StructSchema, error) {
	d, err := f.types.Resolve(t)
	if err != nil {
		return nil, err
	}

	s := &StructSchema{
		Type:        *d,
		typ:         t,
		beforeWrite: reflect.PointerTo(t).Implements(writeHookType),
		afterRead:   reflect.PointerTo(t).Implements(readHookType),
	}

	for _, tag := range f.tags.Get(t) {
		ft := t.Field(tag.index).Type
		fd, err := f.types.Resolve(ft)
		if err != nil {
			return nil, err
		}
		enc, ok := f.serializers.rawEncoding(ft)
		switch {
		case ok:
		case ft.Kind() == reflect.Interface:
			enc = fieldDynamic
		default:
			enc = fieldValue
		}
		s.Fields = append(s.Fields, FieldDescriptor{Name: tag.name, Type: *fd, Encoding: enc, index: tag.index})
	}
	if len(s.Fields) > maxSchemaFields {
		return nil, &NoSerializerError{Type: t}
	}

	s.encoded, s.fingerprint = encodeSchema(s)
	return s, nil
}

// encodeSchema returns the schema bytes and the fingerprint of the field
// layout used by schema-consistent mode.
func encodeSchema(s *StructSchema) ([]byte, int32) {
	body := NewByteBuffer(nil)
	writeDescriptor(body, &s.Type, nil)
	fieldsAt := body.WriterIndex()
	body.WriteVaruint32(uint32(len(s.Fields)))
	for i := range s.Fields {
		f := &s.Fields[i]
		body.WriteString(f.Name)
		body.WriteVaruint32(uint32(f.Encoding))
		writeDescriptor(body, &f.Type, nil)
	}
	fingerprint := int32(murmur3.Sum32WithSeed(body.Bytes()[fieldsAt:], schemaHashSeed))

	size := body.WriterIndex()
	header := murmur3.Sum64WithSeed(body.Bytes(), schemaHashSeed) << schemaSizeBits
	out := NewByteBuffer(make([]byte, 0, 8+size+4))
	if size >= schemaSizeMask {
		out.WriteUint64(header | schemaSizeMask)
		out.WriteVaruint64(uint64(size - schemaSizeMask))
	} else {
		out.WriteUint64(header | uint64(size))
	}
	out.WriteBinary(body.Bytes())
	return out.Bytes(), fingerprint
}

// decodeSchemaBody parses a verified schema body.
func decodeSchemaBody(offset int, body []byte) (*StructSchema, error) {
	buf := NewByteBuffer(body)
	s := &StructSchema{}
	s.Type = readDescriptor(buf, nil, 0)
	if !s.Type.isStruct() {
		return nil, corrupt(offset, errBadSchema)
	}

	n := buf.ReadLength(maxSchemaFields)
	s.Fields = make([]FieldDescriptor, n)
	for i := range s.Fields {
		f := &s.Fields[i]
		f.index = -1
		f.Name = buf.ReadString(maxNameLength)
		f.Encoding = TypeID(buf.ReadVaruint32())
		if !isRawKind(f.Encoding) && f.Encoding != fieldValue && f.Encoding != fieldDynamic {
			return nil, corrupt(offset, errBadSchema)
		}
		f.Type = readDescriptor(buf, nil, 0)
	}
	if buf.Remaining() != 0 {
		return nil, corrupt(offset, errBadSchema)
	}
	return s, nil
}

// schemaCache keeps decoded remote schemas so that documents carrying the same
// schema bytes share one StructSchema and its read plans. Keys are derived
// from stream contents, so they are hashed with a per-engine secret.
type schemaCache struct {
	k0, k1 uint64

	mu    sync.RWMutex
	m     map[uint64][]*StructSchema
	count int
	limit int
}

const schemaCacheLimit = 4096

func newSchemaCache() *schemaCache {
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(err)
	}
	return &schemaCache{
		k0:    binary.LittleEndian.Uint64(key[:8]),
		k1:    binary.LittleEndian.Uint64(key[8:]),
		m:     make(map[uint64][]*StructSchema),
		limit: schemaCacheLimit,
	}
}

// decode reads schema bytes from buf, verifies them and returns the cached
// schema when the same bytes were seen before.
func (sc *schemaCache) decode(buf *ByteBuffer) (*StructSchema, error) {
	start := buf.ReaderIndex()
	header := buf.ReadUint64()
	size := header & schemaSizeMask
	if size == schemaSizeMask {
		size += buf.ReadVaruint64()
	}
	if size > uint64(buf.Remaining()) {
		return nil, &DeserializationError{Offset: start, Msg: errBadSchema, Err: ErrTruncated}
	}
	body := buf.ReadBinary(int(size))
	if murmur3.Sum64WithSeed(body, schemaHashSeed)<<schemaSizeBits != header&^schemaSizeMask {
		return nil, corrupt(start, errSchemaChecksum)
	}
	raw := buf.Bytes()[start:buf.ReaderIndex()]

	h := siphash.Hash(sc.k0, sc.k1, raw)
	sc.mu.RLock()
	for _, s := range sc.m[h] {
		if bytes.Equal(s.encoded, raw) {
			sc.mu.RUnlock()
			return s, nil
		}
	}
	sc.mu.RUnlock()

	s, err := decodeSchemaBody(start, body)
	if err != nil {
		return nil, err
	}
	s.encoded = append([]byte(nil), raw...)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, other := range sc.m[h] {
		if bytes.Equal(other.encoded, raw) {
			return other, nil
		}
	}
	if sc.count < sc.limit {
		s.cached = true
		sc.m[h] = append(sc.m[h], s)
		sc.count++
	}
	return s, nil
}

// field read modes of a plan step
const (
	readSkip    = iota // no local field: read generically and drop
	readRaw            // raw remote value into a raw or interface field
	readFramed         // framed value into the local field as declared
	readBoxed          // framed remote value read by its remote type, then assigned
	readDynamic        // framed value with descriptor into a concrete local field
)

type planStep struct {
	remote *FieldDescriptor
	index  int
	mode   int
}

type readPlan struct {
	steps []planStep
}

// reconcile matches remote fields to local ones by name. Writer-only fields
// are skipped and reader-only fields keep their zero value.
func reconcile(local, remote *StructSchema) (*readPlan, error) {
	byName := make(map[string]*FieldDescriptor, len(local.Fields))
	for i := range local.Fields {
		byName[local.Fields[i].Name] = &local.Fields[i]
	}

	p := &readPlan{steps: make([]planStep, len(remote.Fields))}
	for i := range remote.Fields {
		rf := &remote.Fields[i]
		step := planStep{remote: rf, index: -1, mode: readSkip}
		if lf, ok := byName[rf.Name]; ok {
			mode, ok := fieldMode(lf, rf)
			if !ok {
				return nil, &SchemaMismatchError{
					Type:   local.typ.String(),
					Field:  rf.Name,
					Local:  lf.Type.String(),
					Remote: rf.Type.String(),
				}
			}
			step.index, step.mode = lf.index, mode
		}
		p.steps[i] = step
	}
	return p, nil
}

func fieldMode(local, remote *FieldDescriptor) (int, bool) {
	switch {
	case remote.raw() && local.raw():
		if !widens(remote.Encoding, local.Encoding) {
			return 0, false
		}
		if (remote.Type.IsUser() || local.Type.IsUser()) && !remote.Type.Equal(local.Type) {
			return 0, false
		}
		return readRaw, true
	case remote.raw() && local.Encoding == fieldDynamic:
		return readRaw, true
	case remote.Encoding == fieldDynamic && local.Encoding == fieldDynamic:
		return readFramed, true
	case remote.Encoding == fieldDynamic && local.Encoding == fieldValue:
		return readDynamic, true
	case remote.Encoding == fieldValue && local.Encoding == fieldDynamic:
		return readBoxed, true
	case remote.Encoding == fieldValue && local.Encoding == fieldValue:
		return readFramed, remote.Type.Equal(local.Type)
	}
	return 0, false
}
