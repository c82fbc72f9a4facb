package fury

// MetaContext assigns session handles to struct schemas. The writer sends a
// schema in full the first time and its handle afterwards; the reader records
// schemas in the order they arrive. Both sides must see documents in the same
// order: a reader that skips or reorders documents of a session resolves
// handles to the wrong schemas.
type MetaContext struct {
	writeIDs    map[*StructSchema]uint32
	writeOrder  []*StructSchema
	readSchemas []*StructSchema

	writeMark, readMark int
}

// NewMetaContext returns an empty context.
func NewMetaContext() *MetaContext {
	return &MetaContext{writeIDs: make(map[*StructSchema]uint32)}
}

// shareSchema returns the handle of s and whether the peer already knows it.
func (m *MetaContext) shareSchema(s *StructSchema) (uint32, bool) {
	if id, ok := m.writeIDs[s]; ok {
		return id, true
	}
	id := uint32(len(m.writeOrder))
	m.writeIDs[s] = id
	m.writeOrder = append(m.writeOrder, s)
	return id, false
}

// resolveSchema returns the schema read under handle, or nil.
func (m *MetaContext) resolveSchema(handle uint32) *StructSchema {
	if uint64(handle) >= uint64(len(m.readSchemas)) {
		return nil
	}
	return m.readSchemas[handle]
}

func (m *MetaContext) nextReadHandle() uint32 { return uint32(len(m.readSchemas)) }

func (m *MetaContext) addReadSchema(s *StructSchema) uint32 {
	m.readSchemas = append(m.readSchemas, s)
	return uint32(len(m.readSchemas) - 1)
}

// mark records the current state so that a failed call can be undone.
func (m *MetaContext) mark() {
	m.writeMark = len(m.writeOrder)
	m.readMark = len(m.readSchemas)
}

// rollback forgets the handles assigned since the last mark.
func (m *MetaContext) rollback() {
	for _, s := range m.writeOrder[m.writeMark:] {
		delete(m.writeIDs, s)
	}
	clear(m.writeOrder[m.writeMark:])
	m.writeOrder = m.writeOrder[:m.writeMark]
	clear(m.readSchemas[m.readMark:])
	m.readSchemas = m.readSchemas[:m.readMark]
}

// Reset forgets all handles.
func (m *MetaContext) Reset() {
	clear(m.writeIDs)
	clear(m.writeOrder)
	m.writeOrder = m.writeOrder[:0]
	clear(m.readSchemas)
	m.readSchemas = m.readSchemas[:0]
	m.writeMark, m.readMark = 0, 0
}

// Len returns the number of schemas written and read through m.
func (m *MetaContext) Len() (written, read int) {
	return len(m.writeOrder), len(m.readSchemas)
}
