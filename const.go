package fury

const magicHeaderBytes = uint32(0x7972663d) // "=fry"

const (
	headerSize     = 6
	currentVersion = 1
)

// header flags
const (
	flagRefTracking byte = 1 << iota
	flagCompatible
	flagMetaShare
	flagStrict
)

// reference flags, written before every framed value
const (
	nullFlag         int8 = -3
	refFlag          int8 = -2
	notNullValueFlag int8 = -1
	refValueFlag     int8 = 0
)

// TypeID is the wire identifier of a built-in type or of a user type category.
type TypeID uint32

const (
	UNKNOWN TypeID = iota // interface{}: concrete type travels with the value
	BOOL
	INT8
	INT16
	INT32
	INT64
	INT
	UINT8
	UINT16
	UINT32
	UINT64
	UINT
	FLOAT32
	FLOAT64
	STRING
	BINARY
	LIST
	ARRAY
	MAP
	PTR
	STRUCT
	NAMED_STRUCT
	EXT
	NAMED_EXT
	TIMESTAMP
	DURATION
	SYNC_MAP
	COMPLEX64
	COMPLEX128

	maxTypeID = COMPLEX128
)

// field encodings stored in a FieldDescriptor next to the primitive ids
const (
	fieldValue   TypeID = 0x40 // framed value of a concrete declared type
	fieldDynamic TypeID = 0x41 // framed value with a type descriptor
)

const (
	defaultMaxDepth          = 256
	defaultMaxCollectionSize = 1 << 24
	defaultMaxBinarySize     = 1 << 30

	maxSchemaFields = 1 << 12
	maxNameLength   = 1 << 12
)

// schema header layout: hash in the high bits, body size in the low bits
const (
	schemaSizeBits = 12
	schemaSizeMask = 1<<schemaSizeBits - 1
	schemaHashSeed = 47
)
