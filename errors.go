package fury

import (
	"errors"
	"fmt"
	"reflect"
)

// Errors
var (
	ErrBadHeader     = errors.New("fury: bad header: not a valid fury document")
	ErrBadVersion    = errors.New("fury: unsupported document version")
	ErrForeignFormat = errors.New("fury: document looks like a gob stream, not a fury document")
	ErrMetaShare     = errors.New("fury: document requires meta sharing, which is disabled")

	ErrTruncated     = errors.New("fury: truncated document")
	ErrDepthExceeded = errors.New("fury: maximum depth exceeded")
	ErrSizeExceeded  = errors.New("fury: size limit exceeded")
	ErrCyclicGraph   = errors.New("fury: cyclic graph without reference tracking")

	ErrExpectedPointer = errors.New("fury: expected non-nil pointer")
	ErrBindingStable   = errors.New("fury: serializer binding already resolved")
)

// UnregisteredTypeError is returned on write when a type needs a descriptor
// that registration does not provide.
type UnregisteredTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *UnregisteredTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("fury: type %s is not registered: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("fury: type %s is not registered", e.Type)
}

// UnknownTypeError is returned on read when a descriptor in the stream does not
// resolve to a registered type.
type UnknownTypeError struct {
	Descriptor TypeDescriptor
	Offset     int
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("fury: unknown type %s at offset %d", e.Descriptor, e.Offset)
}

// SchemaMismatchError is returned when writer and reader declare the same field
// with incompatible types.
type SchemaMismatchError struct {
	Type   string
	Field  string
	Local  string
	Remote string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("fury: field %s.%s: local type %s is incompatible with remote type %s",
		e.Type, e.Field, e.Local, e.Remote)
}

// DeserializationError is returned if the document was corrupt or does not fit the
// reader's types.
type DeserializationError struct {
	Offset int
	Msg    string
	Err    error
}

func (e *DeserializationError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("fury: corrupt document at offset %d: %v", e.Offset, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("fury: corrupt document at offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("fury: corrupt document at offset %d: %s", e.Offset, e.Msg)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// NoSerializerError is returned when no serializer can handle a type.
type NoSerializerError struct{ Type reflect.Type }

func (e *NoSerializerError) Error() string {
	return fmt.Sprintf("fury: no serializer for type %s", e.Type)
}

// RegistrationError reports a conflicting registration.
type RegistrationError struct {
	Type       reflect.Type
	Descriptor TypeDescriptor
	Existing   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("fury: cannot register %s as %s: %s", e.Type, e.Descriptor, e.Existing)
}

// internal messages used for corrupt
const (
	errBadRefFlag      = "bad reference flag"
	errBadRefID        = "back-reference to unknown id"
	errIncompleteRef   = "back-reference to an object still being built"
	errRefsDisabled    = "reference marker in a document written without reference tracking"
	errBadTypeID       = "bad type id"
	errBadNameRef      = "bad name reference"
	errBadSchemaHandle = "bad schema handle"
	errBadSchema       = "bad schema"
	errSchemaChecksum  = "schema checksum mismatch"
	errStructHash      = "struct layout does not match the local type"
	errBadKind         = "type descriptor category does not match the local binding"
	errNotAssignable   = "value type not assignable to destination"
	errBadArrayLen     = "bad array length"
	errBadBool         = "bad bool byte"
	errOverflow        = "numeric value overflows destination"
	errBadVarint       = "bad varint"
)

func corrupt(offset int, msg string) *DeserializationError {
	return &DeserializationError{Offset: offset, Msg: msg}
}
