// Package envelope wraps finished fury documents in an optional compression
// layer. The document itself is not changed; Open returns the exact bytes that
// were sealed.
//
// An envelope is the magic "=frz", one method byte, the uncompressed length as
// a varint, then the (possibly compressed) document.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const magic = "=frz"

// MaxDocumentSize bounds the uncompressed size Open accepts.
const MaxDocumentSize = 1 << 30

// Method identifies the compression of an envelope.
type Method byte

const (
	MethodNone Method = iota
	MethodSnappy
	MethodZlib
	MethodZstd
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodSnappy:
		return "snappy"
	case MethodZlib:
		return "zlib"
	case MethodZstd:
		return "zstd"
	}
	return fmt.Sprintf("method(%d)", byte(m))
}

// Errors
var (
	ErrNotEnvelope   = errors.New("envelope: missing envelope header")
	ErrUnknownMethod = errors.New("envelope: unknown compression method")
	ErrTooLarge      = errors.New("envelope: document too large")
	ErrCorrupt       = errors.New("envelope: corrupt envelope")
)

// A Compressor compresses sealed documents.
type Compressor interface {
	Method() Method
	compress(b []byte) ([]byte, error)
}

// IsEnvelope reports whether b starts with an envelope header.
func IsEnvelope(b []byte) bool {
	return len(b) > len(magic) && string(b[:len(magic)]) == magic
}

// Seal wraps doc. Documents shorter than threshold, and documents that do not
// shrink, are stored uncompressed. A nil Compressor stores doc as is.
func Seal(doc []byte, c Compressor, threshold int) ([]byte, error) {
	if len(doc) > MaxDocumentSize {
		return nil, ErrTooLarge
	}

	method := MethodNone
	payload := doc
	if c != nil && len(doc) >= threshold {
		compressed, err := c.compress(doc)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(doc) {
			method, payload = c.Method(), compressed
		}
	}

	out := make([]byte, 0, len(magic)+1+binary.MaxVarintLen64+len(payload))
	out = append(out, magic...)
	out = append(out, byte(method))
	out = binary.AppendUvarint(out, uint64(len(doc)))
	return append(out, payload...), nil
}

// Open returns the document sealed in b.
func Open(b []byte) ([]byte, error) {
	if !IsEnvelope(b) {
		return nil, ErrNotEnvelope
	}
	method := Method(b[len(magic)])
	b = b[len(magic)+1:]

	uln, sz := binary.Uvarint(b)
	if sz <= 0 {
		return nil, ErrCorrupt
	}
	if uln > MaxDocumentSize {
		return nil, ErrTooLarge
	}
	b = b[sz:]

	var (
		doc []byte
		err error
	)
	switch method {
	case MethodNone:
		doc = b
	case MethodSnappy:
		doc, err = snappyDecode(b)
	case MethodZlib:
		doc, err = zlibDecode(int(uln), b)
	case MethodZstd:
		doc, err = zstdDecode(make([]byte, 0, uln), b)
	default:
		return nil, ErrUnknownMethod
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: %s: %w", method, err)
	}
	if uint64(len(doc)) != uln {
		return nil, ErrCorrupt
	}
	return doc, nil
}
