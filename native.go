package fury

import (
	"bytes"
	"encoding/gob"
	"io"
	"reflect"
)

var (
	gobEncoderType = reflect.TypeOf((*gob.GobEncoder)(nil)).Elem()
	gobDecoderType = reflect.TypeOf((*gob.GobDecoder)(nil)).Elem()
)

// matchGob binds types that implement gob's encoding interfaces to the gob
// serializer.
func matchGob(t reflect.Type) (Serializer, bool) {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		return nil, false
	}
	pt := reflect.PointerTo(t)
	if !pt.Implements(gobEncoderType) || !pt.Implements(gobDecoderType) {
		return nil, false
	}
	return &gobSerializer{}, true
}

type gobAdapterKey struct{}

type gobWriter struct {
	out bytes.Buffer
	enc *gob.Encoder
}

type gobReader struct {
	in  chunkReader
	dec *gob.Decoder
}

// gobSerializer hands values to encoding/gob. All gob values of one call share
// an encoder, so each gob type definition is written once per document.
type gobSerializer struct{}

func (*gobSerializer) Write(ctx *WriteContext, v reflect.Value) error {
	w := ctx.Adapter(gobAdapterKey{}, func() interface{} {
		w := &gobWriter{}
		w.enc = gob.NewEncoder(&w.out)
		return w
	}).(*gobWriter)

	w.out.Reset()
	if err := w.enc.EncodeValue(addressable(v).Addr()); err != nil {
		return err
	}
	ctx.buf.WriteBytes(w.out.Bytes())
	return nil
}

func (*gobSerializer) Read(ctx *ReadContext, _ reflect.Type, v reflect.Value) error {
	r := ctx.Adapter(gobAdapterKey{}, func() interface{} {
		r := &gobReader{}
		r.dec = gob.NewDecoder(&r.in)
		return r
	}).(*gobReader)

	start := ctx.buf.ReaderIndex()
	n := ctx.buf.ReadLength(ctx.maxBinary)
	r.in.reset(ctx.buf.ReadBinary(n))
	if err := r.dec.DecodeValue(v.Addr()); err != nil {
		return &DeserializationError{Offset: start, Msg: "gob", Err: err}
	}
	return nil
}

// chunkReader feeds one length-prefixed chunk at a time to the gob decoder.
// It implements io.ByteReader so that gob does not buffer past the chunk.
type chunkReader struct {
	data []byte
	pos  int
}

func (r *chunkReader) reset(p []byte) { r.data, r.pos = p, 0 }

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *chunkReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	c := r.data[r.pos]
	r.pos++
	return c, nil
}

// LooksLikeGob reports whether b starts like a gob stream: a message length
// that fits in b followed by a non-zero type id. Every gob stream passes this
// check. Other data can pass it too, so a true result is only a hint.
func LooksLikeGob(b []byte) bool {
	n, sz, ok := gobUint(b)
	if !ok || n == 0 || n > uint64(len(b)-sz) {
		return false
	}
	id, _, ok := gobUint(b[sz:])
	return ok && id != 0
}

// gobUint decodes gob's unsigned integer encoding: values below 0x80 are one
// byte, larger ones are a negated byte count followed by big-endian bytes.
func gobUint(b []byte) (uint64, int, bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	c := b[0]
	if c < 0x80 {
		return uint64(c), 1, true
	}
	n := -int(int8(c))
	if n > 8 || len(b) < 1+n {
		return 0, 0, false
	}
	var x uint64
	for _, d := range b[1 : 1+n] {
		x = x<<8 | uint64(d)
	}
	return x, 1 + n, true
}
