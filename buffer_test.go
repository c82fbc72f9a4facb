package fury

import (
	"errors"
	"math"
	"testing"
)

// catch runs f and returns the *DeserializationError it panics with.
func catch(f func()) (err *DeserializationError) {
	defer func() {
		if r := recover(); r != nil {
			err = r.(*DeserializationError)
		}
	}()
	f()
	return nil
}

func TestVarints(t *testing.T) {
	unsigned := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}
	for _, tt := range unsigned {
		b := NewByteBuffer(nil)
		n := b.WriteVaruint64(tt.v)
		if n != len(tt.want) || string(b.Bytes()) != string(tt.want) {
			t.Errorf("WriteVaruint64(%d) = %x, want %x", tt.v, b.Bytes(), tt.want)
		}
		if got := b.ReadVaruint64(); got != tt.v {
			t.Errorf("ReadVaruint64(%x) = %d, want %d", tt.want, got, tt.v)
		}
	}

	for _, v := range []int64{0, -1, 1, -64, 64, math.MinInt64, math.MaxInt64} {
		b := NewByteBuffer(nil)
		b.WriteVarint64(v)
		if got := b.ReadVarint64(); got != v {
			t.Errorf("varint64 %d: got %d", v, got)
		}
	}
	for _, v := range []int32{0, -1, 1, math.MinInt32, math.MaxInt32} {
		b := NewByteBuffer(nil)
		b.WriteVarint32(v)
		if got := b.ReadVarint32(); got != v {
			t.Errorf("varint32 %d: got %d", v, got)
		}
	}
}

func TestBufferErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(b *ByteBuffer)
		want error
		msg  string
	}{
		{"short uint32", []byte{1, 2, 3}, func(b *ByteBuffer) { b.ReadUint32() }, ErrTruncated, ""},
		{"unterminated varint", []byte{0x80, 0x80}, func(b *ByteBuffer) { b.ReadVaruint64() }, ErrTruncated, ""},
		{"overlong varint", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}, func(b *ByteBuffer) { b.ReadVaruint64() }, nil, errBadVarint},
		{"varuint32 overflow", []byte{0x80, 0x80, 0x80, 0x80, 0x10}, func(b *ByteBuffer) { b.ReadVaruint32() }, nil, errBadVarint},
		{"bad bool", []byte{2}, func(b *ByteBuffer) { b.ReadBool() }, nil, errBadBool},
		{"length over limit", []byte{5, 1, 2, 3, 4, 5}, func(b *ByteBuffer) { b.ReadLength(4) }, ErrSizeExceeded, ""},
		{"length past end", []byte{5, 1, 2}, func(b *ByteBuffer) { b.ReadLength(100) }, ErrTruncated, ""},
		{"string past end", []byte{3, 'a'}, func(b *ByteBuffer) { b.ReadString(100) }, ErrTruncated, ""},
	}

	for _, tt := range tests {
		err := catch(func() { tt.read(NewByteBuffer(tt.data)) })
		if err == nil {
			t.Errorf("%s: no error", tt.name)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
		if tt.msg != "" && err.Msg != tt.msg {
			t.Errorf("%s: got %q, want %q", tt.name, err.Msg, tt.msg)
		}
	}
}

func TestBufferFixedWidth(t *testing.T) {
	b := NewByteBuffer(nil)
	b.WriteUint16(0xbeef)
	b.WriteInt32(-2)
	b.WriteFloat32(1.5)
	b.WriteFloat64(math.Inf(-1))
	b.WriteBytes([]byte("hi"))
	b.WriteUint64(0)
	b.PutUint64At(b.WriterIndex()-8, 42)

	if got := b.ReadUint16(); got != 0xbeef {
		t.Errorf("uint16: %x", got)
	}
	if got := b.ReadInt32(); got != -2 {
		t.Errorf("int32: %d", got)
	}
	if got := b.ReadFloat32(); got != 1.5 {
		t.Errorf("float32: %v", got)
	}
	if got := b.ReadFloat64(); !math.IsInf(got, -1) {
		t.Errorf("float64: %v", got)
	}
	if got := b.ReadBytes(10); string(got) != "hi" {
		t.Errorf("bytes: %q", got)
	}
	if got := b.ReadUint64(); got != 42 {
		t.Errorf("uint64: %d", got)
	}
	if b.Remaining() != 0 {
		t.Errorf("%d bytes left", b.Remaining())
	}
}
