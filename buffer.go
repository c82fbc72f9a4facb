package fury

import (
	"encoding/binary"
	"math"
)

// ByteBuffer is a growable byte buffer with a write end and a read cursor.
// Reads past the written data panic with a *DeserializationError; the engine
// recovers it at the API boundary.
type ByteBuffer struct {
	data        []byte
	readerIndex int
}

// NewByteBuffer returns a buffer whose readable content is data.
func NewByteBuffer(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data}
}

func (b *ByteBuffer) Bytes() []byte { return b.data }
func (b *ByteBuffer) WriterIndex() int { return len(b.data) }
func (b *ByteBuffer) ReaderIndex() int { return b.readerIndex }
func (b *ByteBuffer) Remaining() int { return len(b.data) - b.readerIndex }

func (b *ByteBuffer) SetReaderIndex(i int) {
	if i < 0 || i > len(b.data) {
		panic(&DeserializationError{Offset: i, Err: ErrTruncated})
	}
	b.readerIndex = i
}

// Reset empties the buffer and keeps its capacity.
func (b *ByteBuffer) Reset() {
	b.data = b.data[:0]
	b.readerIndex = 0
}

// Truncate drops everything written after offset n.
func (b *ByteBuffer) Truncate(n int) { b.data = b.data[:n] }

func (b *ByteBuffer) WriteUint8(v uint8) { b.data = append(b.data, v) }
func (b *ByteBuffer) WriteInt8(v int8) { b.data = append(b.data, byte(v)) }

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.data = append(b.data, 1)
	} else {
		b.data = append(b.data, 0)
	}
}

func (b *ByteBuffer) WriteUint16(v uint16) { b.data = binary.LittleEndian.AppendUint16(b.data, v) }
func (b *ByteBuffer) WriteInt16(v int16) { b.WriteUint16(uint16(v)) }
func (b *ByteBuffer) WriteUint32(v uint32) { b.data = binary.LittleEndian.AppendUint32(b.data, v) }
func (b *ByteBuffer) WriteInt32(v int32) { b.WriteUint32(uint32(v)) }
func (b *ByteBuffer) WriteUint64(v uint64) { b.data = binary.LittleEndian.AppendUint64(b.data, v) }
func (b *ByteBuffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }
func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

// PutUint64At overwrites 8 bytes at offset, which must already be written.
func (b *ByteBuffer) PutUint64At(offset int, v uint64) {
	binary.LittleEndian.PutUint64(b.data[offset:offset+8], v)
}

// WriteVaruint64 writes v in 7-bit groups, low group first.
func (b *ByteBuffer) WriteVaruint64(v uint64) int {
	n := 1
	for v >= 0x80 {
		b.data = append(b.data, byte(v)|0x80)
		v >>= 7
		n++
	}
	b.data = append(b.data, byte(v))
	return n
}

func (b *ByteBuffer) WriteVaruint32(v uint32) int { return b.WriteVaruint64(uint64(v)) }

// WriteVarint64 writes v zigzag encoded.
func (b *ByteBuffer) WriteVarint64(v int64) int {
	return b.WriteVaruint64(uint64(v<<1) ^ uint64(v>>63))
}

func (b *ByteBuffer) WriteVarint32(v int32) int {
	return b.WriteVaruint64(uint64(uint32(v<<1) ^ uint32(v>>31)))
}

// WriteBinary appends p without a length prefix.
func (b *ByteBuffer) WriteBinary(p []byte) { b.data = append(b.data, p...) }

// WriteBytes appends p with a varuint length prefix.
func (b *ByteBuffer) WriteBytes(p []byte) {
	b.WriteVaruint64(uint64(len(p)))
	b.data = append(b.data, p...)
}

func (b *ByteBuffer) WriteString(s string) {
	b.WriteVaruint64(uint64(len(s)))
	b.data = append(b.data, s...)
}

func (b *ByteBuffer) need(n int) {
	if n < 0 || n > len(b.data)-b.readerIndex {
		panic(&DeserializationError{Offset: b.readerIndex, Err: ErrTruncated})
	}
}

func (b *ByteBuffer) ReadUint8() uint8 {
	b.need(1)
	v := b.data[b.readerIndex]
	b.readerIndex++
	return v
}

func (b *ByteBuffer) ReadInt8() int8 { return int8(b.ReadUint8()) }

func (b *ByteBuffer) ReadBool() bool {
	switch b.ReadUint8() {
	case 0:
		return false
	case 1:
		return true
	}
	panic(corrupt(b.readerIndex-1, errBadBool))
}

func (b *ByteBuffer) ReadUint16() uint16 {
	b.need(2)
	v := binary.LittleEndian.Uint16(b.data[b.readerIndex:])
	b.readerIndex += 2
	return v
}

func (b *ByteBuffer) ReadInt16() int16 { return int16(b.ReadUint16()) }

func (b *ByteBuffer) ReadUint32() uint32 {
	b.need(4)
	v := binary.LittleEndian.Uint32(b.data[b.readerIndex:])
	b.readerIndex += 4
	return v
}

func (b *ByteBuffer) ReadInt32() int32 { return int32(b.ReadUint32()) }

func (b *ByteBuffer) ReadUint64() uint64 {
	b.need(8)
	v := binary.LittleEndian.Uint64(b.data[b.readerIndex:])
	b.readerIndex += 8
	return v
}

func (b *ByteBuffer) ReadInt64() int64 { return int64(b.ReadUint64()) }

func (b *ByteBuffer) ReadFloat32() float32 { return math.Float32frombits(b.ReadUint32()) }
func (b *ByteBuffer) ReadFloat64() float64 { return math.Float64frombits(b.ReadUint64()) }

func (b *ByteBuffer) ReadVaruint64() uint64 {
	start := b.readerIndex
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		c := b.ReadUint8()
		if shift == 63 && c > 1 {
			break
		}
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v
		}
	}
	panic(corrupt(start, errBadVarint))
}

func (b *ByteBuffer) ReadVaruint32() uint32 {
	start := b.readerIndex
	v := b.ReadVaruint64()
	if v > math.MaxUint32 {
		panic(corrupt(start, errBadVarint))
	}
	return uint32(v)
}

func (b *ByteBuffer) ReadVarint64() int64 {
	u := b.ReadVaruint64()
	return int64(u>>1) ^ -int64(u&1)
}

func (b *ByteBuffer) ReadVarint32() int32 {
	u := b.ReadVaruint32()
	return int32(u>>1) ^ -int32(u&1)
}

// ReadBinary returns the next n bytes without copying them.
func (b *ByteBuffer) ReadBinary(n int) []byte {
	b.need(n)
	p := b.data[b.readerIndex : b.readerIndex+n : b.readerIndex+n]
	b.readerIndex += n
	return p
}

// ReadLength reads a varuint length and checks it against limit and the
// unread part of the buffer.
func (b *ByteBuffer) ReadLength(limit int) int {
	start := b.readerIndex
	n := b.ReadVaruint64()
	if n > uint64(limit) {
		panic(&DeserializationError{Offset: start, Err: ErrSizeExceeded})
	}
	if n > uint64(b.Remaining()) {
		panic(&DeserializationError{Offset: start, Err: ErrTruncated})
	}
	return int(n)
}

// ReadBytes reads a length-prefixed byte slice into fresh memory.
func (b *ByteBuffer) ReadBytes(limit int) []byte {
	n := b.ReadLength(limit)
	p := make([]byte, n)
	copy(p, b.ReadBinary(n))
	return p
}

func (b *ByteBuffer) ReadString(limit int) string {
	n := b.ReadLength(limit)
	return string(b.ReadBinary(n))
}
