package envelope

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sync"
)

// ZlibCompressor compresses documents using the zlib format.
type ZlibCompressor struct {
	Level int // compression level
}

const (
	ZlibNoCompression      = zlib.NoCompression
	ZlibBestSpeed          = zlib.BestSpeed
	ZlibBestCompression    = zlib.BestCompression
	ZlibDefaultCompression = zlib.DefaultCompression
)

var zlibWriterPools = make(map[int]*sync.Pool)

func init() {
	// -1 => 9
	for i := zlib.DefaultCompression; i <= zlib.BestCompression; i++ {
		level := i
		zlibWriterPools[i] = &sync.Pool{
			New: func() interface{} {
				zw, _ := zlib.NewWriterLevel(nil, level)
				return zw
			},
		}
	}
}

func (ZlibCompressor) Method() Method { return MethodZlib }

func (c ZlibCompressor) compress(b []byte) ([]byte, error) {
	pool := zlibWriterPools[c.Level]
	if pool == nil {
		return nil, fmt.Errorf("envelope: unknown zlib level %d", c.Level)
	}

	var comp bytes.Buffer
	zw := pool.Get().(*zlib.Writer)
	defer pool.Put(zw)
	zw.Reset(&comp)

	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return comp.Bytes(), nil
}

func zlibDecode(uln int, b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	// one byte past the claimed length is enough to detect a lie
	dec := bytes.NewBuffer(make([]byte, 0, uln))
	if _, err := dec.ReadFrom(io.LimitReader(zr, int64(uln)+1)); err != nil {
		return nil, err
	}
	return dec.Bytes(), nil
}
