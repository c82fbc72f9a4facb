//go:build !clibs
// +build !clibs

package envelope

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// encoders holds one *zstd.Encoder per level. EncodeAll is safe for
// concurrent use, so an encoder is built once and shared.
var encoders sync.Map

func encoderFor(level int) (*zstd.Encoder, error) {
	if e, ok := encoders.Load(level); ok {
		return e.(*zstd.Encoder), nil
	}
	e, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	if prev, loaded := encoders.LoadOrStore(level, e); loaded {
		e.Close()
		return prev.(*zstd.Encoder), nil
	}
	return e, nil
}

func zstdEncode(buf []byte, level int) ([]byte, error) {
	e, err := encoderFor(level)
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(buf, make([]byte, 0, len(buf)/2)), nil
}

// decoder serves every Open. It refuses frames that would decode past
// MaxDocumentSize.
var decoder, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(0),
	zstd.WithDecoderMaxMemory(MaxDocumentSize),
)

func zstdDecode(d, buf []byte) ([]byte, error) {
	return decoder.DecodeAll(buf, d)
}
