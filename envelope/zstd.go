package envelope

// ZstdCompressor compresses documents using the zstd format. The pure Go
// codec from klauspost/compress is used unless the package is built with the
// clibs tag, which switches to the cgo bindings of DataDog/zstd. Both produce
// standard zstd frames, so either build can open the other's envelopes.
type ZstdCompressor struct {
	Level int // compression level, ZstdDefaultCompression when zero
}

// Zstd constants
const (
	ZstdBestSpeed          = 1
	ZstdBestCompression    = 20
	ZstdDefaultCompression = 3
)

func (ZstdCompressor) Method() Method { return MethodZstd }

func (c ZstdCompressor) compress(b []byte) ([]byte, error) {
	if c.Level == 0 {
		c.Level = ZstdDefaultCompression
	}
	return zstdEncode(b, c.Level)
}
