package envelope

import "github.com/golang/snappy"

// SnappyCompressor compresses documents using the Snappy block format.
type SnappyCompressor struct{}

func (SnappyCompressor) Method() Method { return MethodSnappy }

func (SnappyCompressor) compress(b []byte) ([]byte, error) {
	return snappy.Encode(nil, b), nil
}

func snappyDecode(b []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(b)
	if err != nil {
		return nil, err
	}
	if n > MaxDocumentSize {
		return nil, ErrTooLarge
	}
	return snappy.Decode(nil, b)
}
