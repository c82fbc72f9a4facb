//go:build !clibs
// +build !clibs

package envelope

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZstdEncoderPerLevel(t *testing.T) {
	fast, err := encoderFor(ZstdBestSpeed)
	require.NoError(t, err)
	again, err := encoderFor(ZstdBestSpeed)
	require.NoError(t, err)
	require.Same(t, fast, again)

	best, err := encoderFor(ZstdBestCompression)
	require.NoError(t, err)
	require.NotSame(t, fast, best)

	doc := bytes.Repeat([]byte("=fry level "), 200)
	var wg sync.WaitGroup
	for _, level := range []int{ZstdBestSpeed, ZstdDefaultCompression, ZstdBestCompression} {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(level int) {
				defer wg.Done()
				enc, err := zstdEncode(doc, level)
				if err != nil {
					t.Error(err)
					return
				}
				dec, err := zstdDecode(nil, enc)
				if err != nil || !bytes.Equal(dec, doc) {
					t.Errorf("level %d: round trip failed: %v", level, err)
				}
			}(level)
		}
	}
	wg.Wait()
}
