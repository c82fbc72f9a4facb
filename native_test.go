package fury

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// Version only knows how to encode itself through gob.
type Version struct {
	major, minor int
}

func (v *Version) GobEncode() ([]byte, error) {
	return []byte(fmt.Sprintf("%d.%d", v.major, v.minor)), nil
}

func (v *Version) GobDecode(b []byte) error {
	_, err := fmt.Sscanf(string(b), "%d.%d", &v.major, &v.minor)
	return err
}

type release struct {
	Name     string
	Version  Version
	Previous []Version
}

func TestGobFallback(t *testing.T) {
	logger, hook := test.NewNullLogger()
	f := New(WithLogger(logger))
	require.NoError(t, f.Register(Version{}, 20))
	require.NoError(t, f.Register(release{}, 21))

	in := release{
		Name:     "r",
		Version:  Version{2, 1},
		Previous: []Version{{1, 0}, {1, 1}, {2, 0}},
	}
	b, err := f.Serialize(in)
	require.NoError(t, err)

	var out release
	require.NoError(t, f.DeserializeInto(b, &out))
	require.Equal(t, in, out)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["type"] == "fury.Version" {
			warned = true
		}
	}
	require.True(t, warned, "no warning about the gob binding")
}

func TestGobSharesTypeDefinitions(t *testing.T) {
	f := New()
	require.NoError(t, f.Register(Version{}, 20))

	one, err := f.Serialize([]Version{{1, 0}})
	require.NoError(t, err)
	two, err := f.Serialize([]Version{{1, 0}, {1, 0}})
	require.NoError(t, err)

	// the second value carries no gob type definition
	require.Less(t, len(two)-len(one), len(one)-headerSize)
}

func TestComplexNumbers(t *testing.T) {
	f := New()
	for _, v := range []interface{}{complex64(1 + 2i), complex128(-3.5 + 0.25i), []complex128{1i, 2}} {
		b, err := f.Serialize(v)
		require.NoError(t, err)
		out, err := f.Deserialize(b)
		require.NoError(t, err)
		require.Equal(t, v, out)
	}

	_, err := New(WithNativeFallback(false)).Serialize(complex128(1))
	var nse *NoSerializerError
	require.ErrorAs(t, err, &nse)
}

func TestCorruptGobPayload(t *testing.T) {
	f := New()
	b, err := f.Serialize(complex128(7))
	require.NoError(t, err)

	// swap the gob chunk for one that holds a string
	var g bytes.Buffer
	require.NoError(t, gob.NewEncoder(&g).Encode("seven"))
	bad := NewByteBuffer(append([]byte(nil), b[:headerSize+2]...))
	bad.WriteBytes(g.Bytes())

	_, err = f.Deserialize(bad.Bytes())
	var de *DeserializationError
	require.ErrorAs(t, err, &de)
}

func TestLooksLikeGob(t *testing.T) {
	for _, v := range []interface{}{
		1,
		"hello",
		[]string{"a", "b"},
		map[string]int{"a": 1},
		&release{Name: "x", Previous: []Version{{1, 2}}},
		bytes.Repeat([]byte{7}, 300),
	} {
		var buf bytes.Buffer
		require.NoError(t, gob.NewEncoder(&buf).Encode(v))
		if !LooksLikeGob(buf.Bytes()) {
			t.Errorf("LooksLikeGob(gob of %T) = false", v)
		}
	}

	doc, err := New().Serialize("x")
	require.NoError(t, err)

	for _, b := range [][]byte{
		nil,
		{0},
		{5, 0, 1, 2, 3, 4},
		{10, 1, 2},
		{0xfe, 0x01},
		doc,
	} {
		if LooksLikeGob(b) {
			t.Errorf("LooksLikeGob(%x) = true", b)
		}
	}
}

func TestForeignFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(map[string]int{"a": 1, "b": 2}))

	_, err := New().Deserialize(buf.Bytes())
	require.ErrorIs(t, err, ErrForeignFormat)

	_, err = New().Deserialize([]byte("not a document"))
	require.ErrorIs(t, err, ErrBadHeader)
}
