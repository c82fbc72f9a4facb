package fury

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type withChan struct {
	P PersonV1
	C interface{}
}

func sessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	w := compatFury(t, PersonV1{})
	require.NoError(t, w.RegisterNamed(withChan{}, "test", "WithChan"))
	r := compatFury(t, PersonV1{})
	return w.NewSession(), r.NewSession()
}

func TestSessionSharesSchemas(t *testing.T) {
	w, r := sessionPair(t)

	first, err := w.Serialize(PersonV1{Name: "a", Age: 1})
	require.NoError(t, err)
	second, err := w.Serialize(PersonV1{Name: "a", Age: 1})
	require.NoError(t, err)
	require.Less(t, len(second), len(first))

	written, _ := w.Schemas()
	require.Equal(t, 1, written)

	for _, doc := range [][]byte{first, second} {
		v, err := r.Deserialize(doc)
		require.NoError(t, err)
		require.Equal(t, PersonV1{Name: "a", Age: 1}, v)
	}
	_, read := r.Schemas()
	require.Equal(t, 1, read)
}

func TestSessionOutOfOrder(t *testing.T) {
	w, r := sessionPair(t)

	first, err := w.Serialize(PersonV1{Name: "a"})
	require.NoError(t, err)
	second, err := w.Serialize(PersonV1{Name: "b"})
	require.NoError(t, err)

	var de *DeserializationError
	_, err = r.Deserialize(second)
	require.ErrorAs(t, err, &de)
	require.Contains(t, de.Error(), errBadSchemaHandle)

	// the failed read left the session untouched
	_, read := r.Schemas()
	require.Equal(t, 0, read)
	_, err = r.Deserialize(first)
	require.NoError(t, err)
	_, err = r.Deserialize(second)
	require.NoError(t, err)
}

func TestSessionRollback(t *testing.T) {
	w, r := sessionPair(t)

	_, err := w.Serialize(withChan{P: PersonV1{Name: "x"}, C: make(chan int)})
	var nse *NoSerializerError
	require.ErrorAs(t, err, &nse)

	written, _ := w.Schemas()
	require.Equal(t, 0, written)

	doc, err := w.Serialize(PersonV1{Name: "y"})
	require.NoError(t, err)
	v, err := r.Deserialize(doc)
	require.NoError(t, err)
	require.Equal(t, PersonV1{Name: "y"}, v)
}

func TestSessionReset(t *testing.T) {
	w, r := sessionPair(t)

	first, err := w.Serialize(PersonV1{Name: "a"})
	require.NoError(t, err)
	_, err = r.Deserialize(first)
	require.NoError(t, err)

	w.Reset()
	r.Reset()

	again, err := w.Serialize(PersonV1{Name: "a"})
	require.NoError(t, err)
	require.Equal(t, first, again)

	var p PersonV1
	require.NoError(t, r.DeserializeInto(again, &p))
	require.Equal(t, PersonV1{Name: "a"}, p)
}

func TestEngineMetaShare(t *testing.T) {
	w := compatFury(t, PersonV1{}, WithMetaShare(true))
	r := compatFury(t, PersonV1{}, WithMetaShare(true))

	docs := make([][]byte, 3)
	for i := range docs {
		var err error
		docs[i], err = w.Serialize([]PersonV1{{Name: "m", Age: int32(i)}})
		require.NoError(t, err)
	}
	for i, doc := range docs {
		var out []PersonV1
		require.NoError(t, r.DeserializeInto(doc, &out))
		require.Equal(t, []PersonV1{{Name: "m", Age: int32(i)}}, out)
	}

	// a per-call reader cannot resolve handles from another document
	_, err := compatFury(t, PersonV1{}).Deserialize(docs[1])
	require.ErrorIs(t, err, ErrMetaShare)
}
