//go:build gofuzz
// +build gofuzz

package fury

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

var fuzzFury = New(WithRequireRegistration(false), WithCompatibleMode(Compatible))

func Fuzz(data []byte) int {
	if _, err := readHeader(data); err != nil {
		return 0
	}

	m, err := fuzzFury.Deserialize(data)
	if err != nil {
		return 0
	}

	enc, err := fuzzFury.Serialize(m)
	if err != nil {
		// generic values of unknown struct types cannot be written back
		return 0
	}

	m2, err := fuzzFury.Deserialize(enc)
	if err != nil {
		panic("unmarshalling marshalled data: " + err.Error())
	}

	if !reflect.DeepEqual(m, m2) {
		panic("failed to roundtrip")
	}

	return 1
}

type FuzzS struct {
	A int
	B string
	C float64
	D bool
	E uint8
	F []byte
	G interface{}
	H map[string]interface{}
	I map[string]string
	J []interface{}
	K []string
	L FuzzS1
	M *FuzzS1
	N *int
	O **int
}

type FuzzS1 struct {
	A int
	B string
}

func FuzzStructure(data []byte) int {
	var s FuzzS

	if _, err := readHeader(data); err != nil {
		return 0
	}

	if err := fuzzFury.DeserializeInto(data, &s); err != nil {
		return 0
	}

	enc, err := fuzzFury.Serialize(s)
	if err != nil {
		panic("unable to marshal: " + err.Error())
	}

	var s2 FuzzS
	if err := fuzzFury.DeserializeInto(enc, &s2); err != nil {
		panic("unmarshalling marshalled data: " + err.Error())
	}

	if !reflect.DeepEqual(s, s2) {
		panic("failed to roundtrip: " + cmp.Diff(s, s2))
	}

	return 1
}
