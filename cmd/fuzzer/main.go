package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	mrand "math/rand"

	"github.com/dgryski/go-ddmin"
	"github.com/sirupsen/logrus"

	"github.com/furyio/fury/go/fury"
)

// crashes reports whether decoding doc panics instead of returning an error.
func crashes(f *fury.Fury, doc []byte) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
		}
	}()
	_, _ = f.Deserialize(doc)
	return false
}

func seed(rnd *mrand.Rand) interface{} {
	list := []interface{}{"x", int64(rnd.Intn(1000)), 1.5, true, []byte("bytes")}
	list = append(list, list)
	m := map[string]interface{}{"list": list, "n": rnd.Int63()}
	for i := 0; i < rnd.Intn(8); i++ {
		m[fmt.Sprint("k", i)] = []int32{int32(i), int32(rnd.Int31())}
	}
	return m
}

func mutate(rnd *mrand.Rand, doc []byte) []byte {
	out := append([]byte(nil), doc...)
	for i := 0; i < 1+rnd.Intn(4); i++ {
		// keep the header so the body gets exercised
		pos := 6 + rnd.Intn(len(out)-6)
		out[pos] = byte(rnd.Intn(256))
	}
	return out
}

func main() {
	iterations := flag.Int("n", 100000, "number of mutated documents to try")
	seedFlag := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rnd := mrand.New(mrand.NewSource(*seedFlag))
	f := fury.New(fury.WithRequireRegistration(false), fury.WithLogger(logrus.StandardLogger()))

	for i := 0; i < *iterations; i++ {
		doc, err := f.Serialize(seed(rnd))
		if err != nil {
			logrus.WithError(err).Fatal("cannot serialize seed value")
		}
		doc = mutate(rnd, doc)
		if !crashes(f, doc) {
			continue
		}

		minimal := ddmin.Minimize(doc, func(d []byte) ddmin.Result {
			if crashes(f, d) {
				return ddmin.Fail
			}
			return ddmin.Pass
		})
		logrus.WithFields(logrus.Fields{"iteration": i, "size": len(doc), "minimized": len(minimal)}).Error("decoder panicked")
		fmt.Println(hex.Dump(minimal))
	}
}
