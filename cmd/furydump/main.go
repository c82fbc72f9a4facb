package main

import (
	"errors"
	"flag"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/furyio/fury/go/fury"
	"github.com/furyio/fury/go/fury/envelope"
)

func process(f *fury.Fury, fname string, b []byte) {
	log := logrus.WithField("file", fname)

	if envelope.IsEnvelope(b) {
		doc, err := envelope.Open(b)
		if err != nil {
			log.WithError(err).Fatal("cannot open envelope")
		}
		log.WithFields(logrus.Fields{"sealed": len(b), "document": len(doc)}).Debug("opened envelope")
		b = doc
	}

	v, err := f.Deserialize(b)
	if errors.Is(err, fury.ErrForeignFormat) {
		log.Fatal("input looks like a gob stream, not a fury document")
	}
	if err != nil {
		log.WithError(err).Fatal("error processing document")
	}

	spew.Dump(v)
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// unknown struct types in compatible documents decode as fury.UnknownStruct
	f := fury.New(
		fury.WithRequireRegistration(false),
		fury.WithLogger(logrus.StandardLogger()),
	)

	if flag.NArg() == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			logrus.WithError(err).Fatal("cannot read stdin")
		}
		process(f, "stdin", b)
		return
	}

	for _, arg := range flag.Args() {
		b, err := os.ReadFile(arg)
		if err != nil {
			logrus.WithError(err).Fatal("cannot read file")
		}
		process(f, arg, b)
	}
}
