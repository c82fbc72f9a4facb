package fury

import "sync"

// A Session shares struct schemas across the documents it writes and reads.
// The first document that contains a struct type carries its schema; later
// documents refer to it by handle. Documents written by a session must be
// read by one session, in the order they were written.
//
// Calls on one Session are serialized. A call that fails leaves the session
// as it was before the call.
type Session struct {
	fury *Fury

	wmu   sync.Mutex
	write *MetaContext

	rmu  sync.Mutex
	read *MetaContext
}

// NewSession returns a session bound to f.
func (f *Fury) NewSession() *Session {
	return &Session{
		fury:  f,
		write: NewMetaContext(),
		read:  NewMetaContext(),
	}
}

func (s *Session) Serialize(v interface{}) ([]byte, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.write.mark()
	b, err := s.fury.serialize(v, s.write)
	if err != nil {
		s.write.rollback()
		return nil, err
	}
	return b, nil
}

func (s *Session) Deserialize(b []byte) (interface{}, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	s.read.mark()
	v, err := s.fury.deserialize(b, s.read)
	if err != nil {
		s.read.rollback()
		return nil, err
	}
	return v, nil
}

func (s *Session) DeserializeInto(b []byte, ptr interface{}) error {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	s.read.mark()
	if err := s.fury.deserializeInto(b, ptr, s.read); err != nil {
		s.read.rollback()
		return err
	}
	return nil
}

// Reset forgets every schema exchanged so far. Both peers must reset at the
// same point in the document sequence.
func (s *Session) Reset() {
	s.wmu.Lock()
	s.write.Reset()
	s.wmu.Unlock()

	s.rmu.Lock()
	s.read.Reset()
	s.rmu.Unlock()
}

// Schemas returns how many schemas the session has written and read.
func (s *Session) Schemas() (written, read int) {
	s.wmu.Lock()
	written, _ = s.write.Len()
	s.wmu.Unlock()

	s.rmu.Lock()
	_, read = s.read.Len()
	s.rmu.Unlock()
	return written, read
}
