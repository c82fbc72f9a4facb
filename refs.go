package fury

import "reflect"

// refKey identifies one instance. The type is part of the key because a struct
// and its first field share an address; the length is part of it because
// slices of one backing array with different lengths are different values.
type refKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// identity returns the key of v, or false when v has no identity to track.
func identity(v reflect.Value) (refKey, bool) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.Type().Elem().Size() == 0 {
			// every zero-sized allocation may share one address
			return refKey{}, false
		}
		return refKey{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Map:
		return refKey{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.Cap() == 0 {
			return refKey{}, false
		}
		return refKey{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}, true
	}
	return refKey{}, false
}

// refWriter hands out reference ids in first-visit order.
type refWriter struct {
	ids map[refKey]int32
	// instances on the current path, used only without reference tracking
	onPath map[refKey]struct{}
}

func newRefWriter() *refWriter {
	return &refWriter{
		ids:    make(map[refKey]int32),
		onPath: make(map[refKey]struct{}),
	}
}

// trackWrite returns the id of an instance seen before. Otherwise it records
// the instance under the next id and returns false.
func (w *refWriter) trackWrite(k refKey) (int32, bool) {
	if id, ok := w.ids[k]; ok {
		return id, true
	}
	w.ids[k] = int32(len(w.ids))
	return 0, false
}

// enter marks k as being written; it fails if k is already on the path.
func (w *refWriter) enter(k refKey) bool {
	if _, ok := w.onPath[k]; ok {
		return false
	}
	w.onPath[k] = struct{}{}
	return true
}

func (w *refWriter) leave(k refKey) { delete(w.onPath, k) }

func (w *refWriter) reset() {
	clear(w.ids)
	clear(w.onPath)
}

// refReader holds materialized instances indexed by reference id.
type refReader struct {
	objs []reflect.Value
}

// preRegister reserves the next id. The serializer that allocates the instance
// binds it before reading any of its contents.
func (r *refReader) preRegister() int32 {
	r.objs = append(r.objs, reflect.Value{})
	return int32(len(r.objs) - 1)
}

func (r *refReader) bind(id int32, v reflect.Value) { r.objs[id] = v }

// resolveReference returns the instance bound to id. The instance may still be
// incomplete when a cycle leads back to it.
func (r *refReader) resolveReference(id uint32) (reflect.Value, bool) {
	if uint64(id) >= uint64(len(r.objs)) {
		return reflect.Value{}, false
	}
	return r.objs[id], true
}

func (r *refReader) reset() {
	clear(r.objs)
	r.objs = r.objs[:0]
}
