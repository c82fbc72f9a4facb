package fury

import (
	"reflect"
	"testing"
)

func TestIdentity(t *testing.T) {
	type pair struct{ A, B int }
	p := &pair{}
	s := make([]int, 4, 8)
	m := map[string]int{}

	key := func(v interface{}) refKey {
		k, ok := identity(reflect.ValueOf(v))
		if !ok {
			t.Fatalf("no identity for %T", v)
		}
		return k
	}

	if key(p) != key(p) || key(m) != key(m) || key(s) != key(s) {
		t.Error("identity is not stable")
	}
	if key(p) == key(&p.A) {
		t.Error("a struct and its first field share a key")
	}
	if key(s) == key(s[:2]) {
		t.Error("slices of different length share a key")
	}
	if key(s[1:]) == key(s) {
		t.Error("slices at different offsets share a key")
	}

	for _, v := range []interface{}{
		1,
		"str",
		pair{},
		&struct{}{},
		[]int{},
		[0]int{},
	} {
		if _, ok := identity(reflect.ValueOf(v)); ok {
			t.Errorf("identity(%T) tracked", v)
		}
	}
}

func TestRefWriter(t *testing.T) {
	w := newRefWriter()
	a, _ := identity(reflect.ValueOf(&[]int{1}))
	b, _ := identity(reflect.ValueOf(map[int]int{}))

	if _, seen := w.trackWrite(a); seen {
		t.Fatal("a seen before writing it")
	}
	if _, seen := w.trackWrite(b); seen {
		t.Fatal("b seen before writing it")
	}
	if id, seen := w.trackWrite(b); !seen || id != 1 {
		t.Errorf("b: id %d seen %v, want 1 true", id, seen)
	}
	if id, seen := w.trackWrite(a); !seen || id != 0 {
		t.Errorf("a: id %d seen %v, want 0 true", id, seen)
	}

	if !w.enter(a) || w.enter(a) {
		t.Error("enter does not detect a revisit")
	}
	w.leave(a)
	if !w.enter(a) {
		t.Error("enter after leave failed")
	}

	w.reset()
	if _, seen := w.trackWrite(a); seen {
		t.Error("reset kept ids")
	}
}

func TestRefReader(t *testing.T) {
	var r refReader
	outer := r.preRegister()
	inner := r.preRegister()
	if outer != 0 || inner != 1 {
		t.Fatalf("ids %d %d", outer, inner)
	}

	if v, ok := r.resolveReference(0); !ok || v.IsValid() {
		t.Error("unbound id resolved to a value")
	}
	if _, ok := r.resolveReference(2); ok {
		t.Error("unknown id resolved")
	}

	x := reflect.ValueOf(&struct{ N int }{7})
	r.bind(outer, x)
	if v, ok := r.resolveReference(0); !ok || v.Interface() != x.Interface() {
		t.Error("bound id does not resolve to its value")
	}

	r.reset()
	if _, ok := r.resolveReference(0); ok {
		t.Error("reset kept ids")
	}
}
