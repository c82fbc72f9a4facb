package fury

import (
	"reflect"
	"strings"
	"sync"
)

type tagsCache struct {
	cmap sync.Map // reflect.Type -> []fieldTag
}

type fieldTag struct {
	index int
	name  string
}

// Get returns the serialized fields of struct type t in declaration order.
func (tc *tagsCache) Get(t reflect.Type) []fieldTag {
	if t.Kind() != reflect.Struct {
		return nil
	}

	if m, ok := tc.cmap.Load(t); ok {
		return m.([]fieldTag)
	}

	var tags []fieldTag
	seen := make(map[string]bool)

	l := t.NumField()
	for i := 0; i < l; i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("fury"), ",")
		if name == "-" {
			// fury tag is "-" -- skip
			continue
		}

		if f.PkgPath != "" {
			// field not exported -- skip
			continue
		}

		if name == "" {
			name = f.Name
		}

		// first field wins on a duplicate tag
		if seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, fieldTag{i, name})
	}

	m, _ := tc.cmap.LoadOrStore(t, tags)
	return m.([]fieldTag)
}
