package output

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ApplyListOptions sorts and limits data when it is a list. The input is
// never modified.
func ApplyListOptions(ctx context.Context, data interface{}) interface{} {
	limit := LimitFromContext(ctx)
	sortBy, desc := SortFromContext(ctx)
	if limit <= 0 && sortBy == "" {
		return data
	}

	v := deref(reflect.ValueOf(data))
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return data
	}

	typ := v.Type()
	if v.Kind() == reflect.Array {
		typ = reflect.SliceOf(typ.Elem())
	}
	items := reflect.MakeSlice(typ, v.Len(), v.Len())
	reflect.Copy(items, v)

	if sortBy != "" {
		path := strings.Split(sortBy, ".")
		keys := make([]interface{}, items.Len())
		for i := range keys {
			keys[i], _ = lookup(items.Index(i), path)
		}
		idx := make([]int, items.Len())
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool {
			a, b := keys[idx[i]], keys[idx[j]]
			if a == nil || b == nil {
				return a != nil
			}
			c := compare(a, b)
			if desc {
				return c > 0
			}
			return c < 0
		})
		sorted := reflect.MakeSlice(items.Type(), items.Len(), items.Len())
		for i, from := range idx {
			sorted.Index(i).Set(items.Index(from))
		}
		items = sorted
	}

	if limit > 0 && limit < items.Len() {
		items = items.Slice(0, limit)
	}
	return items.Interface()
}

// lookup follows a dotted field path through structs and string keyed maps.
// Names match JSON names ignoring case, "_" and "-".
func lookup(v reflect.Value, path []string) (interface{}, bool) {
	v = deref(v)
	if !v.IsValid() {
		return nil, false
	}
	if len(path) == 0 {
		return v.Interface(), true
	}

	want := normalizeName(path[0])
	switch v.Kind() {
	case reflect.Struct:
		for _, f := range structFields(v.Type()) {
			if normalizeName(f.name) == want {
				return lookup(v.Field(f.idx), path[1:])
			}
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		for _, k := range v.MapKeys() {
			if normalizeName(k.String()) == want {
				return lookup(v.MapIndex(k), path[1:])
			}
		}
	}
	return nil, false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}

func compare(a, b interface{}) int {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			return boolInt(va) - boolInt(vb)
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(x interface{}) (float64, bool) {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
