package postgres

import (
	"reflect"
	"sync"
)

// column is one db-tagged field, embedded structs flattened into its index path.
type column struct {
	name  string
	index []int
}

var columnCache sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	var walk func(reflect.Type, []int)
	walk = func(st reflect.Type, prefix []int) {
		for i := range st.NumField() {
			f := st.Field(i)
			path := append(append([]int(nil), prefix...), i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type, path)
				continue
			}
			if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
				cols = append(cols, column{name: tag, index: path})
			}
		}
	}
	if t.Kind() == reflect.Struct {
		walk(t, nil)
	}

	columnCache.Store(t, cols)
	return cols
}

// ExtractDBColumns lists the db tags of T in field order. Embedded structs
// such as entity.Catalog contribute their columns in place.
//
//	ExtractDBColumns[warehouse.Warehouse]()
//	// ["id", "deletion_mark", "version", "code", "name", "type", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

// StructToMap maps the db-tagged fields of v to their values, ready for
// squirrel SetMap. A nil or non-struct v yields nil.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		out[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return out
}
