package xmap

import (
	"log/slog"
	"reflect"
)

// typeTable holds the descriptors declared on one struct type, by tags and by
// its Describer.
type typeTable struct {
	rt       reflect.Type
	fields   map[string][]Source
	defaults *Source
	adapters map[string]reflect.Type
}

func (c *Cache) table(rt reflect.Type, log *slog.Logger) *typeTable {
	if v, ok := c.tables.Load(rt); ok {
		return v.(*typeTable)
	}
	v, _ := c.tables.LoadOrStore(rt, buildTable(rt, log))
	return v.(*typeTable)
}

func buildTable(rt reflect.Type, log *slog.Logger) *typeTable {
	tt := &typeTable{rt: rt, fields: make(map[string][]Source)}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, ok := sf.Tag.Lookup(tagName)
		if !ok {
			continue
		}
		srcs, err := parseSourceTag(tag)
		if err != nil {
			log.Warn("xmap: ignoring source tag", "type", rt, "field", sf.Name, "err", err)
			continue
		}
		if sf.Name == "_" {
			if len(srcs) > 0 {
				d := srcs[0]
				tt.defaults = &d
			}
			continue
		}
		tt.fields[sf.Name] = append(tt.fields[sf.Name], srcs...)
	}
	if d, ok := reflect.New(rt).Interface().(Describer); ok {
		var decl Declarations
		d.DescribeSources(&decl)
		for name, srcs := range decl.fields {
			tt.fields[name] = append(tt.fields[name], srcs...)
		}
		if decl.defaults != nil {
			tt.defaults = decl.defaults
		}
		tt.adapters = decl.adapters
	}
	return tt
}

// defaults returns the class-level default descriptor nearest to rt: its own,
// else the first found among its embedded types, breadth-first.
func (c *Cache) defaults(rt reflect.Type, log *slog.Logger) *Source {
	queue := []reflect.Type{rt}
	seen := map[reflect.Type]bool{}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if seen[t] {
			continue
		}
		seen[t] = true
		if d := c.table(t, log).defaults; d != nil {
			return d
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if ft := derefPtr(sf.Type); sf.Anonymous && ft.Kind() == reflect.Struct {
				queue = append(queue, ft)
			}
		}
	}
	return nil
}

// ---------------- Destination field registry ----------------

// fieldID identifies a struct field by its declaring type.
type fieldID struct {
	owner reflect.Type
	index int
}

// destField is one settable field of a destination type.
type destField struct {
	id    fieldID
	sf    reflect.StructField
	index []int // from the destination root, through embedded structs
}

func (f *destField) public() Field {
	return Field{StructField: f.sf, Owner: f.id.owner, Path: f.index}
}

// Field describes the destination field being populated; it is handed to
// converters.
type Field struct {
	reflect.StructField
	// Owner is the struct type declaring the field.
	Owner reflect.Type
	// Path is the index sequence from the destination root.
	Path []int
}

// buildFields flattens rt into its settable fields: fields of embedded
// structs come first, then the type's own, each in declaration order.
func buildFields(rt reflect.Type) []destField {
	var out []destField
	var walk func(t reflect.Type, base []int, depth int)
	walk = func(t reflect.Type, base []int, depth int) {
		if depth > maxEmbedDepth {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if ft := derefPtr(sf.Type); sf.Anonymous && ft.Kind() == reflect.Struct {
				walk(ft, appendIndex(base, i), depth+1)
			}
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.Anonymous && derefPtr(sf.Type).Kind() == reflect.Struct {
				continue
			}
			if !sf.IsExported() || sf.Name == "_" {
				continue
			}
			out = append(out, destField{
				id:    fieldID{owner: t, index: i},
				sf:    sf,
				index: appendIndex(base, i),
			})
		}
	}
	walk(rt, nil, 0)
	return out
}

const maxEmbedDepth = 16

func appendIndex(base []int, i int) []int {
	return append(append([]int(nil), base...), i)
}

// ---------------- Source field lookup ----------------

type sourceKey struct {
	rt   reflect.Type
	name string
}

// sourceField is an exported field of a source struct, possibly promoted
// from an embedded struct.
type sourceField struct {
	index []int
	typ   reflect.Type
}

var noSourceField = &sourceField{}

// sourceField looks name up in rt and its embedded types. Misses are cached
// too.
func (c *Cache) sourceField(rt reflect.Type, name string) *sourceField {
	rt = derefPtr(rt)
	key := sourceKey{rt: rt, name: name}
	if v, ok := c.sources.Load(key); ok {
		if sf := v.(*sourceField); sf != noSourceField {
			return sf
		}
		return nil
	}
	found := noSourceField
	if rt.Kind() == reflect.Struct {
		if sf, ok := rt.FieldByName(name); ok && sf.IsExported() {
			found = &sourceField{index: sf.Index, typ: sf.Type}
		}
	}
	c.sources.Store(key, found)
	if found == noSourceField {
		return nil
	}
	return found
}
