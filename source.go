package xmap

import (
	"reflect"
	"slices"
)

// Empty marks a string attribute of a Source as explicitly empty, so that it
// overrides a class-level default instead of inheriting it.
const Empty = "\x00"

// Any, used as Source.From, matches every source type and overrides a
// class-level default.
var Any = reflect.TypeOf((*any)(nil)).Elem()

// Source declares where a destination field's value comes from.
//
// Zero values mean "unset": the attribute is taken from the class-level
// default of the destination type, if any. Use Empty, Any, or a non-nil empty
// slice to set an attribute to its empty value explicitly.
type Source struct {
	// Field is the source field name; unset means the destination field name.
	// When the source is a JSON node, Field is an object key.
	Field string
	// Path lists further field names (or object keys) to descend into.
	Path []string
	// From restricts the descriptor to sources assignable to this type.
	From reflect.Type
	// Pointer is a JSON pointer evaluated against the (embedded) JSON value.
	Pointer string
	// JSONPath is a path expression evaluated against the (embedded) JSON value.
	JSONPath string
	// Groups gates the descriptor: it only applies when the caller passes a
	// related group.
	Groups []reflect.Type
}

// effective is a Source merged with its class-level default.
type effective struct {
	field    string
	path     []string
	from     reflect.Type
	pointer  string
	jsonPath string
	groups   []reflect.Type
}

// merge combines a field-level descriptor with the class-level default def
// (nil when the destination type declares none).
func merge(s Source, def *Source) effective {
	var d Source
	if def != nil {
		d = *def
	}
	e := effective{
		field:    pick(s.Field, d.Field),
		pointer:  pick(s.Pointer, d.Pointer),
		jsonPath: pick(s.JSONPath, d.JSONPath),
		path:     s.Path,
		groups:   s.Groups,
		from:     s.From,
	}
	if e.path == nil {
		e.path = d.Path
	}
	if e.groups == nil {
		e.groups = d.Groups
	}
	if e.from == nil {
		e.from = d.From
	}
	if e.from == Any {
		e.from = nil
	} else if e.from != nil {
		e.from = derefPtr(e.from)
	}
	if len(e.path) == 0 {
		e.path = nil
	}
	if len(e.groups) == 0 {
		e.groups = nil
	}
	return e
}

func pick(v, def string) string {
	if v == "" {
		v = def
	}
	if v == Empty {
		return ""
	}
	return v
}

func (e *effective) usesJSON() bool { return e.pointer != "" || e.jsonPath != "" }

func (e *effective) valid() bool { return e.pointer == "" || e.jsonPath == "" }

// sourceName is the source field the descriptor reads for destination field dest.
func (e *effective) sourceName(dest string) string {
	if e.field != "" {
		return e.field
	}
	return dest
}

func (e *effective) equal(o *effective) bool {
	return e.field == o.field &&
		e.from == o.from &&
		e.pointer == o.pointer &&
		e.jsonPath == o.jsonPath &&
		slices.Equal(e.path, o.path) &&
		slices.Equal(e.groups, o.groups)
}

// Declarations collects descriptors declared in code by a Describer.
type Declarations struct {
	fields   map[string][]Source
	defaults *Source
	adapters map[string]reflect.Type
}

// Field appends descriptors for the named field, after any declared by tags.
func (d *Declarations) Field(name string, sources ...Source) *Declarations {
	if d.fields == nil {
		d.fields = make(map[string][]Source)
	}
	d.fields[name] = append(d.fields[name], sources...)
	return d
}

// Defaults sets the class-level default descriptor of the type.
func (d *Declarations) Defaults(s Source) *Declarations {
	d.defaults = &s
	return d
}

// Adapter declares an external adapter for the named field. A fresh instance
// of a's type is created the first time the field is mapped.
func (d *Declarations) Adapter(name string, a Adapter) *Declarations {
	if d.adapters == nil {
		d.adapters = make(map[string]reflect.Type)
	}
	d.adapters[name] = reflect.TypeOf(a)
	return d
}
