package xmap

import (
	"fmt"
	"reflect"

	"github.com/go-openapi/jsonpointer"
)

// Getter extracts the value a destination field would receive from src. ok
// is false when src holds nothing for the field.
type Getter func(src any) (v any, ok bool, err error)

type (
	getterFunc func(c *call, src reflect.Value) (any, bool, error)
	setterFunc func(c *call, dst reflect.Value, v any) error
	locator    func(n *Node) *Node
)

// getterEntry is a compiled getter with the descriptor it was built from.
// fn is nil when the field does not resolve for the key.
type getterEntry struct {
	fn  getterFunc
	eff *effective
}

func (m *Mapper) getter(p *plan, fi int, src reflect.Type, c *call) getterEntry {
	key := closureKey{field: fi, src: src, groups: c.gkey}
	if v, ok := p.getters.Load(key); ok {
		return v.(getterEntry)
	}
	var ge getterEntry
	if e := m.resolve(p, fi, src, c.groups, c.gkey); e != nil {
		if fn := m.compileGetter(p.rt, &p.fields[fi], e, src); fn != nil {
			ge = getterEntry{fn: fn, eff: e}
			m.cfg.logger.Debug("xmap: compiled getter",
				"type", p.rt, "field", p.fields[fi].sf.Name, "source", src, "descriptor", dump{e})
		}
	}
	v, _ := p.getters.LoadOrStore(key, ge)
	return v.(getterEntry)
}

func (m *Mapper) setter(p *plan, fi int, src reflect.Type, gkey string, resolved bool) setterFunc {
	key := closureKey{field: fi, src: src, groups: gkey}
	if v, ok := p.setters.Load(key); ok {
		return v.(setterFunc)
	}
	fn := setterFunc(noopSetter)
	if resolved {
		fn = compileSetter(&p.fields[fi])
	}
	v, _ := p.setters.LoadOrStore(key, fn)
	return v.(setterFunc)
}

func noopSetter(*call, reflect.Value, any) error { return nil }

// compileGetter builds the extraction closure for e. It returns nil when a
// pointer or path expression of e does not compile.
func (m *Mapper) compileGetter(dst reflect.Type, f *destField, e *effective, src reflect.Type) getterFunc {
	loc, err := m.compileLocator(e)
	if err != nil {
		m.cfg.logger.Warn("xmap: invalid json expression", "type", dst, "field", f.sf.Name, "err", err)
		return nil
	}

	if isJSONType(src) {
		var keys []string
		if e.field != "" {
			keys = append(keys, e.field)
		}
		keys = append(keys, e.path...)
		return func(c *call, sv reflect.Value) (any, bool, error) {
			n := sourceNode(sv)
			for _, k := range keys {
				n = n.Get(k)
			}
			if loc != nil {
				n = loc(n)
			}
			v, ok := unwrap(n)
			return v, ok, nil
		}
	}

	name := e.sourceName(f.sf.Name)
	sf := m.cache.sourceField(src, name)
	if sf == nil {
		return nil
	}
	path := e.path

	if e.usesJSON() {
		where := src.String() + "." + name
		return func(c *call, sv reflect.Value) (any, bool, error) {
			raw, ok := readField(sv, sf.index, path)
			if !ok {
				return nil, false, nil
			}
			n, ok, err := c.node(raw, where)
			if err != nil || !ok {
				return nil, false, err
			}
			v, ok := unwrap(loc(n))
			if !ok {
				c.m.cfg.logger.Debug("xmap: json location yields nothing", "source", where, "pointer", e.pointer, "jsonpath", e.jsonPath)
			}
			return v, ok, nil
		}
	}

	return func(c *call, sv reflect.Value) (any, bool, error) {
		v, ok := readField(sv, sf.index, path)
		if !ok {
			return nil, false, nil
		}
		out, ok := present(v)
		return out, ok, nil
	}
}

// compileLocator compiles the pointer or path expression of e, if any.
func (m *Mapper) compileLocator(e *effective) (locator, error) {
	switch {
	case e.pointer != "":
		p, err := jsonpointer.New(e.pointer)
		if err != nil {
			return nil, fmt.Errorf("pointer %q: %w", e.pointer, err)
		}
		return func(n *Node) *Node {
			at, ok := n.at(p)
			if !ok {
				return nil
			}
			return at
		}, nil
	case e.jsonPath != "":
		x, err := m.cache.jsonPath(e.jsonPath)
		if err != nil {
			return nil, err
		}
		return func(n *Node) *Node { return n.query(x) }, nil
	}
	return nil, nil
}

// compileSetter builds the assignment closure of f. Only fatal errors leave
// it; anything else is logged and the field stays as it was. The closure
// reads configuration from the call, so it can be shared by Mappers with
// different options.
func compileSetter(f *destField) setterFunc {
	pf := f.public()
	return func(c *call, root reflect.Value, v any) error {
		v, ok := c.adapt(f, v)
		if !ok {
			return nil
		}
		fv := fieldByIndexAlloc(root, f.index)
		if err := c.assign(fv, v, pf); err != nil {
			if isFatal(err) {
				return err
			}
			c.m.cfg.logger.Warn("xmap: cannot assign field",
				"type", root.Type(), "field", f.sf.Name, "value", fmt.Sprintf("%T", v), "err", err)
		}
		return nil
	}
}

// ---------------- Source access ----------------

// sourceNode returns the node held by a JSON-capable source value.
func sourceNode(v reflect.Value) *Node {
	switch x := v.Interface().(type) {
	case *Node:
		return x
	case Node:
		return &x
	case map[string]any:
		return NodeOf(x)
	}
	return nil
}

// readField reads the field at index of the struct behind v, then descends
// through path. It reports false when a nil pointer or a missing name is met
// on the way.
func readField(v reflect.Value, index []int, path []string) (reflect.Value, bool) {
	v, ok := indirect(v)
	if !ok || v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	fv, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, false
	}
	for _, name := range path {
		if fv, ok = step(fv, name); !ok {
			return reflect.Value{}, false
		}
	}
	return fv, true
}

// step descends into v by name: a struct field, a map key or an object member.
func step(v reflect.Value, name string) (reflect.Value, bool) {
	v, ok := indirect(v)
	if !ok {
		return reflect.Value{}, false
	}
	switch {
	case v.Type() == nodePtrType:
		n := v.Interface().(*Node).Get(name)
		return reflect.ValueOf(n), n != nil
	case v.Type() == nodeType:
		nv := v.Interface().(Node)
		n := nv.Get(name)
		return reflect.ValueOf(n), n != nil
	}
	switch v.Kind() {
	case reflect.Struct:
		sf, ok := v.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, false
		}
		fv, err := v.FieldByIndexErr(sf.Index)
		return fv, err == nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		return mv, mv.IsValid()
	}
	return reflect.Value{}, false
}

// indirect strips interfaces and pointers, stopping at *Node.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() {
		switch {
		case v.Kind() == reflect.Interface, v.Kind() == reflect.Pointer && v.Type() != nodePtrType:
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		default:
			return v, !(v.Kind() == reflect.Pointer && v.IsNil())
		}
	}
	return v, false
}

// present converts a read value to an interface value; nil values are absent.
func present(v reflect.Value) (any, bool) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Invalid:
		return nil, false
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, false
		}
	}
	return v.Interface(), true
}
