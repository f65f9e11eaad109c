package xmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// Mapper owns a configuration and a cache. Use the package-level helpers
// (Map, MapInto) for the lazily created default, or New for your own.
// A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	cfg      config
	cache    *Cache
	retained *jsonCache // set with WithRetainedJSON
}

// defaultCache is the process-wide cache shared by Mappers that do not bring
// their own.
var defaultCache = NewCache()

// New returns a Mapper configured by opts.
func New(opts ...Option) *Mapper {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return newMapper(cfg)
}

func newMapper(cfg config) *Mapper {
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.cache == nil {
		cfg.cache = defaultCache
	}
	m := &Mapper{cfg: cfg, cache: cfg.cache}
	if cfg.retainJSON {
		m.retained = newJSONCache(true)
	}
	return m
}

// With returns a copy of m with opts applied on top of m's configuration.
// The copy shares m's cache unless WithCache says otherwise.
func (m *Mapper) With(opts ...Option) *Mapper {
	cfg := m.cfg.clone()
	for _, o := range opts {
		o(&cfg)
	}
	return newMapper(cfg)
}

// Cache returns the cache m resolves through.
func (m *Mapper) Cache() *Cache { return m.cache }

// ClearJSONCache drops the documents retained by a Mapper created
// WithRetainedJSON. It is a no-op otherwise.
func (m *Mapper) ClearJSONCache() {
	if m.retained != nil {
		m.retained.clear()
	}
}

// call is the state of one top-level mapping call, passed to everything it
// reaches, nested sub-mappings included.
type call struct {
	m      *Mapper
	json   *jsonCache
	groups []reflect.Type
	gkey   string
}

func (m *Mapper) begin(groups []reflect.Type) *call {
	c := &call{m: m, groups: groups, gkey: groupKey(groups)}
	if m.retained != nil {
		c.json = m.retained
	} else {
		c.json = newJSONCache(false)
	}
	return c
}

// Map creates a value of type dst and populates it from src. dst must be a
// struct type or a pointer to one; the result has type dst. The new value's
// Init method runs first when it implements Initializer.
func (m *Mapper) Map(src any, dst reflect.Type, groups ...reflect.Type) (any, error) {
	p, err := construct(dst)
	if err != nil {
		return nil, err
	}
	if err := m.MapInto(src, p.Interface(), groups...); err != nil {
		return nil, err
	}
	if dst.Kind() == reflect.Pointer {
		return p.Interface(), nil
	}
	return p.Elem().Interface(), nil
}

// MapInto populates the struct dst points to from src. Fields that do not
// resolve are left untouched, as are fields whose value cannot be converted.
// The only errors are *MapError values: an invalid destination or malformed
// embedded JSON. dst may be partially populated when an error is returned.
//
// src is read through its exported fields when it is a struct (or pointer to
// one), and as a JSON node otherwise (*Node, map[string]any, decoded values).
// Only descriptors without groups apply unless groups are given.
func (m *Mapper) MapInto(src, dst any, groups ...reflect.Type) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &MapError{Kind: ErrDestination, Err: fmt.Errorf("got %T", dst)}
	}
	c := m.begin(groups)
	sv, st := sourceOf(src)
	return c.mapStruct(rv.Elem(), sv, st)
}

// To is the generic form of Mapper.Map.
func To[T any](m *Mapper, src any, groups ...reflect.Type) (T, error) {
	var zero T
	v, err := m.Map(src, TypeOf[T](), groups...)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Getter returns the compiled getter of field of dst for sources of type src,
// or false when the field does not resolve for that source type. The getter
// performs no assignment; it reports what the field would receive, before
// adaptation.
func (m *Mapper) Getter(dst reflect.Type, field string, src reflect.Type, groups ...reflect.Type) (Getter, bool) {
	if dst == nil || derefPtr(dst).Kind() != reflect.Struct || src == nil {
		return nil, false
	}
	p := m.cache.plan(derefPtr(dst))
	fi, ok := p.field(field)
	if !ok {
		return nil, false
	}
	st := sourceType(src)
	ge := m.getter(p, fi, st, &call{m: m, groups: groups, gkey: groupKey(groups)})
	if ge.fn == nil {
		return nil, false
	}
	return func(s any) (any, bool, error) {
		sv, t := sourceOf(s)
		if t != st {
			return nil, false, fmt.Errorf("xmap: getter for %s called with %T", st, s)
		}
		return ge.fn(m.begin(groups), sv)
	}, true
}

// MappedFields returns the fields of dst that resolve for sources of type
// src, by name.
func (m *Mapper) MappedFields(src, dst reflect.Type, groups ...reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField)
	if dst == nil || derefPtr(dst).Kind() != reflect.Struct || src == nil {
		return out
	}
	p := m.cache.plan(derefPtr(dst))
	st := sourceType(src)
	c := &call{m: m, groups: groups, gkey: groupKey(groups)}
	for i := range p.fields {
		if m.getter(p, i, st, c).fn != nil {
			out[p.fields[i].sf.Name] = p.fields[i].sf
		}
	}
	return out
}

// sourceType is the type key sourceOf produces for values of type t.
func sourceType(t reflect.Type) reflect.Type {
	if bt := derefPtr(t); bt.Kind() == reflect.Struct && bt != nodeType {
		return bt
	}
	return nodeType
}

// ---------------- Field walk ----------------

// mapStruct populates dst from src field by field: embedded fields first,
// then the type's own, in declaration order.
func (c *call) mapStruct(dst, src reflect.Value, st reflect.Type) error {
	p := c.m.cache.plan(dst.Type())
	for i := range p.fields {
		if err := c.mapField(p, i, dst, src, st); err != nil {
			return err
		}
	}
	return nil
}

func (c *call) mapField(p *plan, fi int, dst, src reflect.Value, st reflect.Type) (err error) {
	f := &p.fields[fi]
	log := c.m.cfg.logger
	defer func() {
		if r := recover(); r != nil {
			log.Warn("xmap: recovered while mapping field", "type", p.rt, "field", f.sf.Name, "panic", r)
			err = nil
		}
	}()

	ge := c.m.getter(p, fi, st, c)
	set := c.m.setter(p, fi, st, c.gkey, ge.fn != nil)
	if ge.fn == nil {
		if log.Enabled(context.Background(), slog.LevelDebug) {
			log.Debug("xmap: unresolved field", "type", p.rt, "field", f.sf.Name, "source", st)
		}
		return nil
	}
	v, ok, err := ge.fn(c, src)
	if err != nil {
		return located(err, p.rt, f.sf.Name)
	}
	if !ok {
		return nil
	}
	return located(set(c, dst, v), p.rt, f.sf.Name)
}

// ---------------- Construction ----------------

func construct(t reflect.Type) (p reflect.Value, err error) {
	if t == nil {
		return reflect.Value{}, &MapError{Kind: ErrConstruct, Err: errors.New("nil type")}
	}
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return reflect.Value{}, &MapError{Kind: ErrConstruct, Type: t, Err: errors.New("not a struct type")}
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = reflect.Value{}, &MapError{Kind: ErrConstruct, Type: base, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	p = reflect.New(base)
	if err := initialize(p); err != nil {
		return reflect.Value{}, &MapError{Kind: ErrConstruct, Type: base, Err: err}
	}
	return p, nil
}

// initialize runs Init on the value p points to, when it has one.
func initialize(p reflect.Value) error {
	if in, ok := p.Interface().(Initializer); ok {
		return in.Init()
	}
	return nil
}

// ---------------- Diagnostics ----------------

var dumper = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// dump renders v with spew, only when the record is actually logged.
type dump struct{ v any }

func (d dump) LogValue() slog.Value { return slog.StringValue(dumper.Sdump(d.v)) }
