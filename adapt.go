package xmap

import (
	"encoding"
	"fmt"
	"reflect"
)

// converter is one registered user conversion, type-erased.
type converter struct {
	src reflect.Type
	fn  func(v any, f Field) (any, bool, error)
}

// adapterEntry caches the adapter of a field; a is nil when none is declared.
type adapterEntry struct {
	a Adapter
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// adapt runs v through adapters, enum coercion and converters for field f.
// It reports false when the value is to be dropped.
func (c *call) adapt(f *destField, v any) (any, bool) {
	ft := f.sf.Type
	log := c.m.cfg.logger

	if c.m.cfg.adapters {
		if a := c.m.adapter(f); a != nil {
			out, err := a.Unmarshal(v)
			if err != nil {
				log.Warn("xmap: adapter failed", "field", f.sf.Name, "adapter", fmt.Sprintf("%T", a), "err", err)
				return nil, false
			}
			if out == nil {
				return nil, false
			}
			v = out
		} else if out, ok, err := unmarshalText(ft, v); ok {
			if err != nil {
				log.Warn("xmap: cannot unmarshal text", "field", f.sf.Name, "type", ft, "err", err)
				return nil, false
			}
			v = out
		}
	}

	if s, ok := v.(string); ok {
		if consts := c.m.cache.enum(derefPtr(ft)); consts != nil {
			e, ok := matchEnum(consts, s, c.m.cfg.adapters)
			if !ok {
				log.Debug("xmap: no enum constant", "field", f.sf.Name, "type", ft, "value", s)
				return nil, false
			}
			v = e
		}
	}

	return c.convert(ft, v, f.public()), true
}

// convert applies the converters registered for t, in order.
func (c *call) convert(t reflect.Type, v any, f Field) any {
	for _, cv := range c.m.cfg.converters[t] {
		out, ok, err := cv.fn(v, f)
		if err != nil {
			c.m.cfg.logger.Warn("xmap: converter failed", "field", f.Name, "from", cv.src, "to", t, "err", err)
			continue
		}
		if ok {
			v = out
		}
	}
	return v
}

// adapter returns the adapter declared for f, instantiating it once.
func (m *Mapper) adapter(f *destField) Adapter {
	if v, ok := m.cache.adapters.Load(f.id); ok {
		return v.(adapterEntry).a
	}
	var entry adapterEntry
	if at := m.adapterType(f); at != nil {
		var inst any
		if at.Kind() == reflect.Pointer {
			inst = reflect.New(at.Elem()).Interface()
		} else {
			inst = reflect.New(at).Elem().Interface()
		}
		entry.a, _ = inst.(Adapter)
	}
	v, _ := m.cache.adapters.LoadOrStore(f.id, entry)
	return v.(adapterEntry).a
}

func (m *Mapper) adapterType(f *destField) reflect.Type {
	log := m.cfg.logger
	if at := m.cache.table(f.id.owner, log).adapters[f.sf.Name]; at != nil {
		return at
	}
	if target := builtType(f.id.owner); target != nil {
		return m.cache.table(target, log).adapters[f.sf.Name]
	}
	return nil
}

// unmarshalText decodes a text value into t when t implements
// encoding.TextUnmarshaler. ok is false when it does not apply.
func unmarshalText(t reflect.Type, v any) (out any, ok bool, err error) {
	s, isText := v.(string)
	if !isText {
		return nil, false, nil
	}
	base := derefPtr(t)
	if base.Kind() == reflect.String || !reflect.PointerTo(base).Implements(textUnmarshalerType) {
		return nil, false, nil
	}
	nv := reflect.New(base)
	if err := nv.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return nil, true, err
	}
	if t.Kind() == reflect.Pointer {
		return nv.Interface(), true, nil
	}
	return nv.Elem().Interface(), true, nil
}

// enum returns the constants of t when t is an Enum, else nil.
func (c *Cache) enum(t reflect.Type) []Constant {
	if v, ok := c.enums.Load(t); ok {
		return v.([]Constant)
	}
	var consts []Constant
	if e, ok := reflect.New(t).Elem().Interface().(Enum); ok {
		consts = e.Constants()
	} else if e, ok := reflect.New(t).Interface().(Enum); ok {
		consts = e.Constants()
	}
	v, _ := c.enums.LoadOrStore(t, consts)
	return v.([]Constant)
}

// matchEnum finds the constant named s, trying wire names first when wire is
// set.
func matchEnum(consts []Constant, s string, wire bool) (any, bool) {
	if wire {
		for _, k := range consts {
			if k.Wire != "" && k.Wire == s {
				return k.Value, true
			}
		}
	}
	for _, k := range consts {
		if k.Name == s {
			return k.Value, true
		}
	}
	return nil, false
}
