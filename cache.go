package xmap

import (
	"reflect"
	"sync"

	"github.com/ohler55/ojg/jp"
)

// Cache holds everything the engine derives from types: descriptor tables,
// field registries, resolved descriptors and the compiled getter and setter
// closures. Entries are computed on first use, never mutated, and live until
// Reset. Concurrent first use of the same key may compute an entry twice;
// both results are equivalent and one of them wins.
//
// A Cache is safe for concurrent use and may be shared by several Mappers
// (Mapper.With shares it by default).
type Cache struct {
	tables   sync.Map // reflect.Type -> *typeTable
	plans    sync.Map // reflect.Type -> *plan (per destination type)
	sources  sync.Map // sourceKey -> *sourceField
	adapters sync.Map // fieldID -> adapterEntry
	enums    sync.Map // reflect.Type -> []Constant (nil when not an Enum)
	paths    sync.Map // string -> jp.Expr
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Reset drops every cached entry. Mappers using c rebuild entries lazily.
func (c *Cache) Reset() {
	c.tables.Clear()
	c.plans.Clear()
	c.sources.Clear()
	c.adapters.Clear()
	c.enums.Clear()
	c.paths.Clear()
}

// plan is the per-destination-type part of the cache: the flattened field
// registry plus resolutions and closures keyed by field, source type and
// groups.
type plan struct {
	rt       reflect.Type
	fields   []destField
	resolved sync.Map // closureKey -> resolution
	getters  sync.Map // closureKey -> getterEntry
	setters  sync.Map // closureKey -> setterFunc
}

// closureKey is the resolution key: field (position in plan.fields), concrete
// source type and the caller's groups. Setters are keyed the same way since an
// unresolved key gets a no-op setter.
type closureKey struct {
	field  int
	src    reflect.Type
	groups string
}

func (c *Cache) plan(rt reflect.Type) *plan {
	if v, ok := c.plans.Load(rt); ok {
		return v.(*plan)
	}
	v, _ := c.plans.LoadOrStore(rt, &plan{rt: rt, fields: buildFields(rt)})
	return v.(*plan)
}

// field finds a field by name; a type's own field shadows an embedded one.
func (p *plan) field(name string) (int, bool) {
	for i := len(p.fields) - 1; i >= 0; i-- {
		if p.fields[i].sf.Name == name {
			return i, true
		}
	}
	return 0, false
}

// jsonPath returns the compiled form of a path expression, compiling it once.
func (c *Cache) jsonPath(expr string) (jp.Expr, error) {
	if v, ok := c.paths.Load(expr); ok {
		return v.(jp.Expr), nil
	}
	x, err := compilePath(expr)
	if err != nil {
		return nil, err
	}
	v, _ := c.paths.LoadOrStore(expr, x)
	return v.(jp.Expr), nil
}
