package xmap

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// resolution wraps a possibly nil result so misses can be cached.
type resolution struct {
	eff *effective
}

// resolve picks the effective descriptor of field fi of p for a source of
// type src and the given groups, or nil when none matches.
func (m *Mapper) resolve(p *plan, fi int, src reflect.Type, groups []reflect.Type, gkey string) *effective {
	key := closureKey{field: fi, src: src, groups: gkey}
	if v, ok := p.resolved.Load(key); ok {
		return v.(resolution).eff
	}
	e := m.resolveUncached(p.rt, &p.fields[fi], src, groups)
	v, _ := p.resolved.LoadOrStore(key, resolution{eff: e})
	return v.(resolution).eff
}

// resolveUncached applies the matching rules to every candidate. The most
// specific From wins; at equal specificity a descriptor selected by group
// beats an ungated one, and otherwise the first declared wins.
func (m *Mapper) resolveUncached(dst reflect.Type, f *destField, src reflect.Type, groups []reflect.Type) *effective {
	srcs, def := m.candidates(dst, f)
	jsonSrc := isJSONType(src)
	var best *effective
	bestGated := false
	for _, s := range srcs {
		e := merge(s, def)
		if !e.valid() {
			m.cfg.logger.Warn("xmap: descriptor sets both pointer and jsonpath", "type", dst, "field", f.sf.Name)
			continue
		}
		ok, gated := m.matches(&e, src, jsonSrc, f.sf.Name, groups)
		if !ok {
			continue
		}
		switch {
		case best == nil, moreSpecific(&e, best):
		case gated && !bestGated && !moreSpecific(best, &e):
		default:
			continue
		}
		cand := e
		best, bestGated = &cand, gated
	}
	return best
}

// candidates returns the descriptors declared on f and the class-level
// default they merge with. A field without descriptors on a Builder borrows
// those of the same-named field on the built type.
func (m *Mapper) candidates(dst reflect.Type, f *destField) ([]Source, *Source) {
	log := m.cfg.logger
	if srcs := m.cache.table(f.id.owner, log).fields[f.sf.Name]; len(srcs) > 0 {
		return srcs, m.cache.defaults(dst, log)
	}
	if target := builtType(f.id.owner); target != nil {
		if srcs := m.cache.table(target, log).fields[f.sf.Name]; len(srcs) > 0 {
			return srcs, m.cache.defaults(target, log)
		}
	}
	return nil, nil
}

func builtType(owner reflect.Type) reflect.Type {
	b, ok := reflect.New(owner).Interface().(Builder)
	if !ok {
		return nil
	}
	t := reflect.TypeOf(b.Builds())
	if t == nil {
		return nil
	}
	if t = derefPtr(t); t.Kind() != reflect.Struct || t == owner {
		return nil
	}
	return t
}

func (m *Mapper) matches(e *effective, src reflect.Type, jsonSrc bool, dest string, groups []reflect.Type) (ok, gated bool) {
	if len(e.groups) > 0 {
		if !groupsOverlap(e.groups, groups) {
			return false, false
		}
		gated = true
	}
	if !assignableFrom(e.from, src) {
		return false, false
	}
	if jsonSrc {
		return true, gated
	}
	return m.cache.sourceField(src, e.sourceName(dest)) != nil, gated
}

// groupsOverlap reports whether some requested group is assignable to a
// declared one. No requested groups never overlap.
func groupsOverlap(declared, requested []reflect.Type) bool {
	for _, d := range declared {
		for _, r := range requested {
			if assignableFrom(d, r) {
				return true
			}
		}
	}
	return false
}

// assignableFrom reports whether a value of type t can stand in for base:
// same type (pointers ignored), t embeds base, or base is an interface t
// implements. A nil base accepts everything.
func assignableFrom(base, t reflect.Type) bool {
	if base == nil || base == Any {
		return true
	}
	if t == nil {
		return false
	}
	if base.Kind() == reflect.Interface {
		if t.Implements(base) {
			return true
		}
		return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(base)
	}
	bt, tt := derefPtr(base), derefPtr(t)
	return bt == tt || embeds(tt, bt, 0)
}

func embeds(t, base reflect.Type, depth int) bool {
	if t.Kind() != reflect.Struct || depth > maxEmbedDepth {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		if ft := derefPtr(sf.Type); ft == base || embeds(ft, base, depth+1) {
			return true
		}
	}
	return false
}

// moreSpecific reports whether a's From is strictly narrower than b's.
func moreSpecific(a, b *effective) bool {
	if a.from == nil {
		return false
	}
	if b.from == nil {
		return true
	}
	return a.from != b.from && assignableFrom(b.from, a.from)
}

func isJSONType(t reflect.Type) bool {
	t = derefPtr(t)
	return t == nodeType || t == treeType
}

// groupKey identifies a group list for the closure caches. Types are keyed
// by identity: two types sharing a package and name still get distinct ids.
func groupKey(groups []reflect.Type) string {
	if len(groups) == 0 {
		return ""
	}
	var b strings.Builder
	for _, g := range groups {
		if g == nil {
			continue
		}
		b.WriteString(strconv.FormatUint(groupID(g), 36))
		b.WriteByte('|')
	}
	return b.String()
}

var (
	groupIDs    sync.Map // reflect.Type -> uint64
	lastGroupID atomic.Uint64
)

func groupID(t reflect.Type) uint64 {
	if v, ok := groupIDs.Load(t); ok {
		return v.(uint64)
	}
	v, _ := groupIDs.LoadOrStore(t, lastGroupID.Add(1))
	return v.(uint64)
}
