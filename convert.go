package xmap

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/goccy/go-json"
)

var errIncompatible = errors.New("xmap: incompatible value")

var jsonNumberType = reflect.TypeOf(json.Number(""))

// assign stores v into dst, converting where the conversion cannot lose
// information:
//   - values assignable to the destination type
//   - pointer destinations, by allocating the pointee
//   - Node and *Node destinations, by wrapping the value
//   - struct destinations from structs, objects and maps, by sub-mapping
//   - slices and maps, element by element
//   - numeric widenings and narrowings that do not overflow
//   - string kinds and []byte into each other
//
// Numbers are never formatted into strings.
func (c *call) assign(dst reflect.Value, v any, f Field) error {
	if v == nil {
		return nil
	}
	dt := dst.Type()
	if n, ok := v.(*Node); ok && dt != nodePtrType && dt != nodeType && !n.IsObject() {
		if v, ok = unwrap(n); !ok {
			return nil
		}
	}
	sv := reflect.ValueOf(v)
	if sv.Type().AssignableTo(dt) {
		dst.Set(sv)
		return nil
	}
	if sv.Kind() == reflect.Pointer && !sv.IsNil() && sv.Elem().Type().AssignableTo(dt) {
		dst.Set(sv.Elem())
		return nil
	}

	switch {
	case dt == nodeType:
		dst.Set(reflect.ValueOf(Node{v: nodeValue(v)}))
		return nil
	case dt == nodePtrType:
		dst.Set(reflect.ValueOf(&Node{v: nodeValue(v)}))
		return nil
	}

	switch dt.Kind() {
	case reflect.Pointer:
		nv := reflect.New(dt.Elem())
		if composite(dt.Elem()) {
			if err := initNested(nv); err != nil {
				return err
			}
		}
		if err := c.assign(nv.Elem(), v, f); err != nil {
			return err
		}
		dst.Set(nv)
		return nil
	case reflect.Struct:
		if !composite(dt) || !mappable(v) {
			break
		}
		return c.subMapValue(dst, v)
	case reflect.Slice:
		if dt.Elem().Kind() == reflect.Uint8 && sv.Kind() == reflect.String {
			dst.SetBytes([]byte(sv.String()))
			return nil
		}
		if sv.Kind() == reflect.Slice || sv.Kind() == reflect.Array {
			return c.assignSeq(dst, sv, f)
		}
	case reflect.Map:
		if n, ok := v.(*Node); ok && n.IsObject() && dt.Key().Kind() == reflect.String {
			return c.assignMap(dst, n.v.(map[string]any), f)
		}
	}
	return assignScalar(dst, sv)
}

func (c *call) assignSeq(dst reflect.Value, sv reflect.Value, f Field) error {
	et := dst.Type().Elem()
	out := reflect.MakeSlice(dst.Type(), 0, sv.Len())
	for i := 0; i < sv.Len(); i++ {
		e, _ := present(sv.Index(i))
		ev, err := c.element(et, e, f)
		if err != nil {
			return err
		}
		out = reflect.Append(out, ev)
	}
	dst.Set(out)
	return nil
}

func (c *call) assignMap(dst reflect.Value, entries map[string]any, f Field) error {
	dt := dst.Type()
	out := reflect.MakeMapWithSize(dt, len(entries))
	for k, raw := range entries {
		ev, err := c.element(dt.Elem(), unwrapValue(raw), f)
		if err != nil {
			return err
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(dt.Key()), ev)
	}
	dst.Set(out)
	return nil
}

// element converts one member of a sequence or object into et. Composite
// element types are sub-mapped unless a converter already produced an et. A
// member that cannot be converted becomes the zero value.
func (c *call) element(et reflect.Type, e any, f Field) (reflect.Value, error) {
	ev := reflect.New(et).Elem()
	if e == nil {
		return ev, nil
	}
	e = c.convert(et, e, f)
	var err error
	if composite(et) && !reflect.TypeOf(e).AssignableTo(et) {
		if et.Kind() == reflect.Struct {
			err = initNested(ev.Addr())
		}
		if err == nil {
			err = c.subMapValue(ev, e)
		}
	} else {
		err = c.assign(ev, e, f)
	}
	if err != nil {
		if isFatal(err) {
			return ev, err
		}
		c.m.cfg.logger.Warn("xmap: cannot convert element", "field", f.Name, "element", et, "value", fmt.Sprintf("%T", e), "err", err)
		return reflect.New(et).Elem(), nil
	}
	return ev, nil
}

// subMapValue populates the struct (or pointer to struct) dst from v. Values
// that are neither structs nor objects are wrapped as nodes, so descriptors
// without a field name can still address them.
func (c *call) subMapValue(dst reflect.Value, v any) error {
	if dst.Kind() == reflect.Pointer {
		nv := reflect.New(dst.Type().Elem())
		if err := initNested(nv); err != nil {
			return err
		}
		if err := c.subMapValue(nv.Elem(), v); err != nil {
			return err
		}
		dst.Set(nv)
		return nil
	}
	sv, st := sourceOf(v)
	return c.mapStruct(dst, sv, st)
}

// initNested runs Init on a value created below the destination root. A
// failure drops that value only, so the error is not a *MapError.
func initNested(p reflect.Value) error {
	if err := initialize(p); err != nil {
		return fmt.Errorf("init %s: %w", p.Type().Elem(), err)
	}
	return nil
}

func assignScalar(dst, sv reflect.Value) error {
	dt := dst.Type()
	if sv.Type() == jsonNumberType {
		if n, ok := unwrapValue(json.Number(sv.String())).(int64); ok {
			sv = reflect.ValueOf(n)
		} else if x, ok := unwrapValue(json.Number(sv.String())).(float64); ok {
			sv = reflect.ValueOf(x)
		}
	}

	switch sk, dk := sv.Kind(), dt.Kind(); {
	case sk == reflect.Bool && dk == reflect.Bool:
		dst.SetBool(sv.Bool())
		return nil
	case sk == reflect.String && dk == reflect.String:
		dst.SetString(sv.String())
		return nil
	case sk == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8 && dk == reflect.String:
		dst.SetString(string(sv.Bytes()))
		return nil
	case isInt(sk):
		if setInt(dst, sv.Int()) {
			return nil
		}
	case isUint(sk):
		if sv.Uint() <= math.MaxInt64 && setInt(dst, int64(sv.Uint())) {
			return nil
		}
		if isUint(dk) && !dst.OverflowUint(sv.Uint()) {
			dst.SetUint(sv.Uint())
			return nil
		}
	case isFloat(sk):
		x := sv.Float()
		if isFloat(dk) && !dst.OverflowFloat(x) {
			dst.SetFloat(x)
			return nil
		}
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 && setInt(dst, int64(x)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s into %s", errIncompatible, sv.Type(), dt)
}

// setInt stores i into an integer or float destination unless it overflows.
func setInt(dst reflect.Value, i int64) bool {
	switch dk := dst.Kind(); {
	case isInt(dk):
		if dst.OverflowInt(i) {
			return false
		}
		dst.SetInt(i)
	case isUint(dk):
		if i < 0 || dst.OverflowUint(uint64(i)) {
			return false
		}
		dst.SetUint(uint64(i))
	case isFloat(dk):
		dst.SetFloat(float64(i))
	default:
		return false
	}
	return true
}

func isInt(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isUint(k reflect.Kind) bool { return k >= reflect.Uint && k <= reflect.Uintptr }

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

// composite reports whether t (or its pointee) is a struct populated field by
// field. Structs without exported fields, such as time.Time, are values.
func composite(t reflect.Type) bool {
	t = derefPtr(t)
	if t.Kind() != reflect.Struct || t == nodeType {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if sf := t.Field(i); sf.IsExported() || (sf.Anonymous && derefPtr(sf.Type).Kind() == reflect.Struct) {
			return true
		}
	}
	return false
}

// mappable reports whether v can be the source of a sub-mapping.
func mappable(v any) bool {
	switch x := v.(type) {
	case *Node:
		return x.IsObject()
	case Node:
		return x.IsObject()
	case map[string]any:
		return true
	}
	t := reflect.TypeOf(v)
	return t != nil && derefPtr(t).Kind() == reflect.Struct
}

// sourceOf normalizes a mapping source: structs are read through their
// fields, anything else is addressed as a JSON node.
func sourceOf(v any) (reflect.Value, reflect.Type) {
	switch x := v.(type) {
	case *Node:
		return reflect.ValueOf(x), nodeType
	case Node:
		return reflect.ValueOf(&x), nodeType
	}
	if rv, ok := indirect(reflect.ValueOf(v)); ok && rv.Kind() == reflect.Struct {
		return rv, rv.Type()
	}
	return reflect.ValueOf(&Node{v: nodeValue(v)}), nodeType
}

// nodeValue turns an unwrapped value back into tree form.
func nodeValue(v any) any {
	switch x := v.(type) {
	case *Node:
		return x.Value()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = nodeValue(e)
		}
		return out
	case int64:
		return json.Number(fmt.Sprint(x))
	case float64:
		return floatNumber(x)
	}
	return v
}

func derefPtr(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// fieldByIndexAlloc walks index from root, allocating nil embedded pointers
// on the way so the final field is settable.
func fieldByIndexAlloc(root reflect.Value, index []int) reflect.Value {
	v := root
	for _, i := range index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}
