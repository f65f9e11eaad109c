package xmap

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// rawKey identifies a raw JSON payload by identity: where its bytes live,
// how many there are and whether they were text or bytes. Two equal strings
// at different addresses are different keys.
type rawKey struct {
	ptr  uintptr
	n    int
	kind reflect.Kind
}

type jsonEntry struct {
	raw  any // keeps the payload reachable, so its address is not reused
	node *Node
}

// jsonCache holds the documents parsed during one mapping call, or during
// several when a Mapper retains them. mu is only set in retained mode.
type jsonCache struct {
	mu      *sync.Mutex
	entries map[rawKey]jsonEntry
}

func newJSONCache(shared bool) *jsonCache {
	jc := &jsonCache{entries: make(map[rawKey]jsonEntry)}
	if shared {
		jc.mu = new(sync.Mutex)
	}
	return jc
}

func (jc *jsonCache) load(k rawKey) (*Node, bool) {
	if jc.mu != nil {
		jc.mu.Lock()
		defer jc.mu.Unlock()
	}
	e, ok := jc.entries[k]
	return e.node, ok
}

func (jc *jsonCache) store(k rawKey, e jsonEntry) {
	if jc.mu != nil {
		jc.mu.Lock()
		defer jc.mu.Unlock()
	}
	jc.entries[k] = e
}

func (jc *jsonCache) len() int {
	if jc.mu != nil {
		jc.mu.Lock()
		defer jc.mu.Unlock()
	}
	return len(jc.entries)
}

func (jc *jsonCache) clear() {
	if jc.mu != nil {
		jc.mu.Lock()
		defer jc.mu.Unlock()
	}
	clear(jc.entries)
}

// node returns the document held by raw: bytes and text are parsed once per
// identity, trees are used as they are. Empty payloads and values of other
// kinds are absent. where names the source field for diagnostics.
func (c *call) node(raw reflect.Value, where string) (*Node, bool, error) {
	raw, ok := indirect(raw)
	if !ok {
		return nil, false, nil
	}
	switch rt := raw.Type(); {
	case rt == nodePtrType:
		n := raw.Interface().(*Node)
		return n, !n.IsNull(), nil
	case rt == nodeType:
		n := raw.Interface().(Node)
		return &n, !n.IsNull(), nil
	}

	var (
		key  rawKey
		data []byte
	)
	switch raw.Kind() {
	case reflect.String:
		s := raw.String()
		if s == "" {
			return nil, false, nil
		}
		key = rawKey{ptr: uintptr(unsafe.Pointer(unsafe.StringData(s))), n: len(s), kind: reflect.String}
		data = unsafe.Slice(unsafe.StringData(s), len(s))
	case reflect.Slice:
		if raw.Type().Elem().Kind() == reflect.Uint8 {
			data = raw.Bytes()
			if len(data) == 0 {
				return nil, false, nil
			}
			key = rawKey{ptr: raw.Pointer(), n: len(data), kind: reflect.Slice}
			break
		}
		if raw.Type().Elem().Kind() == reflect.Interface {
			return NodeOf(raw.Interface()), !raw.IsNil(), nil
		}
		fallthrough
	case reflect.Map:
		if raw.Kind() == reflect.Map && raw.Type().Key().Kind() == reflect.String && raw.Type().Elem() == Any {
			if raw.IsNil() {
				return nil, false, nil
			}
			return NodeOf(raw.Convert(treeType).Interface()), true, nil
		}
		fallthrough
	default:
		c.m.cfg.logger.Warn("xmap: value cannot hold json", "source", where, "type", raw.Type())
		return nil, false, nil
	}

	if n, ok := c.json.load(key); ok {
		return n, !n.IsNull(), nil
	}
	v, err := parseJSON(data)
	if err != nil {
		return nil, false, &MapError{Kind: ErrMalformedJSON, Err: fmt.Errorf("%s: %w", where, err)}
	}
	n := &Node{v: v}
	c.json.store(key, jsonEntry{raw: raw.Interface(), node: n})
	return n, !n.IsNull(), nil
}
