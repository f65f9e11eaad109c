package xmap

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/goccy/go-json"
	"github.com/ohler55/ojg/jp"
)

// Node is a parsed JSON value. Objects are map[string]any, arrays []any,
// numbers json.Number; strings, booleans and null map to their Go
// equivalents.
//
// A *Node field on a source struct holds an already-parsed embedded document;
// a *Node passed as the source of a mapping call is addressed by object keys,
// pointers and path expressions instead of struct fields.
type Node struct {
	v any
}

var (
	nodeType    = reflect.TypeOf(Node{})
	nodePtrType = reflect.TypeOf((*Node)(nil))
	treeType    = reflect.TypeOf(map[string]any(nil))
)

// NodeOf wraps an already decoded value (maps, slices, scalars) as a Node.
func NodeOf(v any) *Node {
	if n, ok := v.(*Node); ok {
		return n
	}
	return &Node{v: v}
}

// ParseJSON parses data into a Node. Besides strict JSON it accepts comments,
// single-quoted strings and unquoted object keys. Bare values and trailing
// commas are rejected.
func ParseJSON(data []byte) (*Node, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return &Node{v: v}, nil
}

// MustParseJSON is like ParseJSON but panics on malformed input.
func MustParseJSON(s string) *Node {
	n, err := ParseJSON([]byte(s))
	if err != nil {
		panic(err)
	}
	return n
}

// Value returns the underlying decoded value.
func (n *Node) Value() any {
	if n == nil {
		return nil
	}
	return n.v
}

// IsNull reports whether n is missing or JSON null.
func (n *Node) IsNull() bool { return n == nil || n.v == nil }

// IsObject reports whether n is a JSON object.
func (n *Node) IsObject() bool {
	if n == nil {
		return false
	}
	_, ok := n.v.(map[string]any)
	return ok
}

// IsArray reports whether n is a JSON array.
func (n *Node) IsArray() bool {
	if n == nil {
		return false
	}
	_, ok := n.v.([]any)
	return ok
}

// Get returns the member key of an object node, or nil when n is not an
// object or has no such member.
func (n *Node) Get(key string) *Node {
	if n == nil {
		return nil
	}
	m, ok := n.v.(map[string]any)
	if !ok {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &Node{v: v}
}

// At evaluates a JSON pointer (RFC 6901) against n. It reports false when the
// pointer is malformed or addresses nothing.
func (n *Node) At(pointer string) (*Node, bool) {
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, false
	}
	return n.at(p)
}

func (n *Node) at(p jsonpointer.Pointer) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	v, _, err := p.Get(n.v)
	if err != nil {
		return nil, false
	}
	return &Node{v: v}, true
}

// Query evaluates a path expression against n. A definite expression yields
// its single match or JSON null; any other yields an array of all matches.
func (n *Node) Query(path string) (*Node, error) {
	x, err := compilePath(path)
	if err != nil {
		return nil, err
	}
	return n.query(x), nil
}

func (n *Node) query(x jp.Expr) *Node {
	if n == nil {
		return &Node{}
	}
	res := x.Get(n.v)
	if definite(x) {
		if len(res) == 0 {
			return &Node{}
		}
		return &Node{v: res[0]}
	}
	if res == nil {
		res = []any{}
	}
	return &Node{v: res}
}

// String renders n as compact JSON.
func (n *Node) String() string {
	b, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", n.Value())
	}
	return string(b)
}

// MarshalJSON encodes the tree; a nil node encodes as null.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value())
}

// UnmarshalJSON decodes strict JSON into n.
func (n *Node) UnmarshalJSON(data []byte) error {
	v, err := decodeStrict(data)
	if err != nil {
		return err
	}
	n.v = v
	return nil
}

// compilePath parses a path expression. Expressions without a root are
// taken relative to the document root, so "items[*].k" means "$.items[*].k".
func compilePath(path string) (jp.Expr, error) {
	text := strings.TrimSpace(path)
	switch {
	case strings.HasPrefix(text, "$"), strings.HasPrefix(text, "@"):
	case strings.HasPrefix(text, "["):
		text = "$" + text
	default:
		text = "$." + text
	}
	x, err := jp.ParseString(text)
	if err != nil {
		return nil, fmt.Errorf("xmap: path expression %q: %w", path, err)
	}
	return x, nil
}

// definite reports whether x can select at most one node.
func definite(x jp.Expr) bool {
	for _, f := range x {
		switch f.(type) {
		case jp.Wildcard, jp.Descent, jp.Slice, jp.Union, *jp.Filter:
			return false
		}
	}
	return true
}

// ---------------- Parsing ----------------

func parseJSON(data []byte) (any, error) {
	v, err := decodeStrict(data)
	if err == nil {
		return v, nil
	}
	if lv, lerr := decodeLenient(data); lerr == nil {
		return lv, nil
	}
	return nil, err
}

var errTrailingData = errors.New("xmap: unexpected data after top-level json value")

func decodeStrict(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errTrailingData
	}
	return v, nil
}

// decodeLenient accepts comments, single-quoted strings and unquoted object
// keys, and nothing else strict JSON rejects.
func decodeLenient(data []byte) (any, error) {
	text, err := relax(string(data))
	if err != nil {
		return nil, err
	}
	return decodeStrict([]byte(text))
}

// floatNumber renders x the way the decoder keeps numbers, keeping a
// fraction so it unwraps to a float again.
func floatNumber(x float64) json.Number {
	s := strconv.FormatFloat(x, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return json.Number(s)
}

// ---------------- Unwrapping ----------------

// unwrap converts n into a native value: int64 or float64 for numbers,
// string, bool, []any for arrays and *Node for objects. Null and missing
// nodes are absent.
func unwrap(n *Node) (any, bool) {
	if n.IsNull() {
		return nil, false
	}
	return unwrapValue(n.v), true
}

func unwrapValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return &Node{v: x}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = unwrapValue(e)
		}
		return out
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return x
	}
}
