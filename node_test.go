package xmap

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/ohler55/ojg/jp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ---------------------------
   Tests: parsing
----------------------------*/

func TestParseJSON_Strict(t *testing.T) {
	n, err := ParseJSON([]byte(`{"a": 1, "b": [true, null, 1.5], "c": {"d": "e"}}`))
	require.NoError(t, err)
	require.True(t, n.IsObject())

	m := n.Value().(map[string]any)
	assert.Equal(t, json.Number("1"), m["a"])
	assert.Equal(t, []any{true, nil, json.Number("1.5")}, m["b"])
	assert.Equal(t, map[string]any{"d": "e"}, m["c"])
}

func TestParseJSON_Lenient(t *testing.T) {
	n, err := ParseJSON([]byte(`{
		// line comment
		title: 'single quoted',
		/* block */ "n": 2,
		f: 2.5,
		list: ['a', "b"],
		url: "http://example.org/*not a comment*/"
	}`))
	require.NoError(t, err)

	m := n.Value().(map[string]any)
	assert.Equal(t, "single quoted", m["title"])
	assert.Equal(t, json.Number("2"), m["n"])
	assert.Equal(t, json.Number("2.5"), m["f"])
	assert.Equal(t, []any{"a", "b"}, m["list"])
	assert.Equal(t, "http://example.org/*not a comment*/", m["url"])

	for in, want := range map[string]string{
		`{title:'foobar'}`:     "foobar",
		`{'title': 'foobar'}`:  "foobar",
		`{'title': 'it\'s'}`:   "it's",
		"{title /* c */: 'x'}": "x",
	} {
		n, err := ParseJSON([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, n.Get("title").Value(), in)
	}
}

func TestParseJSON_Malformed(t *testing.T) {
	for _, in := range []string{
		`{"title": "foobar"`,
		`{"a": [1, 2}`,
		`not json at all`,
		`{"a": 1} trailing`,
		`{"a": "unterminated}`,
		``,
		`{"title": foobar}`,
		`{"title": foo bar baz}`,
		`{"title": "foobar",}`,
		`{title: foobar}`,
		`{'a': 'open}`,
		`title: foobar`,
	} {
		_, err := ParseJSON([]byte(in))
		assert.Error(t, err, in)
	}
	assert.Panics(t, func() { MustParseJSON(`{`) })
}

func TestStripComments(t *testing.T) {
	out, err := stripComments("{\"a\": \"// kept\", // dropped\n'b': '/* kept */' /* dropped */}")
	require.NoError(t, err)
	assert.Equal(t, "{\"a\": \"// kept\", \n'b': '/* kept */'  }", out)

	_, err = stripComments(`{"a": 1 /* open`)
	assert.Error(t, err)

	same, err := stripComments(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, same)
}

func TestRelax(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{title:'foobar'}`, `{"title":"foobar"}`},
		{`{'q': 'it\'s "x"'}`, `{"q": "it's \"x\""}`},
		{`{a_1$ : true, b: null, c: -1.5e3}`, `{"a_1$" : true, "b": null, "c": -1.5e3}`},
		{`{"k": "unquoted: kept"}`, `{"k": "unquoted: kept"}`},
		{`{"title": foobar}`, `{"title": foobar}`},
	}
	for _, tc := range tests {
		got, err := relax(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := relax(`{'open: 1}`)
	assert.Error(t, err)
}

/* ---------------------------
   Tests: navigation
----------------------------*/

func TestNode_GetAndAt(t *testing.T) {
	n := MustParseJSON(`{"a": {"b": [10, {"c": "deep"}]}, "nil": null}`)

	assert.Nil(t, n.Get("missing"))
	assert.True(t, n.Get("nil").IsNull())
	assert.Nil(t, n.Get("a").Get("b").Get("x"), "arrays have no members")

	at, ok := n.At("/a/b/1/c")
	require.True(t, ok)
	assert.Equal(t, "deep", at.Value())

	_, ok = n.At("/a/zz")
	assert.False(t, ok)
	_, ok = n.At("no-slash")
	assert.False(t, ok)

	var nilNode *Node
	assert.True(t, nilNode.IsNull())
	assert.Nil(t, nilNode.Get("a"))
	_, ok = nilNode.At("/a")
	assert.False(t, ok)
}

func TestNode_Query(t *testing.T) {
	n := MustParseJSON(`{"items": [{"k": "209345"}, {"k": "209346"}], "title": "t"}`)

	q, err := n.Query("items[*].k")
	require.NoError(t, err)
	assert.Equal(t, []any{"209345", "209346"}, q.Value())

	q, err = n.Query("$.title")
	require.NoError(t, err)
	assert.Equal(t, "t", q.Value())

	q, err = n.Query("missing")
	require.NoError(t, err)
	assert.True(t, q.IsNull(), "definite path without match yields null")

	q, err = n.Query("$..nothing")
	require.NoError(t, err)
	assert.Equal(t, []any{}, q.Value(), "indefinite path without match yields an empty array")

	q, err = n.Query("items[1]")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "209346"}, q.Value())

	_, err = n.Query("$[?(")
	assert.Error(t, err)
}

func TestCompilePath_Prefix(t *testing.T) {
	doc := MustParseJSON(`{"a": {"b": 1, "name": "x"}, "name": "y"}`).Value()
	rootArr := MustParseJSON(`[{"a": 2}]`).Value()

	for in, want := range map[string]string{
		"a.b":      "$.a.b",
		"$.a.b":    "$.a.b",
		" a.name ": "$.a.name",
		"['name']": "$['name']",
	} {
		x, err := compilePath(in)
		require.NoError(t, err, in)
		assert.Equal(t, jp.MustParseString(want).Get(doc), x.Get(doc), in)
	}

	x, err := compilePath("[0].a")
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("2")}, x.Get(rootArr))
}

/* ---------------------------
   Tests: unwrapping and codecs
----------------------------*/

func TestUnwrap(t *testing.T) {
	n := MustParseJSON(`{"i": 3, "f": 1.25, "s": "x", "b": false, "a": [1, "two", {"o": 1}], "o": {"k": "v"}, "z": null}`)

	tests := []struct {
		key  string
		want any
		ok   bool
	}{
		{"i", int64(3), true},
		{"f", 1.25, true},
		{"s", "x", true},
		{"b", false, true},
		{"z", nil, false},
		{"missing", nil, false},
	}
	for _, tc := range tests {
		got, ok := unwrap(n.Get(tc.key))
		assert.Equal(t, tc.ok, ok, tc.key)
		assert.Equal(t, tc.want, got, tc.key)
	}

	arr, ok := unwrap(n.Get("a"))
	require.True(t, ok)
	list := arr.([]any)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1), list[0])
	assert.Equal(t, "two", list[1])
	assert.IsType(t, &Node{}, list[2])

	obj, ok := unwrap(n.Get("o"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"k": "v"}, obj.(*Node).Value())
}

func TestNode_JSONCodec(t *testing.T) {
	type holder struct {
		Name string
		Tree *Node
	}
	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"Name": "n", "Tree": {"a": [1, 2]}}`), &h))
	assert.Equal(t, "n", h.Name)
	require.NotNil(t, h.Tree)
	assert.Equal(t, `{"a":[1,2]}`, h.Tree.String())

	out, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name": "n", "Tree": {"a": [1, 2]}}`, string(out))
}

func TestNodeOf(t *testing.T) {
	n := MustParseJSON(`{}`)
	assert.Same(t, n, NodeOf(n))
	assert.Equal(t, "x", NodeOf("x").Value())
	assert.True(t, NodeOf([]any{1}).IsArray())
}
