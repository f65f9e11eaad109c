package xmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceTag(t *testing.T) {
	tests := []struct {
		tag  string
		want []Source
	}{
		{"", []Source{{}}},
		{"json", []Source{{Field: "json"}}},
		{"json,pointer=/title", []Source{{Field: "json", Pointer: "/title"}}},
		{",pointer=/title", []Source{{Pointer: "/title"}}},
		{"sub,path=a.b", []Source{{Field: "sub", Path: []string{"a", "b"}}}},
		{"field=,path=", []Source{{Field: Empty, Path: []string{}}}},
		{"a; b,pointer=/x", []Source{{Field: "a"}, {Field: "b", Pointer: "/x"}}},
		{"a;;b", []Source{{Field: "a"}, {Field: "b"}}},
		{"j,jsonpath=$['a,b;c'][*]", []Source{{Field: "j", JSONPath: "$['a,b;c'][*]"}}},
		{"j,jsonpath=$[?(@.k == 'x;y')].v", []Source{{Field: "j", JSONPath: "$[?(@.k == 'x;y')].v"}}},
		{" field = j , pointer = ", []Source{{Field: "j", Pointer: Empty}}},
	}
	for _, tc := range tests {
		got, err := parseSourceTag(tc.tag)
		require.NoError(t, err, tc.tag)
		assert.Equal(t, tc.want, got, tc.tag)
	}
}

func TestParseSourceTag_Errors(t *testing.T) {
	for _, tag := range []string{
		"json,color=red",
		"pointer=/x,json",
		"j,jsonpath=$['open",
	} {
		_, err := parseSourceTag(tag)
		assert.Error(t, err, tag)
	}
}

func TestSplitTopLevel(t *testing.T) {
	parts, err := splitTopLevel(`a,"b,c",[d,e],(f,g)`, ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"a", `"b,c"`, "[d,e]", "(f,g)"}, parts)
}
