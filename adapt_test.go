package xmap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ---------------------------
   Fixtures
----------------------------*/

type upperAdapter struct{}

func (upperAdapter) Unmarshal(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not text: %T", v)
	}
	return strings.ToUpper(s), nil
}

type lenAdapter struct{}

func (*lenAdapter) Unmarshal(v any) (any, error) {
	s, _ := v.(string)
	return len(s), nil
}

type dropAdapter struct{}

func (dropAdapter) Unmarshal(any) (any, error) { return nil, nil }

type adapted struct {
	Name    string
	Count   int
	Length  int
	Dropped string
}

func (adapted) DescribeSources(d *Declarations) {
	d.Field("Name", Source{Field: "Title"}).Adapter("Name", upperAdapter{}).
		Field("Count", Source{}).Adapter("Count", upperAdapter{}).
		Field("Length", Source{Field: "Title"}).Adapter("Length", &lenAdapter{}).
		Field("Dropped", Source{Field: "Title"}).Adapter("Dropped", dropAdapter{})
}

type Letter int

const (
	LetterNone Letter = iota
	LetterA
	LetterB
)

func (Letter) Constants() []Constant {
	return []Constant{
		{Name: "a", Wire: "alfa", Value: LetterA},
		{Name: "b", Value: LetterB},
	}
}

type lettered struct {
	L Letter  `source:"Code"`
	P *Letter `source:"Code"`
}

type codeSource struct{ Code string }

/* ---------------------------
   Tests: adapters
----------------------------*/

func TestAdapt_DeclaredAdapters(t *testing.T) {
	src := SourceObject{Title: "hello", Count: 7}

	got, err := To[adapted](newTestMapper(), src)
	require.NoError(t, err)
	assert.Equal(t, adapted{Name: "HELLO", Length: 5}, got, "failing and nil-returning adapters drop the value")

	got, err = To[adapted](newTestMapper(WithAdapters(false)), src)
	require.NoError(t, err)
	assert.Equal(t, adapted{Name: "hello", Count: 7, Dropped: "hello"}, got, "length is not convertible from text")
}

func TestAdapt_AdapterIsInstantiatedOnce(t *testing.T) {
	m := newTestMapper()
	p := m.cache.plan(TypeOf[adapted]())
	fi, ok := p.field("Length")
	require.True(t, ok)

	a := m.adapter(&p.fields[fi])
	require.IsType(t, &lenAdapter{}, a)
	assert.Same(t, a, m.adapter(&p.fields[fi]))

	fi, _ = p.field("Name")
	assert.IsType(t, upperAdapter{}, m.adapter(&p.fields[fi]))
}

func TestAdapt_TextUnmarshaler(t *testing.T) {
	type stampSource struct {
		Stamp string
		Bad   string
	}
	type stamped struct {
		At     time.Time  `source:"Stamp"`
		AtPtr  *time.Time `source:"Stamp"`
		Broken time.Time  `source:"Bad"`
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	src := stampSource{Stamp: "2024-01-02T03:04:05Z", Bad: "yesterday"}

	got, err := To[stamped](newTestMapper(), src)
	require.NoError(t, err)
	assert.True(t, want.Equal(got.At))
	require.NotNil(t, got.AtPtr)
	assert.True(t, want.Equal(*got.AtPtr))
	assert.True(t, got.Broken.IsZero())

	got, err = To[stamped](newTestMapper(WithAdapters(false)), src)
	require.NoError(t, err)
	assert.True(t, got.At.IsZero())
	assert.Nil(t, got.AtPtr)
}

func TestUnmarshalText(t *testing.T) {
	_, ok, _ := unmarshalText(TypeOf[time.Time](), 3)
	assert.False(t, ok, "only text values")

	_, ok, _ = unmarshalText(TypeOf[string](), "x")
	assert.False(t, ok)

	out, ok, err := unmarshalText(TypeOf[*time.Time](), "2024-01-02T03:04:05Z")
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, &time.Time{}, out)

	_, ok, err = unmarshalText(TypeOf[time.Time](), "nope")
	assert.True(t, ok)
	assert.Error(t, err)
}

/* ---------------------------
   Tests: enums
----------------------------*/

func TestAdapt_Enum(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		adapters bool
		want     Letter
	}{
		{"wire name", "alfa", true, LetterA},
		{"wire name without adapters", "alfa", false, LetterNone},
		{"constant name", "b", true, LetterB},
		{"constant name without adapters", "a", false, LetterA},
		{"unknown", "zulu", true, LetterNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := To[lettered](newTestMapper(WithAdapters(tc.adapters)), codeSource{Code: tc.code})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.L)
			if tc.want == LetterNone {
				assert.Nil(t, got.P)
				return
			}
			require.NotNil(t, got.P)
			assert.Equal(t, tc.want, *got.P)
		})
	}
}

func TestMatchEnum(t *testing.T) {
	consts := []Constant{
		{Name: "x", Wire: "y", Value: 1},
		{Name: "y", Value: 2},
	}
	v, ok := matchEnum(consts, "y", true)
	require.True(t, ok)
	assert.Equal(t, 1, v, "wire names are tried first")

	v, ok = matchEnum(consts, "y", false)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = matchEnum(consts, "", true)
	assert.False(t, ok)
}

func TestCache_Enum(t *testing.T) {
	c := NewCache()
	assert.Len(t, c.enum(TypeOf[Letter]()), 2)
	assert.Nil(t, c.enum(TypeOf[int]()))
	_, ok := c.enums.Load(TypeOf[int]())
	assert.True(t, ok, "non-enums are cached too")
}

/* ---------------------------
   Tests: converters
----------------------------*/

type numbered struct {
	N int `source:"Title"`
}

func atoi(s string, _ Field) (int, bool, error) {
	n, err := strconv.Atoi(s)
	return n, err == nil, err
}

func TestConverter_Basic(t *testing.T) {
	m := newTestMapper(WithConverter(atoi))

	got, err := To[numbered](m, SourceObject{Title: "12"})
	require.NoError(t, err)
	assert.Equal(t, 12, got.N)

	got, err = To[numbered](m, SourceObject{Title: "twelve"})
	require.NoError(t, err)
	assert.Zero(t, got.N, "a failing converter leaves a value that cannot be assigned")

	got, err = To[numbered](newTestMapper(), SourceObject{Title: "12"})
	require.NoError(t, err)
	assert.Zero(t, got.N, "text is never parsed into numbers by default")
}

func TestConverter_ChainRunsInRegistrationOrder(t *testing.T) {
	type titled struct {
		Title string `source:""`
	}
	trim := func(s string, _ Field) (string, bool, error) { return strings.TrimSpace(s), true, nil }
	bracket := func(s string, _ Field) (string, bool, error) { return "[" + s + "]", true, nil }
	skip := func(string, Field) (string, bool, error) { return "", false, nil }
	fail := func(string, Field) (string, bool, error) { return "", false, errors.New("boom") }

	got, err := To[titled](newTestMapper(WithConverter(trim), WithConverter(skip), WithConverter(fail), WithConverter(bracket)), SourceObject{Title: " ab "})
	require.NoError(t, err)
	assert.Equal(t, "[ab]", got.Title)

	got, err = To[titled](newTestMapper(WithConverter(bracket), WithConverter(trim)), SourceObject{Title: " ab "})
	require.NoError(t, err)
	assert.Equal(t, "[ ab ]", got.Title)
}

func TestConverter_ListElements(t *testing.T) {
	var fields []string
	toItem := func(s string, f Field) (Item, bool, error) {
		fields = append(fields, f.Name)
		return Item{K: "c:" + s}, true, nil
	}
	m := newTestMapper(WithConverter(toItem))
	src := SourceObject{JSON: []byte(`{"items":[{"k":"1"},{"k":"2"}]}`)}

	got, err := To[Destination](m, src)
	require.NoError(t, err)
	assert.Equal(t, []Item{{K: "c:1"}, {K: "c:2"}}, got.Items)
	assert.Equal(t, []string{"Items", "Items"}, fields)
}

func TestConverter_DerivedMapperLeavesParentAlone(t *testing.T) {
	m := newTestMapper()
	derived := m.With(WithConverter(atoi))
	assert.Same(t, m.Cache(), derived.Cache())

	got, err := To[numbered](derived, SourceObject{Title: "5"})
	require.NoError(t, err)
	assert.Equal(t, 5, got.N)

	got, err = To[numbered](m, SourceObject{Title: "5"})
	require.NoError(t, err)
	assert.Zero(t, got.N)
}
