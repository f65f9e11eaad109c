/*
Package xmap is a declarative field mapper: destination struct fields say where
their value comes from, and xmap copies it over from whatever source value it is
handed. Sources are plain structs, or JSON documents found inside them.

# Overview

A destination field declares one or more source descriptors in a `source`
struct tag:

	type Destination struct {
	    _ struct{} `source:"json"`              // class-level default

	    Title  string   `source:",pointer=/title"`
	    Items  []Item   `source:",jsonpath=items[*].k"`
	    ID     int64    `source:"subObject,path=id"`
	    Name   string   `source:"field="`          // same-named source field
	}

Descriptors select a source field (Field, default the destination field's
name), descend further through struct fields, map keys or object members
(Path), and optionally evaluate a JSON pointer or a path expression against the
JSON document held by that field. Attributes left unset inherit from the
destination type's class-level default; use Empty (or `field=` in a tag) to set
one explicitly empty.

Type-valued attributes (From, Groups) and adapters are declared in code by
implementing Describer.

# Resolution rules

  - Ungated descriptors always apply; gated ones only when the caller passes a
    related group.
  - From restricts a descriptor to sources assignable to that type.
  - Against a struct source, the named field must exist (promoted fields
    included); against a JSON source, Field and Path are object keys.
  - Among matching descriptors the most specific From wins, then a descriptor
    selected by group, then the first declared.
  - A field without descriptors on a Builder borrows those of the built type.

# Values

Extracted values run through adapters (Adapter, encoding.TextUnmarshaler),
enum coercion (Enum) and the converters registered WithConverter before they
are assigned. Assignment converts numbers without overflow, strings and byte
slices into each other, and sub-maps structs, objects and lists of either into
composite destinations.

# Performance

Descriptor tables, resolutions and the compiled getter and setter closures are
cached per (destination field, source type, groups) in a Cache (sync.Map), so
reflection happens once per key. Embedded JSON is parsed once per mapping call
and raw value.

# Error handling

Mapping is best effort: a field that does not resolve or whose value cannot be
converted is skipped (logged through log/slog). Errors are *MapError values
wrapping ErrDestination, ErrConstruct or ErrMalformedJSON; the latter means the
source data itself is corrupt.
*/
package xmap
