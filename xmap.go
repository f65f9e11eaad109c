package xmap

import "reflect"

// Describer is implemented by destination struct types that declare their
// source descriptors in code rather than (or in addition to) struct tags.
// It is invoked once per type on a freshly allocated zero value.
type Describer interface {
	DescribeSources(d *Declarations)
}

// Builder is implemented by destination types that build another type. Fields
// of a builder that carry no descriptors of their own resolve against the
// same-named field of the built type.
//
// Builds returns a value (or nil pointer) of the built type.
type Builder interface {
	Builds() any
}

// Enum is implemented by named types with a closed set of constants. A text
// value mapped into an Enum field is matched against the constants' wire
// names (when adapters are enabled) and then their names.
type Enum interface {
	Constants() []Constant
}

// Constant is one member of an Enum.
type Constant struct {
	Name  string
	Wire  string // alternate external name; optional
	Value any
}

// Adapter converts a wire value into the domain value of a destination field.
// Adapters are declared per field with Declarations.Adapter and instantiated
// from their type.
type Adapter interface {
	Unmarshal(v any) (any, error)
}

// Initializer is implemented by destination types that need more than a zero
// value to be usable. Init runs on every instance created by Map.
type Initializer interface {
	Init() error
}

// Group returns the marker type used to gate descriptors by group.
func Group[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// TypeOf is a shorthand for the reflect.Type of T, handy in Source.From.
func TypeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }
