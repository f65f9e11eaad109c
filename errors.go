package xmap

import (
	"errors"
	"reflect"
	"strings"
)

var (
	// ErrMalformedJSON reports an embedded JSON payload that cannot be parsed.
	// It signals corrupt source data and aborts the mapping call.
	ErrMalformedJSON = errors.New("xmap: malformed embedded json")
	// ErrConstruct reports a destination type that cannot be instantiated.
	ErrConstruct = errors.New("xmap: cannot construct destination")
	// ErrDestination reports a MapInto destination that is not a non-nil
	// pointer to a struct.
	ErrDestination = errors.New("xmap: destination must be a non-nil pointer to a struct")
)

// MapError is the single error type returned by mapping calls. Kind is one of
// the sentinel errors above; Err is the underlying cause, if any.
//
//	if errors.Is(err, xmap.ErrMalformedJSON) { ... }
type MapError struct {
	Kind  error
	Type  reflect.Type // destination type
	Field string       // destination field, when known
	Err   error
}

func (e *MapError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Type != nil {
		b.WriteString(" (")
		b.WriteString(e.Type.String())
		if e.Field != "" {
			b.WriteByte('.')
			b.WriteString(e.Field)
		}
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MapError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// isFatal reports whether err must abort the mapping call instead of being
// logged and skipped.
func isFatal(err error) bool {
	var me *MapError
	return errors.As(err, &me)
}

// located fills in the destination of a MapError raised below it.
func located(err error, rt reflect.Type, field string) error {
	var me *MapError
	if errors.As(err, &me) && me.Type == nil {
		me.Type, me.Field = rt, field
	}
	return err
}
