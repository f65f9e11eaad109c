package xmap

import (
	"log/slog"
	"maps"
	"reflect"
	"slices"
)

// config is the immutable configuration of a Mapper.
type config struct {
	logger     *slog.Logger
	cache      *Cache
	retainJSON bool
	adapters   bool
	converters map[reflect.Type][]converter
}

func defaultConfig() config {
	return config{adapters: true}
}

// clone copies c so options applied to the copy leave c untouched.
func (c config) clone() config {
	c.converters = maps.Clone(c.converters)
	return c
}

// Option configures a Mapper.
type Option func(*config)

// WithLogger sets the logger receiving diagnostics. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCache makes the Mapper use cache instead of the process-wide one.
// Tests use it to isolate or reset cached resolutions.
func WithCache(cache *Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithRetainedJSON keeps parsed embedded documents across mapping calls,
// for batches that map many destinations from the same source. Call
// Mapper.ClearJSONCache when the batch is done.
func WithRetainedJSON(retain bool) Option {
	return func(c *config) { c.retainJSON = retain }
}

// WithAdapters toggles declared adapters, encoding.TextUnmarshaler
// destinations and enum wire names. Enabled by default.
func WithAdapters(enabled bool) Option {
	return func(c *config) { c.adapters = enabled }
}

// WithConverter registers fn for destination fields (and list elements) of
// type D. It is consulted for values of type S, after adapters and enum
// coercion, in registration order:
//
//	(d, true, nil)   replaces the value by d
//	(_, false, nil)  leaves the value alone
//	(_, _, err)      is logged and ignored
//
// A converter producing a D for a list element or composite field also
// replaces the sub-mapping of that value.
func WithConverter[S, D any](fn func(S, Field) (D, bool, error)) Option {
	dt := TypeOf[D]()
	conv := converter{
		src: TypeOf[S](),
		fn: func(v any, f Field) (any, bool, error) {
			s, ok := v.(S)
			if !ok {
				return nil, false, nil
			}
			d, ok, err := fn(s, f)
			if err != nil || !ok {
				return nil, false, err
			}
			return d, true, nil
		},
	}
	return func(c *config) {
		if c.converters == nil {
			c.converters = make(map[reflect.Type][]converter)
		}
		c.converters[dt] = append(slices.Clip(c.converters[dt]), conv)
	}
}
