package xmap

import (
	"reflect"
	"sync"
)

// --- package-level lazy default mapper (used by Map/MapInto/SourceGetter) ---

var (
	mapper     *Mapper
	mapperOnce sync.Once
)

func getMapper() *Mapper {
	mapperOnce.Do(func() { mapper = New() })
	return mapper
}

// Map creates a T and populates it from src with the default Mapper.
//
// Example:
//
//	type Record struct {
//	    Payload []byte
//	}
//
//	type Article struct {
//	    Title string `source:"Payload,pointer=/title"`
//	}
//
//	a, err := xmap.Map[Article](Record{Payload: []byte(`{"title":"foobar"}`)})
//	if errors.Is(err, xmap.ErrMalformedJSON) {
//	    // the payload is corrupt
//	}
//	// a.Title == "foobar"
func Map[T any](src any, groups ...reflect.Type) (T, error) {
	return To[T](getMapper(), src, groups...)
}

// MapInto populates the struct dst points to with the default Mapper. See
// Mapper.MapInto.
func MapInto(src, dst any, groups ...reflect.Type) error {
	return getMapper().MapInto(src, dst, groups...)
}

// SourceGetter returns the default Mapper's getter of field of dst for
// sources of type src. See Mapper.Getter.
func SourceGetter(dst reflect.Type, field string, src reflect.Type, groups ...reflect.Type) (Getter, bool) {
	return getMapper().Getter(dst, field, src, groups...)
}
