package store

import "fmt"

// Filter restricts search results by record metadata. Filters are
// immutable and passed per call, so one filter value can be shared by
// concurrent searches.
type Filter interface {
	Matches(meta map[string]any) bool
}

type fieldIn struct {
	field  string
	values map[string]struct{}
}

// FieldIn matches records whose metadata field stringifies to one of
// the given values.
func FieldIn(field string, values ...string) Filter {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return fieldIn{field: field, values: set}
}

func (f fieldIn) Matches(meta map[string]any) bool {
	v, ok := meta[f.field]
	if !ok {
		return false
	}
	_, ok = f.values[fmt.Sprint(v)]
	return ok
}

type and []Filter

// And matches records that satisfy every given filter. And() with no
// arguments matches everything.
func And(filters ...Filter) Filter {
	return and(filters)
}

func (a and) Matches(meta map[string]any) bool {
	for _, f := range a {
		if !f.Matches(meta) {
			return false
		}
	}
	return true
}
