package resource

import "github.com/kbukum/viewkit/querystate"

// Mapping turns a list descriptor into a store query.
//
// By default a filter becomes an equality on the filter field. Filters maps
// filter values to custom predicates instead, for filters that are not plain
// column matches:
//
//	resource.Mapping{Filters: map[string][]resource.Predicate{
//		"no-discount":   {resource.Eq("discount", 0)},
//		"with-discount": {resource.Gt("discount", 0)},
//	}}
type Mapping struct {
	Columns  []string
	PageSize int
	// Base predicates apply to every query.
	Base    []Predicate
	Filters map[string][]Predicate
	// Fields renames descriptor fields to store columns, e.g. totalPrice to
	// total_price. Unlisted fields are used as is.
	Fields map[string]string
}

func (m Mapping) column(field string) string {
	if c, ok := m.Fields[field]; ok {
		return c
	}
	return field
}

// Query builds the store query for d.
func (m Mapping) Query(d querystate.Descriptor) Query {
	q := Query{Columns: m.Columns}
	q.Predicates = append(q.Predicates, m.Base...)

	if d.Filter != nil && d.Filter.Value != "" && d.Filter.Value != querystate.FilterAll {
		if preds, ok := m.Filters[d.Filter.Value]; ok {
			q.Predicates = append(q.Predicates, preds...)
		} else {
			q.Predicates = append(q.Predicates, Eq(m.column(d.Filter.Field), d.Filter.Value))
		}
	}

	if !d.Sort.IsZero() {
		q.Order = []Order{{Field: m.column(d.Sort.Field), Desc: d.Sort.Direction == querystate.Desc}}
	}

	if m.PageSize > 0 {
		q.Range = PageRange(d.Page, m.PageSize)
	}
	return q
}
