package querystate

import "slices"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool { return d == Asc || d == Desc }

// Filter restricts a list to rows whose Field equals Value.
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Sort orders a list. A zero Sort means the store's natural order.
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// IsZero reports whether no sort is set.
func (s Sort) IsZero() bool { return s.Field == "" }

// String renders the sort in its query form, "<field>-<direction>".
func (s Sort) String() string {
	if s.IsZero() {
		return ""
	}
	return s.Field + "-" + string(s.Direction)
}

// Descriptor is the decoded state of a list view. Page is 1-based.
type Descriptor struct {
	Filter *Filter `json:"filter,omitempty"`
	Sort   Sort    `json:"sort"`
	Page   int     `json:"page"`
}

// Equal reports whether d and o describe the same list state.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.Sort != o.Sort || d.Page != o.Page {
		return false
	}
	if d.Filter == nil || o.Filter == nil {
		return d.Filter == nil && o.Filter == nil
	}
	return *d.Filter == *o.Filter
}

// WithFilter returns a copy filtered by f and reset to the first page.
// A nil f clears the filter.
func (d Descriptor) WithFilter(f *Filter) Descriptor {
	if f != nil {
		cp := *f
		f = &cp
	}
	d.Filter = f
	d.Page = 1
	return d
}

// WithSort returns a copy sorted by s and reset to the first page.
func (d Descriptor) WithSort(s Sort) Descriptor {
	d.Sort = s
	d.Page = 1
	return d
}

// WithPage returns a copy on page p. Pages below 1 clamp to 1.
func (d Descriptor) WithPage(p int) Descriptor {
	if p < 1 {
		p = 1
	}
	d.Page = p
	return d
}

// FilterValue returns the filter value, or FilterAll when unfiltered.
func (d Descriptor) FilterValue() string {
	if d.Filter == nil {
		return FilterAll
	}
	return d.Filter.Value
}

// Defaults configures decoding for one list.
type Defaults struct {
	// FilterField is the query key holding the filter value. Defaults to
	// "status".
	FilterField string `mapstructure:"filter_field" json:"filterField"`
	// Sort applies when the query has no usable sortBy.
	Sort Sort `mapstructure:"sort" json:"sort"`
	// AllowedSortFields restricts sortBy fields. Empty allows any.
	AllowedSortFields []string `mapstructure:"allowed_sort_fields" json:"allowedSortFields,omitempty"`
	// AllowedFilterValues restricts filter values. Empty allows any.
	AllowedFilterValues []string `mapstructure:"allowed_filter_values" json:"allowedFilterValues,omitempty"`
}

// ApplyDefaults fills unset fields.
func (d *Defaults) ApplyDefaults() {
	if d.FilterField == "" {
		d.FilterField = DefaultFilterField
	}
	if d.Sort.Field != "" && d.Sort.Direction == "" {
		d.Sort.Direction = Asc
	}
}

// Initial returns the descriptor of an empty query.
func (d Defaults) Initial() Descriptor {
	return Descriptor{Sort: d.Sort, Page: 1}
}

func (d Defaults) sortAllowed(field string) bool {
	return len(d.AllowedSortFields) == 0 || slices.Contains(d.AllowedSortFields, field)
}

func (d Defaults) filterAllowed(value string) bool {
	return len(d.AllowedFilterValues) == 0 || slices.Contains(d.AllowedFilterValues, value)
}
