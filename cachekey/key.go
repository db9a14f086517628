// Package cachekey derives canonical cache keys from list descriptors and
// decides which neighbouring pages to prefetch.
package cachekey

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kbukum/viewkit/querystate"
)

// Key identifies one page of one resource under one filter and sort.
//
// Key is a comparable value: descriptors that are semantically equal resolve
// to keys that are equal under ==, so a Key can be used directly as a map key.
type Key struct {
	resource    string
	hasFilter   bool
	filterField string
	filterValue string
	sortField   string
	sortDir     querystate.Direction
	page        int
	extra       string
}

// Resolve builds the key of d for resource.
func Resolve(resource string, d querystate.Descriptor) Key {
	k := Key{
		resource: resource,
		page:     d.Page,
	}
	if k.page < 1 {
		k.page = 1
	}
	if d.Filter != nil && d.Filter.Value != "" && d.Filter.Value != querystate.FilterAll {
		k.hasFilter = true
		k.filterField = d.Filter.Field
		k.filterValue = d.Filter.Value
	}
	if !d.Sort.IsZero() {
		k.sortField = d.Sort.Field
		k.sortDir = d.Sort.Direction
	}
	return k
}

// ResolveParams is Resolve with additional parameters that select a
// different result set, such as a date window. The order of extra does not
// affect the key.
func ResolveParams(resource string, d querystate.Descriptor, extra map[string]string) Key {
	k := Resolve(resource, d)
	if len(extra) > 0 {
		v := make(url.Values, len(extra))
		for name, value := range extra {
			v.Set(name, value)
		}
		// Encode sorts by key
		k.extra = v.Encode()
	}
	return k
}

// Resource returns the resource name.
func (k Key) Resource() string { return k.resource }

// Page returns the 1-based page.
func (k Key) Page() int { return k.page }

// Params returns the extra parameters given to ResolveParams.
func (k Key) Params() url.Values {
	v, _ := url.ParseQuery(k.extra)
	return v
}

// Descriptor reconstructs the descriptor the key was resolved from.
func (k Key) Descriptor() querystate.Descriptor {
	d := querystate.Descriptor{Page: k.page}
	if k.hasFilter {
		d.Filter = &querystate.Filter{Field: k.filterField, Value: k.filterValue}
	}
	if k.sortField != "" {
		d.Sort = querystate.Sort{Field: k.sortField, Direction: k.sortDir}
	}
	return d
}

// WithPage returns the key of another page of the same list.
func (k Key) WithPage(page int) Key {
	if page < 1 {
		page = 1
	}
	k.page = page
	return k
}

// String returns a stable text form, distinct for distinct keys. Components
// are query-escaped, so the separators never appear inside them.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(url.QueryEscape(k.resource))
	b.WriteByte('|')
	if k.hasFilter {
		b.WriteString(url.QueryEscape(k.filterField))
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(k.filterValue))
	} else {
		b.WriteByte('*')
	}
	b.WriteByte('|')
	if k.sortField != "" {
		b.WriteString(url.QueryEscape(k.sortField))
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(string(k.sortDir)))
	} else {
		b.WriteByte('*')
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(k.page))
	if k.extra != "" {
		b.WriteByte('|')
		b.WriteString(url.QueryEscape(k.extra))
	}
	return b.String()
}

// ForResource returns a predicate matching keys of the named resources, for
// use with cache invalidation.
func ForResource(names ...string) func(resource string) bool {
	return func(resource string) bool {
		for _, n := range names {
			if n == resource {
				return true
			}
		}
		return false
	}
}
