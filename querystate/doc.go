// Package querystate maps list-view controls to and from a URL query string.
//
// A Descriptor holds the active filter, sort and page of a list. Decode reads
// one from a raw query and never fails: malformed pieces fall back to the
// configured Defaults. Encode produces a Patch that, applied to any query,
// decodes back to the same Descriptor while leaving unrelated keys alone.
//
//	d := querystate.Decode("status=checked-in&sortBy=totalPrice-asc&page=3", defaults)
//	next := d.WithPage(d.Page + 1)
//	raw = querystate.Encode(next, defaults).Apply(raw)
package querystate
