package cachekey

import "github.com/kbukum/viewkit/querystate"

// Neighbors returns the descriptors of the pages adjacent to d that are worth
// prefetching: the previous page when it exists and the next page when it is
// within totalPages. Filter and sort stay fixed. A single-page list has no
// neighbours.
func Neighbors(d querystate.Descriptor, totalPages int) []querystate.Descriptor {
	if totalPages <= 1 {
		return nil
	}
	page := d.Page
	if page < 1 {
		page = 1
	}

	out := make([]querystate.Descriptor, 0, 2)
	if page-1 >= 1 {
		out = append(out, d.WithPage(page-1))
	}
	if page+1 <= totalPages {
		out = append(out, d.WithPage(page+1))
	}
	return out
}

// TotalPages returns how many pages of pageSize hold count rows.
func TotalPages(count, pageSize int) int {
	if count <= 0 {
		return 0
	}
	if pageSize <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}
