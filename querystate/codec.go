package querystate

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kbukum/viewkit/errors"
)

// Query keys and sentinels.
const (
	KeySort            = "sortBy"
	KeyPage            = "page"
	FilterAll          = "all"
	DefaultFilterField = "status"
)

// MaxPage is the largest page a query may address. Larger values fall back
// to the first page, keeping row offsets far from overflow.
const MaxPage = math.MaxInt32

var field = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name can be a sort or filter field: a letter or
// underscore followed by letters, digits or underscores.
func ValidField(name string) bool {
	return field.MatchString(name)
}

// Decode reads a descriptor from a raw query string. It never fails; see
// Parse for the issues it recovered from.
func Decode(raw string, defaults Defaults) Descriptor {
	d, _ := Parse(raw, defaults)
	return d
}

// Parse is Decode that also reports every malformed piece it replaced with a
// default, as INVALID_DESCRIPTOR errors.
func Parse(raw string, defaults Defaults) (Descriptor, []*errors.AppError) {
	// ParseQuery keeps every pair it could read alongside the error.
	values, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	return DecodeValues(values, defaults)
}

// DecodeValues reads a descriptor from parsed query values.
func DecodeValues(q url.Values, defaults Defaults) (Descriptor, []*errors.AppError) {
	defaults.ApplyDefaults()
	var issues []*errors.AppError

	d := Descriptor{Sort: defaults.Sort, Page: 1}

	if v := strings.TrimSpace(q.Get(defaults.FilterField)); v != "" && v != FilterAll {
		if defaults.filterAllowed(v) {
			d.Filter = &Filter{Field: defaults.FilterField, Value: v}
		} else {
			issues = append(issues, errors.InvalidDescriptor(defaults.FilterField, v))
		}
	}

	if v := q.Get(KeySort); v != "" {
		if s, ok := parseSort(v); ok && defaults.sortAllowed(s.Field) {
			d.Sort = s
		} else {
			issues = append(issues, errors.InvalidDescriptor(KeySort, v))
		}
	}

	if v := q.Get(KeyPage); v != "" {
		if p, ok := parsePage(v); ok {
			d.Page = p
		} else {
			issues = append(issues, errors.InvalidDescriptor(KeyPage, v))
		}
	}

	return d, issues
}

// parseSort splits "<field>-<direction>" at the last dash. The field must
// pass ValidField.
func parseSort(v string) (Sort, bool) {
	i := strings.LastIndex(v, "-")
	if i <= 0 {
		return Sort{}, false
	}
	dir := Direction(strings.ToLower(v[i+1:]))
	if !dir.IsValid() || !ValidField(v[:i]) {
		return Sort{}, false
	}
	return Sort{Field: v[:i], Direction: dir}, true
}

func parsePage(v string) (int, bool) {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || p < 1 || p > MaxPage {
		return 0, false
	}
	return p, true
}

// Encode returns the updates that make a query decode to d. Keys whose value
// equals the default are deleted.
func Encode(d Descriptor, defaults Defaults) Patch {
	defaults.ApplyDefaults()
	p := make(Patch, 0, 3)

	if d.Filter == nil || d.Filter.Value == "" || d.Filter.Value == FilterAll {
		p = append(p, Update{Key: defaults.FilterField, Delete: true})
	} else {
		p = append(p, Update{Key: defaults.FilterField, Value: d.Filter.Value})
	}

	if d.Sort == defaults.Sort || d.Sort.IsZero() {
		p = append(p, Update{Key: KeySort, Delete: true})
	} else {
		p = append(p, Update{Key: KeySort, Value: d.Sort.String()})
	}

	if d.Page <= 1 {
		p = append(p, Update{Key: KeyPage, Delete: true})
	} else {
		p = append(p, Update{Key: KeyPage, Value: strconv.Itoa(d.Page)})
	}
	return p
}

// Diff returns only the updates needed to move a query from cur to next.
func Diff(cur, next Descriptor, defaults Defaults) Patch {
	from, to := Encode(cur, defaults), Encode(next, defaults)
	var p Patch
	for i := range to {
		if from[i] != to[i] {
			p = append(p, to[i])
		}
	}
	return p
}
