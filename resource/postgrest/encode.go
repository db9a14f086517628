package postgrest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kbukum/viewkit/resource"
)

// encodeQuery renders a select query as PostgREST query parameters. Ranges
// travel in the Range header, not here.
func encodeQuery(q resource.Query) url.Values {
	v := url.Values{}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	}
	addFilters(v, q.Predicates)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Field + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	return v
}

func addFilters(v url.Values, preds []resource.Predicate) {
	for _, p := range preds {
		v.Add(p.Field, encodePredicate(p))
	}
}

// encodePredicate renders "op.value", e.g. eq.checked-in or in.(1,2).
func encodePredicate(p resource.Predicate) string {
	switch p.Op {
	case resource.OpIn:
		vals := make([]string, len(p.Values))
		for i, x := range p.Values {
			vals[i] = quoteListValue(formatValue(x))
		}
		return "in.(" + strings.Join(vals, ",") + ")"
	case resource.OpIs:
		if p.Value == nil {
			return "is.null"
		}
		return "is." + formatValue(p.Value)
	case resource.OpLike, resource.OpIlike:
		// PostgREST accepts * as the wildcard in URLs
		return string(p.Op) + "." + strings.ReplaceAll(formatValue(p.Value), "%", "*")
	default:
		return string(p.Op) + "." + formatValue(p.Value)
	}
}

func formatValue(x any) string {
	switch v := x.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// quoteListValue double-quotes values containing reserved list characters.
func quoteListValue(s string) string {
	if !strings.ContainsAny(s, `,()" `) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// parseContentRange reads the total from "0-9/24" or "*/0". It returns -1
// when the total is unknown.
func parseContentRange(h string) int {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}
