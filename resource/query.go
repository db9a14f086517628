package resource

import (
	"math"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/querystate"
)

// Operator is a filter operator in PostgREST notation.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpIn    Operator = "in"
	OpLike  Operator = "like"
	OpIlike Operator = "ilike"
	OpIs    Operator = "is"
)

// IsValid reports whether the operator is known.
func (o Operator) IsValid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpLike, OpIlike, OpIs:
		return true
	}
	return false
}

// Predicate is one filter condition. Values is used by OpIn; OpIs compares
// against null when Value is nil.
type Predicate struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Value  any      `json:"value,omitempty"`
	Values []any    `json:"values,omitempty"`
}

func Eq(field string, v any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Predicate { return Predicate{Field: field, Op: OpNeq, Value: v} }
func Gt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Predicate { return Predicate{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Predicate { return Predicate{Field: field, Op: OpLte, Value: v} }

// In matches any of values.
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// Like matches a pattern where % is the wildcard.
func Like(field, pattern string) Predicate {
	return Predicate{Field: field, Op: OpLike, Value: pattern}
}

// Ilike is the case-insensitive Like.
func Ilike(field, pattern string) Predicate {
	return Predicate{Field: field, Op: OpIlike, Value: pattern}
}

// IsNull matches rows where field is null.
func IsNull(field string) Predicate {
	return Predicate{Field: field, Op: OpIs}
}

// Order sorts by one column.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Range selects rows From through To, zero-based and inclusive, as in the
// HTTP Range header PostgREST accepts.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Limit returns the number of rows the range spans.
func (r Range) Limit() int { return r.To - r.From + 1 }

// PageRange returns the range of a 1-based page.
func PageRange(page, pageSize int) *Range {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil
	}
	// saturate so the range stays valid however large page is
	if last := math.MaxInt/pageSize - 1; page-1 > last {
		page = last + 1
	}
	from := (page - 1) * pageSize
	return &Range{From: from, To: from + pageSize - 1}
}

// Query selects rows. Empty Columns selects every column; a nil Range
// selects every matching row.
type Query struct {
	Columns    []string    `json:"columns,omitempty"`
	Predicates []Predicate `json:"predicates,omitempty"`
	Order      []Order     `json:"order,omitempty"`
	Range      *Range      `json:"range,omitempty"`
}

// Row is one record keyed by column name.
type Row map[string]any

// Result is a page of rows plus the total number of matching rows.
type Result struct {
	Rows  []Row `json:"rows"`
	Count int   `json:"count"`
}

// ValidIdentifier reports whether name is safe to use as a table or column
// name.
func ValidIdentifier(name string) bool {
	return querystate.ValidField(name)
}

// Validate checks identifiers and operators of q against resource.
func (q Query) Validate(resource string) error {
	if !ValidIdentifier(resource) {
		return errors.InvalidInput("resource", "invalid resource name "+resource)
	}
	for _, c := range q.Columns {
		if c != "*" && !ValidIdentifier(c) {
			return errors.InvalidInput("columns", "invalid column "+c)
		}
	}
	if err := ValidatePredicates(q.Predicates); err != nil {
		return err
	}
	for _, o := range q.Order {
		if !ValidIdentifier(o.Field) {
			return errors.InvalidInput("order", "invalid column "+o.Field)
		}
	}
	if q.Range != nil && (q.Range.From < 0 || q.Range.To < q.Range.From) {
		return errors.InvalidInput("range", "invalid row range")
	}
	return nil
}

// ValidatePredicates checks fields and operators.
func ValidatePredicates(preds []Predicate) error {
	for _, p := range preds {
		if !ValidIdentifier(p.Field) {
			return errors.InvalidInput("predicates", "invalid column "+p.Field)
		}
		if !p.Op.IsValid() {
			return errors.InvalidInput("predicates", "unknown operator "+string(p.Op))
		}
	}
	return nil
}
