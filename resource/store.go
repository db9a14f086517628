package resource

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store reads and writes rows of named resources (tables).
//
// Update and Delete require at least one predicate, so a missing filter can
// never touch a whole table.
type Store interface {
	Select(ctx context.Context, resource string, q Query) ([]Row, error)
	SelectWithCount(ctx context.Context, resource string, q Query) (Result, error)
	Insert(ctx context.Context, resource string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, resource string, values Row, where ...Predicate) ([]Row, error)
	Delete(ctx context.Context, resource string, where ...Predicate) error
}

// DecodeRows converts rows into typed records through their JSON form.
func DecodeRows[T any](rows []Row) ([]T, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("resource: encode rows: %w", err)
	}
	out := make([]T, 0, len(rows))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("resource: decode rows: %w", err)
	}
	return out, nil
}

// EncodeRow converts a typed record into a Row through its JSON form.
func EncodeRow(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("resource: encode row: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("resource: decode row: %w", err)
	}
	return row, nil
}
