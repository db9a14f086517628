package listview

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/viewkit/resource"
)

type booking struct {
	ID         int     `json:"id"`
	Status     string  `json:"status"`
	TotalPrice float64 `json:"total_price"`
}

// memStore is a resource.Store over a slice, supporting equality
// predicates, one order column and ranges.
type memStore struct {
	mu      sync.Mutex
	rows    []resource.Row
	queries []resource.Query
	failing error
	nextID  int
}

func newMemStore(n int) *memStore {
	s := &memStore{}
	statuses := []string{"unconfirmed", "checked-in", "checked-out"}
	for i := 1; i <= n; i++ {
		s.rows = append(s.rows, resource.Row{"id": i, "status": statuses[i%3], "total_price": float64(i * 10)})
	}
	s.nextID = n + 1
	return s
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	s.failing = err
	s.mu.Unlock()
}

// pagesLoaded returns the 1-based pages requested so far, for a page size.
func (s *memStore) pagesLoaded(size int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, q := range s.queries {
		if q.Range != nil {
			out = append(out, q.Range.From/size+1)
		}
	}
	return out
}

func (s *memStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func matches(row resource.Row, preds []resource.Predicate) bool {
	for _, p := range preds {
		if fmt.Sprint(row[p.Field]) != fmt.Sprint(p.Value) {
			return false
		}
	}
	return true
}

func (s *memStore) Select(ctx context.Context, name string, q resource.Query) ([]resource.Row, error) {
	res, err := s.SelectWithCount(ctx, name, q)
	return res.Rows, err
}

func (s *memStore) SelectWithCount(_ context.Context, _ string, q resource.Query) (resource.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.failing != nil {
		return resource.Result{}, s.failing
	}

	var found []resource.Row
	for _, r := range s.rows {
		if matches(r, q.Predicates) {
			found = append(found, maps.Clone(r))
		}
	}
	if len(q.Order) > 0 {
		o := q.Order[0]
		sort.SliceStable(found, func(i, j int) bool {
			a, b := fmt.Sprintf("%012v", found[i][o.Field]), fmt.Sprintf("%012v", found[j][o.Field])
			if o.Desc {
				return strings.Compare(a, b) > 0
			}
			return strings.Compare(a, b) < 0
		})
	}
	total := len(found)
	if q.Range != nil {
		from, to := q.Range.From, q.Range.To+1
		if from > total {
			from = total
		}
		if to > total {
			to = total
		}
		found = found[from:to]
	}
	return resource.Result{Rows: found, Count: total}, nil
}

func (s *memStore) Insert(_ context.Context, _ string, rows ...resource.Row) ([]resource.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}
	for _, r := range rows {
		if _, ok := r["id"]; !ok {
			r["id"] = s.nextID
			s.nextID++
		}
		s.rows = append(s.rows, r)
	}
	return rows, nil
}

func (s *memStore) Update(_ context.Context, _ string, values resource.Row, where ...resource.Predicate) ([]resource.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}
	var out []resource.Row
	for _, r := range s.rows {
		if matches(r, where) {
			for k, v := range values {
				r[k] = v
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, _ string, where ...resource.Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	kept := s.rows[:0]
	for _, r := range s.rows {
		if !matches(r, where) {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

var _ resource.Store = (*memStore)(nil)
