package fetchcache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore[int]()
	s.now = func() time.Time { return now }

	if v, err := s.Load(ctx, "missing"); v != nil || err != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", v, err)
	}

	s.Save(ctx, "a", ptr(1), 0)
	s.Save(ctx, "b", ptr(2), time.Minute)

	if v, _ := s.Load(ctx, "a"); v == nil || *v != 1 {
		t.Fatalf("unexpected value %v", v)
	}

	now = now.Add(2 * time.Minute)
	if v, _ := s.Load(ctx, "b"); v != nil {
		t.Fatalf("expected expired key, got %v", *v)
	}
	if v, _ := s.Load(ctx, "a"); v == nil {
		t.Fatal("key without ttl must not expire")
	}

	s.Delete(ctx, "a")
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}
