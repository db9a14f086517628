package cachekey

import (
	"testing"

	"github.com/kbukum/viewkit/querystate"
)

func TestResolve_Equality(t *testing.T) {
	a := querystate.Descriptor{
		Filter: &querystate.Filter{Field: "status", Value: "checked-in"},
		Sort:   querystate.Sort{Field: "totalPrice", Direction: querystate.Asc},
		Page:   3,
	}
	b := querystate.Decode("page=3&sortBy=totalPrice-asc&status=checked-in", querystate.Defaults{})

	if Resolve("bookings", a) != Resolve("bookings", b) {
		t.Fatal("equal descriptors must resolve to equal keys")
	}

	tests := []struct {
		name  string
		left  Key
		right Key
	}{
		{"resource", Resolve("bookings", a), Resolve("cabins", a)},
		{"page", Resolve("bookings", a), Resolve("bookings", a.WithPage(4))},
		{"sort", Resolve("bookings", a), Resolve("bookings", querystate.Descriptor{Filter: a.Filter, Page: 3})},
		{"filter", Resolve("bookings", a), Resolve("bookings", querystate.Descriptor{Sort: a.Sort, Page: 3})},
		{"extra", ResolveParams("bookings", a, map[string]string{"last": "7"}), ResolveParams("bookings", a, map[string]string{"last": "30"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.left == tt.right {
				t.Fatal("expected distinct keys")
			}
			if tt.left.String() == tt.right.String() {
				t.Fatalf("expected distinct strings, both %q", tt.left.String())
			}
		})
	}
}

func TestResolve_AllFilterIsUnfiltered(t *testing.T) {
	all := querystate.Descriptor{Filter: &querystate.Filter{Field: "status", Value: querystate.FilterAll}, Page: 1}
	none := querystate.Descriptor{Page: 1}
	if Resolve("bookings", all) != Resolve("bookings", none) {
		t.Fatal("the all sentinel must resolve like no filter")
	}
}

func TestResolve_UsableAsMapKey(t *testing.T) {
	m := map[Key]int{}
	d := querystate.Descriptor{Page: 2}
	m[Resolve("cabins", d)]++
	m[Resolve("cabins", querystate.Decode("page=2", querystate.Defaults{}))]++
	if len(m) != 1 || m[Resolve("cabins", d)] != 2 {
		t.Fatalf("unexpected map %v", m)
	}
}

func TestKey_StringIsInjective(t *testing.T) {
	// separator characters inside components must not collide
	a := Resolve("a|b", querystate.Descriptor{Page: 1})
	b := Resolve("a", querystate.Descriptor{Filter: &querystate.Filter{Field: "b", Value: "*"}, Page: 1})
	if a.String() == b.String() {
		t.Fatalf("collision: %q", a.String())
	}
	if got := Resolve("bookings", querystate.Descriptor{Page: 3}).String(); got != "bookings|*|*|3" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestKey_ParamsOrderIndependent(t *testing.T) {
	d := querystate.Descriptor{Page: 1}
	a := ResolveParams("stays", d, map[string]string{"last": "7", "field": "created_at"})
	b := ResolveParams("stays", d, map[string]string{"field": "created_at", "last": "7"})
	if a != b {
		t.Fatal("extra parameter order must not matter")
	}
	if a.Params().Get("last") != "7" {
		t.Errorf("expected params preserved, got %v", a.Params())
	}
}

func TestKey_Descriptor(t *testing.T) {
	d := querystate.Descriptor{
		Filter: &querystate.Filter{Field: "status", Value: "unconfirmed"},
		Sort:   querystate.Sort{Field: "startDate", Direction: querystate.Desc},
		Page:   2,
	}
	k := Resolve("bookings", d)
	if !k.Descriptor().Equal(d) {
		t.Fatalf("expected %+v, got %+v", d, k.Descriptor())
	}
	if k.WithPage(5) != Resolve("bookings", d.WithPage(5)) {
		t.Fatal("WithPage must match resolving the paged descriptor")
	}
	if k.Resource() != "bookings" || k.Page() != 2 {
		t.Fatal("unexpected accessors")
	}
}

func TestForResource(t *testing.T) {
	match := ForResource("bookings", "cabins")
	if !match("cabins") || match("settings") {
		t.Fatal("unexpected match result")
	}
}
