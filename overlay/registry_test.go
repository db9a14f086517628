package overlay

import (
	"sync"
	"testing"

	"github.com/kbukum/viewkit/outside"
)

func newTestRegistry(t *testing.T) (*Registry, *outside.MemoryDocument, *outside.Detector) {
	t.Helper()
	doc := outside.NewMemoryDocument()
	det := outside.New(doc)
	return New(det, WithID("cabins")), doc, det
}

func TestRegistry_StartsClosed(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	st := r.State()
	if st.IsOpen() || st.Anchor != nil {
		t.Fatalf("expected closed state, got %+v", st)
	}
	if r.ID() != "cabins" {
		t.Errorf("expected id cabins, got %q", r.ID())
	}
}

func TestRegistry_DefaultIDIsUnique(t *testing.T) {
	a, b := New(nil), New(nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.ID(), b.ID())
	}
}

func TestRegistry_SingleOpen(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	ops := []struct {
		name string
		run  func()
		want string
	}{
		{"open a", func() { r.Open("a", Point{X: 1, Y: 2}) }, "a"},
		{"open b replaces a", func() { r.Open("b", Point{X: 3, Y: 4}) }, "b"},
		{"toggle c replaces b", func() { r.Toggle("c", Rect{Left: 10, Top: 10, Width: 20, Height: 10}) }, "c"},
		{"close", func() { r.Close() }, ""},
		{"close again is no-op", func() { r.Close() }, ""},
		{"open with empty id closes", func() { r.Open("", Point{}) }, ""},
	}
	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			op.run()
			st := r.State()
			if st.OpenID != op.want {
				t.Fatalf("expected open id %q, got %q", op.want, st.OpenID)
			}
			if (st.OpenID == "") != (st.Anchor == nil) {
				t.Fatalf("anchor presence must follow open id, got %+v", st)
			}
		})
	}
}

func TestRegistry_ToggleSymmetry(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	trigger := Rect{Left: 100, Top: 50, Width: 24, Height: 24}

	r.Toggle("menu-1", trigger)
	if !r.State().IsOpenID("menu-1") {
		t.Fatal("expected menu-1 open after first toggle")
	}
	r.Toggle("menu-1", trigger)
	if r.State().IsOpen() {
		t.Fatal("expected closed after second toggle")
	}
}

func TestRegistry_ToggleAnchorsBelowTrigger(t *testing.T) {
	r := New(nil, WithPositioner(Positioner{Offset: 8}))
	r.Toggle("menu", Rect{Left: 100, Top: 40, Width: 30, Height: 20})

	got := r.State().Anchor
	if got == nil {
		t.Fatal("expected anchor")
	}
	want := Point{X: 130, Y: 68}
	if *got != want {
		t.Errorf("expected anchor %+v, got %+v", want, *got)
	}
}

func TestRegistry_StateIsSnapshot(t *testing.T) {
	r := New(nil)
	r.Open("a", Point{X: 1, Y: 1})
	st := r.State()
	st.Anchor.X = 99
	if r.State().Anchor.X != 1 {
		t.Fatal("mutating a snapshot must not change the registry")
	}
}

func TestRegistry_BindBoundary(t *testing.T) {
	r, doc, det := newTestRegistry(t)
	root := outside.NewNode("root", nil)
	menu := root.Portal("menu")
	item := menu.Child("item")
	elsewhere := root.Child("elsewhere")

	if r.BindBoundary("menu", menu) {
		t.Fatal("binding while closed must be a stale no-op")
	}
	if det.Len() != 0 {
		t.Fatalf("expected no registrations, got %d", det.Len())
	}

	r.Open("menu", Point{})
	if !r.BindBoundary("menu", menu) {
		t.Fatal("expected bind to succeed for the open id")
	}
	if r.BindBoundary("other", menu) {
		t.Fatal("binding a different id must be a stale no-op")
	}

	doc.Click(item)
	if !r.State().IsOpenID("menu") {
		t.Fatal("press inside the boundary must not close")
	}

	doc.Click(elsewhere)
	if r.State().IsOpen() {
		t.Fatal("press outside the boundary must close")
	}
	if det.Len() != 0 || doc.ListenerCount() != 0 {
		t.Fatalf("closing must release the boundary, got %d registrations and %d listeners", det.Len(), doc.ListenerCount())
	}
}

func TestRegistry_OpenOtherReleasesBoundary(t *testing.T) {
	r, doc, det := newTestRegistry(t)
	root := outside.NewNode("root", nil)

	r.Open("a", Point{})
	r.BindBoundary("a", root.Portal("a"))
	r.Open("b", Point{})

	if det.Len() != 0 {
		t.Fatalf("expected a's boundary released, got %d registrations", det.Len())
	}
	doc.Click(root)
	if !r.State().IsOpenID("b") {
		t.Fatal("b has no boundary yet and must stay open")
	}
}

func TestRegistry_NilDetector(t *testing.T) {
	r := New(nil)
	r.Open("a", Point{})
	if r.BindBoundary("a", outside.NewNode("a", nil)) {
		t.Fatal("expected bind to fail without a detector")
	}
	r.Close()
	if r.State().IsOpen() {
		t.Fatal("expected closed")
	}
}

func TestRegistry_Subscribe(t *testing.T) {
	r := New(nil)
	var got []string
	cancel := r.Subscribe(func(s State) { got = append(got, s.OpenID) })

	r.Open("a", Point{})
	r.Open("a", Point{}) // same state, no notification
	r.Open("b", Point{})
	r.Close()
	r.Close()
	cancel()
	r.Open("c", Point{})

	want := []string{"a", "b", ""}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRegistry_CloseAfter(t *testing.T) {
	r := New(nil)
	r.Open("menu", Point{})
	ran := false
	r.CloseAfter(func() { ran = true })()
	if !ran || r.State().IsOpen() {
		t.Fatalf("expected action run and registry closed, ran=%v state=%+v", ran, r.State())
	}
}

func TestRegistry_Destroy(t *testing.T) {
	r, doc, det := newTestRegistry(t)
	notified := 0
	r.Subscribe(func(State) { notified++ })

	r.Open("a", Point{})
	r.BindBoundary("a", outside.NewNode("a", nil))
	r.Destroy()

	if r.State().IsOpen() {
		t.Fatal("destroy must close")
	}
	if det.Len() != 0 || doc.ListenerCount() != 0 {
		t.Fatal("destroy must release the detector binding")
	}
	before := notified
	r.Open("b", Point{})
	if notified != before || r.State().IsOpen() {
		t.Fatal("a destroyed registry must ignore further operations")
	}
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"a", "b", "c"}[i%3]
			r.Toggle(id, Rect{Width: 10, Height: 10})
			r.BindBoundary(id, outside.NewNode(id, nil))
			if i%5 == 0 {
				r.Close()
			}
		}(i)
	}
	wg.Wait()

	st := r.State()
	if (st.OpenID == "") != (st.Anchor == nil) {
		t.Fatalf("state invariant broken: %+v", st)
	}
}
