package outside

import "testing"

type fixture struct {
	doc      *MemoryDocument
	det      *Detector
	root     *Node
	menu     *Node
	menuItem *Node
	portal   *Node
	other    *Node
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	doc := NewMemoryDocument()
	root := NewNode("root", nil)
	menu := root.Child("menu")
	return &fixture{
		doc:      doc,
		det:      New(doc, opts...),
		root:     root,
		menu:     menu,
		menuItem: menu.Child("item"),
		portal:   menu.Portal("submenu"),
		other:    root.Child("other"),
	}
}

func TestDetector_OutsidePressFiresOnce(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.det.Register("scope", f.menu, func() { calls++ })

	f.doc.Click(f.other)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	f.doc.Click(f.root)
	if calls != 2 {
		t.Fatalf("expected 2 calls after second press, got %d", calls)
	}
}

func TestDetector_InsidePressDoesNotFire(t *testing.T) {
	tests := []struct {
		name   string
		target func(f *fixture) Element
	}{
		{"boundary itself", func(f *fixture) Element { return f.menu }},
		{"descendant", func(f *fixture) Element { return f.menuItem }},
		{"portaled descendant", func(f *fixture) Element { return f.portal }},
		{"child of portal", func(f *fixture) Element { return f.portal.Child("deep") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			calls := 0
			f.det.Register("scope", f.menu, func() { calls++ })
			f.doc.Click(tc.target(f))
			if calls != 0 {
				t.Errorf("expected no dismissal, got %d calls", calls)
			}
		})
	}
}

func TestDetector_CapturePhaseSurvivesStopPropagation(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.det.Register("scope", f.menu, func() { calls++ })

	f.doc.Press(f.other, ButtonPrimary, true)
	if calls != 1 {
		t.Fatalf("capture listener should see the press, got %d calls", calls)
	}
}

func TestDetector_BubblePhaseHonoursStopPropagation(t *testing.T) {
	f := newFixture(t, WithCapture(false))
	calls := 0
	f.det.Register("scope", f.menu, func() { calls++ })

	f.doc.Press(f.other, ButtonPrimary, true)
	if calls != 0 {
		t.Fatalf("bubble listener should not see a stopped press, got %d calls", calls)
	}
	f.doc.Click(f.other)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDetector_IgnoresNonPrimaryButtons(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.det.Register("scope", f.menu, func() { calls++ })

	f.doc.Press(f.other, ButtonSecondary, false)
	f.doc.Press(f.other, ButtonAuxiliary, false)
	if calls != 0 {
		t.Errorf("expected non-primary presses to be ignored, got %d", calls)
	}
}

func TestDetector_UnregisterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	calls := 0
	unregister := f.det.Register("scope", f.menu, func() { calls++ })

	unregister()
	unregister()

	f.doc.Click(f.other)
	if calls != 0 {
		t.Errorf("expected no calls after unregister, got %d", calls)
	}
	if f.det.Len() != 0 {
		t.Errorf("expected empty table, got %d", f.det.Len())
	}
	if f.doc.ListenerCount() != 0 {
		t.Errorf("expected document listener to be detached, got %d", f.doc.ListenerCount())
	}
}

func TestDetector_RegisterReplacesPerScope(t *testing.T) {
	f := newFixture(t)
	first, second := 0, 0
	unregisterFirst := f.det.Register("scope", f.menu, func() { first++ })
	f.det.Register("scope", f.other, func() { second++ })

	if f.det.Len() != 1 {
		t.Fatalf("expected one registration per scope, got %d", f.det.Len())
	}
	if f.doc.ListenerCount() != 1 {
		t.Fatalf("expected a single document listener, got %d", f.doc.ListenerCount())
	}

	// stale unregister must not remove the replacement
	unregisterFirst()
	f.doc.Click(f.menu)
	if first != 0 || second != 1 {
		t.Errorf("expected only the replacement to fire, got first=%d second=%d", first, second)
	}
}

func TestDetector_IndependentScopes(t *testing.T) {
	f := newFixture(t)
	a, b := 0, 0
	f.det.Register("row-1", f.menu, func() { a++ })
	f.det.Register("row-2", f.other, func() { b++ })

	f.doc.Click(f.menuItem)
	if a != 0 || b != 1 {
		t.Errorf("expected only row-2 to dismiss, got a=%d b=%d", a, b)
	}

	f.det.Release("row-2")
	if f.det.Len() != 1 || !f.det.Listening() {
		t.Errorf("expected row-1 to stay registered")
	}
}

func TestDetector_NoBoundaryIsNoop(t *testing.T) {
	f := newFixture(t)
	unregister := f.det.Register("scope", nil, func() { t.Fatal("must not fire") })
	f.doc.Click(f.other)
	unregister()
	if f.det.Listening() {
		t.Error("expected no listener for a nil boundary")
	}
}

func TestDetector_CallbackMayUnregister(t *testing.T) {
	f := newFixture(t)
	var unregister Unregister
	calls := 0
	unregister = f.det.Register("scope", f.menu, func() {
		calls++
		unregister()
	})

	f.doc.Click(f.other)
	f.doc.Click(f.other)
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
