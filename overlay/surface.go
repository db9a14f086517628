package overlay

import (
	"sync"

	"github.com/kbukum/viewkit/outside"
)

// Placement describes where a mounted surface sits in the root layer.
type Placement struct {
	ID       string `json:"id"`
	At       Point  `json:"at"`
	Centered bool   `json:"centered,omitempty"`
}

// Layer is the host's root-level composition target. Surfaces mount there so
// that ancestor clipping and stacking do not affect them.
type Layer interface {
	Mount(el outside.Element, at Placement)
	Unmount(el outside.Element)
}

// ElementFactory creates the element a surface mounts for an open overlay.
type ElementFactory func(id string) outside.Element

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// Modal makes the surface ignore its anchor and render centered.
func Modal() SurfaceOption {
	return func(s *Surface) { s.modal = true }
}

// Surface renders one overlay body when its id is the open one.
type Surface struct {
	id      string
	reg     *Registry
	layer   Layer
	factory ElementFactory
	modal   bool

	mu      sync.Mutex
	mounted outside.Element
	cancel  func()
}

// NewSurface creates a surface for id. factory is called on every mount.
func NewSurface(id string, reg *Registry, layer Layer, factory ElementFactory, opts ...SurfaceOption) *Surface {
	s := &Surface{id: id, reg: reg, layer: layer, factory: factory}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the overlay id the surface renders for.
func (s *Surface) ID() string { return s.id }

// Mounted returns the currently mounted element, or nil.
func (s *Surface) Mounted() outside.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Render mounts the surface when state opens its id and unmounts it
// otherwise. Each mount creates a fresh element and binds it as the scope's
// outside-press boundary.
func (s *Surface) Render(state State) (Placement, bool) {
	if !state.IsOpenID(s.id) || state.Anchor == nil {
		s.unmount()
		return Placement{}, false
	}

	p := Placement{ID: s.id, At: *state.Anchor, Centered: s.modal}
	if s.modal {
		p.At = Point{}
	}

	s.mu.Lock()
	prev := s.mounted
	el := s.factory(s.id)
	s.mounted = el
	s.mu.Unlock()

	if prev != nil {
		s.layer.Unmount(prev)
	}
	if el == nil {
		return p, true
	}
	s.layer.Mount(el, p)
	s.reg.BindBoundary(s.id, el)
	return p, true
}

// Attach renders the current registry state and re-renders on every change.
// The returned function detaches the surface and unmounts it.
func (s *Surface) Attach() func() {
	cancel := s.reg.Subscribe(func(st State) { s.Render(st) })
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	s.Render(s.reg.State())

	return func() {
		s.mu.Lock()
		c := s.cancel
		s.cancel = nil
		s.mu.Unlock()
		if c != nil {
			c()
		}
		s.unmount()
	}
}

func (s *Surface) unmount() {
	s.mu.Lock()
	el := s.mounted
	s.mounted = nil
	s.mu.Unlock()
	if el != nil {
		s.layer.Unmount(el)
	}
}

// Trigger is the control that opens and closes one overlay.
//
// Element is the trigger's rendered element. When set, a press on it does
// not dismiss the open overlay, so pressing the trigger of an open overlay
// closes it instead of closing and reopening it.
type Trigger struct {
	ID       string
	Registry *Registry
	Bounds   func() Rect
	Element  outside.Element
}

// Activate toggles the trigger's overlay anchored to its current bounds.
func (t Trigger) Activate() {
	t.Registry.AddTrigger(t.ID, t.Element)
	var r Rect
	if t.Bounds != nil {
		r = t.Bounds()
	}
	t.Registry.Toggle(t.ID, r)
}

// Release forgets the trigger's element, for when the trigger unmounts.
func (t Trigger) Release() {
	if t.Element != nil {
		t.Registry.removeTrigger(t.ID, t.Element)
	}
}

// MemoryLayer is an in-memory Layer for tests and headless hosts.
type MemoryLayer struct {
	mu      sync.Mutex
	mounted []mountedElement
}

type mountedElement struct {
	el outside.Element
	at Placement
}

// NewMemoryLayer creates an empty layer.
func NewMemoryLayer() *MemoryLayer { return &MemoryLayer{} }

// Mount implements Layer.
func (l *MemoryLayer) Mount(el outside.Element, at Placement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mounted = append(l.mounted, mountedElement{el: el, at: at})
}

// Unmount implements Layer.
func (l *MemoryLayer) Unmount(el outside.Element) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, m := range l.mounted {
		if m.el == el {
			l.mounted = append(l.mounted[:i], l.mounted[i+1:]...)
			return
		}
	}
}

// Placements returns the placements of mounted elements in mount order.
func (l *MemoryLayer) Placements() []Placement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Placement, len(l.mounted))
	for i, m := range l.mounted {
		out[i] = m.at
	}
	return out
}

// Len returns the number of mounted elements.
func (l *MemoryLayer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.mounted)
}
