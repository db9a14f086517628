package overlay

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/outside"
)

// Option configures a Registry.
type Option func(*Registry)

// WithID sets the scope ID. Defaults to a random UUID.
func WithID(id string) Option {
	return func(r *Registry) {
		if id != "" {
			r.id = id
		}
	}
}

// WithPositioner sets how Toggle turns a trigger rect into an anchor.
func WithPositioner(p Positioner) Option {
	return func(r *Registry) { r.positioner = p }
}

// WithLogger sets the registry logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log.WithComponent("overlay")
		}
	}
}

// Registry tracks which overlay of a scope is open.
//
// All methods are total and safe for concurrent use. Subscribers and the
// detector are called outside the registry lock.
type Registry struct {
	id         string
	detector   *outside.Detector
	positioner Positioner
	log        *logger.Logger

	mu        sync.Mutex
	state     State
	bound     string
	unbind    outside.Unregister
	subs      map[uint64]func(State)
	nextSub   uint64
	destroyed bool

	// triggers has its own lock: the detector reads it while holding its
	// lock, and mu is held while calling into the detector.
	tmu      sync.Mutex
	triggers map[string][]outside.Element
}

// New creates a registry scope. detector may be nil, in which case surfaces
// are only closed explicitly.
func New(detector *outside.Detector, opts ...Option) *Registry {
	r := &Registry{
		id:         uuid.NewString(),
		detector:   detector,
		positioner: DefaultPositioner(),
		log:        logger.NewNop(),
		subs:       make(map[uint64]func(State)),
		triggers:   make(map[string][]outside.Element),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the scope ID used for the detector registration table.
func (r *Registry) ID() string { return r.id }

// State returns a snapshot of the current state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyState(r.state)
}

// Open opens id at anchor, replacing whatever was open. An empty id closes.
func (r *Registry) Open(id string, anchor Point) {
	if id == "" {
		r.Close()
		return
	}
	r.transition(openState(id, anchor))
}

// Close closes the open overlay. It is a no-op when nothing is open.
func (r *Registry) Close() {
	r.transition(closedState())
}

// Toggle closes id if it is open, otherwise opens it anchored below trigger.
// This is what a trigger calls on activation.
func (r *Registry) Toggle(id string, trigger Rect) {
	r.mu.Lock()
	open := r.state.IsOpenID(id)
	r.mu.Unlock()

	if open {
		r.Close()
		return
	}
	r.Open(id, r.positioner.Anchor(trigger))
}

// CloseAfter wraps an action so the registry closes once it has run, the way
// menu buttons behave.
func (r *Registry) CloseAfter(fn func()) func() {
	return func() {
		if fn != nil {
			fn()
		}
		r.Close()
	}
}

// BindBoundary registers el as the outside-press boundary of the open
// overlay, with Close as the dismissal. Binding for an id that is not open is
// a stale boundary and does nothing; the return value reports whether the
// boundary was bound.
func (r *Registry) BindBoundary(id string, el outside.Element) bool {
	if r.detector == nil || el == nil {
		return false
	}

	r.mu.Lock()
	if r.destroyed || !r.state.IsOpenID(id) {
		r.mu.Unlock()
		stale := errors.StaleBoundary(r.id, id)
		r.log.Debug(stale.Message, stale.Details)
		return false
	}
	prev := r.unbind
	r.unbind = r.detector.Register(r.id, boundary{reg: r, id: id, surface: el}, r.Close)
	r.bound = id
	r.mu.Unlock()

	// Register already replaced the scope's entry; prev is a no-op unless
	// it belongs to a different generation.
	if prev != nil {
		prev()
	}
	return true
}

// AddTrigger marks el as a trigger of id. Presses on it are not outside
// presses for id's surface, so the trigger's own Toggle decides whether the
// overlay closes. Adding an element twice is a no-op. The returned function
// removes el.
func (r *Registry) AddTrigger(id string, el outside.Element) func() {
	if el == nil {
		return func() {}
	}
	r.tmu.Lock()
	if !slices.Contains(r.triggers[id], el) {
		r.triggers[id] = append(r.triggers[id], el)
	}
	r.tmu.Unlock()

	return func() { r.removeTrigger(id, el) }
}

func (r *Registry) removeTrigger(id string, el outside.Element) {
	r.tmu.Lock()
	defer r.tmu.Unlock()
	els := slices.DeleteFunc(r.triggers[id], func(e outside.Element) bool { return e == el })
	if len(els) == 0 {
		delete(r.triggers, id)
		return
	}
	r.triggers[id] = els
}

func (r *Registry) triggersOf(id string) []outside.Element {
	r.tmu.Lock()
	defer r.tmu.Unlock()
	return slices.Clone(r.triggers[id])
}

// boundary is what the detector tests presses against: the mounted surface
// plus the triggers of the same overlay.
type boundary struct {
	reg     *Registry
	id      string
	surface outside.Element
}

func (b boundary) Contains(other outside.Element) bool {
	if b.surface.Contains(other) {
		return true
	}
	for _, t := range b.reg.triggersOf(b.id) {
		if t.Contains(other) {
			return true
		}
	}
	return false
}

// Subscribe calls fn with the new state after every change. The returned
// function cancels the subscription.
func (r *Registry) Subscribe(fn func(State)) func() {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Destroy tears the scope down: the overlay closes, the detector binding is
// released, and later operations no longer notify subscribers.
func (r *Registry) Destroy() {
	r.Close()

	r.mu.Lock()
	r.destroyed = true
	r.subs = make(map[uint64]func(State))
	unbind := r.unbind
	r.unbind, r.bound = nil, ""
	r.mu.Unlock()

	if unbind != nil {
		unbind()
	}

	r.tmu.Lock()
	clear(r.triggers)
	r.tmu.Unlock()
}

func (r *Registry) transition(next State) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	prev := r.state
	if sameState(prev, next) {
		r.mu.Unlock()
		return
	}
	r.state = next

	// The boundary belongs to the surface of the previous id; drop it when
	// that surface stops rendering.
	var unbind outside.Unregister
	if r.bound != "" && r.bound != next.OpenID {
		unbind = r.unbind
		r.unbind, r.bound = nil, ""
	}

	subs := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	if unbind != nil {
		unbind()
	}

	if next.IsOpen() {
		r.log.Debug("overlay opened", logger.Fields(logger.FieldScope, r.id, logger.FieldOverlay, next.OpenID))
	} else {
		r.log.Debug("overlay closed", logger.Fields(logger.FieldScope, r.id, logger.FieldOverlay, prev.OpenID))
	}

	for _, fn := range subs {
		fn(copyState(next))
	}
}

func sameState(a, b State) bool {
	if a.OpenID != b.OpenID {
		return false
	}
	if a.Anchor == nil || b.Anchor == nil {
		return a.Anchor == nil && b.Anchor == nil
	}
	return *a.Anchor == *b.Anchor
}

func copyState(s State) State {
	if s.Anchor == nil {
		return State{OpenID: s.OpenID}
	}
	a := *s.Anchor
	return State{OpenID: s.OpenID, Anchor: &a}
}
