package outside

import (
	"sync"

	"github.com/kbukum/viewkit/logger"
)

// Unregister removes a boundary registration. It is idempotent.
type Unregister func()

// Option configures a Detector.
type Option func(*Detector)

// WithCapture selects the capture (true, default) or bubble phase.
func WithCapture(capture bool) Option {
	return func(d *Detector) { d.capture = capture }
}

// WithLogger sets the detector logger.
func WithLogger(log *logger.Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log.WithComponent("outside")
		}
	}
}

// Detector reports presses that originate outside registered boundaries.
//
// It owns a registration table keyed by scope. The document listener is
// attached when the first boundary is registered and detached when the last
// one is removed.
type Detector struct {
	doc     Document
	capture bool
	log     *logger.Logger

	mu     sync.Mutex
	seq    uint64
	table  map[string]*registration
	remove func()
}

type registration struct {
	id        uint64
	scope     string
	boundary  Element
	onOutside func()
}

// New creates a Detector listening on doc.
func New(doc Document, opts ...Option) *Detector {
	d := &Detector{
		doc:     doc,
		capture: true,
		log:     logger.NewNop(),
		table:   make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds boundary to onOutside for scope, replacing any boundary the
// scope already had. A nil boundary or callback registers nothing.
func (d *Detector) Register(scope string, boundary Element, onOutside func()) Unregister {
	if boundary == nil || onOutside == nil {
		return func() {}
	}

	d.mu.Lock()
	d.seq++
	reg := &registration{id: d.seq, scope: scope, boundary: boundary, onOutside: onOutside}
	_, replaced := d.table[scope]
	d.table[scope] = reg
	if d.remove == nil {
		d.remove = d.doc.AddPressListener(d.capture, d.handle)
	}
	d.mu.Unlock()

	d.log.Debug("boundary registered", logger.Fields(logger.FieldScope, scope, "replaced", replaced))

	var once sync.Once
	return func() {
		once.Do(func() { d.unregister(reg) })
	}
}

// Release removes whatever boundary scope currently has.
func (d *Detector) Release(scope string) {
	d.mu.Lock()
	reg, ok := d.table[scope]
	d.mu.Unlock()
	if ok {
		d.unregister(reg)
	}
}

// Len returns the number of active registrations.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.table)
}

// Listening reports whether the document listener is attached.
func (d *Detector) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remove != nil
}

func (d *Detector) unregister(reg *registration) {
	d.mu.Lock()
	cur, ok := d.table[reg.scope]
	if !ok || cur.id != reg.id {
		// already replaced or removed
		d.mu.Unlock()
		return
	}
	delete(d.table, reg.scope)
	var remove func()
	if len(d.table) == 0 {
		remove, d.remove = d.remove, nil
	}
	d.mu.Unlock()

	if remove != nil {
		remove()
	}
	d.log.Debug("boundary unregistered", logger.Fields(logger.FieldScope, reg.scope))
}

// handle runs on every press. Callbacks are collected under the lock and
// invoked after it is released, so a callback may unregister itself.
func (d *Detector) handle(ev PressEvent) {
	if ev.Button != ButtonPrimary {
		return
	}

	d.mu.Lock()
	fire := make([]func(), 0, len(d.table))
	for _, reg := range d.table {
		if ev.Target != nil && reg.boundary.Contains(ev.Target) {
			continue
		}
		fire = append(fire, reg.onOutside)
	}
	d.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}
