package outside

import "sync"

// MemoryDocument is an in-process Document. Press dispatches an event through
// the registered capture listeners and then, unless propagation was stopped
// by an inner handler, through the bubble listeners.
type MemoryDocument struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]listener
}

type listener struct {
	capture bool
	handler PressHandler
}

// NewMemoryDocument creates an empty document.
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{listeners: make(map[uint64]listener)}
}

// AddPressListener implements Document.
func (d *MemoryDocument) AddPressListener(capture bool, handler PressHandler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = listener{capture: capture, handler: handler}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// Press dispatches a press on target. stopPropagation simulates an inner
// handler calling stop-propagation during the bubble phase.
func (d *MemoryDocument) Press(target Element, button Button, stopPropagation bool) {
	ev := PressEvent{Target: target, Button: button}
	for _, h := range d.snapshot(true) {
		h(ev)
	}
	if stopPropagation {
		return
	}
	for _, h := range d.snapshot(false) {
		h(ev)
	}
}

// Click is Press with the primary button and normal propagation.
func (d *MemoryDocument) Click(target Element) {
	d.Press(target, ButtonPrimary, false)
}

// ListenerCount returns the number of attached listeners.
func (d *MemoryDocument) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *MemoryDocument) snapshot(capture bool) []PressHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PressHandler, 0, len(d.listeners))
	for _, l := range d.listeners {
		if l.capture == capture {
			out = append(out, l.handler)
		}
	}
	return out
}
