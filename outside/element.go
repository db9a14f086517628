package outside

// Element is a rendered element the host UI runtime can test for containment.
//
// Contains reports whether other is the receiver itself or a descendant of it
// in the logical component subtree. Portaled children that are physically
// mounted elsewhere must still be reported as contained.
type Element interface {
	Contains(other Element) bool
}

// Button identifies the pointer button of a press.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonAuxiliary
	ButtonSecondary
)

// PressEvent is a pointer press observed at the document root.
type PressEvent struct {
	Target Element
	Button Button
}

// PressHandler receives press events from a Document.
type PressHandler func(PressEvent)

// Document is the host capability the detector listens on. AddPressListener
// attaches handler at the root of the visible tree, in the capture phase when
// capture is true, and returns a function that detaches it.
type Document interface {
	AddPressListener(capture bool, handler PressHandler) (remove func())
}
