package overlay

// State is the observable registry state. OpenID is empty when closed, and
// Anchor is nil exactly when OpenID is empty.
type State struct {
	OpenID string `json:"openId"`
	Anchor *Point `json:"anchor,omitempty"`
}

// IsOpen reports whether any overlay is open.
func (s State) IsOpen() bool { return s.OpenID != "" }

// IsOpenID reports whether the overlay named id is open.
func (s State) IsOpenID(id string) bool { return id != "" && s.OpenID == id }

func closedState() State { return State{} }

func openState(id string, anchor Point) State {
	a := anchor
	return State{OpenID: id, Anchor: &a}
}
