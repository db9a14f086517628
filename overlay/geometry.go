package overlay

// Point is a viewport-relative position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an on-screen bounding box.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Viewport is the visible area size. A zero width disables edge checks.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultOffset is the gap between a trigger's bottom edge and its surface.
const DefaultOffset = 8

// Positioner computes where a surface opens relative to its trigger.
//
// The anchor is the surface's top-left corner: y sits Offset below the
// trigger, and x right-aligns the surface with the trigger unless that would
// push it past the left edge of the viewport, in which case it left-aligns.
// A left-aligned surface that would overflow the right edge is pulled back
// inside the viewport.
type Positioner struct {
	Offset       float64
	SurfaceWidth float64
	Viewport     Viewport
}

// DefaultPositioner returns a positioner with DefaultOffset and no viewport.
func DefaultPositioner() Positioner {
	return Positioner{Offset: DefaultOffset}
}

// Anchor computes the anchor for a trigger's bounding box.
func (p Positioner) Anchor(trigger Rect) Point {
	y := trigger.Bottom() + p.Offset

	x := trigger.Right() - p.SurfaceWidth
	if x < 0 {
		x = trigger.Left
	}
	if p.Viewport.Width > 0 && x+p.SurfaceWidth > p.Viewport.Width {
		x = p.Viewport.Width - p.SurfaceWidth
		if x < 0 {
			x = 0
		}
	}
	return Point{X: x, Y: y}
}
