// Package outside detects pointer presses that land outside a boundary
// element.
//
// A Detector listens on a host Document at the root of the visible tree,
// in the capture phase by default so that inner handlers stopping
// propagation during the bubble phase cannot hide a dismissal. Boundaries
// are held in a registration table keyed by scope: each scope has at most
// one active boundary, and registering again for the same scope replaces it.
//
//	det := outside.New(doc)
//	unregister := det.Register(scopeID, menuElement, closeMenu)
//	defer unregister()
//
// Containment is inclusive and follows the logical component subtree, so a
// press on a portaled child of the boundary counts as inside.
package outside
