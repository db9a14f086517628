// Package overlay coordinates floating surfaces (menus and modals) that
// share a scope.
//
// A Registry is a single-open-at-a-time state machine: Closed, or
// Open(id, anchor). Triggers call Toggle; a Surface renders its content only
// while the registry's open id matches its own, into a detached root Layer,
// and binds its freshly mounted element as the scope's outside-press
// boundary so that a press elsewhere closes the registry.
//
// Registries are explicit scope objects: create one per independent group of
// overlays (one per table row, or one for a page) and pass it to the
// triggers and surfaces that belong to it.
package overlay
