// Package session coordinates one meeting session end to end: it owns the
// session state machine and wires the capture pipeline to the uploader and
// the sync client to the reconciler. All mutable session state lives here,
// passed by reference to the components that need it.
package session
