// Package realtime implements the dual-transport synchronization client.
// It consumes the meeting service's push-event stream and falls back to
// periodic full-state polling on any stream failure. The fallback is
// one-way: once polling begins there is no re-promotion to push.
package realtime
