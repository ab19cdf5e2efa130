// Package hotkey delivers the global pause/resume key combination,
// Ctrl+Shift+S, without requiring window focus.
package hotkey

// Hotkey emits one event per press of the combination.
type Hotkey interface {
	Register() error
	Unregister()
	Presses() <-chan struct{}
}
