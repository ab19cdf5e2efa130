package main

// Sink abstracts the display layer so the Bubble Tea TUI and the
// overlay GUI receive the same session events.
type Sink interface {
	UpdateSubtitle(original, translated string)
	SessionStart()
	SessionStop()
	AudioLevel(level float64)
	Paused(paused bool)
	StatusLine(text string)
}
