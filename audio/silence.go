package audio

import "time"

const (
	// TickInterval is how often callers are expected to feed the
	// monitor one speech/silence sample.
	TickInterval = 100 * time.Millisecond

	silenceWarnEvery = 8 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no audio detected for the warn window
	SilenceWarnClear              // speech resumed after a warning
	SilenceRepeat                 // periodic reminder while still silent
)

// SilenceMonitor watches a rolling window of speech/silence ticks and
// raises an event when the session has gone quiet, e.g. because the
// selected device captures nothing.
type SilenceMonitor struct {
	warnAt int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func NewSilenceMonitor() *SilenceMonitor {
	warnAt := int(silenceWarnEvery / TickInterval)
	return &SilenceMonitor{
		warnAt: warnAt,
		window: make([]bool, warnAt),
	}
}

func (m *SilenceMonitor) ratio() float64 {
	n := len(m.window)
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+len(m.window))%len(m.window)] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *SilenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%len(m.window)] = hasSpeech
	m.ticks++

	r := m.ratio()

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}
