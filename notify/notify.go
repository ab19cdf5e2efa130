// Package notify delivers user-facing error and warning messages with
// per-severity deduplication and cooldown, so a flapping fault cannot
// flood the user with identical dialogs.
package notify

import (
	"sync"
	"time"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Sink receives messages that survive deduplication. Implementations
// must be safe to call from any goroutine.
type Sink interface {
	Show(sev Severity, title, message string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(sev Severity, title, message string)

func (f SinkFunc) Show(sev Severity, title, message string) { f(sev, title, message) }

type dedupState struct {
	lastMessage string
	lastTime    time.Time
	cooldown    time.Duration
}

// Center is an explicitly constructed notification service, passed by
// reference to every component that reports to the user.
type Center struct {
	mu    sync.Mutex
	sinks []Sink
	state map[Severity]*dedupState
	now   func() time.Time
}

const defaultCooldown = 2 * time.Second

func NewCenter(sinks ...Sink) *Center {
	return &Center{
		sinks: sinks,
		state: map[Severity]*dedupState{
			SeverityError:   {cooldown: defaultCooldown},
			SeverityWarning: {cooldown: defaultCooldown},
		},
		now: time.Now,
	}
}

// SetCooldown overrides the dedup window for one severity tier.
func (c *Center) SetCooldown(sev Severity, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.state[sev]; ok {
		s.cooldown = d
	}
}

func (c *Center) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

func (c *Center) ShowError(title, message string) {
	c.show(SeverityError, title, message)
}

func (c *Center) ShowWarning(title, message string) {
	c.show(SeverityWarning, title, message)
}

func (c *Center) show(sev Severity, title, message string) {
	c.mu.Lock()
	s := c.state[sev]
	now := c.now()
	if message == s.lastMessage && now.Sub(s.lastTime) < s.cooldown {
		c.mu.Unlock()
		return
	}
	s.lastMessage = message
	s.lastTime = now
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.Unlock()

	for _, sink := range sinks {
		sink.Show(sev, title, message)
	}
}
