package notify

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSink) Show(_ Severity, _, message string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, message)
	r.mu.Unlock()
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newTestCenter(sink Sink) (*Center, *time.Time) {
	c := NewCenter(sink)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestDuplicateSuppressedWithinCooldown(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)

	c.ShowError("Error", "boom")
	c.ShowError("Error", "boom")

	if got := sink.count(); got != 1 {
		t.Errorf("got %d deliveries, want 1", got)
	}
}

func TestDuplicateDeliveredAfterCooldown(t *testing.T) {
	sink := &recordingSink{}
	c, now := newTestCenter(sink)

	c.ShowError("Error", "boom")
	*now = now.Add(3 * time.Second)
	c.ShowError("Error", "boom")

	if got := sink.count(); got != 2 {
		t.Errorf("got %d deliveries, want 2", got)
	}
}

func TestDifferentMessagesNotSuppressed(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)

	c.ShowError("Error", "boom")
	c.ShowError("Error", "bang")

	if got := sink.count(); got != 2 {
		t.Errorf("got %d deliveries, want 2", got)
	}
}

func TestSeveritiesDedupIndependently(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)

	c.ShowError("Error", "boom")
	c.ShowWarning("Warning", "boom")

	if got := sink.count(); got != 2 {
		t.Errorf("got %d deliveries, want 2 (tiers are independent)", got)
	}
}

func TestSetCooldown(t *testing.T) {
	sink := &recordingSink{}
	c, now := newTestCenter(sink)
	c.SetCooldown(SeverityWarning, 10*time.Second)

	c.ShowWarning("Warning", "slow")
	*now = now.Add(5 * time.Second)
	c.ShowWarning("Warning", "slow")

	if got := sink.count(); got != 1 {
		t.Errorf("got %d deliveries, want 1 under extended cooldown", got)
	}
}
