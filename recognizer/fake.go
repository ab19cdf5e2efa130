package recognizer

import (
	"context"
	"sync"
)

// FakeClient is a scriptable Client for tests. Events and errors are
// injected with Emit and Fail; sent frames are retained for
// inspection.
type FakeClient struct {
	mu sync.Mutex

	StartErr     error
	SendErr      error
	SendErrAfter int // deliver SendErr only after this many successful sends; 0 = immediately

	handler Handler
	started bool
	stopped bool
	frames  [][]byte
	sends   int
}

func (f *FakeClient) Start(_ context.Context, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.handler = h
	f.started = true
	return nil
}

func (f *FakeClient) SendFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil && f.sends >= f.SendErrAfter {
		return f.SendErr
	}
	f.sends++
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *FakeClient) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

// Emit delivers an event to the registered handler, like the read
// goroutine of a live session would.
func (f *FakeClient) Emit(ev Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnEvent(ev)
	}
}

// Fail delivers an error to the registered handler.
func (f *FakeClient) Fail(err error) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnError(err)
	}
}

func (f *FakeClient) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeClient) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Frames returns the successfully sent frames.
func (f *FakeClient) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}
