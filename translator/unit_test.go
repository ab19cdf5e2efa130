package translator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livesub/audio"
	"livesub/config"
	"livesub/notify"
	"livesub/recognizer"
	"livesub/results"
)

type fakeSurface struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (s *fakeSurface) UpdateSubtitle(original, translated string) {
	s.mu.Lock()
	s.pairs = append(s.pairs, [2]string{original, translated})
	s.mu.Unlock()
}

func (s *fakeSurface) last() [2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pairs) == 0 {
		return [2]string{}
	}
	return s.pairs[len(s.pairs)-1]
}

type fakeChecker struct {
	mu          sync.Mutex
	internetOK  bool
	serviceErrs []error // consumed per call; empty means success
	serviceHits int
}

func (c *fakeChecker) CheckInternet(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internetOK
}

func (c *fakeChecker) CheckService(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serviceHits++
	if len(c.serviceErrs) == 0 {
		return nil
	}
	err := c.serviceErrs[0]
	c.serviceErrs = c.serviceErrs[1:]
	return err
}

type dialogSink struct {
	mu     sync.Mutex
	titles []string
}

func (d *dialogSink) Show(_ notify.Severity, title, _ string) {
	d.mu.Lock()
	d.titles = append(d.titles, title)
	d.mu.Unlock()
}

func (d *dialogSink) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.titles)
}

type fakeArchive struct {
	mu     sync.Mutex
	blocks int
	closed bool
}

func (a *fakeArchive) Write([]int16) error {
	a.mu.Lock()
	a.blocks++
	a.mu.Unlock()
	return nil
}

func (a *fakeArchive) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *fakeArchive) state() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks, a.closed
}

type unitFixture struct {
	unit    *Unit
	client  *recognizer.FakeClient
	backend *audio.FakeBackend
	surface *fakeSurface
	checker *fakeChecker
	dialogs *dialogSink
	results *results.Recorder
	archive *fakeArchive
}

func newUnitFixture(t *testing.T) *unitFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Channels = 1
	cfg.SettleThreshold = 0
	cfg.HeartbeatInterval = time.Hour
	cfg.ConnectionCheckDelay = time.Millisecond
	cfg.CaptureRetries = 2
	cfg.CaptureRetryDelay = 10 * time.Millisecond
	cfg.ResultDir = t.TempDir()

	backend := audio.NewFakeBackend(
		audio.DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 16000},
	)
	dialogs := &dialogSink{}
	notifier := notify.NewCenter(dialogs)
	recorder := audio.NewRecorder(cfg, backend, notifier)

	client := &recognizer.FakeClient{}
	manager := NewManager(cfg, client, notifier, nil)

	rec, err := results.NewRecorder(cfg)
	if err != nil {
		t.Fatalf("results recorder: %v", err)
	}

	surface := &fakeSurface{}
	checker := &fakeChecker{internetOK: true}
	archive := &fakeArchive{}

	u := NewUnit(Deps{
		Config:   cfg,
		Recorder: recorder,
		Manager:  manager,
		Checker:  checker,
		Surface:  surface,
		Results:  rec,
		Notifier: notifier,
		Archive:  archive,
	})
	return &unitFixture{
		unit:    u,
		client:  client,
		backend: backend,
		surface: surface,
		checker: checker,
		dialogs: dialogs,
		results: rec,
		archive: archive,
	}
}

func sentenceEvent(id int64, original, translated string) recognizer.Event {
	return recognizer.Event{
		Transcription: &recognizer.TranscriptionResult{
			SentenceID: id, SentenceKnown: true, Text: original,
		},
		Translations: []recognizer.TranslationResult{
			{SentenceID: id, Lang: "zh", Text: translated},
		},
	}
}

func TestStartupGateSucceedsAfterRetry(t *testing.T) {
	f := newUnitFixture(t)
	f.checker.serviceErrs = []error{
		errors.New("probe failed"),
		errors.New("probe failed"),
	}

	if !f.unit.CheckInitialConnection() {
		t.Fatal("gate failed although the third attempt succeeds")
	}
	if !f.unit.IsConnected() {
		t.Error("connected flag not set")
	}
	if f.checker.serviceHits != 3 {
		t.Errorf("probed %d times, want 3", f.checker.serviceHits)
	}
}

func TestStartupGateBoundedAndOneDialog(t *testing.T) {
	f := newUnitFixture(t)
	f.checker.serviceErrs = []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
		errors.New("down"), errors.New("down"), errors.New("down"),
	}

	if f.unit.CheckInitialConnection() {
		t.Fatal("gate passed with the service down")
	}
	if f.checker.serviceHits != 3 {
		t.Errorf("probed %d times, want the configured bound of 3", f.checker.serviceHits)
	}
	if f.unit.IsConnected() {
		t.Error("connected flag set after failure")
	}

	first := f.dialogs.count()
	f.unit.CheckInitialConnection()
	if f.dialogs.count() != first {
		t.Errorf("failure dialog shown again: %d -> %d", first, f.dialogs.count())
	}
}

func TestCommitOnNextSentenceAndFinalFlush(t *testing.T) {
	f := newUnitFixture(t)
	f.unit.Start()
	defer f.unit.Stop()
	waitUntil(t, func() bool { return f.client.Started() })

	f.client.Emit(sentenceEvent(1, "hel", "你"))
	f.client.Emit(sentenceEvent(1, "hello", "你好"))

	// No successor yet: sentence 1 must not be committed.
	time.Sleep(300 * time.Millisecond)
	if originals, _ := f.results.Pairs(); len(originals) != 0 {
		t.Fatalf("sentence committed before its successor: %v", originals)
	}

	f.client.Emit(sentenceEvent(2, "world", "世界"))
	waitUntil(t, func() bool {
		originals, _ := f.results.Pairs()
		return len(originals) == 1
	})
	originals, translations := f.results.Pairs()
	if originals[0] != "hello" || translations[0] != "你好" {
		t.Errorf("committed %q/%q, want the settled rendering hello/你好", originals[0], translations[0])
	}

	// Stop flushes the sentence still in flight.
	f.unit.Stop()
	originals, translations = f.results.Pairs()
	if len(originals) != 2 || originals[1] != "world" || translations[1] != "世界" {
		t.Errorf("final flush missing: %v / %v", originals, translations)
	}
}

func TestStopIsIdempotentAndOrdered(t *testing.T) {
	f := newUnitFixture(t)
	f.unit.Start()
	waitUntil(t, func() bool { return f.unit.IsRunning() })

	f.unit.Stop()
	if f.unit.IsRunning() {
		t.Error("running after Stop")
	}
	if f.unit.deps.Recorder.IsRecording() {
		t.Error("recorder left recording")
	}
	if !f.client.Stopped() {
		t.Error("recognizer session left open")
	}

	f.unit.Stop() // second call is a no-op
}

func TestStartAbortsWhenRecordingFails(t *testing.T) {
	f := newUnitFixture(t)
	f.backend.SetOpenErrs(100) // capture can never come up

	f.unit.Start()
	if f.unit.IsRunning() {
		t.Error("unit running without capture")
	}
	if f.client.Started() {
		t.Error("recognizer session started without capture")
	}
}

func TestNetworkErrorStopsEverythingOnce(t *testing.T) {
	f := newUnitFixture(t)
	f.unit.Start()
	waitUntil(t, func() bool { return f.client.Started() })

	f.client.Fail(errors.New("websocket: connection reset"))

	waitUntil(t, func() bool { return !f.unit.IsRunning() })
	waitUntil(t, func() bool { return !f.unit.deps.Recorder.IsRecording() })
	if !f.client.Stopped() {
		t.Error("recognizer session left open after network error")
	}
	if f.dialogs.count() != 1 {
		t.Errorf("got %d dialogs, want exactly 1", f.dialogs.count())
	}

	// A second network error after the stop must not trigger another
	// shutdown cycle or dialog.
	f.unit.onError("network timeout again")
	if f.dialogs.count() != 1 {
		t.Errorf("second network error raised another dialog")
	}
}

func TestAudioFlowsThroughUnit(t *testing.T) {
	f := newUnitFixture(t)
	f.unit.Start()
	defer f.unit.Stop()
	waitUntil(t, func() bool { return f.backend.LastStream() != nil })

	f.backend.LastStream().Feed([]float32{0.1, 0.2, 0.3})

	waitUntil(t, func() bool { return f.unit.AudioProcessed() > 0 })
	waitUntil(t, func() bool { return len(f.client.Frames()) > 0 })
	waitUntil(t, func() bool {
		blocks, _ := f.archive.state()
		return blocks > 0
	})

	f.unit.Stop()
	if _, closed := f.archive.state(); !closed {
		t.Error("session archive not closed on stop")
	}
}

func TestWarningReachesSurface(t *testing.T) {
	f := newUnitFixture(t)
	f.unit.onWarning("audio buffer full, frame dropped")

	if got := f.surface.last(); got[0] != "Warning" {
		t.Errorf("surface got %v, want a warning line", got)
	}
}
