package audio

import (
	"testing"
	"time"

	"livesub/config"
	"livesub/notify"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CaptureRetries = 2
	cfg.CaptureRetryDelay = 10 * time.Millisecond
	return cfg
}

func newTestRecorder(backend Backend) *Recorder {
	return NewRecorder(testConfig(), backend, notify.NewCenter())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func TestSelectPrefersLoopback(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Microphone (USB)", MaxInputChannels: 1},
		DeviceInfo{ID: 1, Name: "Stereo Mix (Realtek)", MaxInputChannels: 2},
	)
	backend.SetDefault(0)

	r := newTestRecorder(backend)
	if got := r.Device().ID; got != 1 {
		t.Errorf("selected device %d, want loopback device 1", got)
	}
}

func TestSelectHonorsPreferredDevice(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Stereo Mix (Realtek)", MaxInputChannels: 2},
		DeviceInfo{ID: 1, Name: "Microphone (USB)", MaxInputChannels: 1},
	)

	cfg := testConfig()
	cfg.PreferredDevice = "usb"
	r := NewRecorder(cfg, backend, notify.NewCenter())
	if got := r.Device().ID; got != 1 {
		t.Errorf("selected device %d, want configured device 1", got)
	}
}

func TestSelectFallsBackToDefault(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic A", MaxInputChannels: 1},
		DeviceInfo{ID: 1, Name: "Mic B", MaxInputChannels: 1},
	)
	backend.SetDefault(1)

	r := newTestRecorder(backend)
	if got := r.Device().ID; got != 1 {
		t.Errorf("selected device %d, want default device 1", got)
	}
}

func TestInitializeFallsBackWhenPreferredInvalid(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Stereo Mix", MaxInputChannels: 2},
		DeviceInfo{ID: 1, Name: "Microphone", MaxInputChannels: 1},
	)
	backend.SetInvalid(0)

	r := newTestRecorder(backend)
	if got := r.Device().ID; got != 1 {
		t.Errorf("selected device %d, want fallback device 1", got)
	}
}

func TestInitializeNoUsableDevice(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Broken A", MaxInputChannels: 1},
		DeviceInfo{ID: 1, Name: "Broken B", MaxInputChannels: 1},
	)
	backend.SetInvalid(0)
	backend.SetInvalid(1)

	r := newTestRecorder(backend)
	if got := r.Device().ID; got != NoDevice {
		t.Errorf("selected device %d, want NoDevice", got)
	}
}

func TestInitializeSkipsOutputOnlyDevices(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Speakers", MaxInputChannels: 0},
		DeviceInfo{ID: 1, Name: "Microphone", MaxInputChannels: 1},
	)

	r := newTestRecorder(backend)
	if got := r.Device().ID; got != 1 {
		t.Errorf("selected device %d, want input device 1", got)
	}
}

func TestNegotiateUsesDeviceDefaultRate(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 22050},
	)

	cfg := testConfig()
	NewRecorder(cfg, backend, notify.NewCenter())
	if cfg.SampleRate != 22050 {
		t.Errorf("sample rate %d, want device default 22050", cfg.SampleRate)
	}
}

func TestNegotiateProbesRates(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	backend.SetValidRates(0, 44100)

	cfg := testConfig()
	NewRecorder(cfg, backend, notify.NewCenter())
	if cfg.SampleRate != 44100 {
		t.Errorf("sample rate %d, want probed 44100", cfg.SampleRate)
	}
}

func TestNegotiateFallbackRate(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	backend.SetValidRates(0) // rejects every probed rate

	cfg := testConfig()
	NewRecorder(cfg, backend, notify.NewCenter())
	if cfg.SampleRate != config.FallbackSampleRate {
		t.Errorf("sample rate %d, want fallback %d", cfg.SampleRate, config.FallbackSampleRate)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	r := newTestRecorder(backend)

	r.Start()
	r.Start()
	waitFor(t, func() bool { return backend.OpenCount() > 0 })
	if backend.OpenCount() != 1 {
		t.Errorf("opened %d streams, want 1", backend.OpenCount())
	}

	r.Stop()
	r.Stop()
	if r.IsRecording() {
		t.Error("still recording after Stop")
	}
	if !backend.LastStream().Closed() {
		t.Error("stream left open after Stop")
	}
}

func TestCaptureConvertsAndQueues(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	r := newTestRecorder(backend)
	r.Start()
	defer r.Stop()
	waitFor(t, func() bool { return backend.LastStream() != nil })

	backend.LastStream().Feed([]float32{0.5, 1.5, -2.0, 0})

	frame, ok := r.Get(time.Second)
	if !ok {
		t.Fatal("no frame arrived")
	}
	want := Frame{16383, 32767, -32768, 0}
	if len(frame) != len(want) {
		t.Fatalf("frame length %d, want %d", len(frame), len(want))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, frame[i], want[i])
		}
	}
}

func TestStopDrainsQueue(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	r := newTestRecorder(backend)
	r.Start()
	waitFor(t, func() bool { return backend.LastStream() != nil })

	backend.LastStream().Feed([]float32{0.1, 0.2})
	backend.LastStream().Feed([]float32{0.3, 0.4})
	r.Stop()

	if _, ok := r.Get(50 * time.Millisecond); ok {
		t.Error("frame survived Stop, queue should be drained")
	}
}

func TestOpenFailureSwitchesDevice(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic A", MaxInputChannels: 1},
		DeviceInfo{ID: 1, Name: "Mic B", MaxInputChannels: 1},
	)
	backend.SetDefault(0)
	backend.SetOpenErrs(1)

	r := newTestRecorder(backend)
	r.Start()
	defer r.Stop()

	waitFor(t, func() bool { return backend.OpenCount() > 0 })
	if got := r.Device().ID; got != 1 {
		t.Errorf("recording on device %d, want backup device 1", got)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	backend := NewFakeBackend(
		DeviceInfo{ID: 0, Name: "Mic", MaxInputChannels: 1},
	)
	backend.SetOpenErrs(100)

	r := newTestRecorder(backend)
	r.Start()

	waitFor(t, func() bool { return !r.IsRecording() })
	if backend.OpenCount() != 0 {
		t.Errorf("opened %d streams, want 0", backend.OpenCount())
	}
}
