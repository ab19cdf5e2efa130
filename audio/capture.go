package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"livesub/config"
	"livesub/log"
	"livesub/notify"
)

const (
	frameQueueSize  = 256
	stopJoinTimeout = 3 * time.Second
)

// Recorder owns the input device and the background capture loop. It
// converts driver float32 buffers to int16 frames and pushes them into
// a consumer-visible queue.
type Recorder struct {
	cfg      *config.Config
	backend  Backend
	notifier *notify.Center

	frames chan Frame

	mu        sync.Mutex
	recording bool
	done      chan struct{}

	device  DeviceInfo
	hostAPI string
	meter   *Meter
}

func NewRecorder(cfg *config.Config, backend Backend, notifier *notify.Center) *Recorder {
	r := &Recorder{
		cfg:      cfg,
		backend:  backend,
		notifier: notifier,
		frames:   make(chan Frame, frameQueueSize),
		device:   DeviceInfo{ID: NoDevice},
	}
	r.initializeDevice()
	if r.Meter() == nil {
		r.setMeter(NewMeter(cfg.SampleRate))
	}
	return r
}

// Meter exposes the signal level meter fed by the capture path.
func (r *Recorder) Meter() *Meter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meter
}

func (r *Recorder) setMeter(m *Meter) {
	r.mu.Lock()
	r.meter = m
	r.mu.Unlock()
}

// Device returns the currently selected input device. ID is NoDevice
// when no usable device was found.
func (r *Recorder) Device() DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

// Frames exposes the capture queue for the consumer goroutine.
func (r *Recorder) Frames() <-chan Frame {
	return r.frames
}

// Get blocks for up to timeout waiting for a captured frame.
func (r *Recorder) Get(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-r.frames:
		return f, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// initializeDevice picks an input device (loopback pattern first, then
// OS default, then first valid), validates it, and negotiates the
// sample rate. It never returns an error: an unusable device leaves
// the recorder with ID NoDevice and surfaces a warning.
func (r *Recorder) initializeDevice() {
	devices, err := r.backend.Devices()
	if err != nil {
		log.Errorf("device enumeration failed: %v", err)
		r.notifier.ShowWarning("Audio", fmt.Sprintf("device enumeration failed: %v", err))
		r.setDevice(DeviceInfo{ID: NoDevice})
		return
	}

	var valid []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		log.Error("no audio input devices found")
		r.notifier.ShowWarning("Audio", "no audio input devices found")
		r.setDevice(DeviceInfo{ID: NoDevice})
		return
	}

	selected := r.selectDevice(valid)

	if err := r.backend.ValidateSettings(selected.ID, 0, 0); err != nil {
		log.Warnf("device %q (id %d) failed validation: %v", selected.Name, selected.ID, err)
		selected, err = r.fallbackDevice(valid, selected.ID)
		if err != nil {
			log.Error("no usable audio input device")
			r.notifier.ShowWarning("Audio", "no usable audio input device")
			r.setDevice(DeviceInfo{ID: NoDevice})
			return
		}
		log.Infof("fell back to device %q (id %d)", selected.Name, selected.ID)
	}

	r.setDevice(selected)
	log.Infof("selected audio device %q (id %d)", selected.Name, selected.ID)

	r.selectHostAPI()
	r.negotiateSampleRate()
	r.setMeter(NewMeter(r.cfg.SampleRate))
}

func (r *Recorder) setDevice(d DeviceInfo) {
	r.mu.Lock()
	r.device = d
	r.mu.Unlock()
}

// selectDevice prefers the configured device name, then a
// loopback/"stereo mix" device so system audio can be captured, then
// the OS default, then the first valid device.
func (r *Recorder) selectDevice(valid []DeviceInfo) DeviceInfo {
	if want := strings.ToLower(r.cfg.PreferredDevice); want != "" {
		for _, d := range valid {
			if strings.Contains(strings.ToLower(d.Name), want) {
				return d
			}
		}
		log.Warnf("preferred device %q not found", r.cfg.PreferredDevice)
	}
	for _, d := range valid {
		if IsLoopback(d.Name) {
			return d
		}
	}
	def := r.backend.DefaultDeviceID()
	for _, d := range valid {
		if d.ID == def {
			return d
		}
	}
	return valid[0]
}

// fallbackDevice tries the remaining valid devices in order after the
// preferred one failed validation.
func (r *Recorder) fallbackDevice(valid []DeviceInfo, failedID int) (DeviceInfo, error) {
	for _, d := range valid {
		if d.ID == failedID {
			continue
		}
		if err := r.backend.ValidateSettings(d.ID, 0, 0); err != nil {
			log.Warnf("device %q (id %d) failed validation: %v", d.Name, d.ID, err)
			continue
		}
		return d, nil
	}
	return DeviceInfo{}, fmt.Errorf("all %d input devices failed validation", len(valid))
}

// selectHostAPI prefers WASAPI, then DirectSound, then MME. Platforms
// without any of these use the default silently.
func (r *Recorder) selectHostAPI() {
	available := r.backend.HostAPIs()
	for _, want := range preferredHostAPIs {
		for _, name := range available {
			if strings.Contains(strings.ToLower(name), want) {
				r.hostAPI = name
				log.Infof("using host api %q", name)
				return
			}
		}
	}
	r.hostAPI = ""
}

// negotiateSampleRate uses the device's reported default rate when
// present, otherwise probes a fixed list of common rates, and finally
// settles on the fallback rate. The result is written to the config,
// which is immutable afterwards.
func (r *Recorder) negotiateSampleRate() {
	dev := r.Device()
	if dev.ID == NoDevice {
		return
	}
	if dev.DefaultSampleRate > 0 {
		r.cfg.SampleRate = dev.DefaultSampleRate
		log.Infof("using device sample rate %d", r.cfg.SampleRate)
		return
	}
	for _, rate := range config.ProbeSampleRates {
		if err := r.backend.ValidateSettings(dev.ID, rate, r.cfg.Channels); err == nil {
			r.cfg.SampleRate = rate
			log.Infof("negotiated sample rate %d", rate)
			return
		}
	}
	r.cfg.SampleRate = config.FallbackSampleRate
	log.Infof("no probed sample rate accepted, using %d", r.cfg.SampleRate)
}

// Start begins capturing. Starting while already capturing is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.captureLoop(done)
	log.Info("recording started")
}

// Stop ends capturing, waits for the capture loop with a bounded
// timeout, and clears the frame queue. Stopping twice is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	done := r.done
	r.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(stopJoinTimeout):
			log.Warn("capture loop did not exit within timeout")
		}
	}

	for {
		select {
		case <-r.frames:
		default:
			log.Info("recording stopped")
			return
		}
	}
}

// captureLoop opens the stream and keeps it alive until Stop. Open
// failures are retried with a backoff, falling over to the next valid
// device between attempts. After the retry budget is exhausted,
// capture halts permanently; the caller must restart it.
func (r *Recorder) captureLoop(done chan struct{}) {
	defer close(done)

	maxRetries := r.cfg.CaptureRetries
	retryDelay := r.cfg.CaptureRetryDelay
	retries := 0

	for retries < maxRetries && r.IsRecording() {
		dev := r.Device()
		if dev.ID == NoDevice {
			r.initializeDevice()
			if r.Device().ID == NoDevice {
				retries++
				r.sleepWhileRecording(retryDelay)
				continue
			}
			dev = r.Device()
		}

		stream, err := r.backend.OpenStream(StreamConfig{
			DeviceID:   dev.ID,
			SampleRate: r.cfg.SampleRate,
			Channels:   r.cfg.Channels,
			BlockSize:  r.cfg.BlockSize(),
			HostAPI:    r.hostAPI,
		}, r.onData)
		if err != nil {
			retries++
			log.Errorf("audio stream open failed (attempt %d/%d): %v", retries, maxRetries, err)
			r.switchToNextDevice()
			r.sleepWhileRecording(retryDelay)
			continue
		}

		log.Infof("audio stream open: device %q, %d Hz, %d ch",
			dev.Name, r.cfg.SampleRate, r.cfg.Channels)
		for r.IsRecording() {
			time.Sleep(100 * time.Millisecond)
		}
		stream.Close()
		return
	}

	if retries >= maxRetries {
		log.Error("recording failed: retry budget exhausted")
		r.notifier.ShowError("Audio", "recording failed after repeated device errors")
	}
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

func (r *Recorder) sleepWhileRecording(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) && r.IsRecording() {
		time.Sleep(100 * time.Millisecond)
	}
}

// switchToNextDevice advances round-robin through the valid input
// devices, wrapping, and keeps the current device on failure.
func (r *Recorder) switchToNextDevice() bool {
	devices, err := r.backend.Devices()
	if err != nil {
		log.Errorf("device switch failed: %v", err)
		return false
	}
	var valid []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		log.Warn("no backup input devices available")
		return false
	}

	current := r.Device().ID
	currentIdx := -1
	for i, d := range valid {
		if d.ID == current {
			currentIdx = i
			break
		}
	}
	nextIdx := 0
	if currentIdx != -1 {
		nextIdx = (currentIdx + 1) % len(valid)
	}

	next := valid[nextIdx]
	if err := r.backend.ValidateSettings(next.ID, 0, 0); err != nil {
		log.Errorf("backup device %q unavailable: %v", next.Name, err)
		return false
	}
	r.setDevice(next)
	log.Infof("switched to backup device %q (id %d)", next.Name, next.ID)
	return true
}

// onData runs on the driver's thread. It converts the float buffer to
// int16 (scaled by 32767) into a fresh frame, because the driver may
// reuse its buffer, and drops the frame when the queue is full or
// capture is not active.
func (r *Recorder) onData(data []float32, frames int) {
	if !r.IsRecording() {
		return
	}
	frame := make(Frame, len(data))
	for i, s := range data {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		frame[i] = int16(v)
	}
	if meter := r.Meter(); meter != nil {
		meter.Update(frame)
	}
	select {
	case r.frames <- frame:
	default:
	}
}
