package translator

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"livesub/audio"
	"livesub/config"
	"livesub/log"
	"livesub/notify"
	"livesub/recognizer"
)

const (
	audioBufferSize  = 1024
	enqueueTimeout   = 500 * time.Millisecond
	consumeTimeout   = 500 * time.Millisecond
	heartbeatSlice   = 500 * time.Millisecond
	threadJoin       = 2 * time.Second
	notifyCooldown   = 5 * time.Second
)

// Status is the recognizer session lifecycle. Disconnected is
// terminal: a heartbeat failure never transitions back to running.
type Status int

const (
	StatusInitialized Status = iota
	StatusRunning
	StatusStopping
	StatusStopped
	StatusDisconnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// recorderControl is the slice of the audio recorder the manager needs
// when tearing down.
type recorderControl interface {
	Stop()
	IsRecording() bool
}

// Manager is the middle pipeline layer: it buffers captured frames,
// owns the recognizer session, and forwards frames on a consumer
// goroutine. A failed send is fatal for the session; the manager stops
// rather than retrying into a broken connection.
type Manager struct {
	cfg      *config.Config
	client   recognizer.Client
	bridge   *Bridge
	notifier *notify.Center

	buffer chan audio.Frame

	mu        sync.Mutex
	running   bool
	status    Status
	networkOK bool
	paused    bool
	stop      chan struct{}
	recorder  recorderControl

	onError   func(message string)
	onWarning func(message string)

	dedupMu       sync.Mutex
	lastErrorMsg  string
	lastErrorAt   time.Time
	lastWarnMsg   string
	lastWarnAt    time.Time

	wg  sync.WaitGroup
	now func() time.Time
}

func NewManager(cfg *config.Config, client recognizer.Client, notifier *notify.Center,
	onRealtime func(original, translated string)) *Manager {

	m := &Manager{
		cfg:       cfg,
		client:    client,
		notifier:  notifier,
		buffer:    make(chan audio.Frame, audioBufferSize),
		status:    StatusInitialized,
		networkOK: true,
		now:       time.Now,
	}
	m.bridge = NewBridge(cfg, onRealtime)
	m.bridge.SetNetworkErrorCallback(m.onNetworkError)
	m.bridge.SetErrorCallback(m.SendErrorNotification)
	return m
}

// SetCallbacks registers the UI-facing error and warning handlers.
func (m *Manager) SetCallbacks(onError, onWarning func(message string)) {
	m.mu.Lock()
	m.onError = onError
	m.onWarning = onWarning
	m.mu.Unlock()
}

// SetRecorder hands the manager the capture layer so a fatal stop can
// halt recording too.
func (m *Manager) SetRecorder(r recorderControl) {
	m.mu.Lock()
	m.recorder = r
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetPaused suspends or resumes forwarding without tearing the session
// down. Frames captured while paused are discarded, not queued up.
func (m *Manager) SetPaused(p bool) {
	m.mu.Lock()
	m.paused = p
	m.mu.Unlock()
}

func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// onNetworkError handles a connection failure reported by the bridge:
// stop everything once, then surface the error.
func (m *Manager) onNetworkError(message string) {
	log.Errorf("severe network error: %s", message)

	m.mu.Lock()
	running := m.running
	onError := m.onError
	m.mu.Unlock()
	if !running {
		log.Info("network error after stop, ignoring")
		return
	}

	m.Stop()
	if onError != nil {
		onError("network connection lost: " + message)
	}
}

// Start connects the recognizer session and launches the consumer and
// heartbeat goroutines.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.paused = false
	m.stop = make(chan struct{})
	stop := m.stop
	status := m.status
	m.mu.Unlock()

	if status == StatusInitialized {
		if !m.startClient() {
			return
		}
	}

	m.wg.Add(2)
	go m.consumeLoop(stop)
	go m.heartbeatLoop(stop)
	log.Info("translation pipeline started")
}

func (m *Manager) startClient() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := m.client.Start(ctx, m.bridge); err != nil {
		log.Errorf("recognizer start failed: %v", err)
		m.setStatus(StatusError)
		return false
	}
	m.setStatus(StatusRunning)
	log.Info("recognizer session started")
	return true
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// ProcessAudio preprocesses one captured frame and enqueues it. Stereo
// frames are downmixed to mono by channel mean. The enqueue is lossy:
// when the buffer stays full past the timeout the frame is dropped and
// a warning bypasses the notification cooldown, so a saturated
// pipeline is always visible.
func (m *Manager) ProcessAudio(frame audio.Frame, channels int) {
	m.mu.Lock()
	running := m.running
	networkOK := m.networkOK
	paused := m.paused
	stop := m.stop
	onWarning := m.onWarning
	m.mu.Unlock()
	if !running || !networkOK || paused || frame == nil {
		return
	}

	if channels == 2 && len(frame)%2 == 0 {
		frame = downmix(frame)
	}

	select {
	case m.buffer <- frame:
	case <-stop:
	case <-time.After(enqueueTimeout):
		msg := "audio buffer full, frame dropped"
		log.Warn(msg)
		if onWarning != nil {
			onWarning(msg)
		}
	}
}

func downmix(stereo audio.Frame) audio.Frame {
	mono := make(audio.Frame, len(stereo)/2)
	for i := range mono {
		mono[i] = int16((int32(stereo[2*i]) + int32(stereo[2*i+1])) / 2)
	}
	return mono
}

// consumeLoop forwards buffered frames to the recognizer. A send
// failure is fatal: the pipeline stops instead of retrying.
func (m *Manager) consumeLoop(stop chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		m.mu.Lock()
		running := m.running
		paused := m.paused
		networkOK := m.networkOK
		status := m.status
		m.mu.Unlock()

		// A heartbeat failure clears running without closing stop; the
		// consumer must not outlive the session it feeds.
		if !running {
			return
		}
		if paused || !networkOK {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		var frame audio.Frame
		select {
		case frame = <-m.buffer:
		case <-stop:
			return
		case <-time.After(consumeTimeout):
			// Idle: a session that never came up gets another chance.
			if status == StatusInitialized {
				m.startClient()
			}
			continue
		}

		if status != StatusRunning {
			if status == StatusInitialized && m.startClient() {
				// Fall through and send this frame.
			} else {
				continue
			}
		}

		if err := m.client.SendFrame(frameBytes(frame)); err != nil {
			log.Errorf("audio send failed: %v", err)
			m.SendErrorNotification("audio transmission error: " + err.Error())
			go m.Stop()
			return
		}
	}
}

func frameBytes(frame audio.Frame) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// heartbeatLoop probes the connection with an empty frame every
// heartbeat interval. The interval is slept in short slices so Stop is
// honored promptly. A failed probe marks the session disconnected, a
// terminal state; recovery means a fresh session.
func (m *Manager) heartbeatLoop(stop chan struct{}) {
	defer m.wg.Done()
	for {
		remaining := m.cfg.HeartbeatInterval
		for remaining > 0 {
			slice := heartbeatSlice
			if remaining < slice {
				slice = remaining
			}
			select {
			case <-stop:
				return
			case <-time.After(slice):
			}
			remaining -= slice
		}

		if m.Status() != StatusRunning {
			continue
		}
		if err := m.client.SendFrame(nil); err != nil {
			log.Errorf("connection check failed: %v", err)
			m.mu.Lock()
			m.status = StatusDisconnected
			m.running = false
			m.networkOK = false
			m.mu.Unlock()
			m.SendErrorNotification("translation service connection lost")
			m.stopClientPreservingStatus()
			return
		}
	}
}

// stopClientPreservingStatus shuts the recognizer down without
// overwriting a terminal status like disconnected.
func (m *Manager) stopClientPreservingStatus() {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	if status == StatusStopped || status == StatusStopping {
		return
	}

	if err := m.client.Stop(); err != nil {
		log.Errorf("recognizer stop failed: %v", err)
		m.setStatus(StatusError)
	} else {
		log.Info("recognizer session stopped")
	}
	m.drainBuffer()

	if status == StatusDisconnected {
		m.setStatus(StatusDisconnected)
	}
}

// Stop tears the pipeline down: recording, recognizer session, worker
// goroutines, and the audio buffer. Stopping twice is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running && m.stop == nil {
		m.mu.Unlock()
		return
	}
	stop := m.stop
	m.stop = nil
	m.running = false
	m.paused = true
	recorder := m.recorder
	status := m.status
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	if recorder != nil && recorder.IsRecording() {
		recorder.Stop()
		log.Info("recording stopped by pipeline")
	}

	if status != StatusStopped && status != StatusStopping {
		m.setStatus(StatusStopping)
		if err := m.client.Stop(); err != nil {
			log.Errorf("recognizer stop failed: %v", err)
			m.setStatus(StatusError)
		} else {
			m.setStatus(StatusStopped)
			log.Info("recognizer session stopped")
		}
	}

	waitTimeout(&m.wg, threadJoin)
	m.bridge.Close()
	m.drainBuffer()
	log.Info("translation pipeline stopped")
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		log.Warn("pipeline goroutines did not exit within timeout")
	}
}

func (m *Manager) drainBuffer() {
	for {
		select {
		case <-m.buffer:
		default:
			return
		}
	}
}

// GetResult waits up to timeout for the next recognized sentence.
func (m *Manager) GetResult(timeout time.Duration) (Result, bool) {
	select {
	case r := <-m.bridge.Results():
		return r, true
	case <-time.After(timeout):
		return Result{}, false
	}
}

// SendErrorNotification logs and forwards an error, suppressing exact
// repeats inside the cooldown window.
func (m *Manager) SendErrorNotification(message string) {
	m.dedupMu.Lock()
	if message == m.lastErrorMsg && m.now().Sub(m.lastErrorAt) < notifyCooldown {
		m.dedupMu.Unlock()
		return
	}
	m.lastErrorMsg = message
	m.lastErrorAt = m.now()
	m.dedupMu.Unlock()

	log.Errorf("%s", message)
	m.mu.Lock()
	onError := m.onError
	m.mu.Unlock()
	if onError != nil {
		onError(message)
	} else if m.notifier != nil {
		m.notifier.ShowError("Error", message)
	}
}

// SendWarningNotification is the warning-tier counterpart of
// SendErrorNotification.
func (m *Manager) SendWarningNotification(message string) {
	m.dedupMu.Lock()
	if message == m.lastWarnMsg && m.now().Sub(m.lastWarnAt) < notifyCooldown {
		m.dedupMu.Unlock()
		return
	}
	m.lastWarnMsg = message
	m.lastWarnAt = m.now()
	m.dedupMu.Unlock()

	log.Warnf("%s", message)
	m.mu.Lock()
	onWarning := m.onWarning
	m.mu.Unlock()
	if onWarning != nil {
		onWarning(message)
	} else if m.notifier != nil {
		m.notifier.ShowWarning("Warning", message)
	}
}
