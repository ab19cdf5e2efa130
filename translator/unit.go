package translator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"livesub/audio"
	"livesub/config"
	"livesub/log"
	"livesub/notify"
	"livesub/results"
)

const (
	startSettleDelay = 500 * time.Millisecond
	audioGetTimeout  = time.Second
	resultGetTimeout = 100 * time.Millisecond
	flushGetTimeout  = 100 * time.Millisecond
)

// SubtitleSurface renders the current sentence pair. Implementations
// must tolerate calls from worker goroutines.
type SubtitleSurface interface {
	UpdateSubtitle(original, translated string)
}

// ConnectivityChecker is the slice of the network checker the startup
// gate needs.
type ConnectivityChecker interface {
	CheckInternet(ctx context.Context) bool
	CheckService(ctx context.Context) error
}

// AudioArchive receives every captured frame, e.g. to keep a FLAC copy
// of the session alongside the transcript.
type AudioArchive interface {
	Write(block []int16) error
	Close() error
}

// Deps are the collaborators a Unit orchestrates. Archive is optional.
type Deps struct {
	Config   *config.Config
	Recorder *audio.Recorder
	Manager  *Manager
	Checker  ConnectivityChecker
	Surface  SubtitleSurface
	Results  *results.Recorder
	Notifier *notify.Center
	Archive  AudioArchive
}

// Unit is the top pipeline layer: it runs the startup connectivity
// gate, pumps captured frames into the manager, commits recognized
// sentences to the result file, and owns the ordered shutdown.
type Unit struct {
	deps Deps

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	audioProcessed int
	hasResult      bool
	connected      bool

	networkErrorStopped  bool
	connectionErrorShown bool

	msgMu         sync.Mutex
	lastError     string
	lastErrorAt   time.Time
	lastWarning   string
	lastWarningAt time.Time

	now func() time.Time
}

func NewUnit(deps Deps) *Unit {
	u := &Unit{deps: deps, now: time.Now}
	deps.Manager.SetCallbacks(u.onError, u.onWarning)
	deps.Manager.SetRecorder(deps.Recorder)
	log.Infof("translating %s -> %s", deps.Config.SourceLang, deps.Config.TargetLang)
	return u
}

func (u *Unit) updateSubtitle(original, translated string) {
	if u.deps.Surface != nil {
		u.deps.Surface.UpdateSubtitle(original, translated)
	}
}

// CheckInitialConnection gates startup on reachability of the
// translation service, retrying a bounded number of times. Failure is
// not fatal: the unit is left in a degraded, not-connected state and
// the failure dialog is shown at most once.
func (u *Unit) CheckInitialConnection() bool {
	u.updateSubtitle("Checking service connectivity...", "")
	u.mu.Lock()
	u.connected = false
	u.mu.Unlock()

	cfg := u.deps.Config
	lastError := ""
	for attempt := 1; attempt <= cfg.ConnectionCheckRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.NetworkCheckTimeout)
		if !u.deps.Checker.CheckInternet(ctx) {
			msg := "no internet connection"
			u.updateSubtitle(msg, "")
			log.Error(msg)
			u.onError(msg)
		}
		err := u.deps.Checker.CheckService(ctx)
		cancel()
		if err == nil {
			u.updateSubtitle("Service connection OK", "")
			log.Info("translation service reachable")
			u.mu.Lock()
			u.connected = true
			u.mu.Unlock()
			return true
		}

		msg := fmt.Sprintf("service unreachable, retrying (%d/%d)...",
			attempt, cfg.ConnectionCheckRetries)
		if msg != lastError {
			u.updateSubtitle(msg, "")
			log.Errorf("%s: %v", msg, err)
			lastError = msg
		}
		time.Sleep(cfg.ConnectionCheckDelay)
	}

	msg := "could not reach the translation service\ncheck your network and API key"
	u.updateSubtitle(msg, "")
	log.Error(msg)
	u.onError(msg)

	u.mu.Lock()
	shown := u.connectionErrorShown
	u.connectionErrorShown = true
	u.mu.Unlock()
	if !shown && u.deps.Notifier != nil {
		u.deps.Notifier.ShowError("Connection failed", msg)
	}
	return false
}

// IsConnected reports the outcome of the startup gate.
func (u *Unit) IsConnected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.connected
}

// Start launches recording, the translation pipeline, and the two
// worker goroutines. When recording fails to come up within the
// settle delay, the half-started unit is abandoned without starting
// the pipeline.
func (u *Unit) Start() {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return
	}
	u.running = true
	u.stop = make(chan struct{})
	stop := u.stop
	u.mu.Unlock()

	u.deps.Recorder.Start()
	time.Sleep(startSettleDelay)
	if !u.deps.Recorder.IsRecording() {
		log.Warn("recording did not start, aborting")
		u.mu.Lock()
		u.running = false
		u.stop = nil
		u.mu.Unlock()
		return
	}

	u.deps.Manager.Start()

	u.wg.Add(2)
	go u.processAudio(stop)
	go u.processResult(stop)

	u.updateSubtitle("Translation started", "waiting for audio...")
}

// TogglePause flips the pipeline between paused and live, for the
// global hotkey. Reports the new paused state.
func (u *Unit) TogglePause() bool {
	paused := !u.deps.Manager.IsPaused()
	u.deps.Manager.SetPaused(paused)
	if paused {
		log.Info("translation paused")
		u.updateSubtitle("Paused", "press Ctrl+Shift+S to resume")
	} else {
		log.Info("translation resumed")
		u.updateSubtitle("Translation resumed", "")
	}
	return paused
}

func (u *Unit) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// processAudio moves captured frames into the pipeline.
func (u *Unit) processAudio(stop chan struct{}) {
	defer u.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, ok := u.deps.Recorder.Get(audioGetTimeout)
		if !ok {
			continue
		}
		if u.deps.Archive != nil {
			if err := u.deps.Archive.Write(frame); err != nil {
				log.Warnf("session archive write failed: %v", err)
			}
		}
		u.deps.Manager.ProcessAudio(frame, u.deps.Config.Channels)
		u.mu.Lock()
		u.audioProcessed++
		u.mu.Unlock()
	}
}

// AudioProcessed reports how many frames the forwarding goroutine has
// handled.
func (u *Unit) AudioProcessed() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.audioProcessed
}

// processResult commits each sentence once its successor appears: the
// last update seen for a sentence id is the settled rendering, and a
// new id means the previous sentence is finished. The sentence in
// flight when the loop stops is flushed at the end.
func (u *Unit) processResult(stop chan struct{}) {
	defer u.wg.Done()

	cache := map[int64]Result{}
	var currentID int64
	var haveCurrent bool

	for {
		select {
		case <-stop:
			u.flushCurrent(cache, currentID, haveCurrent)
			return
		default:
		}

		r, ok := u.deps.Manager.GetResult(resultGetTimeout)
		if !ok {
			continue
		}
		if r.Original == "" || r.Translated == "" {
			continue
		}

		cache[r.SentenceID] = r

		if !haveCurrent {
			currentID = r.SentenceID
			haveCurrent = true
			continue
		}
		if r.SentenceID != currentID {
			if prev, ok := cache[currentID]; ok {
				u.commitSentence(prev, true)
			}
			currentID = r.SentenceID
		}
	}
}

func (u *Unit) flushCurrent(cache map[int64]Result, currentID int64, haveCurrent bool) {
	if !haveCurrent {
		return
	}
	if r, ok := cache[currentID]; ok {
		u.commitSentence(r, false)
	}
}

func (u *Unit) commitSentence(r Result, setHasResult bool) {
	u.deps.Results.Record(r.Original, r.Translated)
	if setHasResult {
		u.mu.Lock()
		u.hasResult = true
		u.mu.Unlock()
	}
	log.SubtitlePair(r.SentenceID, r.Original, r.Translated)
	u.updateSubtitle(r.Original, r.Translated)
}

// saveAllResults drains the pipeline's remaining sentences into the
// result file and reports the final outcome.
func (u *Unit) saveAllResults() {
	for {
		r, ok := u.deps.Manager.GetResult(flushGetTimeout)
		if !ok {
			break
		}
		if r.Original == "" && r.Translated == "" {
			break
		}
		if r.Original != "" && r.Translated != "" {
			u.deps.Results.Record(r.Original, r.Translated)
			u.mu.Lock()
			u.hasResult = true
			u.mu.Unlock()
		}
	}

	u.deps.Results.ReportStatus()

	u.mu.Lock()
	hasResult := u.hasResult
	u.mu.Unlock()
	if hasResult {
		u.updateSubtitle("Translation complete",
			"result saved: "+filepath.Base(u.deps.Results.Path()))
	} else {
		u.updateSubtitle("Translation complete", "no result generated")
	}
}

// Stop shuts the unit down in dependency order: worker goroutines
// first, then recording, then the pipeline, then the result flush.
// Stopping a unit that is not running is a no-op.
func (u *Unit) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		log.Warn("stop called on a unit that is not running")
		return
	}
	u.running = false
	stop := u.stop
	u.stop = nil
	u.mu.Unlock()

	log.Info("stopping translation session")
	if stop != nil {
		close(stop)
	}
	waitTimeout(&u.wg, threadJoin)

	if u.deps.Recorder.IsRecording() {
		u.deps.Recorder.Stop()
	}
	u.deps.Manager.Stop()
	if u.deps.Archive != nil {
		if err := u.deps.Archive.Close(); err != nil {
			log.Warnf("session archive close failed: %v", err)
		}
	}
	u.saveAllResults()
	log.Info("translation session stopped")
}

// onError is the UI-tier error handler: duplicate suppression inside
// the cooldown, then network classification. A network error stops
// the whole unit, once.
func (u *Unit) onError(message string) {
	u.msgMu.Lock()
	if message == u.lastError && u.now().Sub(u.lastErrorAt) < notifyCooldown {
		u.msgMu.Unlock()
		return
	}
	u.lastError = message
	u.lastErrorAt = u.now()
	u.msgMu.Unlock()

	if IsNetworkError(message) {
		u.mu.Lock()
		stopped := u.networkErrorStopped
		u.networkErrorStopped = true
		running := u.running
		u.mu.Unlock()
		if !stopped {
			if u.deps.Notifier != nil {
				u.deps.Notifier.ShowError("Connection failed",
					message+"\ncheck your network connection")
			}
			if running {
				u.Stop()
			}
			return
		}
	}
	u.updateSubtitle("Error", message)
}

// onWarning mirrors onError for the warning tier, without the stop.
func (u *Unit) onWarning(message string) {
	u.msgMu.Lock()
	if message == u.lastWarning && u.now().Sub(u.lastWarningAt) < notifyCooldown {
		u.msgMu.Unlock()
		return
	}
	u.lastWarning = message
	u.lastWarningAt = u.now()
	u.msgMu.Unlock()

	if u.deps.Surface != nil {
		u.updateSubtitle("Warning", message)
	} else {
		log.Warnf("Warning: %s", message)
	}
}
