package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"livesub/audio"
	"livesub/beep"
	"livesub/clipboard"
	"livesub/config"
	"livesub/doctor"
	"livesub/encoder"
	"livesub/hotkey"
	"livesub/log"
	"livesub/netcheck"
	"livesub/notify"
	"livesub/recognizer"
	"livesub/results"
	"livesub/shutdown"
	"livesub/translator"
)

var version = "dev"

const defaultConfigFile = "livesub.yaml"

var (
	guiMode bool
	guiApp  guiHandle
	sink    Sink
)

// guiHandle is what run() needs from the overlay without linking the
// gui package into non-gui builds.
type guiHandle interface {
	Sink
	SetHooks(togglePause func() bool, copyTranscript func(), quit func())
	Quit()
}

// session owns one capture-translate-render run and its collaborators.
type session struct {
	id       string
	cfg      *config.Config
	backend  audio.Backend
	recorder *audio.Recorder
	unit     *translator.Unit
	results  *results.Recorder
	hk       hotkey.Hotkey
	stop     chan struct{}
}

func newSession(cfg *config.Config, surface translator.SubtitleSurface, notifier *notify.Center) (*session, error) {
	backend, err := audio.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("audio backend: %w", err)
	}

	recorder := audio.NewRecorder(cfg, backend, notifier)
	client := recognizer.NewGummyClient(cfg)
	manager := translator.NewManager(cfg, client, notifier, surface.UpdateSubtitle)

	resRec, err := results.NewRecorder(cfg)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("result recorder: %w", err)
	}

	// SaveAudio needs the negotiated sample rate, so the archive is
	// created after the recorder.
	var archive translator.AudioArchive
	if cfg.SaveAudio {
		a, err := encoder.NewSessionArchive(cfg.ResultDir, cfg.SampleRate, cfg.Channels)
		if err != nil {
			log.Warnf("session archive unavailable: %v", err)
		} else {
			archive = a
			log.Infof("saving session audio to %s", a.Path())
		}
	}

	unit := translator.NewUnit(translator.Deps{
		Config:   cfg,
		Recorder: recorder,
		Manager:  manager,
		Checker:  netcheck.NewChecker(cfg),
		Surface:  surface,
		Results:  resRec,
		Notifier: notifier,
		Archive:  archive,
	})

	return &session{
		id:       uuid.NewString(),
		cfg:      cfg,
		backend:  backend,
		recorder: recorder,
		unit:     unit,
		results:  resRec,
		stop:     make(chan struct{}),
	}, nil
}

// begin runs the startup gate and brings the pipeline up.
func (s *session) begin() {
	log.SessionStart(s.id, s.cfg.SourceLang, s.cfg.TargetLang, s.cfg.SampleRate)
	sink.StatusLine(fmt.Sprintf("%s → %s  ·  %s",
		s.cfg.SourceLang, s.cfg.TargetLang, s.recorder.Device().Name))

	s.unit.CheckInitialConnection()
	s.unit.Start()
	if s.unit.IsRunning() {
		beep.SessionStart()
		sink.SessionStart()
	}

	s.hk = hotkey.New()
	if err := s.hk.Register(); err != nil {
		log.Warnf("hotkey unavailable: %v", err)
		s.hk = nil
	} else {
		go s.hotkeyLoop()
	}

	go s.watch()
}

func (s *session) hotkeyLoop() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.hk.Presses():
			sink.Paused(s.unit.TogglePause())
		}
	}
}

// watch feeds the display with the capture level and raises silence
// warnings when nothing is being captured.
func (s *session) watch() {
	meter := s.recorder.Meter()
	monitor := audio.NewSilenceMonitor()
	ticker := time.NewTicker(audio.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		if !s.recorder.IsRecording() {
			continue
		}
		sink.AudioLevel(meter.Level())

		switch monitor.Tick(meter.HasSpeechTick()) {
		case audio.SilenceWarn, audio.SilenceRepeat:
			log.Warn("no audio captured, check the selected device")
			sink.StatusLine("⚠ no audio captured, check the selected device")
		case audio.SilenceWarnClear:
			sink.StatusLine(fmt.Sprintf("%s → %s  ·  %s",
				s.cfg.SourceLang, s.cfg.TargetLang, s.recorder.Device().Name))
		}
	}
}

// end tears the session down and copies the transcript to the
// clipboard.
func (s *session) end() {
	close(s.stop)
	if s.hk != nil {
		s.hk.Unregister()
	}
	s.unit.Stop()
	sink.SessionStop()
	beep.SessionEnd()

	originals, translations := s.results.Pairs()
	if len(originals) > 0 {
		if err := clipboard.CopyPairs(originals, translations); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		}
	}

	log.SessionEnd(s.id, len(originals))
	s.backend.Close()
}

func run() {
	configPath := flag.String("config", "", "config file (default "+defaultConfigFile+" if present)")
	logPath := flag.String("logpath", "", "log directory")
	setup := flag.Bool("setup", false, "pick the capture device and exit")
	doctorMode := flag.Bool("doctor", false, "run system diagnostics and exit")
	convert := flag.String("convert", "", "convert result files in a directory to -format and exit")
	format := flag.String("format", "", "output format: parallel or separate")
	source := flag.String("source", "", "source language override")
	target := flag.String("target", "", "target language override")
	saveAudio := flag.Bool("saveaudio", false, "keep a FLAC copy of the session audio")
	mute := flag.Bool("mute", false, "disable audio cues")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Bool("gui", false, "show the subtitle overlay instead of the TUI")
	flag.Parse()

	if *showVersion {
		fmt.Println("livesub " + version)
		return
	}
	if *setup {
		os.Exit(runSetup(*configPath))
	}
	if *doctorMode {
		os.Exit(doctor.Run(*configPath))
	}
	if *convert != "" {
		if *format == "" {
			fmt.Fprintln(os.Stderr, "-convert requires -format parallel|separate")
			os.Exit(2)
		}
		converted, total, err := results.ConvertDir(*convert, *format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("converted %d of %d result file(s)\n", converted, total)
		return
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.SourceLang = *source
	}
	if *target != "" {
		cfg.TargetLang = *target
	}
	if *saveAudio {
		cfg.SaveAudio = true
	}
	if *format != "" {
		cfg.OutputFormat = *format
	}
	if *mute {
		beep.Disable()
	}

	dir, err := log.ResolveDir(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving log dir: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening logs: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Infof("livesub %s starting", version)

	if guiMode {
		runGUI(cfg)
	} else {
		runTUI(cfg)
	}
}

// notifier builds the notification center on top of the active sink.
func notifier() *notify.Center {
	return notify.NewCenter(notify.SinkFunc(func(sev notify.Severity, title, message string) {
		if sev == notify.SeverityError {
			log.Errorf("%s: %s", title, message)
		} else {
			log.Warnf("%s: %s", title, message)
		}
		if sink != nil {
			sink.UpdateSubtitle(title, message)
		}
	}))
}

func runTUI(cfg *config.Config) {
	var sess *session
	p := NewTUIProgram(func() bool {
		if sess == nil {
			return false
		}
		return sess.unit.TogglePause()
	})
	sink = &tuiSink{p: p}

	sess, err := newSession(cfg, sinkSurface{}, notifier())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	go sess.begin()

	// Ctrl+C lands in the TUI as a key event, but SIGTERM does not.
	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	go func() {
		<-sig
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("tui failed: %v", err)
	}
	sess.end()
}

func runGUI(cfg *config.Config) {
	sess, err := newSession(cfg, sinkSurface{}, notifier())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	guiApp.SetHooks(
		func() bool {
			paused := sess.unit.TogglePause()
			sink.Paused(paused)
			return paused
		},
		func() {
			originals, translations := sess.results.Pairs()
			if err := clipboard.CopyPairs(originals, translations); err != nil {
				log.Warnf("clipboard copy failed: %v", err)
			}
		},
		func() { close(done) },
	)

	sess.begin()

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	select {
	case <-sig:
	case <-done:
	}
	sess.end()
	guiApp.Quit()
}

// sinkSurface adapts the package-level sink to the pipeline's surface
// interface. Indirection matters: the sink is installed after the
// session is built.
type sinkSurface struct{}

func (sinkSurface) UpdateSubtitle(original, translated string) {
	if sink != nil {
		sink.UpdateSubtitle(original, translated)
	}
}
