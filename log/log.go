package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog      zerolog.Logger
	diagFile     *os.File
	subtitleFile *os.File
	logMu        sync.Mutex
	logReady     bool
	pid          int
	dir          string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: LIVESUB_LOG_PATH environment variable
	envPath := os.Getenv("LIVESUB_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	subtitlePath := filepath.Join(dir, "subtitle_log.txt")
	subtitleFile, err = os.OpenFile(subtitlePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if subtitleFile != nil {
		subtitleFile.Close()
		subtitleFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SubtitlePair appends one committed sentence to the subtitle log.
func SubtitlePair(sentenceID int64, original, translated string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t#%d\t%s\t%s\n",
		time.Now().Format("2006-01-02 15:04:05"), pid, sentenceID, original, translated)
	subtitleFile.WriteString(line)
}

type PipelineMetricsData struct {
	FramesIn      int
	FramesSent    int
	FramesDropped int
	Sentences     int
	HeartbeatOK   bool
	SessionDurS   float64
}

func PipelineMetrics(m PipelineMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("frames_in", m.FramesIn).
		Int("frames_sent", m.FramesSent).
		Int("frames_dropped", m.FramesDropped).
		Int("sentences", m.Sentences).
		Bool("heartbeat_ok", m.HeartbeatOK).
		Float64("session_s", m.SessionDurS).
		Msg("pipeline_session")
}

func SessionStart(sessionID, source, target string, sampleRate int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("source_lang", source).
		Str("target_lang", target).
		Int("sample_rate", sampleRate).
		Msg("session_start")
}

func SessionEnd(sessionID string, sentences int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Int("sentences", sentences).
		Msg("session_end")
}
