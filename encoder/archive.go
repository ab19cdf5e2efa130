package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionArchive persists one capture session as a FLAC file in the
// result directory. Writes after Close are no-ops, so the audio worker
// does not have to coordinate with shutdown.
type SessionArchive struct {
	mu     sync.Mutex
	file   *os.File
	enc    *Flac
	path   string
	closed bool
}

func NewSessionArchive(dir string, sampleRate, channels int) (*SessionArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	path := filepath.Join(dir, "session_"+time.Now().Format("20060102_150405")+".flac")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating archive file: %w", err)
	}
	enc, err := NewFlac(f, sampleRate, channels)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &SessionArchive{file: f, enc: enc, path: path}, nil
}

func (a *SessionArchive) Path() string {
	return a.path
}

// Write appends one interleaved PCM block to the archive.
func (a *SessionArchive) Write(block []int16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.enc.Write(block)
}

// Close finalizes the FLAC stream and closes the file. An archive that
// never received audio is removed. Close is idempotent.
func (a *SessionArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	encErr := a.enc.Close()
	fileErr := a.file.Close()
	if a.enc.Samples() == 0 {
		os.Remove(a.path)
	}
	if encErr != nil {
		return encErr
	}
	return fileErr
}
