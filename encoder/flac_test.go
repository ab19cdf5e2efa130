package encoder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
)

func decodeAll(t *testing.T, data []byte) (samples [][]int32, sampleRate uint32, channels uint8) {
	t.Helper()
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parsing encoded stream: %v", err)
	}
	sampleRate = stream.Info.SampleRate
	channels = stream.Info.NChannels
	samples = make([][]int32, channels)
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("parsing frame: %v", err)
		}
		for ch, sub := range f.Subframes {
			samples[ch] = append(samples[ch], sub.Samples...)
		}
	}
	return samples, sampleRate, channels
}

func TestFlacMonoRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}

	block := []int16{0, 100, -100, 32767, -32768, 7}
	if err := enc.Write(block); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Write(nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if enc.Samples() != uint64(len(block)) {
		t.Errorf("samples = %d, want %d", enc.Samples(), len(block))
	}

	samples, rate, channels := decodeAll(t, buf.Bytes())
	if rate != 16000 || channels != 1 {
		t.Fatalf("stream info %d Hz %d ch, want 16000 Hz mono", rate, channels)
	}
	for i, want := range block {
		if samples[0][i] != int32(want) {
			t.Errorf("sample %d = %d, want %d", i, samples[0][i], want)
		}
	}
}

func TestFlacStereoDeinterleaves(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, 48000, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Interleaved L,R pairs.
	if err := enc.Write([]int16{10, -10, 20, -20, 30, -30}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	samples, _, channels := decodeAll(t, buf.Bytes())
	if channels != 2 {
		t.Fatalf("channels = %d, want 2", channels)
	}
	wantL := []int32{10, 20, 30}
	wantR := []int32{-10, -20, -30}
	for i := range wantL {
		if samples[0][i] != wantL[i] || samples[1][i] != wantR[i] {
			t.Errorf("pair %d = (%d,%d), want (%d,%d)",
				i, samples[0][i], samples[1][i], wantL[i], wantR[i])
		}
	}
}

func TestFlacRejectsRaggedBlock(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, 16000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Write([]int16{1, 2, 3}); err == nil {
		t.Error("odd-length stereo block accepted")
	}
}

func TestSessionArchiveWritesFile(t *testing.T) {
	dir := t.TempDir()
	a, err := NewSessionArchive(dir, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Write([]int16{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := a.Write([]int16{5}); err != nil {
		t.Fatalf("write after close: %v", err)
	}

	data, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatalf("archive file missing: %v", err)
	}
	samples, _, _ := decodeAll(t, data)
	if len(samples[0]) != 4 {
		t.Errorf("archived %d samples, want 4", len(samples[0]))
	}
}

func TestSessionArchiveRemovesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	a, err := NewSessionArchive(dir, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(a.Path()); !os.IsNotExist(err) {
		t.Errorf("empty archive left behind at %s", a.Path())
	}
	entries, _ := filepath.Glob(filepath.Join(dir, "*.flac"))
	if len(entries) != 0 {
		t.Errorf("stray archives: %v", entries)
	}
}
