package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.SettleThreshold != 2 {
		t.Errorf("SettleThreshold = %d, want 2", cfg.SettleThreshold)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 5s", cfg.HeartbeatInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestBlockSize(t *testing.T) {
	cfg := Default()
	cfg.SampleRate = 16000
	cfg.BlockSizeMs = 100
	if got := cfg.BlockSize(); got != 1600 {
		t.Errorf("BlockSize() = %d, want 1600", got)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesub.yaml")
	data := []byte("source_lang: ja\ntarget_lang: en\nsettle_threshold: 4\nheartbeat_interval: 10s\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SourceLang != "ja" || cfg.TargetLang != "en" {
		t.Errorf("languages = %s/%s, want ja/en", cfg.SourceLang, cfg.TargetLang)
	}
	if cfg.SettleThreshold != 4 {
		t.Errorf("SettleThreshold = %d, want 4", cfg.SettleThreshold)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 10s", cfg.HeartbeatInterval)
	}
	// Unset fields keep defaults.
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want default 48000", cfg.SampleRate)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesub.yaml")

	cfg := Default()
	cfg.PreferredDevice = "USB Mic"
	cfg.SaveAudio = true
	cfg.CaptureRetryDelay = 1500 * time.Millisecond
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.PreferredDevice != "USB Mic" {
		t.Errorf("PreferredDevice = %q", loaded.PreferredDevice)
	}
	if !loaded.SaveAudio {
		t.Error("SaveAudio lost in round trip")
	}
	if loaded.CaptureRetryDelay != 1500*time.Millisecond {
		t.Errorf("CaptureRetryDelay = %v, want 1.5s", loaded.CaptureRetryDelay)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesub.yaml")
	if err := os.WriteFile(path, []byte("heartbeat_interval: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoadEnvKey(t *testing.T) {
	t.Setenv("LIVESUB_API_KEY", "sk-0123456789abcdef0123456789abcdef")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "sk-0123456789abcdef0123456789abcdef" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := Default()
	cfg.OutputFormat = "csv"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown output_format")
	}
}

func TestDiscoverAPIKey(t *testing.T) {
	dir := t.TempDir()
	key := "sk-abcdefghij0123456789ABCDEFGHIJ01"

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte(key), 0644); err != nil {
		t.Fatal(err)
	}
	if got := DiscoverAPIKey(dir); got != "" {
		t.Errorf("found key in ignored extension: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "apikey.txt"), []byte("my key: "+key+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := DiscoverAPIKey(dir); got != key {
		t.Errorf("DiscoverAPIKey = %q, want %q", got, key)
	}
}

func TestDiscoverAPIKeySubdir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "keys")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	key := "sk-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"
	if err := os.WriteFile(filepath.Join(sub, "k.key"), []byte(key), 0644); err != nil {
		t.Fatal(err)
	}
	if got := DiscoverAPIKey(dir); got != key {
		t.Errorf("DiscoverAPIKey = %q, want %q", got, key)
	}

	// Two levels down is out of scan range.
	deep := filepath.Join(dir, "a", "b")
	if err := os.RemoveAll(sub); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deep, "k.key"), []byte(key), 0644); err != nil {
		t.Fatal(err)
	}
	if got := DiscoverAPIKey(dir); got != "" {
		t.Errorf("found key below depth limit: %q", got)
	}
}
