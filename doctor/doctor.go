// Package doctor runs interactive diagnostics for the common support
// questions: is the config usable, can audio be captured, is the
// translation service reachable, does the global hotkey work.
package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"livesub/audio"
	"livesub/config"
	"livesub/hotkey"
	"livesub/netcheck"
)

// Run executes the checks and returns an exit code (0 = all pass).
func Run(configPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("livesub doctor - system diagnostics")
	fmt.Println("===================================")

	allPass := true

	cfg, ok := checkConfig(configPath)
	if !ok {
		allPass = false
	}
	if cfg != nil && !checkAudio(cfg) {
		allPass = false
	}
	if cfg != nil && !checkNetwork(cfg) {
		allPass = false
	}
	if !checkHotkey() {
		allPass = false
	}
	if cfg != nil && !checkResultDir(cfg) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) (*config.Config, bool) {
	fmt.Println()
	fmt.Println("[1/5] Configuration")

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	if cfg.APIKey == "" {
		fmt.Println("  FAIL: no API key found (set DASHSCOPE_API_KEY or api_key in the config file)")
		return cfg, false
	}
	fmt.Printf("  PASS: %s -> %s, model %s, key present\n", cfg.SourceLang, cfg.TargetLang, cfg.Model)
	return cfg, true
}

func checkAudio(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[2/5] Audio capture")

	backend, err := audio.NewBackend()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer backend.Close()

	devices, err := backend.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	inputs := 0
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs++
			marker := " "
			if audio.IsLoopback(d.Name) {
				marker = "*"
			}
			fmt.Printf("  %s %s (%d ch)\n", marker, d.Name, d.MaxInputChannels)
		}
	}
	if inputs == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	fmt.Printf("  PASS: %d capture device(s), * = system audio loopback\n", inputs)
	return true
}

func checkNetwork(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/5] Translation service")

	checker := netcheck.NewChecker(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.NetworkCheckTimeout)
	defer cancel()

	if !checker.CheckInternet(ctx) {
		fmt.Println("  FAIL: no internet connection")
		return false
	}
	if err := checker.CheckService(ctx); err != nil {
		fmt.Printf("  FAIL: service unreachable: %v\n", err)
		return false
	}
	fmt.Println("  PASS: service reachable, API key accepted")
	return true
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[4/5] Global hotkey")

	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else {
		fmt.Printf("  %s\n", msg)
	}

	fmt.Println("  Press Ctrl+Shift+S within 10 seconds...")
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Presses():
		resetTerminal()
		fmt.Println("  PASS: hotkey detected")
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkResultDir(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[5/5] Result directory")

	if err := os.MkdirAll(cfg.ResultDir, 0o755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", cfg.ResultDir, err)
		return false
	}
	probe := cfg.ResultDir + string(os.PathSeparator) + ".doctor_probe"
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		fmt.Printf("  FAIL: %s not writable: %v\n", cfg.ResultDir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  PASS: %s writable\n", cfg.ResultDir)
	return true
}
