package main

import (
	"fmt"
	"os"

	"livesub/audio"
	"livesub/config"

	"golang.org/x/term"
)

// runSetup lets the user pick the capture device interactively and
// stores the choice in the config file.
func runSetup(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	backend, err := audio.NewBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to audio: %v\n", err)
		return 1
	}
	defer backend.Close()

	devices, err := backend.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error enumerating devices: %v\n", err)
		return 1
	}
	var inputs []audio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "No capture devices found")
		return 1
	}

	picked, err := pickDevice(inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cfg.PreferredDevice = picked.Name
	path := configPath
	if path == "" {
		path = defaultConfigFile
	}
	if err := cfg.Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		return 1
	}
	fmt.Printf("Saved %q as the capture device in %s\n", picked.Name, path)
	return 0
}

// pickDevice renders an arrow-key list in raw mode.
func pickDevice(devices []audio.DeviceInfo) (audio.DeviceInfo, error) {
	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return audio.DeviceInfo{}, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select capture device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			label := d.Name
			if audio.IsLoopback(d.Name) {
				label += "  [system audio]"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", label)
			} else {
				fmt.Printf("    %s\r\n", label)
			}
		}
	}
	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return audio.DeviceInfo{}, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Printf("\r\n")
				term.Restore(fd, oldState)
				return devices[cursor], nil
			case 3: // Ctrl+C
				fmt.Printf("\r\n")
				term.Restore(fd, oldState)
				os.Exit(0)
			case 'j':
				if cursor < len(devices)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(devices)-1 {
					cursor++
				}
			}
		}

		lines := len(devices) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}
