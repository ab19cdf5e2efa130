//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// -gui needs the main thread for the window event loop, the hotkey
	// library needs it otherwise; check the flag before flag.Parse runs
	// in run().
	for _, arg := range os.Args[1:] {
		if arg == "-gui" {
			initGUI()
			return
		}
	}
	mainthread.Init(run)
}
