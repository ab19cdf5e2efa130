//go:build gui

package main

import (
	"runtime"

	"livesub/gui"
)

// initGUI takes over the main thread with the overlay event loop and
// runs the pipeline in a goroutine.
func initGUI() {
	guiMode = true
	runtime.LockOSThread()

	app := gui.NewApp(run)
	guiApp = app
	sink = app
	if err := gui.Run(app); err != nil {
		panic(err)
	}
}
