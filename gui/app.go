//go:build gui

// Package gui renders the subtitle overlay: a frameless, always-on-top
// window pinned to the bottom of the screen, plus a system tray menu.
package gui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	overlayWidthFrac = 0.6
	overlayMargin    = 40
)

type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	original   *widget.Label
	translated *widget.Label

	onReady func()
	posX    int
	posY    int

	mu     sync.Mutex
	paused bool

	// Wired by main before Run.
	OnTogglePause func() bool
	OnCopy        func()
	OnQuit        func()
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

// Run takes over the calling goroutine with the Fyne event loop.
func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.livesub.overlay")
	a.fyneApp.Settings().SetTheme(&overlayTheme{})

	a.setupTray()

	var screenW, screenH int
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	} else {
		screenW, screenH = 1920, 1080
	}

	// A splash window has no decorations and does not appear in the
	// taskbar.
	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("livesub")
	}

	a.original = widget.NewLabel("")
	a.original.Alignment = fyne.TextAlignCenter
	a.original.Wrapping = fyne.TextWrapWord
	a.original.TextStyle = fyne.TextStyle{Bold: true}

	a.translated = widget.NewLabel("")
	a.translated.Alignment = fyne.TextAlignCenter
	a.translated.Wrapping = fyne.TextWrapWord

	a.window.SetContent(container.NewVBox(a.original, a.translated))
	a.window.SetPadded(false)

	width := float32(float64(screenW) * overlayWidthFrac)
	height := a.window.Content().MinSize().Height + 24
	a.window.Resize(fyne.NewSize(width, height))

	a.posX = (screenW - int(width)) / 2
	a.posY = screenH - int(height) - overlayMargin

	go a.onReady()

	a.Show()
	a.fyneApp.Run()
	return nil
}

func (a *App) setupTray() {
	desk, ok := a.fyneApp.(desktop.App)
	if !ok {
		return
	}

	pauseItem := fyne.NewMenuItem("Pause", nil)
	pauseItem.Action = func() {
		if a.OnTogglePause == nil {
			return
		}
		if a.OnTogglePause() {
			pauseItem.Label = "Resume"
		} else {
			pauseItem.Label = "Pause"
		}
	}
	menu := fyne.NewMenu("livesub",
		pauseItem,
		fyne.NewMenuItem("Copy transcript", func() {
			if a.OnCopy != nil {
				a.OnCopy()
			}
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			if a.OnQuit != nil {
				a.OnQuit()
			}
			a.fyneApp.Quit()
		}),
	)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(trayIcon())
}

// SetHooks wires the tray menu actions. Must be called before the
// user can reach the menu, i.e. right after NewApp.
func (a *App) SetHooks(togglePause func() bool, copyTranscript func(), quit func()) {
	a.OnTogglePause = togglePause
	a.OnCopy = copyTranscript
	a.OnQuit = quit
}

func (a *App) SessionStart() { a.Show() }
func (a *App) SessionStop()  { a.Hide() }

// AudioLevel is unused by the overlay; the window shows text only.
func (a *App) AudioLevel(level float64) {}

func (a *App) Paused(paused bool) {
	a.mu.Lock()
	a.paused = paused
	a.mu.Unlock()
	if paused {
		a.UpdateSubtitle("Paused", "")
	}
}

// StatusLine is shown in the translated slot while no sentence is
// live.
func (a *App) StatusLine(text string) {
	fyne.Do(func() {
		if a.original.Text == "" {
			a.translated.SetText(text)
		}
	})
}

// UpdateSubtitle is called from pipeline goroutines.
func (a *App) UpdateSubtitle(original, translated string) {
	fyne.Do(func() {
		a.original.SetText(original)
		a.translated.SetText(translated)
	})
}

func (a *App) Show() {
	fyne.Do(func() {
		if a.window == nil {
			return
		}
		// Position and float without stealing focus.
		if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
			glfwWin.SetPos(a.posX, a.posY)
			glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
			glfwWin.SetAttrib(glfw.Floating, glfw.True)
			glfwWin.Show()
		} else {
			a.window.Show()
		}
	})
}

func (a *App) Hide() {
	fyne.Do(func() {
		if a.window != nil {
			a.window.Hide()
		}
	})
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}
