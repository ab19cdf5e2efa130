//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"fyne.io/fyne/v2"
)

// trayIcon renders the tray glyph at runtime: two subtitle bars on a
// transparent background.
func trayIcon() fyne.Resource {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	bar := func(y0, y1, x0, x1 int, c color.RGBA) {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				img.Set(x, y, c)
			}
		}
	}
	bar(10, 13, 3, 19, color.RGBA{240, 240, 240, 255})
	bar(15, 18, 6, 16, color.RGBA{90, 180, 250, 255})

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return fyne.NewStaticResource("tray.png", buf.Bytes())
}
