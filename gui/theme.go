//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// overlayTheme darkens the background so subtitles read over any
// desktop content.
type overlayTheme struct{}

func (d *overlayTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{12, 12, 12, 235}
	case theme.ColorNameForeground:
		return color.RGBA{235, 235, 235, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (d *overlayTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (d *overlayTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (d *overlayTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return 18
	}
	return theme.DefaultTheme().Size(name)
}
