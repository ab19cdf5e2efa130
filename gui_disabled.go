//go:build !gui

package main

func initGUI() {
	panic("livesub: built without overlay support (rebuild with -tags gui)")
}
