//go:build fyne && !cgo

package ui

import "fmt"

// Run informs the user that the Fyne UI requires cgo (OpenGL) and a C
// toolchain. This stub is compiled when the build uses -tags fyne but CGO
// is disabled.
func Run(_ string) error {
	return fmt.Errorf("Fyne UI requires cgo (OpenGL). Enable cgo and install a C toolchain, then run with CGO_ENABLED=1 go run -tags fyne ./cmd/toolpathstudio ui [file.gcode]")
}
