/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolpathstudio/internal/gcode"
	"toolpathstudio/internal/palette"
)

func sampleMoves() []gcode.Move {
	return []gcode.Move{
		{X: 0, Y: 0, Extruding: false, Kind: gcode.KindTravel},
		{X: 20, Y: 0, Extruding: true, Kind: gcode.KindExternalPerimeter},
		{X: 20, Y: 20, Extruding: true, Kind: gcode.KindExternalPerimeter},
		{X: 0, Y: 20, Extruding: true, Kind: gcode.KindPerimeter},
		{X: 5, Y: 5, Extruding: false, Kind: gcode.KindTravel},
		{X: 15, Y: 5, Extruding: true, Kind: gcode.KindOther},
	}
}

func TestWriteLayerPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer-0.png")
	opt := Options{Width: 200, Height: 160, ShowHead: true, Title: "layer 0"}
	if err := WriteLayerPNG(path, sampleMoves(), opt); err != nil {
		t.Fatalf("WriteLayerPNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 200 || b.Dy() != 160 {
		t.Fatalf("size = %dx%d, want 200x160", b.Dx(), b.Dy())
	}
	// Something other than the white background must have been drawn.
	pal := palette.Default()
	hit := false
	for y := b.Min.Y; y < b.Max.Y && !hit; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			if uint8(r>>8) != pal.Background.R || uint8(g>>8) != pal.Background.G || uint8(bb>>8) != pal.Background.B {
				hit = true
				break
			}
		}
	}
	if !hit {
		t.Fatal("rendered image is blank")
	}
}

func TestWriteLayerPNGRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	if err := WriteLayerPNG(path, nil, Options{}); err == nil {
		t.Fatal("expected error for empty move set")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should not have been created")
	}
}

func TestWriteLayerSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer-0.svg")
	opt := Options{Width: 400, Height: 400, ShowHead: true, Title: "layer <0>"}
	if err := WriteLayerSVG(path, sampleMoves(), opt); err != nil {
		t.Fatalf("WriteLayerSVG: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{"<svg", "</svg>", "<line", "stroke-dasharray", "<circle", "layer &lt;0&gt;"} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg missing %q", want)
		}
	}
	// Five segments from six moves.
	if got := strings.Count(s, "<line"); got != 5 {
		t.Fatalf("line count = %d, want 5", got)
	}
}

func TestWriteLayerSVGZeroOptionsDrawsAllSegments(t *testing.T) {
	// The zero value of Options must render the whole layer; with no
	// title there is nothing to draw but the segments themselves.
	path := filepath.Join(t.TempDir(), "defaults.svg")
	if err := WriteLayerSVG(path, sampleMoves(), Options{}); err != nil {
		t.Fatalf("WriteLayerSVG: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(b), "<line"); got != 5 {
		t.Fatalf("line count = %d, want 5", got)
	}
}

func TestWriteLayerSVGUpToLimitsSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.svg")
	if err := WriteLayerSVG(path, sampleMoves(), Options{UpTo: 3}); err != nil {
		t.Fatalf("WriteLayerSVG: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(b), "<line"); got != 2 {
		t.Fatalf("line count = %d, want 2", got)
	}
}

func TestWriteLayersPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.pdf")
	layers := []Layer{
		{Index: 0, Moves: sampleMoves()},
		{Index: 1, Moves: nil},
		{Index: 2, Moves: sampleMoves()},
	}
	if err := WriteLayersPDF(path, layers, Options{Width: 595, Height: 842}); err != nil {
		t.Fatalf("WriteLayersPDF: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatal("output does not start with PDF header")
	}
	// Three pages requested.
	if got := bytes.Count(b, []byte("/Type /Page\n")); got < 3 {
		t.Fatalf("page count = %d, want >= 3", got)
	}
}

func TestWriteLayersPDFRejectsEmpty(t *testing.T) {
	if err := WriteLayersPDF(filepath.Join(t.TempDir(), "x.pdf"), nil, Options{}); err == nil {
		t.Fatal("expected error for empty layer list")
	}
}
