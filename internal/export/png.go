/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"toolpathstudio/internal/gcode"
)

// dash pattern for travel moves, in pixels
const (
	dashOn  = 6.0
	dashOff = 4.0
)

// WriteLayerPNG rasterizes one layer to a PNG file. Travel moves are drawn
// dashed when the palette asks for it and a title label is stamped in the
// top-left corner.
func WriteLayerPNG(path string, moves []gcode.Move, opt Options) error {
	if err := validateMoves(moves); err != nil {
		return err
	}
	opt = opt.withDefaults()

	img := image.NewRGBA(image.Rect(0, 0, opt.Width, opt.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: opt.Palette.Background}, image.Point{}, draw.Src)

	v := newViewport(gcode.Bounds(moves), opt.Width, opt.Height, opt.Margin)
	segs, headX, headY, ok := buildSegments(moves, v, opt.UpTo)
	if ok {
		for _, s := range segs {
			col := opt.Palette.For(s.kind)
			if s.kind == gcode.KindTravel && opt.Palette.TravelDashed {
				dashedLine(img, s.x0, s.y0, s.x1, s.y1, col)
			} else {
				solidLine(img, s.x0, s.y0, s.x1, s.y1, col)
			}
		}
		if opt.ShowHead {
			fillCircle(img, headX, headY, 4, opt.Palette.Head)
		}
	}
	if opt.Title != "" {
		labelText(img, 8, 16, opt.Title, color.RGBA{A: 0xff})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// solidLine draws a 1px line by stepping along the longer axis.
func solidLine(img *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		setPixel(img, x0, y0, col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		setPixel(img, x0+dx*t, y0+dy*t, col)
	}
}

// dashedLine draws on/off runs along the segment.
func dashedLine(img *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		setPixel(img, x0, y0, col)
		return
	}
	period := dashOn + dashOff
	for pos := 0.0; pos < length; pos += period {
		end := pos + dashOn
		if end > length {
			end = length
		}
		t0, t1 := pos/length, end/length
		solidLine(img, x0+dx*t0, y0+dy*t0, x0+dx*t1, y0+dy*t1, col)
	}
}

func fillCircle(img *image.RGBA, cx, cy float64, r int, col color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setPixel(img, cx+float64(dx), cy+float64(dy), col)
			}
		}
	}
}

func setPixel(img *image.RGBA, x, y float64, col color.RGBA) {
	ix, iy := int(math.Round(x)), int(math.Round(y))
	if image.Pt(ix, iy).In(img.Bounds()) {
		img.SetRGBA(ix, iy, col)
	}
}

// labelText stamps a short line of text using the fixed 7x13 face. Good
// enough for layer numbers; no font files to ship.
func labelText(img *image.RGBA, x, y int, s string, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
