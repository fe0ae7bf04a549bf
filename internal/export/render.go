/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders classified layer move sets to PNG, SVG and PDF.
// All three formats share the same viewport math so a layer looks the same
// regardless of output.
package export

import (
	"fmt"

	"toolpathstudio/internal/gcode"
	"toolpathstudio/internal/palette"
)

// Options controls rendering behavior for all output formats.
// - Width/Height are output pixels (PNG, SVG) or points (PDF page size).
// - Margin is the fraction of the canvas left blank around the bounds.
// - UpTo limits drawing to the first N moves (animation snapshots); zero
//   or negative draws everything, so the zero value renders the full layer.
// - ShowHead draws a marker at the last drawn position.
type Options struct {
	Width    int
	Height   int
	Margin   float64
	Palette  palette.Palette
	ShowHead bool
	UpTo     int
	Title    string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.Margin <= 0 || o.Margin >= 0.5 {
		o.Margin = 0.05
	}
	if o.UpTo <= 0 {
		o.UpTo = -1
	}
	if o.Palette == (palette.Palette{}) {
		o.Palette = palette.Default()
	}
	return o
}

// viewport maps machine coordinates (mm, Y up) into canvas coordinates
// (Y down), preserving aspect ratio and centering the bounds.
type viewport struct {
	scale  float64
	offX   float64
	offY   float64
	height float64
}

func newViewport(b gcode.BoundingBox, width, height int, margin float64) viewport {
	w, h := b.Width(), b.Height()
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	availW := float64(width) * (1 - 2*margin)
	availH := float64(height) * (1 - 2*margin)
	scale := availW / w
	if s := availH / h; s < scale {
		scale = s
	}
	cx, cy := b.Center()
	return viewport{
		scale:  scale,
		offX:   float64(width)/2 - cx*scale,
		offY:   float64(height)/2 + cy*scale,
		height: float64(height),
	}
}

func (v viewport) point(x, y float64) (float64, float64) {
	return x*v.scale + v.offX, v.offY - y*v.scale
}

// segment is one drawable polyline edge. The endpoint's move determines the
// classification, matching how the moves themselves are recorded.
type segment struct {
	x0, y0, x1, y1 float64
	kind           gcode.MoveKind
	extruding      bool
}

// buildSegments turns a move set into canvas-space segments. The first move
// only establishes a position. The cap limits the number of moves considered,
// not segments, so an animation stepping over moves stays in lockstep.
func buildSegments(moves []gcode.Move, v viewport, limit int) (segs []segment, headX, headY float64, ok bool) {
	n := len(moves)
	if limit >= 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil, 0, 0, false
	}
	px, py := v.point(moves[0].X, moves[0].Y)
	headX, headY = px, py
	for i := 1; i < n; i++ {
		x, y := v.point(moves[i].X, moves[i].Y)
		segs = append(segs, segment{x0: px, y0: py, x1: x, y1: y, kind: moves[i].Kind, extruding: moves[i].Extruding})
		px, py = x, y
		headX, headY = x, y
	}
	return segs, headX, headY, true
}

func validateMoves(moves []gcode.Move) error {
	if len(moves) == 0 {
		return fmt.Errorf("no moves to render")
	}
	return nil
}
