//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"toolpathstudio/internal/gcode"
	"toolpathstudio/internal/palette"
)

// layerObjects converts a move set into positioned canvas lines plus the
// head marker. Pure fyne-object construction, no window required, so tests
// can call it headless.
func layerObjects(moves []gcode.Move, pal palette.Palette, width, height float32, margin float32, upTo int) []fyne.CanvasObject {
	n := len(moves)
	if upTo >= 0 && upTo < n {
		n = upTo
	}
	if n == 0 || width <= 0 || height <= 0 {
		return nil
	}
	if margin <= 0 || margin >= 0.5 {
		margin = 0.05
	}

	b := gcode.Bounds(moves)
	bw, bh := b.Width(), b.Height()
	if bw <= 0 {
		bw = 1
	}
	if bh <= 0 {
		bh = 1
	}
	scale := float64(width) * (1 - 2*float64(margin)) / bw
	if s := float64(height) * (1 - 2*float64(margin)) / bh; s < scale {
		scale = s
	}
	cx, cy := b.Center()
	offX := float64(width)/2 - cx*scale
	offY := float64(height)/2 + cy*scale
	project := func(m gcode.Move) fyne.Position {
		return fyne.NewPos(float32(m.X*scale+offX), float32(offY-m.Y*scale))
	}

	var objs []fyne.CanvasObject
	prev := project(moves[0])
	for i := 1; i < n; i++ {
		pos := project(moves[i])
		line := canvas.NewLine(pal.For(moves[i].Kind))
		line.Position1 = prev
		line.Position2 = pos
		line.StrokeWidth = 1
		objs = append(objs, line)
		prev = pos
	}

	head := canvas.NewCircle(pal.Head)
	const r float32 = 4
	head.Move(fyne.NewPos(prev.X-r, prev.Y-r))
	head.Resize(fyne.NewSize(2*r, 2*r))
	objs = append(objs, head)
	return objs
}

func asParseError(err error, target **gcode.ParseError) bool {
	return errors.As(err, target)
}
