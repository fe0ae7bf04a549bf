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
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"toolpathstudio/internal/gcode"
)

// WriteLayerSVG writes one layer as a standalone SVG file. Segments are
// emitted as individual <line> elements so each keeps its own color and
// dash style.
func WriteLayerSVG(path string, moves []gcode.Move, opt Options) error {
	if err := validateMoves(moves); err != nil {
		return err
	}
	opt = opt.withDefaults()

	v := newViewport(gcode.Bounds(moves), opt.Width, opt.Height, opt.Margin)
	segs, headX, headY, ok := buildSegments(moves, v, opt.UpTo)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		opt.Width, opt.Height, opt.Width, opt.Height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"%s\"/>\n", opt.Width, opt.Height, svgColor(opt.Palette.Background))

	if ok {
		for _, s := range segs {
			dash := ""
			if s.kind == gcode.KindTravel && opt.Palette.TravelDashed {
				dash = fmt.Sprintf(" stroke-dasharray=\"%g %g\"", dashOn, dashOff)
			}
			wf("  <line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"1\"%s/>\n",
				s.x0, s.y0, s.x1, s.y1, svgColor(opt.Palette.For(s.kind)), dash)
		}
		if opt.ShowHead {
			wf("  <circle cx=\"%.2f\" cy=\"%.2f\" r=\"4\" fill=\"%s\"/>\n", headX, headY, svgColor(opt.Palette.Head))
		}
	}
	if opt.Title != "" {
		wf("  <text x=\"8\" y=\"16\" font-family=\"monospace\" font-size=\"12\" fill=\"#000\">%s</text>\n", escText(opt.Title))
	}
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
