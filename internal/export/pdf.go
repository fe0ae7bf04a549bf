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
	"image/color"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"toolpathstudio/internal/gcode"
)

// Layer pairs a layer index with the moves to draw for it.
type Layer struct {
	Index int
	Moves []gcode.Move
}

// WriteLayersPDF writes one page per layer into a single PDF at outPath.
// Built-in Helvetica keeps the page labels vector without font embedding.
func WriteLayersPDF(outPath string, layers []Layer, opt Options) error {
	if len(layers) == 0 {
		return fmt.Errorf("no layers to render")
	}
	opt = opt.withDefaults()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(opt.Width), Ht: float64(opt.Height)},
		OrientationStr: "",
	})
	title := opt.Title
	if title == "" {
		title = "Toolpath layers"
	}
	pdf.SetTitle(title, false)
	pdf.SetAuthor("Toolpath Studio", false)
	pdf.SetFont("Helvetica", "", 10)

	for _, layer := range layers {
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: float64(opt.Width), Ht: float64(opt.Height)})
		if len(layer.Moves) == 0 {
			pdf.Text(8, 16, fmt.Sprintf("layer %d: empty", layer.Index))
			continue
		}
		v := newViewport(gcode.Bounds(layer.Moves), opt.Width, opt.Height, opt.Margin)
		segs, headX, headY, ok := buildSegments(layer.Moves, v, opt.UpTo)
		if ok {
			for _, s := range segs {
				setDrawColor(pdf, opt.Palette.For(s.kind))
				if s.kind == gcode.KindTravel && opt.Palette.TravelDashed {
					pdf.SetDashPattern([]float64{dashOn, dashOff}, 0)
				} else {
					pdf.SetDashPattern(nil, 0)
				}
				pdf.SetLineWidth(0.8)
				pdf.Line(s.x0, s.y0, s.x1, s.y1)
			}
			pdf.SetDashPattern(nil, 0)
			if opt.ShowHead {
				setFillColor(pdf, opt.Palette.Head)
				pdf.Circle(headX, headY, 3, "F")
			}
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(8, 16, fmt.Sprintf("layer %d", layer.Index))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
