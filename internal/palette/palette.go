/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package palette maps move classifications to display colors. The built-in
// scheme follows common slicer previews; a YAML file can override any entry.
package palette

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"toolpathstudio/internal/gcode"
	applog "toolpathstudio/internal/log"
)

// Palette holds one color per move kind plus the tool-head marker color.
// Travel moves are drawn dashed by renderers; TravelDashed lets a file opt
// back into solid strokes.
type Palette struct {
	External     color.RGBA
	Perimeter    color.RGBA
	Travel       color.RGBA
	Other        color.RGBA
	Head         color.RGBA
	Background   color.RGBA
	TravelDashed bool
}

// Default returns the built-in scheme: external perimeters purple, inner
// perimeters blue, travel green, everything else gray, with a red head
// marker on a white background.
func Default() Palette {
	return Palette{
		External:     color.RGBA{R: 0x80, B: 0x80, A: 0xff},
		Perimeter:    color.RGBA{B: 0xff, A: 0xff},
		Travel:       color.RGBA{G: 0xa0, A: 0xff},
		Other:        color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
		Head:         color.RGBA{R: 0xff, A: 0xff},
		Background:   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		TravelDashed: true,
	}
}

// For returns the stroke color for a move kind.
func (p Palette) For(kind gcode.MoveKind) color.RGBA {
	switch kind {
	case gcode.KindExternalPerimeter:
		return p.External
	case gcode.KindPerimeter:
		return p.Perimeter
	case gcode.KindTravel:
		return p.Travel
	default:
		return p.Other
	}
}

// paletteFile is the YAML shape; every field is optional and falls back to
// the default scheme.
type paletteFile struct {
	External     string `yaml:"external,omitempty"`
	Perimeter    string `yaml:"perimeter,omitempty"`
	Travel       string `yaml:"travel,omitempty"`
	Other        string `yaml:"other,omitempty"`
	Head         string `yaml:"head,omitempty"`
	Background   string `yaml:"background,omitempty"`
	TravelDashed *bool  `yaml:"travelDashed,omitempty"`
}

// Load reads a YAML palette file and merges it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Palette, error) {
	p := Default()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	l := applog.WithOperation(applog.WithComponent("palette"), "load").With(slog.String("path", path))
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read palette: %w", err)
	}
	var pf paletteFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return p, fmt.Errorf("parse palette: %w", err)
	}
	if err := mergeFile(&p, pf); err != nil {
		return p, err
	}
	l.Info("palette loaded")
	return p, nil
}

func mergeFile(p *Palette, pf paletteFile) error {
	for _, f := range []struct {
		name string
		raw  string
		dst  *color.RGBA
	}{
		{"external", pf.External, &p.External},
		{"perimeter", pf.Perimeter, &p.Perimeter},
		{"travel", pf.Travel, &p.Travel},
		{"other", pf.Other, &p.Other},
		{"head", pf.Head, &p.Head},
		{"background", pf.Background, &p.Background},
	} {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		c, err := ParseHex(f.raw)
		if err != nil {
			return fmt.Errorf("palette field %s: %w", f.name, err)
		}
		*f.dst = c
	}
	if pf.TravelDashed != nil {
		p.TravelDashed = *pf.TravelDashed
	}
	return nil
}

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa" (leading # optional).
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var c color.RGBA
	c.A = 0xff
	switch len(s) {
	case 3:
		var r, g, b uint8
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return c, fmt.Errorf("invalid hex color %q", s)
		}
		c.R, c.G, c.B = r*0x11, g*0x11, b*0x11
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
			return c, fmt.Errorf("invalid hex color %q", s)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
			return c, fmt.Errorf("invalid hex color %q", s)
		}
	default:
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	return c, nil
}
