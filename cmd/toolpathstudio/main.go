/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"toolpathstudio/internal/backend"
	"toolpathstudio/internal/config"
	"toolpathstudio/internal/crash"
	"toolpathstudio/internal/export"
	"toolpathstudio/internal/gcode"
	applog "toolpathstudio/internal/log"
	"toolpathstudio/internal/palette"
	"toolpathstudio/internal/storage"
	"toolpathstudio/internal/telemetry"
	"toolpathstudio/internal/ui"
	"toolpathstudio/internal/version"
)

func usage() {
	fmt.Println("Toolpath Studio — G-code layer inspector")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  toolpathstudio version|-v|--version          Show version")
	fmt.Println("  toolpathstudio info <file>                   Print file summary (hash, layers, tags)")
	fmt.Println("  toolpathstudio layers <file>                 Print ;LAYER: tags in file order")
	fmt.Println("  toolpathstudio moves <file> <layer> [-json]  Classify one layer's moves")
	fmt.Println("  toolpathstudio bounds <file> <layer>         Print XY bounds of one layer")
	fmt.Println("  toolpathstudio strip <file> [-o <out>]       Save with thumbnail blocks removed")
	fmt.Println("  toolpathstudio export <file> <layer|all> -format png|svg|pdf [-o <out>]")
	fmt.Println("  toolpathstudio push <file>                   Push job summary to the archive")
	fmt.Println("  toolpathstudio serve                         Run the archive server")
	fmt.Println("  toolpathstudio ui [<file>]                   Launch desktop viewer (build with -tags fyne)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var h *storage.DocumentHandle
	defer func() { crash.Recover(h) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Toolpath Studio — G-code layer inspector")
		fmt.Println(version.String())

	case "info":
		h = mustLoad(l, args, 2, "info requires <file>")
		tags := gcode.LayerTags(h.Doc)
		fmt.Println("File:   ", h.Path)
		fmt.Println("SHA256: ", h.Doc.Hash())
		fmt.Println("Layers: ", h.Doc.CountLayers())
		fmt.Println("Tags:   ", len(tags))
		if m, err := storage.ReadManifest(h.Path); err == nil {
			fmt.Println("Saved:  ", m.SavedAt, "by", m.App)
		}

	case "layers":
		h = mustLoad(l, args, 2, "layers requires <file>")
		for _, tag := range gcode.LayerTags(h.Doc) {
			fmt.Println(tag)
		}

	case "moves":
		fs := flag.NewFlagSet("moves", flag.ExitOnError)
		asJSON := fs.Bool("json", false, "emit JSON instead of a table")
		h = mustLoad(l, args, 2, "moves requires <file> and <layer>")
		layer := mustLayer(args, 3, "moves requires <layer>")
		_ = fs.Parse(args[4:])

		moves := classifyWithCache(l, h, layer)
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(moves); err != nil {
				fail(l, "encode moves", err)
			}
			return
		}
		for _, m := range moves {
			ex := " "
			if m.Extruding {
				ex = "E"
			}
			fmt.Printf("%10.3f %10.3f  %s  %s\n", m.X, m.Y, ex, m.Kind)
		}
		fmt.Printf("%d moves\n", len(moves))

	case "bounds":
		h = mustLoad(l, args, 2, "bounds requires <file> and <layer>")
		layer := mustLayer(args, 3, "bounds requires <layer>")
		moves := classifyWithCache(l, h, layer)
		b := gcode.Bounds(moves)
		fmt.Printf("X: %.3f .. %.3f (%.3f mm)\n", b.MinX, b.MaxX, b.Width())
		fmt.Printf("Y: %.3f .. %.3f (%.3f mm)\n", b.MinY, b.MaxY, b.Height())

	case "strip":
		fs := flag.NewFlagSet("strip", flag.ExitOnError)
		out := fs.String("o", "", "write to this path instead of overwriting")
		h = mustLoad(l, args, 2, "strip requires <file>")
		_ = fs.Parse(args[3:])
		var err error
		if *out != "" {
			err = storage.SaveAs(h, *out)
		} else {
			err = storage.Save(h)
		}
		if err != nil {
			fail(l, "strip", err)
		}
		fmt.Println("Wrote", h.Path, "and manifest", storage.ManifestPath(h.Path))
		telemetry.Event("strip", map[string]any{"layers": h.Doc.CountLayers()})

	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		format := fs.String("format", "png", "png, svg or pdf")
		out := fs.String("o", "", "output path")
		h = mustLoad(l, args, 2, "export requires <file> and <layer|all>")
		if len(args) < 4 {
			fmt.Println("export requires <layer|all>")
			usage()
			os.Exit(2)
		}
		_ = fs.Parse(args[4:])
		runExport(l, h, args[3], *format, *out)

	case "push":
		h = mustLoad(l, args, 2, "push requires <file>")
		runPush(l, h)

	case "serve":
		if err := backend.Start(); err != nil {
			fail(l, "serve", err)
		}

	case "ui":
		var path string
		if len(args) >= 3 {
			path = args[2]
		}
		if err := ui.Run(path); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	default:
		usage()
	}
}

func mustLoad(l *slog.Logger, args []string, idx int, msg string) *storage.DocumentHandle {
	if len(args) <= idx {
		fmt.Println(msg)
		usage()
		os.Exit(2)
	}
	abs, _ := filepath.Abs(args[idx])
	h, err := storage.Load(abs)
	if err != nil {
		fail(l, "load", err)
	}
	return h
}

func mustLayer(args []string, idx int, msg string) int {
	if len(args) <= idx {
		fmt.Println(msg)
		usage()
		os.Exit(2)
	}
	layer, err := strconv.Atoi(args[idx])
	if err != nil {
		fmt.Println("invalid layer index:", args[idx])
		os.Exit(2)
	}
	return layer
}

// classifyWithCache consults the on-disk layer cache unless disabled in the
// config. Cache failures fall back to a fresh classification.
func classifyWithCache(l *slog.Logger, h *storage.DocumentHandle, layer int) []gcode.Move {
	cfg, _, err := config.Load()
	if err != nil {
		cfg = config.Defaults()
	}
	var db *sql.DB
	if !cfg.Cache.Disabled {
		if path, err := storage.CachePath(); err == nil {
			if db, err = storage.InitOrOpenCache(path); err != nil {
				l.Warn("layer cache unavailable", slog.Any("err", err))
				db = nil
			} else {
				defer db.Close()
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	moves, err := storage.CachedLayerMoves(ctx, db, h.Doc, layer)
	if err != nil {
		fail(l, "classify", err)
	}
	return moves
}

func runExport(l *slog.Logger, h *storage.DocumentHandle, layerArg, format, out string) {
	cfg, _, err := config.Load()
	if err != nil {
		cfg = config.Defaults()
	}
	pal, err := palette.Load(cfg.Viewer.PaletteFile)
	if err != nil {
		l.Warn("palette load failed, using defaults", slog.Any("err", err))
		pal = palette.Default()
	}
	opt := export.Options{Width: 1024, Height: 1024, Palette: pal, ShowHead: false, UpTo: -1}

	base := h.Path[:len(h.Path)-len(filepath.Ext(h.Path))]
	if layerArg == "all" {
		if format != "pdf" {
			fmt.Println("export all is only supported with -format pdf")
			os.Exit(2)
		}
		n := h.Doc.CountLayers()
		if n == 0 {
			n = 1
		}
		layers := make([]export.Layer, 0, n)
		for i := 0; i < n; i++ {
			moves, err := gcode.LayerMoves(h.Doc, i)
			if err != nil {
				fail(l, "classify", err)
			}
			layers = append(layers, export.Layer{Index: i, Moves: moves})
		}
		if out == "" {
			out = base + ".pdf"
		}
		if err := export.WriteLayersPDF(out, layers, opt); err != nil {
			fail(l, "export", err)
		}
		fmt.Println("Wrote", out)
		telemetry.Event("export", map[string]any{"format": "pdf", "layers": n})
		return
	}

	layer, err := strconv.Atoi(layerArg)
	if err != nil {
		fmt.Println("invalid layer index:", layerArg)
		os.Exit(2)
	}
	moves, err := gcode.LayerMoves(h.Doc, layer)
	if err != nil {
		fail(l, "classify", err)
	}
	opt.Title = fmt.Sprintf("layer %d", layer)
	switch format {
	case "png":
		if out == "" {
			out = fmt.Sprintf("%s-layer-%d.png", base, layer)
		}
		err = export.WriteLayerPNG(out, moves, opt)
	case "svg":
		if out == "" {
			out = fmt.Sprintf("%s-layer-%d.svg", base, layer)
		}
		err = export.WriteLayerSVG(out, moves, opt)
	case "pdf":
		if out == "" {
			out = fmt.Sprintf("%s-layer-%d.pdf", base, layer)
		}
		err = export.WriteLayersPDF(out, []export.Layer{{Index: layer, Moves: moves}}, opt)
	default:
		fmt.Println("unknown format:", format)
		os.Exit(2)
	}
	if err != nil {
		fail(l, "export", err)
	}
	fmt.Println("Wrote", out)
	telemetry.Event("export", map[string]any{"format": format})
}

// runPush classifies every layer, folds the results into a JobSummary and
// uploads it to the configured archive.
func runPush(l *slog.Logger, h *storage.DocumentHandle) {
	cfg, token, err := config.Load()
	if err != nil {
		fail(l, "config", err)
	}

	n := h.Doc.CountLayers()
	if n == 0 {
		n = 1
	}
	counts := map[string]int{}
	var box gcode.BoundingBox
	first := true
	for i := 0; i < n; i++ {
		moves, err := gcode.LayerMoves(h.Doc, i)
		if err != nil {
			fail(l, "classify", err)
		}
		for _, m := range moves {
			counts[m.Kind.String()]++
		}
		b := gcode.Bounds(moves)
		if first {
			box = b
			first = false
			continue
		}
		if b.MinX < box.MinX {
			box.MinX = b.MinX
		}
		if b.MaxX > box.MaxX {
			box.MaxX = b.MaxX
		}
		if b.MinY < box.MinY {
			box.MinY = b.MinY
		}
		if b.MaxY > box.MaxY {
			box.MaxY = b.MaxY
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Archive.TimeoutMs)*time.Millisecond)
	defer cancel()
	c := backend.NewClient(cfg.Archive.BaseURL, token)
	if c.Token == "" {
		if _, err := c.FetchToken(ctx, "cli", time.Hour); err != nil {
			fail(l, "auth", err)
		}
	}
	id, err := c.PushJob(ctx, backend.JobSummary{
		Name:   filepath.Base(h.Path),
		SHA256: h.Doc.Hash(),
		Layers: h.Doc.CountLayers(),
		Counts: counts,
		MinX:   box.MinX, MaxX: box.MaxX, MinY: box.MinY, MaxY: box.MaxY,
	})
	if err != nil {
		fail(l, "push", err)
	}
	fmt.Println("Pushed job", id, "to", cfg.Archive.BaseURL)
	telemetry.Event("push", map[string]any{"layers": h.Doc.CountLayers()})
}

func fail(l *slog.Logger, op string, err error) {
	l.Error(op+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
