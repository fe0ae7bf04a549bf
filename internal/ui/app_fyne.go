//go:build fyne && cgo

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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"toolpathstudio/internal/cache"
	"toolpathstudio/internal/config"
	"toolpathstudio/internal/crash"
	"toolpathstudio/internal/export"
	"toolpathstudio/internal/gcode"
	applog "toolpathstudio/internal/log"
	"toolpathstudio/internal/palette"
	"toolpathstudio/internal/storage"
	"toolpathstudio/internal/version"
)

const animateStep = 8 // moves revealed per animation tick

// Run starts the Fyne-based layer viewer, optionally opening a G-code file
// right away.
func Run(gcodePath string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting viewer")

	var h *storage.DocumentHandle
	defer func() { crash.Recover(h) }()

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	pal, err := palette.Load(cfg.Viewer.PaletteFile)
	if err != nil {
		l.Warn("palette load failed, using defaults", slog.Any("err", err))
		pal = palette.Default()
	}
	moveCache := cache.New(cache.Config{MaxPerDoc: 64})

	fyneApp := app.NewWithID("toolpathstudio")
	w := fyneApp.NewWindow("Toolpath Studio")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 700 {
		winW = 700
	}
	if winH < 500 {
		winH = 500
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Open a G-code file to begin")
	pathCanvas := container.NewWithoutLayout()
	canvasWrap := container.NewStack(canvas.NewRectangle(pal.Background), pathCanvas)

	currentLayer := 0
	var currentMoves []gcode.Move
	shown := -1 // -1 draws everything

	redraw := func() {
		size := canvasWrap.Size()
		objs := layerObjects(currentMoves, pal, size.Width, size.Height, float32(cfg.Viewer.FrameMargin)/100, shown)
		pathCanvas.Objects = objs
		pathCanvas.Refresh()
	}

	layersFor := func(layer int) ([]gcode.Move, error) {
		if h == nil || h.Doc == nil {
			return nil, fmt.Errorf("no file open")
		}
		if ms, ok := moveCache.Get(h.Doc.Hash(), layer); ok {
			return ms, nil
		}
		ms, err := gcode.LayerMoves(h.Doc, layer)
		if err != nil {
			return nil, err
		}
		moveCache.Put(h.Doc.Hash(), layer, ms)
		return ms, nil
	}

	layerCount := func() int {
		if h == nil || h.Doc == nil {
			return 0
		}
		n := h.Doc.CountLayers()
		if n == 0 {
			n = 1
		}
		return n
	}

	layerList := widget.NewList(
		func() int { return layerCount() },
		func() fyne.CanvasObject { return widget.NewLabel("layer 0000") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(fmt.Sprintf("layer %d", i))
		},
	)

	progress := widget.NewSlider(0, 1)
	progress.Step = 1

	showLayer := func(layer int) {
		ms, err := layersFor(layer)
		if err != nil {
			var perr *gcode.ParseError
			if ok := asParseError(err, &perr); ok {
				status.SetText(fmt.Sprintf("parse error at line %d: bad %c value %q", perr.Line, perr.Field, perr.Token))
			} else {
				status.SetText(err.Error())
			}
			return
		}
		currentLayer = layer
		currentMoves = ms
		shown = -1
		progress.Max = float64(len(ms))
		progress.SetValue(float64(len(ms)))
		b := gcode.Bounds(ms)
		status.SetText(fmt.Sprintf("layer %d  moves %d  bounds %.1f x %.1f mm", layer, len(ms), b.Width(), b.Height()))
		redraw()
	}

	layerList.OnSelected = func(id widget.ListItemID) { showLayer(int(id)) }

	progress.OnChanged = func(v float64) {
		shown = int(v)
		redraw()
	}

	// animating is read from the ticker goroutine while the main thread
	// flips it, so it must be atomic.
	var animating atomic.Bool
	playBtn := widget.NewButton("Play", nil)
	playBtn.OnTapped = func() {
		if animating.Load() {
			animating.Store(false)
			playBtn.SetText("Play")
			return
		}
		if len(currentMoves) == 0 {
			return
		}
		animating.Store(true)
		playBtn.SetText("Pause")
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Viewer.AnimateDelay) * time.Millisecond)
			defer ticker.Stop()
			step := 0
			for range ticker.C {
				if !animating.Load() {
					return
				}
				step += animateStep
				done := step >= len(currentMoves)
				if done {
					step = len(currentMoves)
				}
				fyne.Do(func() {
					progress.SetValue(float64(step))
					if done {
						animating.Store(false)
						playBtn.SetText("Play")
					}
				})
				if done {
					return
				}
			}
		}()
	}

	openFile := func(path string) {
		nh, err := storage.Load(path)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if h != nil && h.Doc != nil {
			moveCache.InvalidateDoc(h.Doc.Hash())
		}
		h = nh
		w.SetTitle("Toolpath Studio - " + filepath.Base(path))
		layerList.Refresh()
		layerList.Select(0)
		l.Info("file opened", slog.String("path", path), slog.Int("layers", h.Doc.CountLayers()))
	}

	openBtn := widget.NewButton("Open", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			openFile(path)
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".gcode", ".gco", ".g"}))
		fd.Show()
	})

	saveBtn := widget.NewButton("Save cleaned", func() {
		if h == nil {
			return
		}
		if err := storage.Save(h); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("saved cleaned file and manifest")
	})

	exportBtn := widget.NewButton("Export PNG", func() {
		if h == nil || len(currentMoves) == 0 {
			return
		}
		fd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				return
			}
			path := wc.URI().Path()
			_ = wc.Close()
			opt := export.Options{
				Width: 1024, Height: 1024,
				Palette:  pal,
				ShowHead: true,
				UpTo:     shown,
				Title:    fmt.Sprintf("layer %d", currentLayer),
			}
			if err := export.WriteLayerPNG(path, currentMoves, opt); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("exported " + filepath.Base(path))
		}, w)
		fd.SetFileName(fmt.Sprintf("layer-%d.png", currentLayer))
		fd.Show()
	})

	// F11 toggles fullscreen, like most viewers.
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyF11}, func(fyne.Shortcut) {
		w.SetFullScreen(!w.FullScreen())
	})

	toolbar := container.NewHBox(openBtn, saveBtn, exportBtn, playBtn,
		widget.NewLabel(version.String()))
	bottom := container.NewBorder(nil, nil, nil, nil, progress)
	content := container.NewBorder(toolbar, container.NewVBox(bottom, status), layerList, nil, canvasWrap)
	w.SetContent(content)

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	if gcodePath != "" {
		openFile(gcodePath)
	}

	w.ShowAndRun()
	return nil
}
