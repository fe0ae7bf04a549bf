/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into a report file, an autosave snapshot and
// a non-zero exit instead of a bare stack trace.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "toolpathstudio/internal/log"
	"toolpathstudio/internal/storage"
	"toolpathstudio/internal/telemetry"
	"toolpathstudio/internal/version"
)

// exitFn lets tests observe Recover without killing the test process.
var exitFn = os.Exit

// Recover captures a panic, logs it with the stack, writes a crash report
// next to the document's backups, snapshots the in-memory document, and
// exits with code 2.
//
// Usage: defer func() { crash.Recover(h) }()
func Recover(h *storage.DocumentHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(h, r, stack)
	if err != nil {
		l.Error("crash report write failed", slog.Any("err", err))
	}
	if h != nil {
		if path, err := storage.AutosaveCrashSnapshot(h); err != nil {
			l.Error("autosave snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave snapshot written", slog.String("path", path))
		}
	}

	fmt.Fprintf(os.Stderr, "A fatal error occurred. Crash report: %s\n", reportPath)
	fmt.Fprintf(os.Stderr, "Version: %s  OS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func writeReport(h *storage.DocumentHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if h != nil && h.Path != "" {
		dir = filepath.Join(filepath.Dir(h.Path), storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Toolpath Studio Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		fmt.Fprintf(&buf, "Document: %s\n", h.Path)
		if h.Doc != nil {
			fmt.Fprintf(&buf, "SHA256: %s\n", h.Doc.Hash())
		}
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\nStack:\n%s\n", panicVal, string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	// crash uploads are opt-in via environment
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
