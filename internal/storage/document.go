/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"toolpathstudio/internal/gcode"
	"toolpathstudio/internal/version"
)

const (
	// BackupsDirName sits beside the G-code file and receives timestamped
	// copies of whatever Save is about to replace.
	BackupsDirName = "backups"

	// ManifestSuffix is appended to the G-code path for the JSON sidecar.
	ManifestSuffix = ".tpjob.json"
)

// DocumentHandle tracks a G-code document loaded from disk. Doc is
// immutable; Save writes its cleaned text back, so a saved file differs
// from the original only by the removed thumbnail blocks.
type DocumentHandle struct {
	Path string
	Doc  *gcode.Document
}

// Manifest is the sidecar summary written next to a saved document.
type Manifest struct {
	Source  string `json:"source"`
	SHA256  string `json:"sha256"`
	Layers  int    `json:"layers"`
	SavedAt string `json:"savedAt"`
	App     string `json:"app"`
}

// Load reads the G-code file at path and builds the cleaned in-memory
// document. Unreadable input surfaces as a *gcode.IOError.
func Load(path string) (*DocumentHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &gcode.IOError{Op: "read", Path: path, Err: err}
	}
	return &DocumentHandle{Path: path, Doc: gcode.NewDocument(string(raw))}, nil
}

// Save writes the cleaned document text back to its source path with
// transactional semantics: a timestamped backup of the current file, then
// temp file + fsync + rename. The JSON manifest sidecar is refreshed last.
func Save(h *DocumentHandle) error {
	if h == nil || h.Doc == nil {
		return errors.New("nil DocumentHandle")
	}
	if h.Path == "" {
		return errors.New("invalid DocumentHandle: missing path")
	}
	return writeDocument(h, h.Path)
}

// SaveAs writes the document to a new path and updates the handle.
func SaveAs(h *DocumentHandle, newPath string) error {
	if h == nil || h.Doc == nil {
		return errors.New("nil DocumentHandle")
	}
	if strings.TrimSpace(newPath) == "" {
		return errors.New("new path is empty")
	}
	if err := writeDocument(h, newPath); err != nil {
		return err
	}
	h.Path = newPath
	return nil
}

// AutosaveCrashSnapshot writes the in-memory document to the backups
// directory without touching the source file. Used by the crash handler,
// so it must not rely on the normal save path succeeding.
func AutosaveCrashSnapshot(h *DocumentHandle) (string, error) {
	if h == nil || h.Doc == nil {
		return "", errors.New("nil DocumentHandle")
	}
	dir := os.TempDir()
	if h.Path != "" {
		dir = filepath.Join(filepath.Dir(h.Path), BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("ensure backups dir: %w", err)
		}
	}
	base := "document.gcode"
	if h.Path != "" {
		base = filepath.Base(h.Path)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("%s.autosave-%s", base, stamp))
	if err := writeFileSync(path, []byte(h.Doc.Text())); err != nil {
		return "", &gcode.IOError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// ManifestPath returns the sidecar path for a document path.
func ManifestPath(docPath string) string { return docPath + ManifestSuffix }

// ReadManifest loads the sidecar for a document path, if present.
func ReadManifest(docPath string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(ManifestPath(docPath))
	if err != nil {
		return m, &gcode.IOError{Op: "read", Path: ManifestPath(docPath), Err: err}
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func writeDocument(h *DocumentHandle, path string) error {
	data := []byte(h.Doc.Text())

	// Backup whatever we are about to replace.
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if err := copyFile(path, bpath); err != nil {
			return fmt.Errorf("backup current file: %w", err)
		}
	}

	// Transactional write: temp file in the same directory, then rename.
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return &gcode.IOError{Op: "write", Path: path, Err: err}
	}
	// On Windows, rename does not replace; remove the destination first.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return &gcode.IOError{Op: "write", Path: path, Err: err}
	}

	return writeManifest(h, path)
}

func writeManifest(h *DocumentHandle, docPath string) error {
	m := Manifest{
		Source:  filepath.Base(docPath),
		SHA256:  h.Doc.Hash(),
		Layers:  h.Doc.CountLayers(),
		SavedAt: time.Now().UTC().Format(time.RFC3339),
		App:     version.String(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileSync(ManifestPath(docPath), data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst if it exists.
func copyFile(src, dst string) (err error) {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return writeFileSync(dst, b)
}
