/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gcode is the parsing and classification engine for slicer-produced
// G-code. It strips embedded thumbnail blocks, segments a document into
// layers, classifies per-layer motion lines into typed moves, and computes
// layer bounds. Everything operates on an immutable in-memory Document;
// every query is independent and side-effect-free.
package gcode

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Embedded thumbnail blocks emitted by slicers. Both families are removed
// including their delimiter lines before any line indexing happens, since
// layer counting runs over the cleaned text. Matching is non-greedy per
// block and case-sensitive; either family may be absent or repeated.
var (
	reThumbQOI = regexp.MustCompile(`(?s);\s*thumbnail_QOI begin.*?;\s*thumbnail_QOI end[^\n]*\n?`)
	reThumb    = regexp.MustCompile(`(?s);\s*thumbnail begin.*?;\s*thumbnail end[^\n]*\n?`)
)

// StripThumbnails removes every embedded thumbnail block from raw text,
// leaving all other content and line order unchanged. Absence of blocks is
// a no-op.
func StripThumbnails(raw string) string {
	out := reThumbQOI.ReplaceAllString(raw, "")
	out = reThumb.ReplaceAllString(out, "")
	return out
}

// Document is an immutable, thumbnail-stripped G-code text decomposed into
// lines. A new edit produces a new Document; nothing mutates one in place,
// so concurrent layer queries against the same Document are safe.
type Document struct {
	text  string
	lines []string
	hash  string
}

// NewDocument builds a Document from raw slicer output. Thumbnail blocks
// are stripped before the line split so that all line-index-sensitive
// operations see the cleaned text.
func NewDocument(raw string) *Document {
	text := StripThumbnails(raw)
	sum := sha256.Sum256([]byte(text))
	return &Document{
		text:  text,
		lines: splitLines(text),
		hash:  hex.EncodeToString(sum[:]),
	}
}

// Text returns the cleaned document text. Saving this back to disk yields
// content byte-identical to the input except for the removed blocks.
func (d *Document) Text() string { return d.text }

// Lines returns the cleaned document as ordered lines. Callers must not
// modify the returned slice.
func (d *Document) Lines() []string { return d.lines }

// Hash returns the sha256 hex digest of the cleaned text. It serves as the
// Document identity for external caches: an edited document hashes
// differently, so stale cache entries can never be served for it.
func (d *Document) Hash() string { return d.hash }

// CountLayers returns the number of structural layer boundaries in the
// document, i.e. the number of selectable layers.
func (d *Document) CountLayers() int {
	n := 0
	for _, line := range d.lines {
		if strings.HasPrefix(strings.TrimSpace(line), layerChangeMarker) {
			n++
		}
	}
	return n
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
