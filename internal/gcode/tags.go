/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gcode

import (
	"os"
	"strings"
)

// layerTagPrefix marks explicit layer metadata comments. This is a separate
// convention from the structural layerChangeMarker: real files use ;LAYER:
// for metadata and ;LAYER_CHANGE for segmentation, and the two counts need
// not agree.
const layerTagPrefix = ";LAYER:"

// ExtractLayerTags reads the G-code file at path and returns the identifier
// following the first delimiter of every ;LAYER: comment, in encounter
// order. A file without such comments yields an empty result. An unreadable
// source yields an *IOError wrapping the cause.
//
// This is the only extractor that performs its own I/O; the classifier and
// bounds calculator operate on an already-loaded Document.
func ExtractLayerTags(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return LayerTags(NewDocument(string(raw))), nil
}

// LayerTags scans an in-memory Document for ;LAYER: comments.
func LayerTags(doc *Document) []string {
	var tags []string
	for _, line := range doc.Lines() {
		if !strings.HasPrefix(line, layerTagPrefix) {
			continue
		}
		parts := strings.Split(strings.TrimSpace(line), ":")
		// parts[0] is ";LAYER"; the identifier is the token after the
		// first delimiter, even when empty.
		tags = append(tags, parts[1])
	}
	return tags
}
