/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gcode

import (
	"strconv"
	"strings"
)

const (
	// layerChangeMarker is the structural layer boundary comment. Counting
	// these markers assigns layer indices, starting at -1 before the first.
	layerChangeMarker = ";LAYER_CHANGE"

	typePrefix          = ";TYPE:"
	typeExternalPrefix  = ";TYPE:External perimeter"
	typePerimeterPrefix = ";TYPE:Perimeter"
)

// fieldSet holds the optional X/Y/E fields extracted from a single motion
// line. Each field may be absent independently.
type fieldSet struct {
	x, y, e          float64
	hasX, hasY, hasE bool
}

// LayerMoves classifies the motion lines belonging to layer index L into an
// ordered, never-empty move set.
//
// The scan runs forward over all lines from the top on every call; state
// (current layer, region, carried position, extrusion baseline) is reset at
// the start of each query, never carried over from a previous one. For a
// fixed Document and layer the result is therefore a pure deterministic
// function of its inputs. The cost is O(document length) per query; callers
// issuing many queries should memoize externally, keyed by
// (Document.Hash(), layer).
//
// A layer index beyond the last boundary marker is not an error: it yields
// the sentinel set, as does any layer without a fully resolved motion line.
// A malformed numeric after an X/Y/E field marker aborts the whole query
// with a *ParseError; no partial result is returned.
func LayerMoves(doc *Document, layer int) ([]Move, error) {
	if layer < 0 {
		return []Move{SentinelMove}, nil
	}
	currentLayer := -1
	region := regionNone
	var posX, posY float64
	var havePos bool // X and Y both resolved at least once
	var haveX, haveY bool
	var lastE float64
	var haveLastE bool

	var moves []Move

	for i, line := range doc.Lines() {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, layerChangeMarker) {
			currentLayer++
		}
		if currentLayer < layer {
			// Boundary detection above still ran, so counting stays
			// correct while skipping toward the target.
			continue
		}
		if currentLayer > layer {
			// Nothing after the next boundary can belong to the target.
			break
		}

		// Region declarations are the only thing that mutates region
		// state; it persists across motion lines until the next one.
		if strings.HasPrefix(trimmed, typePrefix) {
			switch {
			case strings.HasPrefix(trimmed, typeExternalPrefix):
				region = regionExternal
			case strings.HasPrefix(trimmed, typePerimeterPrefix):
				region = regionPerimeter
			default:
				region = regionNone
			}
			continue
		}

		// Motion commands are recognized only at the start of the raw line;
		// an indented G0/G1 is not a motion line.
		fields := strings.Fields(line)
		if len(fields) == 0 || (fields[0] != "G0" && fields[0] != "G1") || !strings.HasPrefix(line, fields[0]) {
			continue
		}
		fs, err := parseMotionFields(fields[1:], i+1)
		if err != nil {
			return nil, err
		}

		if fs.hasX {
			posX = fs.x
			haveX = true
		}
		if fs.hasY {
			posY = fs.y
			haveY = true
		}
		havePos = haveX && haveY

		// A move extrudes when this line carries an E value that is
		// strictly above the baseline, or when no baseline exists yet.
		// Any observed E (including a retraction) becomes the new
		// baseline without itself marking extrusion.
		extruding := fs.hasE && (!haveLastE || fs.e > lastE)
		if fs.hasE {
			lastE = fs.e
			haveLastE = true
		}

		if !havePos {
			// Position unresolved; the line cannot be emitted, but its
			// E observation above still advanced the baseline.
			continue
		}
		moves = append(moves, Move{X: posX, Y: posY, Extruding: extruding, Kind: classifyKind(extruding, region)})
	}

	if len(moves) == 0 {
		return []Move{SentinelMove}, nil
	}
	return moves, nil
}

// classifyKind resolves the move kind from extrusion state and the active
// region. Region state is ignored for non-extruding moves.
func classifyKind(extruding bool, region regionState) MoveKind {
	if !extruding {
		return KindTravel
	}
	switch region {
	case regionExternal:
		return KindExternalPerimeter
	case regionPerimeter:
		return KindPerimeter
	default:
		return KindOther
	}
}

// parseMotionFields extracts the optional X/Y/E fields from the tokens
// following a G0/G1 command. Fields are a single letter immediately
// followed by a float literal; anything else (F, Z, comments) is ignored.
func parseMotionFields(tokens []string, lineNo int) (fieldSet, error) {
	var fs fieldSet
	for _, tok := range tokens {
		if len(tok) < 1 {
			continue
		}
		switch tok[0] {
		case 'X':
			v, err := strconv.ParseFloat(tok[1:], 64)
			if err != nil {
				return fieldSet{}, &ParseError{Line: lineNo, Field: 'X', Token: tok, Err: err}
			}
			fs.x, fs.hasX = v, true
		case 'Y':
			v, err := strconv.ParseFloat(tok[1:], 64)
			if err != nil {
				return fieldSet{}, &ParseError{Line: lineNo, Field: 'Y', Token: tok, Err: err}
			}
			fs.y, fs.hasY = v, true
		case 'E':
			v, err := strconv.ParseFloat(tok[1:], 64)
			if err != nil {
				return fieldSet{}, &ParseError{Line: lineNo, Field: 'E', Token: tok, Err: err}
			}
			fs.e, fs.hasE = v, true
		}
	}
	return fs, nil
}
