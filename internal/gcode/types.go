/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gcode

// MoveKind classifies a single motion segment within a layer.
// The set is closed so consumers can switch exhaustively.

type MoveKind int

const (
	KindOther MoveKind = iota
	KindTravel
	KindPerimeter
	KindExternalPerimeter
)

func (k MoveKind) String() string {
	switch k {
	case KindTravel:
		return "travel"
	case KindPerimeter:
		return "perimeter"
	case KindExternalPerimeter:
		return "external_perimeter"
	default:
		return "other"
	}
}

// Move is one classified motion segment endpoint. X/Y are the resolved
// target coordinates after applying this line (coordinates omitted on the
// line are carried over from earlier lines in the same scan).
type Move struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Extruding bool     `json:"extruding"`
	Kind      MoveKind `json:"kind"`
}

// SentinelMove is substituted when a requested layer yields no qualifying
// motion, so consumers always have a default extruder-head position.
var SentinelMove = Move{X: 0, Y: 0, Extruding: false, Kind: KindOther}

// regionState tracks the active ;TYPE: declaration while scanning a layer.
// It changes only on region comment lines and persists across motion lines.

type regionState int

const (
	regionNone regionState = iota
	regionPerimeter
	regionExternal
)

// BoundingBox is the minimal axis-aligned rectangle enclosing a layer's
// move coordinates. Derived on demand, never persisted.
type BoundingBox struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}
