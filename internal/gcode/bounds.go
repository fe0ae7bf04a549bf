/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package gcode

// Bounds computes the 2D bounding box over a layer's move set. Callers pass
// the result of LayerMoves, which is never empty; a single-move set (the
// sentinel included) yields a zero-width, zero-height box.
func Bounds(moves []Move) BoundingBox {
	b := BoundingBox{
		MinX: moves[0].X, MaxX: moves[0].X,
		MinY: moves[0].Y, MaxY: moves[0].Y,
	}
	for _, m := range moves[1:] {
		if m.X < b.MinX {
			b.MinX = m.X
		}
		if m.X > b.MaxX {
			b.MaxX = m.X
		}
		if m.Y < b.MinY {
			b.MinY = m.Y
		}
		if m.Y > b.MaxY {
			b.MaxY = m.Y
		}
	}
	return b
}
