/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package gcode

import "testing"

func TestBoundsOverMoves(t *testing.T) {
	moves := []Move{
		{X: 0, Y: 0},
		{X: 10, Y: 5},
		{X: -2, Y: 7},
	}
	b := Bounds(moves)
	if b.MinX != -2 || b.MaxX != 10 || b.MinY != 0 || b.MaxY != 7 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if b.Width() != 12 || b.Height() != 7 {
		t.Fatalf("unexpected extents: w=%v h=%v", b.Width(), b.Height())
	}
	if cx, cy := b.Center(); cx != 4 || cy != 3.5 {
		t.Fatalf("unexpected center: %v,%v", cx, cy)
	}
}

func TestBoundsSingleMoveDegenerate(t *testing.T) {
	b := Bounds([]Move{SentinelMove})
	if b.MinX != b.MaxX || b.MinY != b.MaxY {
		t.Fatalf("single move must yield a zero-extent box: %+v", b)
	}
	if b.Width() != 0 || b.Height() != 0 {
		t.Fatalf("expected zero extents, got w=%v h=%v", b.Width(), b.Height())
	}
}
