/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"toolpathstudio/internal/gcode"
)

func openTestCache(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitOrOpenCache(filepath.Join(t.TempDir(), CacheFileName))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCacheSchemaVersionSeeded(t *testing.T) {
	db := openTestCache(t)
	var schema int
	if err := db.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	db := openTestCache(t)
	ctx := context.Background()
	moves := []gcode.Move{
		{X: 1, Y: 2, Extruding: true, Kind: gcode.KindPerimeter},
		{X: 3, Y: 4, Extruding: false, Kind: gcode.KindTravel},
	}
	if err := PutCachedMoves(ctx, db, "deadbeef", 2, moves); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := GetCachedMoves(ctx, db, "deadbeef", 2)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, moves) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, moves)
	}

	if _, ok, _ := GetCachedMoves(ctx, db, "deadbeef", 3); ok {
		t.Fatalf("unexpected hit for missing layer")
	}
	if _, ok, _ := GetCachedMoves(ctx, db, "otherhash", 2); ok {
		t.Fatalf("unexpected hit for other document")
	}
}

func TestCachedLayerMovesMatchesFreshClassification(t *testing.T) {
	db := openTestCache(t)
	ctx := context.Background()
	doc := gcode.NewDocument(";LAYER_CHANGE\n;TYPE:Perimeter\nG1 X1 Y1 E1\nG0 X2 Y2\n")

	fresh, err := gcode.LayerMoves(doc, 0)
	if err != nil {
		t.Fatalf("fresh: %v", err)
	}
	first, err := CachedLayerMoves(ctx, db, doc, 0) // miss, computes and stores
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := CachedLayerMoves(ctx, db, doc, 0) // hit
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, fresh) || !reflect.DeepEqual(second, fresh) {
		t.Fatalf("cache must be transparent:\nfresh %+v\nfirst %+v\nsecond %+v", fresh, first, second)
	}

	if _, ok, _ := GetCachedMoves(ctx, db, doc.Hash(), 0); !ok {
		t.Fatalf("expected entry after first call")
	}
}

func TestCachedLayerMovesNilDB(t *testing.T) {
	doc := gcode.NewDocument(";LAYER_CHANGE\nG1 X5 Y5\n")
	moves, err := CachedLayerMoves(context.Background(), nil, doc, 0)
	if err != nil {
		t.Fatalf("nil db must fall back to direct classification: %v", err)
	}
	if len(moves) != 1 || moves[0].X != 5 {
		t.Fatalf("unexpected moves: %+v", moves)
	}
}

func TestPruneCache(t *testing.T) {
	db := openTestCache(t)
	ctx := context.Background()
	if err := PutCachedMoves(ctx, db, "aaaa", 0, []gcode.Move{gcode.SentinelMove}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Backdate the entry beyond the cutoff.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	if _, err := db.Exec(`UPDATE layers SET created_at=?`, old); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	n, err := PruneCache(ctx, db, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
	if _, ok, _ := GetCachedMoves(ctx, db, "aaaa", 0); ok {
		t.Fatalf("entry should be gone after prune")
	}
}

func TestCacheReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CacheFileName)
	db, err := InitOrOpenCache(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := PutCachedMoves(ctx, db, "bbbb", 1, []gcode.Move{{X: 1, Y: 1}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = db.Close()

	db2, err := InitOrOpenCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if _, ok, err := GetCachedMoves(ctx, db2, "bbbb", 1); err != nil || !ok {
		t.Fatalf("entry lost across reopen: ok=%v err=%v", ok, err)
	}
}
