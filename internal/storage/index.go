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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"toolpathstudio/internal/gcode"
	applog "toolpathstudio/internal/log"
	"toolpathstudio/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	CacheFileName = "layercache.sqlite"

	// schemaVersion tracks the local SQLite schema for the layer cache.
	// Bump on breaking schema changes and add a migration step.
	schemaVersion = 2
)

// CachePath returns the per-user location of the layer cache database.
func CachePath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, "toolpathstudio", CacheFileName), nil
}

// InitOrOpenCache opens (creating if needed) the layer cache database,
// enables WAL mode, and brings the schema up to date. The returned *sql.DB
// is ready for use; callers close it when done.
//
// The cache memoizes LayerMoves results keyed by (document sha256, layer).
// Because the key is a content hash, an edited document misses the cache
// naturally; no explicit invalidation is needed.
func InitOrOpenCache(path string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_init").With(
		slog.String("path", path),
	)
	if path == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create cache dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := ensureCacheSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure cache schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runCacheMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("cache ready")
	return db, nil
}

func ensureCacheSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id         INTEGER PRIMARY KEY CHECK(id=1),
			schema     INTEGER NOT NULL,
			app        TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS layers (
			doc_hash   TEXT    NOT NULL,
			layer      INTEGER NOT NULL,
			moves      BLOB    NOT NULL,
			created_at TEXT    NOT NULL,
			PRIMARY KEY(doc_hash, layer)
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure cache schema: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runCacheMigrations applies incremental schema migrations up to
// schemaVersion.
func runCacheMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Never downgrade.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Index for age-based pruning.
			if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_layers_created ON layers(created_at);`); err != nil {
				return fmt.Errorf("migration %d: %w", next, err)
			}
			if _, err := db.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
		}
		cur = next
	}
	return nil
}

// GetCachedMoves looks up a memoized layer. The second return reports a hit.
func GetCachedMoves(ctx context.Context, db *sql.DB, docHash string, layer int) ([]gcode.Move, bool, error) {
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT moves FROM layers WHERE doc_hash=? AND layer=?`, docHash, layer).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	var moves []gcode.Move
	if err := json.Unmarshal(blob, &moves); err != nil {
		return nil, false, fmt.Errorf("decode cached moves: %w", err)
	}
	return moves, true, nil
}

// PutCachedMoves stores a classified layer, replacing any previous entry.
func PutCachedMoves(ctx context.Context, db *sql.DB, docHash string, layer int, moves []gcode.Move) error {
	blob, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("encode moves: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO layers(doc_hash, layer, moves, created_at) VALUES(?,?,?,?)`,
		docHash, layer, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store moves: %w", err)
	}
	return nil
}

// CachedLayerMoves returns the classified moves for a layer, consulting the
// cache first. Results are identical to a fresh gcode.LayerMoves call; the
// cache is a pure optimization and classification errors are never cached.
func CachedLayerMoves(ctx context.Context, db *sql.DB, doc *gcode.Document, layer int) ([]gcode.Move, error) {
	if db != nil {
		if moves, ok, err := GetCachedMoves(ctx, db, doc.Hash(), layer); err == nil && ok {
			return moves, nil
		}
	}
	moves, err := gcode.LayerMoves(doc, layer)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := PutCachedMoves(ctx, db, doc.Hash(), layer, moves); err != nil {
			applog.WithComponent("storage").Warn("cache store failed", slog.Any("err", err))
		}
	}
	return moves, nil
}

// PruneCache deletes cache entries older than maxAge and reports how many
// rows were removed.
func PruneCache(ctx context.Context, db *sql.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `DELETE FROM layers WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
