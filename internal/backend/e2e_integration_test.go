/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TPS_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("TPS_PG_DSN not set; skipping archive integration test")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("cannot open postgres: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("postgres not available: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestE2E_ArchivePushListGet(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := httptest.NewServer(newMux(db, "e2e-secret"))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.FetchToken(ctx, "e2e", time.Hour); err != nil {
		t.Fatalf("FetchToken: %v", err)
	}

	hash := strings.Repeat("0f", 32)
	defer func() { _, _ = db.Exec(`DELETE FROM jobs WHERE sha256 = $1`, hash) }()

	job := JobSummary{
		Name:   "e2e-part.gcode",
		SHA256: hash,
		Layers: 42,
		Counts: map[string]int{"external": 10, "perimeter": 20, "travel": 5, "other": 7},
		MinX:   1.5, MaxX: 40.25, MinY: -3, MaxY: 18,
	}
	id, err := c.PushJob(ctx, job)
	if err != nil {
		t.Fatalf("PushJob: %v", err)
	}

	// Second push with the same hash updates in place.
	job.Layers = 43
	id2, err := c.PushJob(ctx, job)
	if err != nil {
		t.Fatalf("PushJob update: %v", err)
	}
	if id2 != id {
		t.Fatalf("upsert created new row: %d vs %d", id2, id)
	}

	got, err := c.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Layers != 43 || got.SHA256 != hash || got.Counts["perimeter"] != 20 {
		t.Fatalf("job = %+v", got)
	}

	list, err := c.ListJobs(ctx, "e2e-part")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	found := false
	for _, j := range list {
		if j.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("pushed job missing from list: %+v", list)
	}
}
