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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeArchive implements the archive API in memory so the client can be
// exercised without Postgres.
func fakeArchive(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	jobs := map[string]JobSummary{}
	nextID := int64(1)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		tok, _ := signToken(secret, "test", time.Now().Add(time.Hour))
		writeJSON(w, http.StatusOK, map[string]any{"token": tok})
	})
	mux.HandleFunc("/api/jobs", withAuth(secret, func(w http.ResponseWriter, r *http.Request, sub string) {
		switch r.Method {
		case http.MethodPost:
			var j JobSummary
			if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if prev, ok := jobs[j.SHA256]; ok {
				j.ID = prev.ID
			} else {
				j.ID = nextID
				nextID++
			}
			jobs[j.SHA256] = j
			writeJSON(w, http.StatusOK, map[string]any{"id": j.ID})
		case http.MethodGet:
			q := strings.ToLower(r.URL.Query().Get("q"))
			var list []JobSummary
			for _, j := range jobs {
				if q == "" || strings.Contains(strings.ToLower(j.Name), q) {
					list = append(list, j)
				}
			}
			writeJSON(w, http.StatusOK, list)
		}
	}))
	return httptest.NewServer(mux)
}

func TestClientPushAndList(t *testing.T) {
	srv := fakeArchive(t, "s3cret")
	defer srv.Close()

	c := NewClient(srv.URL+"/", "")
	if _, err := c.FetchToken(context.Background(), "test", time.Hour); err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if c.Token == "" {
		t.Fatal("token not installed on client")
	}

	job := JobSummary{
		Name:   "benchy.gcode",
		SHA256: strings.Repeat("ab", 32),
		Layers: 120,
		Counts: map[string]int{"perimeter": 900, "travel": 240},
		MinX:   -2, MaxX: 58, MinY: 0, MaxY: 31,
	}
	id, err := c.PushJob(context.Background(), job)
	if err != nil {
		t.Fatalf("PushJob: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	// Same hash upserts instead of creating a second row.
	id2, err := c.PushJob(context.Background(), job)
	if err != nil {
		t.Fatalf("PushJob again: %v", err)
	}
	if id2 != id {
		t.Fatalf("repeat push id = %d, want %d", id2, id)
	}

	list, err := c.ListJobs(context.Background(), "benchy")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list) != 1 || list[0].Name != "benchy.gcode" || list[0].Layers != 120 {
		t.Fatalf("list = %+v", list)
	}
	none, err := c.ListJobs(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("filter should match nothing, got %d", len(none))
	}
}

func TestClientRejectedWithoutToken(t *testing.T) {
	srv := fakeArchive(t, "s3cret")
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.ListJobs(context.Background(), ""); err == nil {
		t.Fatal("expected auth failure without token")
	}
}
