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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := signToken("s3cret", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	sub, err := verifyToken("s3cret", tok)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if sub != "alice" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	tok, _ := signToken("s3cret", "alice", time.Now().Add(time.Hour))
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatal("token verified with wrong secret")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	tok, _ := signToken("s3cret", "alice", time.Now().Add(-time.Minute))
	if _, err := verifyToken("s3cret", tok); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "abc", "a.b.c", "!!!.???"} {
		if _, err := verifyToken("s3cret", tok); err == nil {
			t.Fatalf("garbage token %q verified", tok)
		}
	}
}

func TestMuxAuthAndHealth(t *testing.T) {
	srv := httptest.NewServer(newMux(nil, "s3cret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/version = %d", resp.StatusCode)
	}

	// Jobs endpoints require a bearer token; rejected before touching the DB.
	resp, err = http.Get(srv.URL + "/api/jobs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /api/jobs = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token /api/jobs = %d, want 401", resp.StatusCode)
	}
}

func TestTokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(newMux(nil, "s3cret"))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/auth/token", "application/json",
		strings.NewReader(`{"subject":"ci","ttl_seconds":60}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token endpoint = %d", resp.StatusCode)
	}
	var body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	sub, err := verifyToken("s3cret", body.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if sub != "ci" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0001_jobs.sql")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("version = %d", v)
	}
	if _, err := parseMigrationVersion("jobs.sql"); err == nil {
		t.Fatal("expected error for unversioned name")
	}
}
