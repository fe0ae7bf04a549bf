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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the archive API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

// NewClient normalizes the base URL and builds a client with a sane
// timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("archive %s %s: %s", method, path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// FetchToken requests a fresh bearer token and installs it on the client.
func (c *Client) FetchToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// PushJob uploads a job summary, returning the server-side id.
func (c *Client) PushJob(ctx context.Context, job JobSummary) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/jobs", job, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// ListJobs fetches archived jobs, optionally filtered by a name substring.
func (c *Client) ListJobs(ctx context.Context, nameFilter string) ([]JobSummary, error) {
	path := "/api/jobs"
	if f := strings.TrimSpace(nameFilter); f != "" {
		path += "?q=" + url.QueryEscape(f)
	}
	var list []JobSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetJob fetches one archived job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (*JobSummary, error) {
	var j JobSummary
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}
