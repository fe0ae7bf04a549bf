/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry is an opt-in, best-effort sender for anonymous usage
// events and crash uploads. Disabled by default; with no endpoint
// configured every call is a no-op even when opted in.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "toolpathstudio/internal/log"
	"toolpathstudio/internal/version"
)

const queueSize = 128

// Config holds telemetry endpoints and behavior.
//
// Environment variables (read by FromEnv):
//   - TPS_TELEMETRY_OPT_IN: "1", "true", "yes", "on" to enable
//   - TPS_TELEMETRY_URL: endpoint for JSON usage events
//   - TPS_CRASH_UPLOAD_URL: endpoint for plain-text crash reports
//   - TPS_TELEMETRY_TIMEOUT_MS: request timeout, default 2000
//   - TPS_TELEMETRY_DEBUG: log every send attempt when set
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("TPS_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("TPS_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("TPS_CRASH_UPLOAD_URL")),
		Timeout:      2 * time.Second,
		DebugLogging: os.Getenv("TPS_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("TPS_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if d, err := time.ParseDuration(ms + "ms"); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Client sends events from a bounded queue on a background goroutine.
// Events are dropped silently when the queue is full or a send fails;
// telemetry must never block or fail the caller.
type Client struct {
	cfg    Config
	log    *slog.Logger
	http   *http.Client
	queue  chan map[string]any
	once   sync.Once
	closed chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault sets up the package-level client from the environment on
// first use.
func InitDefault() {
	defaultOnce.Do(func() { NewDefault(FromEnv()) })
}

// NewDefault installs cfg as the package-level client.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		http:   &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan map[string]any, queueSize),
		closed: make(chan struct{}),
	}
	go c.run()
	return c
}

// Enabled reports whether usage events would actually be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports the default client's state.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event queues a usage event. Props must not contain personal data.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"event": name,
		"at":    time.Now().UTC().Format(time.RFC3339Nano),
		"app":   "toolpathstudio",
		"ver":   version.String(),
		"os":    runtime.GOOS,
		"arch":  runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case c.queue <- payload:
	default:
		// queue full, drop
	}
}

// Event queues a usage event on the default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Flush waits briefly for the queue to drain before shutdown.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.queue) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the background sender.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) run() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.queue:
			c.post(payload)
		}
	}
}

func (c *Client) post(payload map[string]any) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, c.cfg.EventsURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("event send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("event sent", slog.String("url", c.cfg.EventsURL))
	}
}

// UploadCrash posts a serialized crash report in the background. Requires
// opt-in and a configured crash endpoint.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go func(b []byte) {
		req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := c.http.Do(req)
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
	}(append([]byte(nil), report...))
}

// UploadCrash posts a crash report via the default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
