/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config persists user-editable settings to a YAML file in the user
// scope. Environment variables act as read-only overrides at runtime; the
// archive token never touches the file and lives in the OS keychain.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// ViewerConfig holds presentation-layer preferences consumed by the UI and
// the exporters. The palette file maps move kinds to colors; empty means
// built-in defaults.
type ViewerConfig struct {
	PaletteFile  string  `yaml:"palette_file"`
	FrameMargin  float64 `yaml:"frame_margin"` // blank space around layer bounds, percent of canvas
	AnimateDelay int     `yaml:"animate_delay_ms"`
}

// ArchiveConfig points at the optional job archive service.
// Token is not stored on disk; it lives in the OS keychain.
type ArchiveConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// CacheConfig controls the persistent layer-move cache.
type CacheConfig struct {
	Disabled  bool `yaml:"disabled"`
	MaxAgeDay int  `yaml:"max_age_days"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Viewer        ViewerConfig  `yaml:"viewer"`
	Archive       ArchiveConfig `yaml:"archive"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Viewer:        ViewerConfig{FrameMargin: 5, AnimateDelay: 25},
		Archive:       ArchiveConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Cache:         CacheConfig{MaxAgeDay: 30},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvArchiveURL       = "TPS_ARCHIVE_URL"
	EnvArchiveTimeoutMs = "TPS_ARCHIVE_TIMEOUT_MS"
	EnvArchiveTLSInsec  = "TPS_TLS_INSECURE"
	EnvTelemetryOptIn   = "TPS_TELEMETRY_OPT_IN"
	EnvCacheDisabled    = "TPS_CACHE_DISABLED"
	EnvLogLevel         = "TPS_LOG_LEVEL"
	EnvLogFormat        = "TPS_LOG_FORMAT"
	EnvLogFile          = "TPS_LOG_FILE"
)

// Service/key names for the OS keyring.
const (
	keyringService = "ToolpathStudio"
	keyringToken   = "archive_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ToolpathStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ToolpathStudio")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "toolpathstudio")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides. The archive token comes from the keyring and is
// returned separately, never kept inside the struct.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS
// keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		return tokenStore.Set(keyringService, keyringToken, token)
	}
	return nil
}

// ForgetToken removes the archive token from the keyring.
func ForgetToken() error {
	return tokenStore.Delete(keyringService, keyringToken)
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy from the file so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.Cache.Disabled = src.Cache.Disabled
	dst.Archive.TLSInsecure = src.Archive.TLSInsecure

	if strings.TrimSpace(src.Viewer.PaletteFile) != "" {
		dst.Viewer.PaletteFile = strings.TrimSpace(src.Viewer.PaletteFile)
	}
	if src.Viewer.FrameMargin > 0 {
		dst.Viewer.FrameMargin = src.Viewer.FrameMargin
	}
	if src.Viewer.AnimateDelay > 0 {
		dst.Viewer.AnimateDelay = src.Viewer.AnimateDelay
	}
	if src.Archive.BaseURL != "" {
		dst.Archive.BaseURL = src.Archive.BaseURL
	}
	if src.Archive.TimeoutMs != 0 {
		dst.Archive.TimeoutMs = src.Archive.TimeoutMs
	}
	if src.Cache.MaxAgeDay != 0 {
		dst.Cache.MaxAgeDay = src.Cache.MaxAgeDay
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvArchiveURL)); v != "" {
		cfg.Archive.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvArchiveTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Archive.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvArchiveTLSInsec)); v != "" {
		cfg.Archive.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDisabled)); v != "" {
		cfg.Cache.Disabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}
