/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"gopcrclicker/internal/settings"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memStore) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memStore) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config dir at a temp dir and swaps the keyring for an in-memory store.
func isolate(t *testing.T) memStore {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AppData", home)
	for _, env := range envKeys {
		t.Setenv(env, "")
	}
	store := memStore{}
	old := tokenStore
	tokenStore = store
	t.Cleanup(func() { tokenStore = old })
	return store
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected no token, got %q", tok)
	}
	if cfg.Device.ADBPath != "adb" || cfg.Device.TapDuration != 50 {
		t.Fatalf("unexpected device defaults: %#v", cfg.Device)
	}
	if cfg.Positions.MenuPosition != (settings.Position{X: 2250, Y: 40}) {
		t.Fatalf("positions should default to settings.Defaults, got %#v", cfg.Positions.MenuPosition)
	}
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("backend.base_url"); !ok || env != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("device.serial"); ok {
		t.Fatalf("device.serial should not be overridden")
	}
}

func TestEnvOverridesTelemetryAndDevice(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	t.Setenv(EnvADBSerial, "emulator-5554")
	t.Setenv(EnvLibraryDir, "/tmp/pcr-lib")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
	if cfg.Device.Serial != "emulator-5554" {
		t.Fatalf("Device.Serial = %q", cfg.Device.Serial)
	}
	if p, _ := cfg.Library.Path(); p != "/tmp/pcr-lib" {
		t.Fatalf("Library.Path = %q", p)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/pcr.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/pcr.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsUnsetPositions(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.Positions.UB3Position = settings.Position{X: 1, Y: 2}
	mergeInto(&dst, &src)
	if dst.Positions.UB3Position != (settings.Position{X: 1, Y: 2}) {
		t.Fatalf("ub3 not merged: %#v", dst.Positions.UB3Position)
	}
	if dst.Positions.UB1Position != settings.Defaults().UB1Position {
		t.Fatalf("unset ub1 should keep its default, got %#v", dst.Positions.UB1Position)
	}
	if len(dst.Positions.PauseActions) != 2 {
		t.Fatalf("pause actions should keep defaults, got %d", len(dst.Positions.PauseActions))
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/pcr.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/pcr.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveRoundTripAndToken(t *testing.T) {
	store := isolate(t)
	cfg := Defaults()
	cfg.Device.Serial = "R58M123"
	cfg.Positions.SpeedPosition = settings.Position{X: 10, Y: 20}
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, _ := ConfigPath()
	if fi, err := os.Stat(path); err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("config file missing or wrong mode: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "secret" || store[keyringService+"/"+keyringToken] != "secret" {
		t.Fatalf("token not persisted in keyring: %q", tok)
	}
	if got.Device.Serial != "R58M123" || got.Positions.SpeedPosition != (settings.Position{X: 10, Y: 20}) {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken should be a no-op, got %v", err)
	}
	if err := SetToken("  "); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	isolate(t)
	path, _ := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("device: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
