/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"gopcrclicker/internal/settings"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// DeviceConfig selects the adb binary and target device.
type DeviceConfig struct {
	ADBPath     string `yaml:"adb_path"`
	Serial      string `yaml:"serial"`
	TapDuration int    `yaml:"tap_duration_ms"`
}

// LibraryConfig points at the local script library. An empty Dir means the default location.
type LibraryConfig struct {
	Dir         string `yaml:"dir"`
	KeepRecords int    `yaml:"keep_records"`
}

type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	General       GeneralConfig     `yaml:"general"`
	Logging       LoggingConfig     `yaml:"logging"`
	Device        DeviceConfig      `yaml:"device"`
	Library       LibraryConfig     `yaml:"library"`
	Backend       BackendConfig     `yaml:"backend"`
	Positions     settings.Settings `yaml:"positions"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Device:        DeviceConfig{ADBPath: "adb", TapDuration: 50},
		Library:       LibraryConfig{KeepRecords: 200},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Positions:     settings.Defaults(),
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "PCR_BACKEND_URL"
	EnvBackendTimeoutMs = "PCR_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "PCR_TLS_INSECURE"
	EnvTelemetryOptIn   = "PCR_TELEMETRY_OPT_IN"
	EnvADBPath          = "PCR_ADB_PATH"
	EnvADBSerial        = "PCR_ADB_SERIAL"
	EnvLibraryDir       = "PCR_LIBRARY_DIR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PCR_LOG_LEVEL"
	EnvLogFormat = "PCR_LOG_FORMAT"
	EnvLogSource = "PCR_LOG_SOURCE"
	EnvLogFile   = "PCR_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoPCRClicker"
	keyringToken   = "backend_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoPCRClicker")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoPCRClicker")
	default: // linux and others
		if os.Getenv("HOME") == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(os.Getenv("HOME"), ".config", "gopcrclicker")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
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
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// SetToken stores the backend bearer token in the keyring.
func SetToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return tokenStore.Set(keyringService, keyringToken, strings.TrimSpace(token))
}

// ClearToken removes the backend bearer token. A missing token is not an error.
func ClearToken() error {
	if err := tokenStore.Delete(keyringService, keyringToken); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// device
	if strings.TrimSpace(src.Device.ADBPath) != "" {
		dst.Device.ADBPath = strings.TrimSpace(src.Device.ADBPath)
	}
	if strings.TrimSpace(src.Device.Serial) != "" {
		dst.Device.Serial = strings.TrimSpace(src.Device.Serial)
	}
	if src.Device.TapDuration > 0 {
		dst.Device.TapDuration = src.Device.TapDuration
	}
	// library
	if strings.TrimSpace(src.Library.Dir) != "" {
		dst.Library.Dir = strings.TrimSpace(src.Library.Dir)
	}
	if src.Library.KeepRecords != 0 {
		dst.Library.KeepRecords = src.Library.KeepRecords
	}
	mergePositions(&dst.Positions, &src.Positions)
}

// mergePositions copies every slot the file set. A zero position counts as unset.
func mergePositions(dst, src *settings.Settings) {
	pick := func(d *settings.Position, s settings.Position) {
		if s != (settings.Position{}) {
			*d = s
		}
	}
	pick(&dst.BlankPosition, src.BlankPosition)
	pick(&dst.MenuPosition, src.MenuPosition)
	pick(&dst.AutoPosition, src.AutoPosition)
	pick(&dst.SpeedPosition, src.SpeedPosition)
	pick(&dst.UB1Position, src.UB1Position)
	pick(&dst.UB2Position, src.UB2Position)
	pick(&dst.UB3Position, src.UB3Position)
	pick(&dst.UB4Position, src.UB4Position)
	pick(&dst.UB5Position, src.UB5Position)
	if len(src.PauseActions) > 0 {
		dst.PauseActions = append([]settings.PauseAction(nil), src.PauseActions...)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvADBPath)); v != "" {
		cfg.Device.ADBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvADBSerial)); v != "" {
		cfg.Device.Serial = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDir)); v != "" {
		cfg.Library.Dir = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"device.adb_path":          EnvADBPath,
	"device.serial":            EnvADBSerial,
	"library.dir":              EnvLibraryDir,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Path resolves the library directory. The default is <config dir>/library.
func (l LibraryConfig) Path() (string, error) {
	if l.Dir != "" {
		return l.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library"), nil
}
