/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"framepass/internal/dispatch"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

// DispatchConfig drives the frame driver.
type DispatchConfig struct {
	// Passes run on every frame, in this order. Canonical names or raw integers.
	Passes    []string `yaml:"passes"`
	Finished  string   `yaml:"finished"` // "continue" | "skip_subpass"
	Force     string   `yaml:"force"`    // "none" | "one" | "all"
	Recursive *bool    `yaml:"recursive,omitempty"`
}

type TraceConfig struct {
	Dir        string `yaml:"dir"`
	MaxBytes   int    `yaml:"max_bytes"`
	MaxPerRoot int    `yaml:"max_per_root"`
	CoalesceMs int    `yaml:"coalesce_ms"`
	// PostgresDSN has no password; it lives in the OS keychain.
	PostgresDSN string `yaml:"postgres_dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Trace         TraceConfig    `yaml:"trace"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Dispatch: DispatchConfig{
			Passes:    []string{"normal", "late", "post"},
			Finished:  "continue",
			Force:     "none",
		},
		Trace:   TraceConfig{Dir: "", MaxBytes: 4 * 1024 * 1024, MaxPerRoot: 64, CoalesceMs: 0},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "FP_CONFIG"
	EnvTelemetryOptIn = "FP_TELEMETRY_OPT_IN"
	EnvPasses         = "FP_PASSES"
	EnvFinished       = "FP_FINISHED"
	EnvForce          = "FP_FORCE"
	EnvTraceDir       = "FP_TRACE_DIR"
	EnvPostgresDSN    = "FP_PG_DSN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "FP_LOG_LEVEL"
	EnvLogFormat = "FP_LOG_FORMAT"
	EnvLogSource = "FP_LOG_SOURCE"
	EnvLogFile   = "FP_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService  = "framepass"
	keyringPassword = "postgres_password"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// ConfigPath returns the per-user config file path. FP_CONFIG overrides it.
func ConfigPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigFile)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "framepass")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "framepass")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "framepass")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "framepass")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The Postgres password is read from the keyring and returned separately.
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
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	secret, _ := tokenStore.Get(keyringService, keyringPassword)
	return cfg, secret, nil
}

// Save writes the user config YAML and persists the Postgres password into the OS keyring (if non-empty).
func Save(cfg AppConfig, secret string) error {
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
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, secret); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the dispatch section; unknown names are reported rather than ignored.
func (c AppConfig) Validate() error {
	if _, err := c.Dispatch.PassList(); err != nil {
		return err
	}
	if _, err := c.Dispatch.FinishedPolicy(); err != nil {
		return err
	}
	if _, err := c.Dispatch.ForceLevel(); err != nil {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	// dispatch
	if len(src.Dispatch.Passes) > 0 {
		dst.Dispatch.Passes = append([]string(nil), src.Dispatch.Passes...)
	}
	if s := strings.TrimSpace(src.Dispatch.Finished); s != "" {
		dst.Dispatch.Finished = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Dispatch.Force); s != "" {
		dst.Dispatch.Force = strings.ToLower(s)
	}
	if src.Dispatch.Recursive != nil {
		r := *src.Dispatch.Recursive
		dst.Dispatch.Recursive = &r
	}
	// trace
	if s := strings.TrimSpace(src.Trace.Dir); s != "" {
		dst.Trace.Dir = s
	}
	if src.Trace.MaxBytes != 0 {
		dst.Trace.MaxBytes = src.Trace.MaxBytes
	}
	if src.Trace.MaxPerRoot != 0 {
		dst.Trace.MaxPerRoot = src.Trace.MaxPerRoot
	}
	if src.Trace.CoalesceMs != 0 {
		dst.Trace.CoalesceMs = src.Trace.CoalesceMs
	}
	if s := strings.TrimSpace(src.Trace.PostgresDSN); s != "" {
		dst.Trace.PostgresDSN = s
	}
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
}

func truthy(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPasses)); v != "" {
		var passes []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				passes = append(passes, p)
			}
		}
		cfg.Dispatch.Passes = passes
	}
	if v := strings.TrimSpace(os.Getenv(EnvFinished)); v != "" {
		cfg.Dispatch.Finished = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvForce)); v != "" {
		cfg.Dispatch.Force = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTraceDir)); v != "" {
		cfg.Trace.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Trace.PostgresDSN = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"dispatch.passes":          EnvPasses,
		"dispatch.finished":        EnvFinished,
		"dispatch.force":           EnvForce,
		"trace.dir":                EnvTraceDir,
		"trace.postgres_dsn":       EnvPostgresDSN,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// PassList parses the configured passes in run order.
func (d DispatchConfig) PassList() ([]dispatch.Pass, error) {
	out := make([]dispatch.Pass, 0, len(d.Passes))
	for _, s := range d.Passes {
		p, ok := dispatch.ParsePass(s)
		if !ok {
			return nil, fmt.Errorf("config: unknown pass %q", s)
		}
		out = append(out, p)
	}
	return out, nil
}

// IsRecursive reports whether events descend into children. Unset means true.
func (d DispatchConfig) IsRecursive() bool { return d.Recursive == nil || *d.Recursive }

// FinishedPolicy maps the finished setting to the dispatch policy.
func (d DispatchConfig) FinishedPolicy() (dispatch.FinishedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(d.Finished)) {
	case "", "continue":
		return dispatch.FinishedContinue, nil
	case "skip_subpass":
		return dispatch.FinishedSkipSubpass, nil
	default:
		return 0, fmt.Errorf("config: unknown finished policy %q", d.Finished)
	}
}

// ForceLevel maps the force setting to the dispatch force level.
func (d DispatchConfig) ForceLevel() (dispatch.Force, error) {
	switch strings.ToLower(strings.TrimSpace(d.Force)) {
	case "", "none":
		return dispatch.ForceNone, nil
	case "one":
		return dispatch.ForceOne, nil
	case "all":
		return dispatch.ForceAll, nil
	default:
		return 0, fmt.Errorf("config: unknown force level %q", d.Force)
	}
}

// Coalesce returns the trace coalescing window.
func (t TraceConfig) Coalesce() time.Duration {
	return time.Duration(t.CoalesceMs) * time.Millisecond
}

// ResolveDir returns the trace directory, defaulting to a folder next to the config file.
func (t TraceConfig) ResolveDir() (string, error) {
	if t.Dir != "" {
		return t.Dir, nil
	}
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "traces"), nil
}

// PostgresURL returns the DSN with the keyring password applied. Empty when no DSN is configured.
func (t TraceConfig) PostgresURL(password string) (string, error) {
	if t.PostgresDSN == "" {
		return "", nil
	}
	u, err := url.Parse(t.PostgresDSN)
	if err != nil {
		return "", fmt.Errorf("config: postgres dsn: %w", err)
	}
	if password != "" && u.User != nil {
		u.User = url.UserPassword(u.User.Username(), password)
	}
	return u.String(), nil
}
