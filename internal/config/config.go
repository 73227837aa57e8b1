/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user-editable YAML configuration.
// Environment variables are read-only overrides applied on top of the file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	applog "barnacle/internal/log"
	"barnacle/internal/paths"
)

// FileName is the config file name inside the platform config directory.
const FileName = "config.yaml"

// CurrentConfigVersion is bumped when the structure changes in a backward-incompatible way.
const CurrentConfigVersion = 1

//go:embed config.schema.json
var schemaJSON []byte

type GeneralConfig struct {
	// LibraryDir holds one directory per game. Empty means <data dir>/library.
	LibraryDir string `yaml:"library_dir"`
	// StateDir holds data.db and its backups. Empty means the platform state dir.
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentConfigVersion,
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvLibraryDir = "BARNACLE_LIBRARY_DIR"
	EnvStateDir   = "BARNACLE_STATE_DIR"
	EnvLogLevel   = applog.EnvLogLevel
	EnvLogFormat  = applog.EnvLogFormat
	EnvLogSource  = applog.EnvLogSource
	EnvLogFile    = applog.EnvLogFile
)

// envOverrides mirrors the overridable fields. Values are kept as strings so an unset
// variable can be told apart from an explicit "false".
type envOverrides struct {
	LibraryDir string `env:"BARNACLE_LIBRARY_DIR"`
	StateDir   string `env:"BARNACLE_STATE_DIR"`
	LogLevel   string `env:"BARNACLE_LOG_LEVEL"`
	LogFormat  string `env:"BARNACLE_LOG_FORMAT"`
	LogSource  string `env:"BARNACLE_LOG_SOURCE"`
	LogFile    string `env:"BARNACLE_LOG_FILE"`
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file yields defaults; a file that
// fails to parse or does not match the schema is logged and ignored.
func LoadFrom(path string) (AppConfig, error) {
	l := applog.WithOperation(applog.WithComponent("config"), "load")
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if verr := Validate(data); verr != nil {
			l.Warn("ignoring invalid config file", slog.String("path", path), slog.Any("err", verr))
		} else {
			var fileCfg AppConfig
			if err := yaml.Unmarshal(data, &fileCfg); err == nil {
				mergeInto(&cfg, &fileCfg)
			}
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks a YAML document against the embedded JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Save writes the config YAML to the per-user config path.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the config YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LibraryDir returns the effective library directory.
func (c AppConfig) LibraryDir() (string, error) {
	if d := strings.TrimSpace(c.General.LibraryDir); d != "" {
		return d, nil
	}
	data, err := paths.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, "library"), nil
}

// StateDir returns the effective state directory.
func (c AppConfig) StateDir() (string, error) {
	if d := strings.TrimSpace(c.General.StateDir); d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", err
		}
		return d, nil
	}
	return paths.StateDir()
}

// LogOptions converts the logging section for applog.Init.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if s := strings.TrimSpace(src.General.LibraryDir); s != "" {
		dst.General.LibraryDir = s
	}
	if s := strings.TrimSpace(src.General.StateDir); s != "" {
		dst.General.StateDir = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	o, err := env.ParseAs[envOverrides]()
	if err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	if v := strings.TrimSpace(o.LibraryDir); v != "" {
		cfg.General.LibraryDir = v
	}
	if v := strings.TrimSpace(o.StateDir); v != "" {
		cfg.General.StateDir = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.LogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.LogSource); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(o.LogFile); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var name string
	switch key {
	case "general.library_dir":
		name = EnvLibraryDir
	case "general.state_dir":
		name = EnvStateDir
	case "logging.level":
		name = EnvLogLevel
	case "logging.format":
		name = EnvLogFormat
	case "logging.source":
		name = EnvLogSource
	case "logging.file":
		name = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
