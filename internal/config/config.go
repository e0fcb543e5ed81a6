/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user config
// directory, overridden at runtime by GFN_* environment variables. The Postgres
// password is never written to the file; it lives in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is written as config_version by Save.
const CurrentVersion = 1

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNoDSN is returned when the postgres driver is selected without a DSN.
var ErrNoDSN = errors.New("config: postgres driver selected but no dsn configured")

type GeneralConfig struct {
	HideNotes bool   `yaml:"hide_notes"`
	Format    string `yaml:"format"` // default output of "parse": text | json | html
}

type LibraryConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // sqlite directory; empty means the default data dir
	DSN    string `yaml:"dsn"`  // postgres; the password comes from the keyring
	// SnapshotKeep bounds the history kept per script; 0 keeps everything.
	SnapshotKeep int `yaml:"snapshot_keep"`
}

type ExportConfig struct {
	PageSize     string  `yaml:"page_size"` // Letter | A4 | Legal
	FontFamily   string  `yaml:"font_family"`
	FontSize     float64 `yaml:"font_size"`
	SceneNumbers bool    `yaml:"scene_numbers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
	Color  bool   `yaml:"color"`
}

type Config struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Library       LibraryConfig `yaml:"library"`
	Export        ExportConfig  `yaml:"export"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Format: "text"},
		Library:       LibraryConfig{Driver: DriverSQLite, SnapshotKeep: 50},
		Export:        ExportConfig{PageSize: "Letter", FontFamily: "Courier", FontSize: 12, SceneNumbers: true},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// EnvConfigFile points Load and Save at an explicit file.
const EnvConfigFile = "GFN_CONFIG"

// Path returns the per-user config file path.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultLibraryDir is where the sqlite library lives when library.path is empty.
func DefaultLibraryDir() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library"), nil
}

func appDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "GoFountain"), nil
	case "darwin":
		base = os.Getenv("HOME")
		if base == "" {
			return "", errors.New("config: HOME not set")
		}
		return filepath.Join(base, "Library", "Application Support", "GoFountain"), nil
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home := os.Getenv("HOME")
			if home == "" {
				return "", errors.New("config: HOME not set")
			}
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "gofountain"), nil
	}
}

// Load reads the config file if present, merges it over the defaults and applies
// environment overrides. The second value is the Postgres password from the keyring
// (empty when none is stored). A malformed file is an error.
func Load() (Config, string, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// keys missing from the file keep their defaults
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("config: parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("config: read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	secret, _ := tokenStore.Get(keyringService, keyringPassword)
	return cfg, secret, nil
}

// Save writes the YAML file and stores secret in the keyring when non-empty.
func Save(cfg Config, secret string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, secret); err != nil {
			return fmt.Errorf("config: store password: %w", err)
		}
	}
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c Config) Validate() error {
	switch c.Library.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown library driver %q", c.Library.Driver)
	}
	if c.Library.SnapshotKeep < 0 {
		return fmt.Errorf("config: snapshot_keep must be >= 0, got %d", c.Library.SnapshotKeep)
	}
	switch strings.ToLower(c.Export.PageSize) {
	case "letter", "a4", "legal":
	default:
		return fmt.Errorf("config: unknown page size %q", c.Export.PageSize)
	}
	if c.Export.FontSize <= 0 {
		return fmt.Errorf("config: font_size must be positive, got %v", c.Export.FontSize)
	}
	switch c.General.Format {
	case "text", "json", "html":
	default:
		return fmt.Errorf("config: unknown output format %q", c.General.Format)
	}
	return nil
}

// PostgresDSN returns the DSN with secret filled in as the password when the DSN
// carries none.
func (l LibraryConfig) PostgresDSN(secret string) (string, error) {
	dsn := strings.TrimSpace(l.DSN)
	if dsn == "" {
		return "", ErrNoDSN
	}
	if secret == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("config: parse dsn: %w", err)
		}
		if u.User == nil {
			return dsn, nil
		}
		if _, has := u.User.Password(); has {
			return dsn, nil
		}
		u.User = url.UserPassword(u.User.Username(), secret)
		return u.String(), nil
	}
	if strings.Contains(dsn, "password=") {
		return dsn, nil
	}
	return dsn + " password=" + quoteKV(secret), nil
}

func quoteKV(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func mergeInto(dst, src *Config) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.HideNotes = src.General.HideNotes
	if v := strings.ToLower(strings.TrimSpace(src.General.Format)); v != "" {
		dst.General.Format = v
	}

	if v := strings.ToLower(strings.TrimSpace(src.Library.Driver)); v != "" {
		dst.Library.Driver = v
	}
	if v := strings.TrimSpace(src.Library.Path); v != "" {
		dst.Library.Path = v
	}
	if v := strings.TrimSpace(src.Library.DSN); v != "" {
		dst.Library.DSN = v
	}
	if src.Library.SnapshotKeep != 0 {
		dst.Library.SnapshotKeep = src.Library.SnapshotKeep
	}

	if v := strings.TrimSpace(src.Export.PageSize); v != "" {
		dst.Export.PageSize = v
	}
	if v := strings.TrimSpace(src.Export.FontFamily); v != "" {
		dst.Export.FontFamily = v
	}
	if src.Export.FontSize != 0 {
		dst.Export.FontSize = src.Export.FontSize
	}
	dst.Export.SceneNumbers = src.Export.SceneNumbers

	if v := strings.ToLower(strings.TrimSpace(src.Logging.Level)); v != "" {
		dst.Logging.Level = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Format)); v != "" {
		dst.Logging.Format = v
	}
	dst.Logging.Source = src.Logging.Source
	dst.Logging.Color = src.Logging.Color
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// envBinding ties a config key to the environment variable overriding it.
type envBinding struct {
	key   string
	env   string
	apply func(c *Config, v string)
}

var envBindings = []envBinding{
	{"general.hide_notes", "GFN_HIDE_NOTES", func(c *Config, v string) { c.General.HideNotes = parseBool(v) }},
	{"general.format", "GFN_FORMAT", func(c *Config, v string) { c.General.Format = strings.ToLower(v) }},
	{"library.driver", "GFN_LIBRARY_DRIVER", func(c *Config, v string) { c.Library.Driver = strings.ToLower(v) }},
	{"library.path", "GFN_LIBRARY_PATH", func(c *Config, v string) { c.Library.Path = v }},
	{"library.dsn", "GFN_LIBRARY_DSN", func(c *Config, v string) { c.Library.DSN = v }},
	{"library.snapshot_keep", "GFN_SNAPSHOT_KEEP", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Library.SnapshotKeep = n
		}
	}},
	{"export.page_size", "GFN_EXPORT_PAGE_SIZE", func(c *Config, v string) { c.Export.PageSize = v }},
	{"export.font_size", "GFN_EXPORT_FONT_SIZE", func(c *Config, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Export.FontSize = f
		}
	}},
	{"export.scene_numbers", "GFN_EXPORT_SCENE_NUMBERS", func(c *Config, v string) { c.Export.SceneNumbers = parseBool(v) }},
	{"logging.level", "GFN_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"logging.format", "GFN_LOG_FORMAT", func(c *Config, v string) { c.Logging.Format = strings.ToLower(v) }},
	{"logging.source", "GFN_LOG_SOURCE", func(c *Config, v string) { c.Logging.Source = parseBool(v) }},
	{"logging.file", "GFN_LOG_FILE", func(c *Config, v string) { c.Logging.File = v }},
	{"logging.color", "GFN_LOG_COLOR", func(c *Config, v string) { c.Logging.Color = parseBool(v) }},
}

func applyEnvOverrides(cfg *Config) {
	for _, b := range envBindings {
		if v := strings.TrimSpace(os.Getenv(b.env)); v != "" {
			b.apply(cfg, v)
		}
	}
}

// EnvOverrideFor returns the environment variable currently overriding key
// (e.g. "library.driver"), if any.
func EnvOverrideFor(key string) (string, bool) {
	for _, b := range envBindings {
		if b.key == key && strings.TrimSpace(os.Getenv(b.env)) != "" {
			return b.env, true
		}
	}
	return "", false
}

// Keys lists every key that can be overridden from the environment.
func Keys() []string {
	out := make([]string, len(envBindings))
	for i, b := range envBindings {
		out[i] = b.key
	}
	return out
}
