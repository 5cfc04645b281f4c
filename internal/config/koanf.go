// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "PRESENCED_CONFIG"

// EnvPrefix marks the environment variables the loader consumes.
const EnvPrefix = "PRESENCED_"

// defaultConfigPaths lists where the user config file is searched,
// relative to the XDG config home, in order of priority.
var defaultConfigPaths = []string{
	"presenced/config.yaml",
	"presenced/config.yml",
}

// Load builds a validated Config from the layered sources:
//  1. Built-in struct defaults
//  2. Bundled per-player rules (embedded YAML)
//  3. User config file (optional)
//  4. Environment variables (highest priority)
//
// The returned path is the user config file in effect, or empty when no
// file was found; the Store watches that path for hot reload.
func Load() (*Config, string, error) {
	configPath := FindConfigFile()

	cfg, err := loadLayers(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// loadLayers assembles and validates a Config from all sources, reading
// the user file at configPath when non-empty. The Store calls this again
// on every reload so env overrides stay in effect.
func loadLayers(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: built-in defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: user config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; split known slice fields on commas.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Bundled player rules stay a separate layer: user rules of any kind
	// outrank bundled rules of any kind, which a flat merge would break.
	bundled, err := loadBundledPlayers()
	if err != nil {
		return nil, err
	}
	cfg.BundledPlayers = bundled

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadBundledPlayers parses the embedded per-player rules.
func loadBundledPlayers() (map[string]PlayerRule, error) {
	bk := koanf.New(".")
	if err := bk.Load(rawbytes.Provider(bundledPlayersYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse bundled player rules: %w", err)
	}
	bundled := map[string]PlayerRule{}
	if err := bk.Unmarshal("player", &bundled); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundled player rules: %w", err)
	}
	return bundled, nil
}

// FindConfigFile returns the user config file in effect, or empty string
// when none exists. PRESENCED_CONFIG wins over the XDG search paths.
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}

	for _, rel := range defaultConfigPaths {
		path := filepath.Join(configHome, rel)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (sans prefix, lowercased)
// to koanf paths. Needed because config keys themselves contain
// underscores, so a mechanical "_" -> "." transform is ambiguous.
var envMappings = map[string]string{
	"interval":        "interval",
	"clear_on_pause":  "clear_on_pause",
	"allowed_players": "allowed_players",

	"template_detail":       "template.detail",
	"template_state":        "template.state",
	"template_large_text":   "template.large_text",
	"template_small_text":   "template.small_text",
	"template_unknown_text": "template.unknown_text",

	"time_show":       "time.show",
	"time_as_elapsed": "time.as_elapsed",

	"activity_type_use_content_type": "activity_type.use_content_type",
	"activity_type_default":          "activity_type.default",

	"cover_file_names":  "cover.file_names",
	"cover_parent_dirs": "cover.parent_dirs",
	"cover_cache_dir":   "cover.cache_dir",
	"cover_ttl":         "cover.ttl",

	"cover_provider":                                "cover.provider.provider",
	"cover_provider_musicbrainz_min_score":          "cover.provider.musicbrainz.min_score",
	"cover_provider_musicbrainz_duration_tolerance": "cover.provider.musicbrainz.duration_tolerance",
	"cover_provider_imgbb_api_key":                  "cover.provider.imgbb.api_key",
	"cover_provider_imgbb_expiration":               "cover.provider.imgbb.expiration",
	"cover_provider_catbox_user_hash":               "cover.provider.catbox.user_hash",
	"cover_provider_catbox_use_litter":              "cover.provider.catbox.use_litter",
	"cover_provider_catbox_litter_hours":            "cover.provider.catbox.litter_hours",

	"tracker_bus_timeout": "tracker.bus_timeout",
	"tracker_seek_jitter": "tracker.seek_jitter",

	"log_level":  "log.level",
	"log_format": "log.format",

	"metrics_enabled": "metrics.enabled",
	"metrics_listen":  "metrics.listen",
}

// envTransformFunc resolves a PRESENCED_* variable name to its koanf
// path. Unknown variables are dropped rather than guessed at.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if path, ok := envMappings[key]; ok {
		return path
	}
	return ""
}

// sliceConfigPaths are the config paths unmarshaled into []string; env
// values for these are comma-separated.
var sliceConfigPaths = []string{
	"allowed_players",
	"cover.file_names",
	"cover.provider.provider",
}

// processSliceFields converts comma-separated string values into slices
// for the known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok {
			continue // already a slice (from YAML) or unset
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
