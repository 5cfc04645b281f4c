// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

/*
Package config provides centralized configuration management for Presenced.

This package handles loading, validation, and hot-reloading of the daemon
configuration. It ensures every component reads from one immutable snapshot
per tick and provides sensible defaults for optional settings.

# Configuration Sources

Configuration is layered, later sources overriding earlier ones:
  - Built-in struct defaults
  - Bundled per-player rules (embedded YAML)
  - User config file (YAML, searched in XDG paths)
  - Environment variables with the PRESENCED_ prefix

# Configuration Structure

The package organizes configuration into logical groups:

  - TemplateConfig: detail/state/large-text/small-text template strings
  - TimeConfig: progress timestamp display (elapsed vs remaining)
  - ActivityTypeConfig: content-type detection and default activity type
  - CoverConfig: local filename candidates, cache TTL, provider chain
  - TrackerConfig: poll interval bounds, seek jitter, bus call timeout
  - PlayerConfig: layered per-player rules (exact/regex/wildcard)

# Hot Reload

The Store watches the user config file. A valid edit is installed as the
new current snapshot atomically; an invalid edit is discarded and the
last-valid snapshot stays in effect. The daemon never halts on a bad edit.

# Environment Variables

Environment variables map to config paths by replacing "_" separators
with nesting, e.g.:

  - PRESENCED_INTERVAL: update interval (default: 2s)
  - PRESENCED_CLEAR_ON_PAUSE: clear presence while paused (default: true)
  - PRESENCED_COVER_PROVIDER_IMGBB_API_KEY: imgbb upload key
  - PRESENCED_LOG_LEVEL: zerolog level (default: info)
*/
package config
