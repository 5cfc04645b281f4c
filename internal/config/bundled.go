// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import _ "embed"

// bundledPlayersYAML ships rules for well-known players so a fresh
// install behaves sensibly without any user configuration. User rules
// for the same identity take priority field by field.
//
//go:embed players_bundled.yaml
var bundledPlayersYAML []byte
