// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package metadata normalizes player identities and builds the render
// context handed to the external template engine.
package metadata

import (
	"strings"
	"unicode"
)

// NormalizeIdentity maps a player identity to its canonical form:
// lowercase, with every run of non-alphanumeric characters collapsed to
// a single underscore. The result keys config rule lookup and session
// identity, so it must be deterministic and idempotent:
// "VLC media player" → "vlc_media_player".
func NormalizeIdentity(identity string) string {
	var b strings.Builder
	b.Grow(len(identity))

	inRun := false
	for _, r := range strings.ToLower(identity) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	return b.String()
}
