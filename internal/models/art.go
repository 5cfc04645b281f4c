// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package models

import "time"

// ArtRef is a resolved cover-art reference: either a remote URL usable
// directly in a presence payload, or a local file path that still needs
// hosting before Discord can display it.
type ArtRef struct {
	// URL is a http(s) reference. Empty when only a local path is known.
	URL string

	// Path is a local filesystem path. Empty when the art is remote.
	Path string
}

// IsZero reports whether no artwork was resolved.
func (r ArtRef) IsZero() bool {
	return r.URL == "" && r.Path == ""
}

// CoverArtEntry is the disk-cache record for one fingerprint.
type CoverArtEntry struct {
	// Ref is the resolved reference (remote URL or local path).
	Ref ArtRef `json:"ref"`

	// Source names where the art came from: "cache", "direct",
	// "embedded", "local", or a provider name.
	Source string `json:"source"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the absolute expiry; zero means the entry never
	// expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry has passed its expiry at now.
func (e *CoverArtEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
