// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package models

import (
	"net/url"
	"strings"
	"time"
)

// AudioProperties are technical stream properties, usually read from the
// file's embedded tags rather than the bus.
type AudioProperties struct {
	BitrateKbps  int
	SampleRateHz int
	BitDepth     int
	Channels     int
}

// TrackTags are supplementary fields read from a local file's own tags
// and stream headers, covering what the MPRIS metadata map leaves out.
type TrackTags struct {
	TrackTotal int
	DiscTotal  int

	Barcode        string
	CatalogNumber  string
	Label          string
	ReleaseGroupID string

	Audio AudioProperties
}

// TrackMetadata is an immutable snapshot of one track's metadata. A new
// snapshot replaces the previous one wholesale when the track changes.
type TrackMetadata struct {
	Title        string
	Artists      []string
	Album        string
	AlbumArtists []string

	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int

	Genres []string
	Year   int

	Duration time.Duration

	Audio AudioProperties

	// Identifiers
	ISRC          string
	Barcode       string
	CatalogNumber string
	Label         string

	MusicBrainzTrackID        string
	MusicBrainzAlbumID        string
	MusicBrainzArtistID       string
	MusicBrainzReleaseGroupID string

	// URL is the playback source (file:// path or stream URL).
	URL string

	// ArtURL is a direct artwork reference supplied by the player, if any.
	ArtURL string
}

// ArtistDisplay returns the comma-joined artist list for rendering.
func (m *TrackMetadata) ArtistDisplay() string {
	return strings.Join(m.Artists, ", ")
}

// AlbumArtistDisplay returns the comma-joined album-artist list.
func (m *TrackMetadata) AlbumArtistDisplay() string {
	return strings.Join(m.AlbumArtists, ", ")
}

// Equal reports whether two snapshots describe the same track state.
// Position and timing are session concerns and not part of metadata.
func (m *TrackMetadata) Equal(other *TrackMetadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Title == other.Title &&
		equalStrings(m.Artists, other.Artists) &&
		m.Album == other.Album &&
		equalStrings(m.AlbumArtists, other.AlbumArtists) &&
		m.TrackNumber == other.TrackNumber &&
		m.DiscNumber == other.DiscNumber &&
		m.Duration == other.Duration &&
		m.URL == other.URL &&
		m.ArtURL == other.ArtURL &&
		m.MusicBrainzTrackID == other.MusicBrainzTrackID
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsLocalFile reports whether the playback source is a local file URI.
func (m *TrackMetadata) IsLocalFile() bool {
	return strings.HasPrefix(m.URL, "file://")
}

// LocalPath maps a file:// URL to its decoded filesystem path.
func (m *TrackMetadata) LocalPath() (string, bool) {
	if !m.IsLocalFile() {
		return "", false
	}
	u, err := url.Parse(m.URL)
	if err != nil || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// MergeTags fills in fields the bus did not provide from file-derived
// tags. Bus-supplied values always win.
func (m *TrackMetadata) MergeTags(t TrackTags) {
	if m.TrackTotal == 0 {
		m.TrackTotal = t.TrackTotal
	}
	if m.DiscTotal == 0 {
		m.DiscTotal = t.DiscTotal
	}
	if m.Barcode == "" {
		m.Barcode = t.Barcode
	}
	if m.CatalogNumber == "" {
		m.CatalogNumber = t.CatalogNumber
	}
	if m.Label == "" {
		m.Label = t.Label
	}
	if m.MusicBrainzReleaseGroupID == "" {
		m.MusicBrainzReleaseGroupID = t.ReleaseGroupID
	}
	if (m.Audio == AudioProperties{}) {
		m.Audio = t.Audio
	}
}

// Tags extracts the file-derived subset back out of a snapshot, so an
// unchanged track can carry its enrichment forward without re-reading
// the file.
func (m *TrackMetadata) Tags() TrackTags {
	return TrackTags{
		TrackTotal:     m.TrackTotal,
		DiscTotal:      m.DiscTotal,
		Barcode:        m.Barcode,
		CatalogNumber:  m.CatalogNumber,
		Label:          m.Label,
		ReleaseGroupID: m.MusicBrainzReleaseGroupID,
		Audio:          m.Audio,
	}
}

// IsWebStream reports whether the playback source is a web URL.
func (m *TrackMetadata) IsWebStream() bool {
	return strings.HasPrefix(m.URL, "http://") || strings.HasPrefix(m.URL, "https://")
}
