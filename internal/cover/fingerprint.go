// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package cover resolves artwork for tracks through a layered pipeline:
// disk cache, direct metadata URL, embedded tag art, local sibling
// files, then an ordered provider chain. Resolutions are single-flighted
// per fingerprint and written back to the cache.
package cover

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/presenced/presenced/internal/models"
)

// Fingerprint derives the stable cache key for a track. Preference
// order: MusicBrainz identifiers, then the source URL, then a hash of
// the identifying metadata fields. The key is a 64-bit xxhash rendered
// as fixed-width hex.
func Fingerprint(md *models.TrackMetadata) string {
	var material string
	switch {
	case md.MusicBrainzTrackID != "":
		material = "mbtrack|" + md.MusicBrainzTrackID
	case md.MusicBrainzAlbumID != "":
		material = "mbalbum|" + md.MusicBrainzAlbumID + "|" + md.Title
	case md.URL != "":
		material = "url|" + md.URL
	default:
		material = "meta|" + metadataMaterial(md)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(material))
}

// metadataMaterial composes the fallback hash input. Artist lists are
// sorted so ordering differences between players do not split the cache.
func metadataMaterial(md *models.TrackMetadata) string {
	return strings.Join([]string{
		md.Title,
		joinSorted(md.Artists),
		md.Album,
		joinSorted(md.AlbumArtists),
	}, "|")
}

func joinSorted(values []string) string {
	if len(values) < 2 {
		return strings.Join(values, ",")
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
