// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package mpris

import (
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/presenced/presenced/internal/models"
)

// parseMetadata converts the raw MPRIS metadata map (xesam:* and
// mpris:* keys) into a normalized snapshot. Players disagree wildly on
// value types, so every field is read defensively; malformed fields are
// dropped, never fatal.
func parseMetadata(raw map[string]dbus.Variant) models.TrackMetadata {
	md := models.TrackMetadata{
		Title:        variantString(raw, "xesam:title"),
		Artists:      variantStrings(raw, "xesam:artist"),
		Album:        variantString(raw, "xesam:album"),
		AlbumArtists: variantStrings(raw, "xesam:albumArtist"),
		TrackNumber:  variantInt(raw, "xesam:trackNumber"),
		DiscNumber:   variantInt(raw, "xesam:discNumber"),
		Genres:       variantStrings(raw, "xesam:genre"),
		URL:          variantString(raw, "xesam:url"),
		ArtURL:       variantString(raw, "mpris:artUrl"),
	}

	// mpris:length is microseconds.
	if length := variantInt64(raw, "mpris:length"); length > 0 {
		md.Duration = time.Duration(length) * time.Microsecond
	}

	// xesam:contentCreated is an ISO 8601 date; the year is enough.
	if created := variantString(raw, "xesam:contentCreated"); len(created) >= 4 {
		if year, err := strconv.Atoi(created[:4]); err == nil {
			md.Year = year
		}
	}

	// Non-standard identifier keys some players export.
	md.ISRC = variantString(raw, "xesam:isrc")
	md.MusicBrainzTrackID = variantString(raw, "xesam:musicBrainzTrackID")
	md.MusicBrainzAlbumID = variantString(raw, "xesam:musicBrainzAlbumID")
	md.MusicBrainzArtistID = variantString(raw, "xesam:musicBrainzArtistID")

	return md
}

func variantString(m map[string]dbus.Variant, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.Value().(string); ok {
		return s
	}
	return ""
}

// variantStrings accepts both the spec's string array and the bare
// string some players send instead.
func variantStrings(m map[string]dbus.Variant, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch val := v.Value().(type) {
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	}
	return nil
}

func variantInt(m map[string]dbus.Variant, key string) int {
	return int(variantInt64(m, key))
}

func variantInt64(m map[string]dbus.Variant, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch val := v.Value().(type) {
	case int64:
		return val
	case uint64:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case int16:
		return int64(val)
	case uint16:
		return int64(val)
	case int:
		return int64(val)
	case float64:
		return int64(val)
	}
	return 0
}

func variantFloat(m map[string]dbus.Variant, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch val := v.Value().(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	}
	return 0
}
