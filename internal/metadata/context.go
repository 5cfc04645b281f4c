// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/presenced/presenced/internal/models"
)

// Status icons used by the default state template.
const (
	iconPlaying = "▶"
	iconPaused  = "⏸"
	iconStopped = "⏹"
)

// BuildContext flattens a session into the string map the external
// template renderer consumes. Missing or malformed fields are omitted
// rather than rendered as zero values, so templates can probe them with
// conditionals; only "title" falls back to unknownText because every
// default template leads with it.
func BuildContext(session *models.PlayerSession, unknownText string) map[string]string {
	ctx := make(map[string]string, 24)

	ctx["player"] = session.Identity
	ctx["status"] = strings.ToLower(string(session.Status))
	ctx["status_icon"] = statusIcon(session.Status)
	ctx["position"] = FormatDuration(session.Position)
	if session.Volume > 0 {
		ctx["volume"] = strconv.Itoa(int(session.Volume * 100))
	}

	md := &session.Metadata

	if md.Title != "" {
		ctx["title"] = md.Title
	} else {
		ctx["title"] = unknownText
	}
	if len(md.Artists) > 0 {
		ctx["artists"] = md.ArtistDisplay()
	}
	if md.Album != "" {
		ctx["album"] = md.Album
	}
	if len(md.AlbumArtists) > 0 {
		ctx["album_artists"] = md.AlbumArtistDisplay()
	}
	if md.TrackNumber > 0 {
		ctx["track_number"] = strconv.Itoa(md.TrackNumber)
		if md.TrackTotal > 0 {
			ctx["track_number"] = fmt.Sprintf("%d/%d", md.TrackNumber, md.TrackTotal)
		}
	}
	if md.TrackTotal > 0 {
		ctx["track_total"] = strconv.Itoa(md.TrackTotal)
	}
	if md.DiscNumber > 0 {
		ctx["disc_number"] = strconv.Itoa(md.DiscNumber)
	}
	if md.DiscTotal > 0 {
		ctx["disc_total"] = strconv.Itoa(md.DiscTotal)
	}
	if len(md.Genres) > 0 {
		ctx["genre"] = strings.Join(md.Genres, ", ")
	}
	if md.Year > 0 {
		ctx["year"] = strconv.Itoa(md.Year)
	}
	if md.Duration > 0 {
		ctx["length"] = FormatDuration(md.Duration)
	}

	if md.Audio.BitrateKbps > 0 {
		ctx["audio_bitrate"] = strconv.Itoa(md.Audio.BitrateKbps)
	}
	if md.Audio.SampleRateHz > 0 {
		ctx["sample_rate"] = strconv.Itoa(md.Audio.SampleRateHz)
	}
	if md.Audio.BitDepth > 0 {
		ctx["bit_depth"] = strconv.Itoa(md.Audio.BitDepth)
	}
	if md.Audio.Channels > 0 {
		ctx["channels"] = strconv.Itoa(md.Audio.Channels)
	}

	if md.ISRC != "" {
		ctx["isrc"] = md.ISRC
	}
	if md.Barcode != "" {
		ctx["barcode"] = md.Barcode
	}
	if md.CatalogNumber != "" {
		ctx["catalog_number"] = md.CatalogNumber
	}
	if md.Label != "" {
		ctx["label"] = md.Label
	}

	return ctx
}

// FormatDuration renders a duration as mm:ss, the display format used in
// templates. Durations of an hour or more extend to h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func statusIcon(status models.PlaybackStatus) string {
	switch status {
	case models.StatusPlaying:
		return iconPlaying
	case models.StatusPaused:
		return iconPaused
	default:
		return iconStopped
	}
}
