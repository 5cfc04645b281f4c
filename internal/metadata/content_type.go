// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package metadata

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

// Common media extensions, registered so inference does not depend on
// the host's /etc/mime.types. mime.AddExtensionType keeps any system
// mapping that already exists.
var mediaExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".ts":   "video/mp2t",
}

func init() {
	for ext, typ := range mediaExtensions {
		// Error only fires on malformed types; the table is static.
		_ = mime.AddExtensionType(ext, typ)
	}
}

// InferActivityType guesses an activity type from the track's source
// URL: video/* maps to watching, audio/* to listening. The second return
// is false when no MIME type could be determined, letting the caller
// fall back to the configured default.
func InferActivityType(md *models.TrackMetadata) (config.ActivityType, bool) {
	if md.URL == "" {
		return "", false
	}

	urlPath := md.URL
	if u, err := url.Parse(md.URL); err == nil && u.Path != "" {
		urlPath = u.Path
	}

	ext := path.Ext(urlPath)
	if ext == "" {
		return "", false
	}

	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return config.ActivityWatching, true
	case strings.HasPrefix(mimeType, "audio/"):
		return config.ActivityListening, true
	}
	return "", false
}
