// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/models"
)

// TagReader is the external collaborator that extracts embedded artwork
// from a local media file.
type TagReader interface {
	// EmbeddedArt returns the first picture in the file's tags, with its
	// MIME type. A file without pictures returns (nil, "", nil).
	EmbeddedArt(path string) (data []byte, mimeType string, err error)
}

// coverExtensions are checked for every configured sibling file name.
var coverExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// artSource is artwork found without any provider call: either a remote
// URL usable as-is, or local bytes usable by upload providers.
type artSource struct {
	// url is set for remote art usable directly.
	url string

	// data holds local image bytes (embedded, sibling file, data URI).
	data []byte

	// kind labels where the art came from, for the cache sidecar.
	kind string
}

// directSource interprets the art URL the player supplied: an http(s)
// URL passes through, a data URI is decoded, a file URL is
// percent-decoded and read from disk.
func directSource(md *models.TrackMetadata) *artSource {
	raw := md.ArtURL
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "data:image/") {
		if data := decodeDataURI(raw); data != nil {
			return &artSource{data: data, kind: "direct"}
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		logging.Debug().Str("art_url", raw).Err(err).Msg("Unparseable art URL")
		return nil
	}

	switch u.Scheme {
	case "http", "https":
		return &artSource{url: raw, kind: "direct"}
	case "file":
		// u.Path is already percent-decoded.
		data, err := os.ReadFile(u.Path)
		if err != nil {
			logging.Debug().Str("path", u.Path).Err(err).Msg("Art file unreadable")
			return nil
		}
		return &artSource{data: data, kind: "direct"}
	}
	return nil
}

// decodeDataURI extracts the payload of a base64 data URI, or nil when
// malformed.
func decodeDataURI(uri string) []byte {
	_, payload, found := strings.Cut(uri, ";base64,")
	if !found {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		logging.Debug().Err(err).Msg("Malformed base64 art URI")
		return nil
	}
	return data
}

// embeddedSource asks the tag reader for artwork inside the media file
// itself. Only applies to local files.
func embeddedSource(md *models.TrackMetadata, tags TagReader) *artSource {
	path, ok := md.LocalPath()
	if !ok || tags == nil {
		return nil
	}

	data, _, err := tags.EmbeddedArt(path)
	if err != nil {
		logging.Debug().Str("path", path).Err(err).Msg("Embedded art read failed")
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return &artSource{data: data, kind: "embedded"}
}

// siblingSource searches the media file's directory, and up to
// cfg.ParentDirs ancestors, for a configured cover file name with a
// common image extension.
func siblingSource(md *models.TrackMetadata, cfg *config.CoverConfig) *artSource {
	mediaPath, ok := md.LocalPath()
	if !ok {
		return nil
	}

	dir := filepath.Dir(mediaPath)
	for depth := 0; depth <= cfg.ParentDirs; depth++ {
		for _, name := range cfg.FileNames {
			for _, ext := range coverExtensions {
				candidate := filepath.Join(dir, name+ext)
				data, err := os.ReadFile(candidate)
				if err != nil {
					continue
				}
				return &artSource{data: data, kind: "local"}
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}
