// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/presenced/presenced/internal/models"
)

// FileTagReader extracts embedded artwork and supplementary metadata
// from local media files using their ID3v2, MP4, FLAC or OGG tags.
type FileTagReader struct{}

// NewFileTagReader returns a TagReader backed by on-disk tag parsing.
func NewFileTagReader() *FileTagReader {
	return &FileTagReader{}
}

// EmbeddedArt implements TagReader. Files without recognizable tags or
// without a picture return (nil, "", nil); that is a normal miss, not
// an error.
func (r *FileTagReader) EmbeddedArt(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read tags: %w", err)
	}

	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, "", nil
	}
	return pic.Data, pic.MIMEType, nil
}

// TrackTags reads the supplementary fields the MPRIS metadata map does
// not carry: track and disc totals, release identifiers, and the audio
// stream properties. Tag parsing is best-effort; untagged or oddly
// tagged files still get their stream headers read.
func (r *FileTagReader) TrackTags(path string) (models.TrackTags, error) {
	var tags models.TrackTags

	f, err := os.Open(path)
	if err != nil {
		return tags, fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	if meta, err := tag.ReadFrom(f); err == nil {
		_, tags.TrackTotal = meta.Track()
		_, tags.DiscTotal = meta.Disc()

		raw := meta.Raw()
		tags.Barcode = rawTagString(raw, "barcode")
		tags.CatalogNumber = rawTagString(raw, "catalognumber")
		tags.Label = rawTagString(raw, "label", "organization", "publisher", "tpub")
		tags.ReleaseGroupID = rawTagString(raw, "musicbrainzreleasegroupid")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return tags, nil
	}
	if props, err := readAudioProperties(f); err == nil {
		tags.Audio = props
	}
	return tags, nil
}

// rawTagString looks up the first candidate present among the raw tag
// frames. Frame naming varies wildly between containers ("BARCODE"
// vorbis comments, "TXXX:BarCode" ID3 user frames), so keys are
// compared with casing, separators and any frame-id prefix stripped.
func rawTagString(raw map[string]interface{}, candidates ...string) string {
	for _, want := range candidates {
		for key, value := range raw {
			if normalizeFrameName(key) != want {
				continue
			}
			switch v := value.(type) {
			case string:
				if v != "" {
					return v
				}
			case *tag.Comm:
				if v.Text != "" {
					return v.Text
				}
			}
		}
	}
	return ""
}

func normalizeFrameName(key string) string {
	key = strings.ToLower(key)
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		key = key[i+1:]
	}
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
}
