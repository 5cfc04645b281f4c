// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

func TestDirectSourceHTTP(t *testing.T) {
	md := &models.TrackMetadata{ArtURL: "https://img.example/cover.jpg"}
	source := directSource(md)
	if source == nil || source.url != "https://img.example/cover.jpg" {
		t.Errorf("directSource() = %+v, want passthrough URL", source)
	}
}

func TestDirectSourceFileURLPercentDecoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my cover.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}

	md := &models.TrackMetadata{ArtURL: "file://" + dir + "/my%20cover.jpg"}
	source := directSource(md)
	if source == nil || string(source.data) != "jpeg" {
		t.Errorf("directSource() should percent-decode and read the file, got %+v", source)
	}
}

func TestDirectSourceDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	md := &models.TrackMetadata{ArtURL: "data:image/png;base64," + payload}

	source := directSource(md)
	if source == nil || string(source.data) != "png-bytes" {
		t.Errorf("directSource() should decode data URIs, got %+v", source)
	}

	// Malformed URIs degrade to a miss, never an error.
	md.ArtURL = "data:image/png;base64,not!!!base64"
	if source := directSource(md); source != nil {
		t.Errorf("malformed data URI should yield nil, got %+v", source)
	}
}

func TestSiblingSourceSearchDepth(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "album")
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Cover lives one level above the media file.
	if err := os.WriteFile(filepath.Join(root, "folder.png"), []byte("art"), 0o600); err != nil {
		t.Fatal(err)
	}
	mediaPath := filepath.Join(albumDir, "track.flac")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o600); err != nil {
		t.Fatal(err)
	}

	md := &models.TrackMetadata{URL: "file://" + mediaPath}

	cfg := &config.CoverConfig{FileNames: []string{"cover", "folder"}, ParentDirs: 1}
	source := siblingSource(md, cfg)
	if source == nil || string(source.data) != "art" {
		t.Errorf("siblingSource() should find the parent-directory cover, got %+v", source)
	}

	// Depth 0 must not look upward.
	cfg.ParentDirs = 0
	if source := siblingSource(md, cfg); source != nil {
		t.Errorf("siblingSource() with depth 0 should not search parents, got %+v", source)
	}
}

func TestSiblingSourceSkipsRemoteTracks(t *testing.T) {
	md := &models.TrackMetadata{URL: "https://stream.example/radio"}
	cfg := &config.CoverConfig{FileNames: []string{"cover"}, ParentDirs: 2}
	if source := siblingSource(md, cfg); source != nil {
		t.Errorf("siblingSource() should skip non-file URLs, got %+v", source)
	}
}

func TestCacheSweep(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache() error: %v", err)
	}
	defer cache.Close()

	now := time.Now()
	fresh := &models.CoverArtEntry{
		Ref: models.ArtRef{URL: "https://img.example/fresh.jpg"}, Source: "direct",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	stale := &models.CoverArtEntry{
		Ref: models.ArtRef{URL: "https://img.example/stale.jpg"}, Source: "direct",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	forever := &models.CoverArtEntry{
		Ref: models.ArtRef{URL: "https://img.example/forever.jpg"}, Source: "direct",
		CreatedAt: now,
	}

	for fp, entry := range map[string]*models.CoverArtEntry{
		"fp-fresh": fresh, "fp-stale": stale, "fp-forever": forever,
	} {
		if err := cache.Put(fp, entry); err != nil {
			t.Fatalf("Put(%s) error: %v", fp, err)
		}
	}
	if err := cache.PutImage("fp-stale", []byte("bytes")); err != nil {
		t.Fatalf("PutImage() error: %v", err)
	}

	dropped, err := cache.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if dropped != 1 {
		t.Errorf("Sweep() dropped %d entries, want 1", dropped)
	}

	if _, ok, _ := cache.Get("fp-fresh"); !ok {
		t.Errorf("fresh entry should survive the sweep")
	}
	if _, ok, _ := cache.Get("fp-forever"); !ok {
		t.Errorf("zero-expiry entry should never be swept")
	}
	if _, ok, _ := cache.Get("fp-stale"); ok {
		t.Errorf("stale entry should be swept")
	}
	if _, ok, _ := cache.GetImage("fp-stale"); ok {
		t.Errorf("stale image bytes should be swept with the entry")
	}
}
