// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

type fakeProvider struct {
	name     string
	result   *Result
	err      error
	attempts atomic.Int64
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	f.attempts.Add(1)
	return f.result, f.err
}

func testCoverConfig() *config.Config {
	return &config.Config{
		Cover: config.CoverConfig{
			FileNames:  []string{"cover", "folder"},
			ParentDirs: 1,
			TTL:        24 * time.Hour,
		},
	}
}

func newTestResolver(t *testing.T, providers ...Provider) (*Resolver, *Cache, *config.Config) {
	t.Helper()
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache() error: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	cfg := testCoverConfig()
	r := NewResolver(cache, nil, &http.Client{Timeout: time.Second})
	r.provCfg = &cfg.Cover.Provider
	r.providers = providers
	return r, cache, cfg
}

// TestResolveCacheHitSkipsProviders: an unexpired cached entry answers
// without a single provider call.
func TestResolveCacheHitSkipsProviders(t *testing.T) {
	provider := &fakeProvider{name: "fake", result: &Result{URL: "https://img.example/x.jpg"}}
	r, cache, cfg := newTestResolver(t, provider)

	md := &models.TrackMetadata{Title: "Song X", Artists: []string{"A"}}
	fp := Fingerprint(md)
	err := cache.Put(fp, &models.CoverArtEntry{
		Ref:       models.ArtRef{URL: "https://cached.example/x.jpg"},
		Source:    "musicbrainz",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("cache.Put() error: %v", err)
	}

	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref == nil || ref.URL != "https://cached.example/x.jpg" {
		t.Errorf("Resolve() = %v, want cached URL", ref)
	}
	if n := provider.attempts.Load(); n != 0 {
		t.Errorf("provider called %d times on cache hit, want 0", n)
	}
}

// TestResolveExpiredEntryFallsThrough: an expired entry behaves like a
// miss and the provider is consulted.
func TestResolveExpiredEntryFallsThrough(t *testing.T) {
	provider := &fakeProvider{name: "fake", result: &Result{URL: "https://fresh.example/x.jpg"}}
	r, cache, cfg := newTestResolver(t, provider)

	md := &models.TrackMetadata{Title: "Song X", Artists: []string{"A"}}
	fp := Fingerprint(md)
	err := cache.Put(fp, &models.CoverArtEntry{
		Ref:       models.ArtRef{URL: "https://stale.example/x.jpg"},
		Source:    "musicbrainz",
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("cache.Put() error: %v", err)
	}

	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref == nil || ref.URL != "https://fresh.example/x.jpg" {
		t.Errorf("Resolve() = %v, want fresh provider URL", ref)
	}
	if n := provider.attempts.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

// TestResolveSingleFlight: concurrent resolutions of one fingerprint
// share a single provider invocation and the same result.
func TestResolveSingleFlight(t *testing.T) {
	block := make(chan struct{})
	provider := &slowProvider{release: block, result: &Result{URL: "https://img.example/x.jpg"}}
	r, _, cfg := newTestResolver(t, provider)

	md := &models.TrackMetadata{Title: "Song X", Artists: []string{"A"}}

	const callers = 8
	results := make([]*models.ArtRef, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := r.Resolve(context.Background(), md, cfg)
			if err != nil {
				t.Errorf("Resolve() error: %v", err)
			}
			results[i] = ref
		}(i)
	}

	// Let all callers pile up on the in-flight resolution.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if n := provider.attempts.Load(); n != 1 {
		t.Errorf("provider called %d times under concurrency, want 1", n)
	}
	for i, ref := range results {
		if ref == nil || ref.URL != "https://img.example/x.jpg" {
			t.Errorf("caller %d got %v, want shared result", i, ref)
		}
	}
}

type slowProvider struct {
	release  chan struct{}
	result   *Result
	attempts atomic.Int64
}

func (s *slowProvider) Name() string { return "slow" }

func (s *slowProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	s.attempts.Add(1)
	<-s.release
	return s.result, nil
}

// TestResolveProviderErrorFallsThrough: a failing provider eliminates
// only itself; the next provider in the chain still runs.
func TestResolveProviderErrorFallsThrough(t *testing.T) {
	failing := &fakeProvider{name: "first", err: context.DeadlineExceeded}
	working := &fakeProvider{name: "second", result: &Result{URL: "https://second.example/x.jpg"}}
	r, _, cfg := newTestResolver(t, failing, working)

	md := &models.TrackMetadata{Title: "Song X", Artists: []string{"A"}}
	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref == nil || ref.URL != "https://second.example/x.jpg" {
		t.Errorf("Resolve() = %v, want second provider URL", ref)
	}
}

// TestResolveExhaustedChainIsNotAnError: no art anywhere yields nil, nil.
func TestResolveExhaustedChainIsNotAnError(t *testing.T) {
	missing := &fakeProvider{name: "missing"}
	r, _, cfg := newTestResolver(t, missing)

	md := &models.TrackMetadata{Title: "Song X", Artists: []string{"A"}}
	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref != nil {
		t.Errorf("Resolve() = %v, want nil for no art", ref)
	}
}

// TestResolveDirectURLWins: a player-supplied http URL resolves without
// touching any provider and is written back to the cache.
func TestResolveDirectURLWins(t *testing.T) {
	provider := &fakeProvider{name: "fake", result: &Result{URL: "https://img.example/x.jpg"}}
	r, cache, cfg := newTestResolver(t, provider)

	md := &models.TrackMetadata{
		Title:  "Song X",
		ArtURL: "https://direct.example/cover.jpg",
	}
	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref == nil || ref.URL != "https://direct.example/cover.jpg" {
		t.Errorf("Resolve() = %v, want direct URL", ref)
	}
	if n := provider.attempts.Load(); n != 0 {
		t.Errorf("provider called %d times for direct URL, want 0", n)
	}

	entry, ok, err := cache.Get(Fingerprint(md))
	if err != nil || !ok {
		t.Fatalf("cache.Get() after direct resolve: ok=%v err=%v", ok, err)
	}
	if entry.Source != "direct" {
		t.Errorf("cached source = %q, want direct", entry.Source)
	}
	if entry.ExpiresAt.IsZero() {
		t.Errorf("cached entry should carry the configured TTL expiry")
	}
}

// TestResolveLowScoreFallsToUploadHost mirrors the two-provider chain:
// the lookup scores below the minimum, the upload host serves local art,
// and the cache entry carries the upload host's expiry.
func TestResolveLowScoreFallsToUploadHost(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Every match scores below the configured minimum.
		_, _ = w.Write([]byte(`{"release-groups":[{"id":"rg-1","score":40}],"recordings":[{"id":"rec-1","score":40}]}`))
	}))
	defer mbServer.Close()

	uploadExpiry := 12 * time.Hour
	upload := &fakeProvider{name: "upload", result: &Result{
		URL:       "https://hosted.example/x.jpg",
		ExpiresAt: time.Now().Add(uploadExpiry),
	}}

	mbCfg := &config.MusicBrainzConfig{MinScore: 90, DurationTolerance: 5 * time.Second}
	mb := newMusicBrainzProvider(mbCfg, &http.Client{Timeout: time.Second})
	mb.baseURL = mbServer.URL
	mb.caaURL = mbServer.URL

	r, cache, cfg := newTestResolver(t, mb, upload)

	// Local media with a sibling cover supplies the bytes to upload.
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	md := &models.TrackMetadata{
		Title:   "Song X",
		Artists: []string{"Artist A"},
		Album:   "Album Z",
		URL:     "file://" + mediaPath,
	}

	ref, err := r.Resolve(context.Background(), md, cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref == nil || ref.URL != "https://hosted.example/x.jpg" {
		t.Errorf("Resolve() = %v, want upload host URL", ref)
	}

	entry, ok, err := cache.Get(Fingerprint(md))
	if err != nil || !ok {
		t.Fatalf("cache.Get(): ok=%v err=%v", ok, err)
	}
	if entry.Source != "upload" {
		t.Errorf("cached source = %q, want upload", entry.Source)
	}
	// The upload host's expiry wins over the configured TTL.
	wantBefore := time.Now().Add(uploadExpiry + time.Minute)
	wantAfter := time.Now().Add(uploadExpiry - time.Minute)
	if entry.ExpiresAt.After(wantBefore) || entry.ExpiresAt.Before(wantAfter) {
		t.Errorf("cached expiry = %v, want ~%v from now", entry.ExpiresAt, uploadExpiry)
	}
}
