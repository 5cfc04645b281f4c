// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package mpris

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

type fakeBus struct {
	names     []string
	listErr   error
	root      map[string]map[string]dbus.Variant
	player    map[string]map[string]dbus.Variant
	playerErr map[string]error
}

func (f *fakeBus) ListPlayers(ctx context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeBus) RootProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error) {
	props, ok := f.root[busName]
	if !ok {
		return nil, errors.New("no such player")
	}
	return props, nil
}

func (f *fakeBus) PlayerProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error) {
	if err := f.playerErr[busName]; err != nil {
		return nil, err
	}
	props, ok := f.player[busName]
	if !ok {
		return nil, errors.New("no such player")
	}
	return props, nil
}

func (f *fakeBus) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Tracker: config.TrackerConfig{
			BusTimeout: 5 * time.Second,
			SeekJitter: 1500 * time.Millisecond,
		},
	}
}

func playerProps(title string, status string, position time.Duration) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
		"Position":       dbus.MakeVariant(position.Microseconds()),
		"Rate":           dbus.MakeVariant(1.0),
		"Volume":         dbus.MakeVariant(0.8),
		"Metadata": dbus.MakeVariant(map[string]dbus.Variant{
			"xesam:title":  dbus.MakeVariant(title),
			"xesam:artist": dbus.MakeVariant([]string{"Artist A"}),
			"mpris:length": dbus.MakeVariant(int64(245_000_000)),
		}),
	}
}

func newFakeBus() *fakeBus {
	const vlc = "org.mpris.MediaPlayer2.vlc"
	return &fakeBus{
		names: []string{vlc},
		root: map[string]map[string]dbus.Variant{
			vlc: {"Identity": dbus.MakeVariant("VLC media player")},
		},
		player: map[string]map[string]dbus.Variant{
			vlc: playerProps("Song X", "Playing", 10*time.Second),
		},
		playerErr: map[string]error{},
	}
}

func TestPollLifecycle(t *testing.T) {
	bus := newFakeBus()
	tracker := NewTracker(bus, nil)
	cfg := testConfig()
	ctx := context.Background()

	changes, err := tracker.Poll(ctx, cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != models.ChangeAdded {
		t.Fatalf("first poll = %v, want one ChangeAdded", changes)
	}
	if changes[0].Session.Identity != "vlc_media_player" {
		t.Errorf("Identity = %q, want vlc_media_player", changes[0].Session.Identity)
	}
	if changes[0].Session.Metadata.Title != "Song X" {
		t.Errorf("Title = %q, want Song X", changes[0].Session.Metadata.Title)
	}

	// Player vanishes from the bus.
	bus.names = nil
	changes, err = tracker.Poll(ctx, cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != models.ChangeRemoved {
		t.Fatalf("second poll = %v, want one ChangeRemoved", changes)
	}
}

func TestPollClassifiesMetadataChange(t *testing.T) {
	bus := newFakeBus()
	tracker := NewTracker(bus, nil)
	cfg := testConfig()
	ctx := context.Background()

	if _, err := tracker.Poll(ctx, cfg); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	// Title changes mid-playback; metadata outranks any other kind.
	props := playerProps("Song Y", "Paused", 10*time.Second)
	bus.player["org.mpris.MediaPlayer2.vlc"] = props

	changes, err := tracker.Poll(ctx, cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != models.ChangeMetadata {
		t.Fatalf("changes = %v, want ChangeMetadata", changes)
	}
}

func TestPollClassifiesStatusChange(t *testing.T) {
	bus := newFakeBus()
	tracker := NewTracker(bus, nil)
	cfg := testConfig()
	ctx := context.Background()

	if _, err := tracker.Poll(ctx, cfg); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	bus.player["org.mpris.MediaPlayer2.vlc"] = playerProps("Song X", "Paused", 10*time.Second)

	changes, err := tracker.Poll(ctx, cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != models.ChangeStatus {
		t.Fatalf("changes = %v, want ChangeStatus", changes)
	}
}

// TestClassifySeekBand drives the predicted-position math directly: a
// position within last + r*Δt ± jitter is a tick, outside it a seek.
func TestClassifySeekBand(t *testing.T) {
	cfg := testConfig()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rate    float64
		elapsed time.Duration
		prevPos time.Duration
		nextPos time.Duration
		want    models.ChangeKind
	}{
		{"exact prediction", 1.0, 2 * time.Second, 10 * time.Second, 12 * time.Second, models.ChangeTick},
		{"drift inside jitter", 1.0, 2 * time.Second, 10 * time.Second, 13 * time.Second, models.ChangeTick},
		{"forward seek", 1.0, 2 * time.Second, 10 * time.Second, 60 * time.Second, models.ChangeSeek},
		{"backward seek", 1.0, 2 * time.Second, 10 * time.Second, 2 * time.Second, models.ChangeSeek},
		{"double rate tick", 2.0, 2 * time.Second, 10 * time.Second, 14 * time.Second, models.ChangeTick},
		{"double rate seek", 2.0, 2 * time.Second, 10 * time.Second, 10 * time.Second, models.ChangeSeek},
	}

	tracker := NewTracker(newFakeBus(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := models.TrackMetadata{Title: "Song X"}
			prev := &models.PlayerSession{
				Status:    models.StatusPlaying,
				Position:  tt.prevPos,
				Rate:      tt.rate,
				Metadata:  md,
				SampledAt: base,
			}
			next := &models.PlayerSession{
				Status:    models.StatusPlaying,
				Position:  tt.nextPos,
				Rate:      tt.rate,
				Metadata:  md,
				SampledAt: base.Add(tt.elapsed),
			}
			if got := tracker.classify(cfg, prev, next); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestClassifyNoSeekWhilePaused: position drift while paused never
// classifies as a seek.
func TestClassifyNoSeekWhilePaused(t *testing.T) {
	cfg := testConfig()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	md := models.TrackMetadata{Title: "Song X"}

	prev := &models.PlayerSession{
		Status: models.StatusPaused, Position: 10 * time.Second,
		Rate: 1.0, Metadata: md, SampledAt: base,
	}
	next := &models.PlayerSession{
		Status: models.StatusPaused, Position: 90 * time.Second,
		Rate: 1.0, Metadata: md, SampledAt: base.Add(2 * time.Second),
	}

	tracker := NewTracker(newFakeBus(), nil)
	if got := tracker.classify(cfg, prev, next); got != models.ChangeTick {
		t.Errorf("classify() = %v, want ChangeTick while paused", got)
	}
}

// TestPollIsolatesFailures: one failing player becomes a removal, the
// healthy player still polls normally.
func TestPollIsolatesFailures(t *testing.T) {
	const vlc = "org.mpris.MediaPlayer2.vlc"
	const mpv = "org.mpris.MediaPlayer2.mpv"

	bus := newFakeBus()
	bus.names = []string{mpv, vlc}
	bus.root[mpv] = map[string]dbus.Variant{"Identity": dbus.MakeVariant("mpv")}
	bus.player[mpv] = playerProps("Song M", "Playing", 5*time.Second)

	tracker := NewTracker(bus, nil)
	cfg := testConfig()
	ctx := context.Background()

	if _, err := tracker.Poll(ctx, cfg); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}

	bus.playerErr[vlc] = errors.New("player hung")
	bus.player[mpv] = playerProps("Song M", "Paused", 5*time.Second)

	changes, err := tracker.Poll(ctx, cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}

	byIdentity := map[string]models.ChangeKind{}
	for _, c := range changes {
		byIdentity[c.Session.Identity] = c.Kind
	}
	if byIdentity["mpv"] != models.ChangeStatus {
		t.Errorf("mpv change = %v, want ChangeStatus", byIdentity["mpv"])
	}
	if byIdentity["vlc_media_player"] != models.ChangeRemoved {
		t.Errorf("vlc change = %v, want ChangeRemoved", byIdentity["vlc_media_player"])
	}
}

func TestPollAllowedPlayersFilter(t *testing.T) {
	bus := newFakeBus()
	tracker := NewTracker(bus, nil)
	cfg := testConfig()
	cfg.AllowedPlayers = []string{"mpv"}

	changes, err := tracker.Poll(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("filtered poll produced %v, want none", changes)
	}
}

type fakeEnricher struct {
	calls int
	tags  models.TrackTags
	err   error
}

func (f *fakeEnricher) TrackTags(path string) (models.TrackTags, error) {
	f.calls++
	return f.tags, f.err
}

func TestPollEnrichesLocalFilesOnce(t *testing.T) {
	const vlc = "org.mpris.MediaPlayer2.vlc"
	bus := newFakeBus()
	props := playerProps("Song X", "Playing", 10*time.Second)
	md := props["Metadata"].Value().(map[string]dbus.Variant)
	md["xesam:url"] = dbus.MakeVariant("file:///music/song%20x.flac")
	bus.player[vlc] = props

	enricher := &fakeEnricher{tags: models.TrackTags{
		TrackTotal: 12,
		Label:      "Jagjaguwar",
		Audio:      models.AudioProperties{SampleRateHz: 44100, BitDepth: 16, Channels: 2},
	}}
	tracker := NewTracker(bus, enricher)
	cfg := testConfig()

	changes, err := tracker.Poll(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	got := changes[0].Session.Metadata
	if got.TrackTotal != 12 || got.Label != "Jagjaguwar" {
		t.Errorf("enriched metadata = %+v, want track total and label filled", got)
	}
	if got.Audio.SampleRateHz != 44100 {
		t.Errorf("Audio = %+v, want sample rate 44100", got.Audio)
	}

	// Unchanged track: the previous snapshot carries the enrichment
	// forward without another file read.
	changes, err = tracker.Poll(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second Poll() error: %v", err)
	}
	if changes[0].Kind != models.ChangeTick {
		t.Errorf("second poll kind = %v, want %v", changes[0].Kind, models.ChangeTick)
	}
	if changes[0].Session.Metadata.TrackTotal != 12 {
		t.Errorf("carried TrackTotal = %d, want 12", changes[0].Session.Metadata.TrackTotal)
	}
	if enricher.calls != 1 {
		t.Errorf("enricher calls = %d, want 1", enricher.calls)
	}

	// Track change: the new file is read.
	props = playerProps("Song Y", "Playing", 0)
	md = props["Metadata"].Value().(map[string]dbus.Variant)
	md["xesam:url"] = dbus.MakeVariant("file:///music/song%20y.flac")
	bus.player[vlc] = props

	if _, err := tracker.Poll(context.Background(), cfg); err != nil {
		t.Fatalf("third Poll() error: %v", err)
	}
	if enricher.calls != 2 {
		t.Errorf("enricher calls = %d, want 2", enricher.calls)
	}
}

func TestPollSkipsEnrichmentForStreams(t *testing.T) {
	const vlc = "org.mpris.MediaPlayer2.vlc"
	bus := newFakeBus()
	props := playerProps("Radio", "Playing", 0)
	md := props["Metadata"].Value().(map[string]dbus.Variant)
	md["xesam:url"] = dbus.MakeVariant("https://radio.example.com/stream")
	bus.player[vlc] = props

	enricher := &fakeEnricher{}
	tracker := NewTracker(bus, enricher)

	if _, err := tracker.Poll(context.Background(), testConfig()); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if enricher.calls != 0 {
		t.Errorf("enricher calls = %d, want 0 for a stream", enricher.calls)
	}
}

func TestParseMetadataDefensive(t *testing.T) {
	raw := map[string]dbus.Variant{
		"xesam:title":          dbus.MakeVariant("Song X"),
		"xesam:artist":         dbus.MakeVariant("Solo Artist"), // bare string, not array
		"xesam:trackNumber":    dbus.MakeVariant(int32(3)),
		"mpris:length":         dbus.MakeVariant(uint64(245_000_000)),
		"xesam:contentCreated": dbus.MakeVariant("2021-04-01T00:00:00Z"),
	}

	md := parseMetadata(raw)
	if md.Title != "Song X" {
		t.Errorf("Title = %q", md.Title)
	}
	if len(md.Artists) != 1 || md.Artists[0] != "Solo Artist" {
		t.Errorf("Artists = %v, want bare string promoted to list", md.Artists)
	}
	if md.TrackNumber != 3 {
		t.Errorf("TrackNumber = %d, want 3", md.TrackNumber)
	}
	if md.Duration != 245*time.Second {
		t.Errorf("Duration = %v, want 245s", md.Duration)
	}
	if md.Year != 2021 {
		t.Errorf("Year = %d, want 2021", md.Year)
	}
}
