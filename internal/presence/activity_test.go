// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package presence

import (
	"testing"
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

func playingSession(position, length time.Duration) *models.PlayerSession {
	return &models.PlayerSession{
		BusName:  "org.mpris.MediaPlayer2.vlc",
		Identity: "vlc",
		Status:   models.StatusPlaying,
		Position: position,
		Metadata: models.TrackMetadata{
			Title:    "Holocene",
			Artists:  []string{"Bon Iver"},
			Duration: length,
		},
	}
}

func TestActivityTypeCode(t *testing.T) {
	tests := []struct {
		in   config.ActivityType
		want int
	}{
		{config.ActivityPlaying, 0},
		{config.ActivityListening, 2},
		{config.ActivityWatching, 3},
		{config.ActivityCompeting, 5},
		{config.ActivityType("bogus"), 0},
	}
	for _, tt := range tests {
		if got := activityTypeCode(tt.in); got != tt.want {
			t.Errorf("activityTypeCode(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildActivityAssetSlots(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := playingSession(time.Minute, 4*time.Minute)
	texts := Texts{Details: "Holocene", State: "Bon Iver", LargeText: "Holocene", SmallText: "Playing on vlc"}

	t.Run("art takes large slot, icon small", func(t *testing.T) {
		rule := config.ResolvedPlayer{Icon: "https://icons/vlc.png", ShowIcon: true}
		art := &models.ArtRef{URL: "https://covers/holocene.jpg"}

		act := BuildActivity(session, texts, art, rule, config.ActivityListening, config.TimeConfig{}, now)
		if act.Assets == nil {
			t.Fatal("expected assets")
		}
		if act.Assets.LargeImage != art.URL {
			t.Errorf("LargeImage = %q, want cover art", act.Assets.LargeImage)
		}
		if act.Assets.SmallImage != rule.Icon {
			t.Errorf("SmallImage = %q, want player icon", act.Assets.SmallImage)
		}
		if act.Assets.SmallText != texts.SmallText {
			t.Errorf("SmallText = %q, want %q", act.Assets.SmallText, texts.SmallText)
		}
	})

	t.Run("icon hidden when rule disables it", func(t *testing.T) {
		rule := config.ResolvedPlayer{Icon: "https://icons/vlc.png", ShowIcon: false}
		art := &models.ArtRef{URL: "https://covers/holocene.jpg"}

		act := BuildActivity(session, texts, art, rule, config.ActivityListening, config.TimeConfig{}, now)
		if act.Assets.SmallImage != "" {
			t.Errorf("SmallImage = %q, want empty", act.Assets.SmallImage)
		}
	})

	t.Run("icon promoted to large slot without art", func(t *testing.T) {
		rule := config.ResolvedPlayer{Icon: "https://icons/vlc.png", ShowIcon: true}

		act := BuildActivity(session, texts, nil, rule, config.ActivityListening, config.TimeConfig{}, now)
		if act.Assets == nil || act.Assets.LargeImage != rule.Icon {
			t.Fatalf("expected player icon in large slot, got %+v", act.Assets)
		}
		if act.Assets.SmallImage != "" {
			t.Errorf("SmallImage = %q, want empty", act.Assets.SmallImage)
		}
	})

	t.Run("no art and no icon leaves assets nil", func(t *testing.T) {
		act := BuildActivity(session, texts, nil, config.ResolvedPlayer{}, config.ActivityListening, config.TimeConfig{}, now)
		if act.Assets != nil {
			t.Errorf("Assets = %+v, want nil", act.Assets)
		}
	})
}

func TestBuildTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		session   *models.PlayerSession
		cfg       config.TimeConfig
		wantStart int64
		wantEnd   int64
		wantNil   bool
	}{
		{
			name:    "disabled",
			session: playingSession(time.Minute, 4*time.Minute),
			cfg:     config.TimeConfig{Show: false},
			wantNil: true,
		},
		{
			name: "paused never shows time",
			session: &models.PlayerSession{
				Status:   models.StatusPaused,
				Position: time.Minute,
				Metadata: models.TrackMetadata{Duration: 4 * time.Minute},
			},
			cfg:     config.TimeConfig{Show: true},
			wantNil: true,
		},
		{
			name:      "elapsed counts from playback start",
			session:   playingSession(time.Minute, 4*time.Minute),
			cfg:       config.TimeConfig{Show: true, AsElapsed: true},
			wantStart: now.Add(-time.Minute).Unix(),
		},
		{
			name:    "remaining counts to track end",
			session: playingSession(time.Minute, 4*time.Minute),
			cfg:     config.TimeConfig{Show: true},
			wantEnd: now.Add(3 * time.Minute).Unix(),
		},
		{
			name:      "unknown length falls back to elapsed",
			session:   playingSession(time.Minute, 0),
			cfg:       config.TimeConfig{Show: true},
			wantStart: now.Add(-time.Minute).Unix(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildTimestamps(tt.session, tt.cfg, now)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("timestamps = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("timestamps = nil, want value")
			}
			if got.Start != tt.wantStart {
				t.Errorf("Start = %d, want %d", got.Start, tt.wantStart)
			}
			if got.End != tt.wantEnd {
				t.Errorf("End = %d, want %d", got.End, tt.wantEnd)
			}
		})
	}
}
