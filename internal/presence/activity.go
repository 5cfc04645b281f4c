// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package presence

import (
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

// Activity is the SET_ACTIVITY payload body. Empty fields are omitted
// so Discord does not render blank lines.
type Activity struct {
	Type       int         `json:"type"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

// Timestamps carries Unix-second progress markers. Start renders as
// elapsed time, End as remaining time.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets names the images shown next to the activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Texts is the rendered template output that goes into an activity.
type Texts struct {
	Details   string
	State     string
	LargeText string
	SmallText string
}

// activityTypeCode maps configured activity types to Discord's wire
// values.
func activityTypeCode(t config.ActivityType) int {
	switch t {
	case config.ActivityListening:
		return 2
	case config.ActivityWatching:
		return 3
	case config.ActivityCompeting:
		return 5
	default:
		return 0 // playing
	}
}

// BuildActivity assembles the activity for one session. Cover art, when
// resolved, takes the large image slot and pushes the player icon to
// the small slot (shown only when the rule enables it). Without art the
// icon is promoted to the large slot.
func BuildActivity(
	session *models.PlayerSession,
	texts Texts,
	art *models.ArtRef,
	rule config.ResolvedPlayer,
	activityType config.ActivityType,
	timeCfg config.TimeConfig,
	now time.Time,
) *Activity {
	act := &Activity{
		Type:    activityTypeCode(activityType),
		Details: texts.Details,
		State:   texts.State,
	}

	assets := &Assets{}
	if art != nil && art.URL != "" {
		assets.LargeImage = art.URL
		assets.LargeText = texts.LargeText
		if rule.ShowIcon && rule.Icon != "" {
			assets.SmallImage = rule.Icon
			assets.SmallText = texts.SmallText
		}
	} else if rule.Icon != "" {
		assets.LargeImage = rule.Icon
		assets.LargeText = texts.LargeText
	}
	if *assets != (Assets{}) {
		act.Assets = assets
	}

	act.Timestamps = buildTimestamps(session, timeCfg, now)
	return act
}

// buildTimestamps computes progress markers from the sampled position.
// Timestamps only make sense while playing; a paused presence would
// show a ticking clock for frozen media.
func buildTimestamps(session *models.PlayerSession, cfg config.TimeConfig, now time.Time) *Timestamps {
	if !cfg.Show || session.Status != models.StatusPlaying {
		return nil
	}

	if cfg.AsElapsed {
		return &Timestamps{Start: now.Add(-session.Position).Unix()}
	}

	length := session.Metadata.Duration
	if length <= 0 || session.Position > length {
		// Unknown or bogus length: fall back to elapsed.
		return &Timestamps{Start: now.Add(-session.Position).Unix()}
	}
	return &Timestamps{End: now.Add(length - session.Position).Unix()}
}
