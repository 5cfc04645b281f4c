// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"time"
)

// Built-in fallbacks applied when neither user nor bundled player rules
// specify a value.
const (
	// DefaultAppID is the Discord application registered for generic players.
	DefaultAppID = "1121632048155742288"

	// DefaultIcon is shown as the small image when a player has no icon of
	// its own configured.
	DefaultIcon = "https://raw.githubusercontent.com/presenced/presenced/main/assets/icon.png"
)

// Default template strings. The renderer receives the normalized metadata
// context; triple braces disable HTML escaping.
const (
	DefaultDetailTemplate    = "{{{title}}}"
	DefaultStateTemplate     = "{{{status_icon}}} {{{artists}}}"
	DefaultLargeTextTemplate = "{{#if album}}{{{album}}}{{else}}{{{title}}}{{/if}}"
	DefaultSmallTextTemplate = "Playing on {{player}}"
	DefaultUnknownText       = "Unknown"
)

// ActivityType selects how Discord labels the presence ("Listening to",
// "Watching", plain "Playing", or "Competing in").
type ActivityType string

const (
	ActivityListening ActivityType = "listening"
	ActivityWatching  ActivityType = "watching"
	ActivityPlaying   ActivityType = "playing"
	ActivityCompeting ActivityType = "competing"
)

// Valid reports whether t is one of the recognized activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityListening, ActivityWatching, ActivityPlaying, ActivityCompeting:
		return true
	}
	return false
}

// Config is the root configuration schema. All fields carry koanf tags so
// the layered loader can unmarshal defaults, YAML files, and environment
// variables into the same structure.
type Config struct {
	// Interval is the scheduler tick period.
	Interval time.Duration `koanf:"interval"`

	// ClearOnPause clears the presence instead of freezing it when a
	// player pauses.
	ClearOnPause bool `koanf:"clear_on_pause"`

	// AllowedPlayers restricts tracking to the listed normalized
	// identities. Empty means all players are tracked.
	AllowedPlayers []string `koanf:"allowed_players"`

	Template     TemplateConfig     `koanf:"template"`
	Time         TimeConfig         `koanf:"time"`
	ActivityType ActivityTypeConfig `koanf:"activity_type"`
	Cover        CoverConfig        `koanf:"cover"`
	Tracker      TrackerConfig      `koanf:"tracker"`

	// Player maps a normalized identity, regex pattern, or wildcard
	// pattern to a partial rule. The reserved key "default" overrides the
	// fallback rule for all players.
	Player map[string]PlayerRule `koanf:"player" validate:"omitempty,dive"`

	// BundledPlayers holds the embedded rule layer. Populated by the
	// loader, never from the user file.
	BundledPlayers map[string]PlayerRule `koanf:"-" validate:"omitempty,dive"`

	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// TemplateConfig holds the template strings handed to the external
// renderer for each activity text field.
type TemplateConfig struct {
	Detail      string `koanf:"detail"`
	State       string `koanf:"state"`
	LargeText   string `koanf:"large_text"`
	SmallText   string `koanf:"small_text"`
	UnknownText string `koanf:"unknown_text"`
}

// TimeConfig controls progress timestamps on the activity.
type TimeConfig struct {
	// Show enables start/end timestamps at all.
	Show bool `koanf:"show"`

	// AsElapsed counts up from the start of playback instead of counting
	// down to the end of the track.
	AsElapsed bool `koanf:"as_elapsed"`
}

// ActivityTypeConfig controls how the Discord activity type is chosen.
type ActivityTypeConfig struct {
	// UseContentType infers the type from the media MIME type or URL
	// extension (video -> watching, audio -> listening).
	UseContentType bool `koanf:"use_content_type"`

	// Default applies when inference is disabled or inconclusive and no
	// per-player override matches.
	Default ActivityType `koanf:"default" validate:"omitempty,oneof=listening watching playing competing"`
}

// CoverConfig controls cover-art resolution and caching.
type CoverConfig struct {
	// FileNames are base names (no extension) searched for sibling cover
	// files next to local media.
	FileNames []string `koanf:"file_names"`

	// ParentDirs is how many directories above the media file are also
	// searched for sibling covers.
	ParentDirs int `koanf:"parent_dirs" validate:"gte=0,lte=8"`

	// CacheDir is the on-disk cache location. Empty selects the XDG cache
	// home at startup.
	CacheDir string `koanf:"cache_dir"`

	// TTL bounds how long a resolved entry stays valid. Zero disables
	// expiry entirely.
	TTL time.Duration `koanf:"ttl"`

	Provider CoverProviderConfig `koanf:"provider"`
}

// CoverProviderConfig holds the ordered provider chain and each
// provider's settings.
type CoverProviderConfig struct {
	// Provider lists provider names in resolution order.
	Provider []string `koanf:"provider" validate:"dive,oneof=musicbrainz imgbb catbox"`

	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`
	ImgBB       ImgBBConfig       `koanf:"imgbb"`
	Catbox      CatboxConfig      `koanf:"catbox"`
}

// MusicBrainzConfig tunes the metadata-lookup provider.
type MusicBrainzConfig struct {
	// MinScore rejects search results scored below this threshold.
	MinScore int `koanf:"min_score" validate:"gte=0,lte=100"`

	// DurationTolerance is the accepted window around the track duration
	// when matching recordings.
	DurationTolerance time.Duration `koanf:"duration_tolerance"`
}

// ImgBBConfig configures the imgbb upload host.
type ImgBBConfig struct {
	APIKey string `koanf:"api_key"`

	// Expiration is the hosted image lifetime requested from imgbb. Zero
	// keeps the host's default.
	Expiration time.Duration `koanf:"expiration"`
}

// CatboxConfig configures the catbox upload host.
type CatboxConfig struct {
	UserHash string `koanf:"user_hash"`

	// UseLitter uploads to litterbox (anonymous, auto-expiring) instead
	// of permanent catbox storage.
	UseLitter bool `koanf:"use_litter"`

	// LitterHours is the litterbox retention period. Valid values are
	// 1, 12, 24 and 72.
	LitterHours int `koanf:"litter_hours" validate:"omitempty,oneof=1 12 24 72"`
}

// TrackerConfig tunes player polling and change classification.
type TrackerConfig struct {
	// BusTimeout bounds every individual D-Bus call.
	BusTimeout time.Duration `koanf:"bus_timeout"`

	// SeekJitter is how far the observed position may drift from the
	// predicted position before a change classifies as a seek.
	SeekJitter time.Duration `koanf:"seek_jitter"`
}

// PlayerRule is one layer of per-player configuration. Pointer fields
// distinguish "unset" from an explicit zero so layers can merge
// field by field.
type PlayerRule struct {
	// Ignore excludes the player from presence entirely.
	Ignore *bool `koanf:"ignore"`

	// AppID is the Discord application ID used for this player.
	AppID *string `koanf:"app_id"`

	// Icon is the small-image URL identifying the player.
	Icon *string `koanf:"icon"`

	// ShowIcon controls whether the player icon appears as the small
	// image alongside cover art.
	ShowIcon *bool `koanf:"show_icon"`

	// AllowStreaming permits presence for web-streamed media. When false
	// and the track URL is http(s), the presence is cleared.
	AllowStreaming *bool `koanf:"allow_streaming"`

	// OverrideActivityType forces the activity type for this player.
	OverrideActivityType *ActivityType `koanf:"override_activity_type" validate:"omitempty,oneof=listening watching playing competing"`
}

// LogConfig controls the zerolog global logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"omitempty,oneof=console json"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Default returns a Config with every field at its built-in default,
// without the bundled player rules loaded.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with every field at its built-in
// default. These are applied first, then overridden by the bundled
// player rules, the config file, and environment variables.
func defaultConfig() *Config {
	return &Config{
		Interval:       2 * time.Second,
		ClearOnPause:   true,
		AllowedPlayers: nil, // all players
		Template: TemplateConfig{
			Detail:      DefaultDetailTemplate,
			State:       DefaultStateTemplate,
			LargeText:   DefaultLargeTextTemplate,
			SmallText:   DefaultSmallTextTemplate,
			UnknownText: DefaultUnknownText,
		},
		Time: TimeConfig{
			Show:      true,
			AsElapsed: false,
		},
		ActivityType: ActivityTypeConfig{
			UseContentType: false,
			Default:        ActivityListening,
		},
		Cover: CoverConfig{
			FileNames:  []string{"cover", "folder", "front", "album", "art"},
			ParentDirs: 0,
			CacheDir:   "", // resolved to XDG cache home at startup
			TTL:        24 * time.Hour,
			Provider: CoverProviderConfig{
				// imgbb/catbox join the chain explicitly; imgbb needs a key.
				Provider: []string{"musicbrainz"},
				MusicBrainz: MusicBrainzConfig{
					MinScore:          90,
					DurationTolerance: 5 * time.Second,
				},
				ImgBB: ImgBBConfig{
					APIKey:     "",
					Expiration: 24 * time.Hour,
				},
				Catbox: CatboxConfig{
					UserHash:    "",
					UseLitter:   true,
					LitterHours: 24,
				},
			},
		},
		Tracker: TrackerConfig{
			BusTimeout: 5 * time.Second,
			SeekJitter: 1500 * time.Millisecond,
		},
		Player: nil, // merged from bundled rules and the user file
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9719",
		},
	}
}
