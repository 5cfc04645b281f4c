// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"net/http"
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/models"
)

// providerTimeout bounds one provider attempt end to end.
const providerTimeout = 15 * time.Second

// Request is the input to one provider attempt.
type Request struct {
	Track *models.TrackMetadata

	// LocalArt carries image bytes found by the local sources; upload
	// hosts need it and skip themselves when it is empty.
	LocalArt []byte
}

// Result is a successful provider resolution.
type Result struct {
	URL string

	// ExpiresAt bounds the hosted URL's lifetime; zero means the
	// resolver applies the configured cache TTL instead.
	ExpiresAt time.Time
}

// Provider is one member of the configured resolution chain. Attempt
// returns (nil, nil) for a clean miss; errors only eliminate this
// provider for this resolution.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, req *Request) (*Result, error)
}

// buildProviders instantiates the configured chain in order. Unknown
// names are rejected at config validation, so this never drops entries.
// Every provider is wrapped in a circuit breaker so a provider outage
// degrades to an instant miss instead of a timeout per tick.
func buildProviders(cfg *config.CoverProviderConfig, client *http.Client) []Provider {
	providers := make([]Provider, 0, len(cfg.Provider))
	for _, name := range cfg.Provider {
		var p Provider
		switch name {
		case "musicbrainz":
			p = newMusicBrainzProvider(&cfg.MusicBrainz, client)
		case "imgbb":
			p = newImgBBProvider(&cfg.ImgBB, client)
		case "catbox":
			p = newCatboxProvider(&cfg.Catbox, client)
		default:
			continue
		}
		providers = append(providers, withBreaker(p))
	}
	return providers
}
