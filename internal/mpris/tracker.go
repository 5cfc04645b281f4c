// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package mpris

import (
	"context"
	"sort"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metadata"
	"github.com/presenced/presenced/internal/metrics"
	"github.com/presenced/presenced/internal/models"
)

// TagEnricher reads the metadata a local file's own tags carry beyond
// what the bus exposes. A nil enricher disables enrichment.
type TagEnricher interface {
	TrackTags(path string) (models.TrackTags, error)
}

// Tracker polls the session bus and diffs consecutive samples into
// typed changes. Discovery runs fresh on every poll; only the identity
// of a bus name is cached, since it cannot change while the name is
// owned.
type Tracker struct {
	bus        busConn
	tags       TagEnricher
	sessions   map[string]*models.PlayerSession
	identities map[string]string

	// now is swapped in tests to control predicted-position math.
	now func() time.Time
}

// NewTracker wraps an open bus connection.
func NewTracker(bus busConn, tags TagEnricher) *Tracker {
	return &Tracker{
		bus:        bus,
		tags:       tags,
		sessions:   make(map[string]*models.PlayerSession),
		identities: make(map[string]string),
		now:        time.Now,
	}
}

// Close releases the bus connection.
func (t *Tracker) Close() error {
	return t.bus.Close()
}

// Poll discovers all reachable players and returns one change per
// session, in deterministic order. A failing or vanished player is
// reported as removed and never aborts the poll; only a failure to list
// bus names at all is returned as an error.
func (t *Tracker) Poll(ctx context.Context, cfg *config.Config) ([]models.Change, error) {
	listCtx, cancel := context.WithTimeout(ctx, cfg.Tracker.BusTimeout)
	names, err := t.bus.ListPlayers(listCtx)
	cancel()
	if err != nil {
		metrics.BusPollErrors.Inc()
		return nil, err
	}
	sort.Strings(names)

	changes := make([]models.Change, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, busName := range names {
		identity, ok := t.identity(ctx, cfg, busName)
		if !ok {
			continue // unreachable this tick; retried next poll
		}
		if !cfg.IsPlayerAllowed(identity) {
			continue
		}

		session, err := t.sample(ctx, cfg, busName, identity)
		if err != nil {
			metrics.BusPollErrors.Inc()
			logging.Warn().Err(err).Str("player", identity).
				Msg("Player poll failed, treating as removed")
			if prev, tracked := t.sessions[busName]; tracked {
				delete(t.sessions, busName)
				delete(t.identities, busName)
				changes = append(changes, models.Change{Session: prev, Kind: models.ChangeRemoved})
				metrics.SessionChanges.WithLabelValues(models.ChangeRemoved.String()).Inc()
			}
			continue
		}

		seen[busName] = true
		kind := t.classify(cfg, t.sessions[busName], session)
		t.sessions[busName] = session
		changes = append(changes, models.Change{Session: session, Kind: kind})
		metrics.SessionChanges.WithLabelValues(kind.String()).Inc()
	}

	// Anything tracked but no longer on the bus is gone.
	for busName, prev := range t.sessions {
		if !seen[busName] {
			delete(t.sessions, busName)
			delete(t.identities, busName)
			changes = append(changes, models.Change{Session: prev, Kind: models.ChangeRemoved})
			metrics.SessionChanges.WithLabelValues(models.ChangeRemoved.String()).Inc()
		}
	}

	metrics.SessionsActive.Set(float64(len(t.sessions)))
	return changes, nil
}

// identity resolves and caches the normalized identity of a bus name.
func (t *Tracker) identity(ctx context.Context, cfg *config.Config, busName string) (string, bool) {
	if identity, ok := t.identities[busName]; ok {
		return identity, true
	}

	propCtx, cancel := context.WithTimeout(ctx, cfg.Tracker.BusTimeout)
	props, err := t.bus.RootProperties(propCtx, busName)
	cancel()
	if err != nil {
		metrics.BusPollErrors.Inc()
		logging.Debug().Err(err).Str("bus_name", busName).Msg("Identity read failed")
		return "", false
	}

	identity := variantString(props, "Identity")
	if identity == "" {
		// Fall back to the well-known name suffix.
		identity = busName[len(mprisPrefix):]
	}
	normalized := metadata.NormalizeIdentity(identity)
	t.identities[busName] = normalized
	return normalized, true
}

// sample reads one full property snapshot for a player.
func (t *Tracker) sample(ctx context.Context, cfg *config.Config, busName, identity string) (*models.PlayerSession, error) {
	propCtx, cancel := context.WithTimeout(ctx, cfg.Tracker.BusTimeout)
	props, err := t.bus.PlayerProperties(propCtx, busName)
	cancel()
	if err != nil {
		return nil, err
	}

	now := t.now()
	session := &models.PlayerSession{
		BusName:   busName,
		Identity:  identity,
		Status:    parseStatus(variantString(props, "PlaybackStatus")),
		Position:  time.Duration(variantInt64(props, "Position")) * time.Microsecond,
		Rate:      variantFloat(props, "Rate"),
		Volume:    variantFloat(props, "Volume"),
		LastSeen:  now,
		SampledAt: now,
	}
	if session.Rate == 0 {
		session.Rate = 1.0
	}

	// Metadata is a{sv}; godbus surfaces it as a nested variant map.
	if mdVariant, ok := props["Metadata"]; ok {
		if raw, ok := mdVariant.Value().(map[string]dbus.Variant); ok {
			session.Metadata = parseMetadata(raw)
		}
	}
	t.enrich(busName, &session.Metadata)

	return session, nil
}

// enrich merges tag-derived fields into a local file's metadata. The
// file is read once per track: while the URL is unchanged the previous
// snapshot's values are carried forward, so change classification stays
// stable and the disk is not hit on every tick.
func (t *Tracker) enrich(busName string, md *models.TrackMetadata) {
	if t.tags == nil {
		return
	}
	if prev := t.sessions[busName]; prev != nil && md.URL != "" && prev.Metadata.URL == md.URL {
		md.MergeTags(prev.Metadata.Tags())
		return
	}
	path, ok := md.LocalPath()
	if !ok {
		return
	}
	tags, err := t.tags.TrackTags(path)
	if err != nil {
		logging.Debug().Err(err).Str("bus_name", busName).Msg("Tag enrichment failed")
		return
	}
	md.MergeTags(tags)
}

// classify compares the new sample against the previous one. At most one
// kind is reported per session per tick, in priority order: metadata,
// status, seek, tick.
func (t *Tracker) classify(cfg *config.Config, prev, next *models.PlayerSession) models.ChangeKind {
	if prev == nil {
		return models.ChangeAdded
	}
	if !next.Metadata.Equal(&prev.Metadata) {
		return models.ChangeMetadata
	}
	if next.Status != prev.Status {
		return models.ChangeStatus
	}
	if prev.Status == models.StatusPlaying && next.Status == models.StatusPlaying {
		elapsed := next.SampledAt.Sub(prev.SampledAt)
		predicted := prev.Position + time.Duration(float64(elapsed)*prev.Rate)
		drift := next.Position - predicted
		if drift < 0 {
			drift = -drift
		}
		if drift > cfg.Tracker.SeekJitter {
			return models.ChangeSeek
		}
	}
	return models.ChangeTick
}

func parseStatus(s string) models.PlaybackStatus {
	switch s {
	case "Playing":
		return models.StatusPlaying
	case "Paused":
		return models.StatusPaused
	default:
		return models.StatusStopped
	}
}
