// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
	"github.com/presenced/presenced/internal/models"
)

// clearFingerprint marks a record whose last send was a clear.
const clearFingerprint uint64 = 0

// record remembers what was last sent for a session. The epoch pins the
// fingerprint to one connection: after a reconnect Discord has
// forgotten our state, so an identical payload must go out again.
type record struct {
	appID       string
	fingerprint uint64
	epoch       uint64
}

// Publisher maps player sessions onto Discord activities. It keeps one
// IPC client per application id, since the handshake binds a single
// client_id for the connection's lifetime.
type Publisher struct {
	mu      sync.Mutex
	clients map[string]*Client
	records map[string]*record

	// newClient is swapped out in tests.
	newClient func(appID string) *Client
	now       func() time.Time
}

// NewPublisher creates a publisher with no open connections.
func NewPublisher() *Publisher {
	return &Publisher{
		clients:   make(map[string]*Client),
		records:   make(map[string]*record),
		newClient: NewClient,
		now:       time.Now,
	}
}

func (p *Publisher) clientFor(appID string) *Client {
	c, ok := p.clients[appID]
	if !ok {
		c = p.newClient(appID)
		p.clients[appID] = c
	}
	return c
}

// Publish mirrors one session onto Discord. Depending on status and the
// player rule this sends an activity, an explicit clear, or nothing.
func (p *Publisher) Publish(
	ctx context.Context,
	session *models.PlayerSession,
	texts Texts,
	art *models.ArtRef,
	rule config.ResolvedPlayer,
	activityType config.ActivityType,
	cfg *config.Config,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	appID := rule.AppID
	if appID == "" {
		appID = config.DefaultAppID
	}

	if session.Status == models.StatusStopped {
		return p.clear(ctx, session.BusName, appID, "stopped")
	}
	if session.Status == models.StatusPaused && cfg.ClearOnPause {
		return p.clear(ctx, session.BusName, appID, "paused")
	}
	if session.Metadata.IsWebStream() && !rule.AllowStreaming {
		return p.clear(ctx, session.BusName, appID, "streaming disallowed")
	}

	activity := BuildActivity(session, texts, art, rule, activityType, cfg.Time, p.now())
	fp := activityFingerprint(appID, activity)

	// The record only suppresses while its connection is still up: a
	// dropped socket takes the presence with it, and the epoch will not
	// advance until the next successful handshake.
	client := p.clientFor(appID)
	rec := p.records[session.BusName]
	if rec != nil && rec.appID == appID && rec.fingerprint == fp &&
		rec.epoch == client.Epoch() && client.State() == StateConnected {
		metrics.PresencePublishes.WithLabelValues("suppressed").Inc()
		return nil
	}

	// A rule change can move a session to a different application id;
	// the presence under the old id must not linger.
	if rec != nil && rec.appID != appID {
		if err := p.clearOn(ctx, rec.appID, session.BusName); err != nil {
			logging.Warn().Err(err).
				Str("bus_name", session.BusName).
				Str("app_id", rec.appID).
				Msg("Failed to clear presence on previous application id")
		}
	}

	if err := client.SetActivity(ctx, activity); err != nil {
		if errors.Is(err, ErrNotConnected) {
			metrics.PresencePublishes.WithLabelValues("suppressed").Inc()
			return err
		}
		metrics.PresencePublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", session.BusName, err)
	}

	p.records[session.BusName] = &record{appID: appID, fingerprint: fp, epoch: client.Epoch()}
	metrics.PresencePublishes.WithLabelValues("sent").Inc()

	logging.Debug().
		Str("bus_name", session.BusName).
		Str("app_id", appID).
		Str("details", activity.Details).
		Msg("Presence published")
	return nil
}

// Clear removes the presence for a session, used when a player vanishes
// from the bus or a reloaded rule now ignores it.
func (p *Publisher) Clear(ctx context.Context, busName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.records[busName]
	if rec == nil {
		return nil
	}
	return p.clear(ctx, busName, rec.appID, "removed")
}

// Drop forgets a session without touching the wire. Used when the
// connection is already gone.
func (p *Publisher) Drop(busName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, busName)
}

// clear sends an empty SET_ACTIVITY unless the last send for this
// session on the current connection was already a clear.
func (p *Publisher) clear(ctx context.Context, busName, appID, reason string) error {
	client := p.clientFor(appID)
	rec := p.records[busName]
	if rec != nil && rec.appID == appID && rec.fingerprint == clearFingerprint &&
		rec.epoch == client.Epoch() && client.State() == StateConnected {
		return nil
	}
	// Without a live connection nothing is showing: Discord drops the
	// presence when the socket dies, so there is nothing to clear and
	// no point reconnecting just to say so.
	if client.State() != StateConnected {
		return nil
	}

	if err := p.clearOn(ctx, appID, busName); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return err
		}
		metrics.PresencePublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("clear %s: %w", busName, err)
	}

	p.records[busName] = &record{appID: appID, fingerprint: clearFingerprint, epoch: client.Epoch()}
	metrics.PresencePublishes.WithLabelValues("cleared").Inc()

	logging.Debug().
		Str("bus_name", busName).
		Str("reason", reason).
		Msg("Presence cleared")
	return nil
}

func (p *Publisher) clearOn(ctx context.Context, appID, busName string) error {
	return p.clientFor(appID).SetActivity(ctx, nil)
}

// Close tears down every client connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// activityFingerprint hashes the fields Discord actually renders. Two
// payloads with the same fingerprint produce the same presence, so
// resending is pure churn.
func activityFingerprint(appID string, a *Activity) uint64 {
	h := xxhash.New()
	sep := []byte{0}

	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write(sep)
	}

	write(appID)
	write(strconv.Itoa(a.Type))
	write(a.Details)
	write(a.State)
	if a.Assets != nil {
		write(a.Assets.LargeImage)
		write(a.Assets.LargeText)
		write(a.Assets.SmallImage)
		write(a.Assets.SmallText)
	}
	if a.Timestamps != nil {
		write(strconv.FormatInt(a.Timestamps.Start, 10))
		write(strconv.FormatInt(a.Timestamps.End, 10))
	}

	fp := h.Sum64()
	if fp == clearFingerprint {
		fp = 1
	}
	return fp
}
