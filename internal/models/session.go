// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package models holds the shared data types flowing between the player
// tracker, the cover-art resolver, the scheduler, and the presence
// publisher.
package models

import (
	"fmt"
	"time"
)

// PlaybackStatus is the MPRIS playback state of a session.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

// ChangeKind classifies what changed between two consecutive polls of one
// session.
type ChangeKind int

const (
	// ChangeTick means time advanced as predicted; nothing else changed.
	ChangeTick ChangeKind = iota
	// ChangeAdded means the session was seen for the first time.
	ChangeAdded
	// ChangeRemoved means the session vanished from the bus.
	ChangeRemoved
	// ChangeMetadata means the normalized track metadata differs.
	ChangeMetadata
	// ChangeStatus means the playback status differs.
	ChangeStatus
	// ChangeSeek means the observed position left the predicted band.
	ChangeSeek
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeTick:
		return "tick"
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeMetadata:
		return "metadata"
	case ChangeStatus:
		return "status"
	case ChangeSeek:
		return "seek"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// PlayerSession is one discovered, currently-reachable media player.
// Created on first discovery, updated every tick, destroyed when absent
// from a poll.
type PlayerSession struct {
	// BusName is the unique D-Bus name owning the MPRIS object
	// (e.g. ":1.42").
	BusName string

	// Identity is the normalized player identity ("VLC media player" →
	// "vlc_media_player"), used for config rule lookup.
	Identity string

	Status   PlaybackStatus
	Position time.Duration
	Rate     float64
	Volume   float64

	// Metadata is the last normalized track snapshot; replaced wholesale
	// on change, never mutated in place.
	Metadata TrackMetadata

	// LastSeen is when the session last appeared in a poll.
	LastSeen time.Time

	// SampledAt is the wall-clock instant Position was read, used to
	// predict the next expected position.
	SampledAt time.Time
}

// Key returns the map key identifying this session across ticks.
// The bus name is unique per connection, so two instances of the same
// player remain distinct.
func (s *PlayerSession) Key() string {
	return s.BusName
}

func (s *PlayerSession) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Identity, s.BusName, s.Status)
}

// Change pairs a session with the kind of change a poll detected for it.
type Change struct {
	Session *PlayerSession
	Kind    ChangeKind
}
