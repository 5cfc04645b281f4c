// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package mpris discovers and polls MPRIS media players over the D-Bus
// session bus, producing typed change events for the scheduler. The bus
// is read-only: no control methods are ever invoked.
package mpris

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// MPRIS D-Bus constants.
const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisInterface  = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propsGetAll     = "org.freedesktop.DBus.Properties.GetAll"
	dbusListNames   = "org.freedesktop.DBus.ListNames"
	dbusService     = "org.freedesktop.DBus"
	dbusPath        = dbus.ObjectPath("/org/freedesktop/DBus")
)

// busConn is the narrow slice of D-Bus the tracker needs. Carved out so
// tests can substitute a fake bus.
type busConn interface {
	// ListPlayers returns the bus names currently exporting the MPRIS
	// interface.
	ListPlayers(ctx context.Context) ([]string, error)

	// RootProperties reads the org.mpris.MediaPlayer2 properties
	// (Identity and friends) of one player.
	RootProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error)

	// PlayerProperties reads the org.mpris.MediaPlayer2.Player
	// properties (Metadata, PlaybackStatus, Position, Rate, Volume).
	PlayerProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error)

	Close() error
}

// sessionBus implements busConn over a live session-bus connection.
type sessionBus struct {
	conn *dbus.Conn
}

// Connect opens a private session-bus connection. Startup fails when no
// session bus is reachable; every later error is per-tick and isolated.
func Connect() (busConn, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("failed to open session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus auth failed: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus hello failed: %w", err)
	}
	return &sessionBus{conn: conn}, nil
}

func (b *sessionBus) ListPlayers(ctx context.Context) ([]string, error) {
	var names []string
	obj := b.conn.Object(dbusService, dbusPath)
	if err := obj.CallWithContext(ctx, dbusListNames, 0).Store(&names); err != nil {
		return nil, fmt.Errorf("ListNames failed: %w", err)
	}

	players := names[:0]
	for _, name := range names {
		if len(name) > len(mprisPrefix) && name[:len(mprisPrefix)] == mprisPrefix {
			players = append(players, name)
		}
	}
	return players, nil
}

func (b *sessionBus) RootProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error) {
	return b.getAll(ctx, busName, mprisInterface)
}

func (b *sessionBus) PlayerProperties(ctx context.Context, busName string) (map[string]dbus.Variant, error) {
	return b.getAll(ctx, busName, playerInterface)
}

func (b *sessionBus) getAll(ctx context.Context, busName, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	obj := b.conn.Object(busName, mprisPath)
	if err := obj.CallWithContext(ctx, propsGetAll, 0, iface).Store(&props); err != nil {
		return nil, fmt.Errorf("GetAll %s on %s failed: %w", iface, busName, err)
	}
	return props, nil
}

func (b *sessionBus) Close() error {
	return b.conn.Close()
}
