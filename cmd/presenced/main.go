// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package main is the entry point for the presenced daemon.
//
// Presenced mirrors the playback state of MPRIS-capable media players
// (VLC, mpv, Spotify, browsers, ...) onto Discord Rich Presence via the
// local Discord client's IPC socket.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: layered defaults, bundled player rules, config
//     file and environment variables (Koanf v2)
//  2. Session bus: a private D-Bus connection for MPRIS polling
//  3. Cover cache: BadgerDB store for resolved cover art
//  4. Pipeline: tracker, cover resolver, template renderer, publisher
//  5. Supervisor tree: scheduler, cache maintenance, config watcher
//     and the optional Prometheus listener
//
// # Configuration
//
// The config file is discovered at $XDG_CONFIG_HOME/presenced/config.yaml
// (override with PRESENCED_CONFIG). Every setting can also be supplied
// via PRESENCED_* environment variables; the file is watched and
// reloaded on change without restarting the daemon.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the scheduler stops,
// presences are left for Discord to expire, and the cover cache is
// closed cleanly.
//
// # Example Usage
//
// Run with defaults (Discord and at least one MPRIS player running):
//
//	./presenced
//
// Verbose logging and a custom config file:
//
//	export PRESENCED_CONFIG=/etc/presenced/config.yaml
//	export PRESENCED_LOG_LEVEL=debug
//	./presenced
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/cover"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/mpris"
	"github.com/presenced/presenced/internal/presence"
	"github.com/presenced/presenced/internal/scheduler"
	"github.com/presenced/presenced/internal/supervisor"
	"github.com/presenced/presenced/internal/template"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, path, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logging.Info().
		Str("config", path).
		Dur("interval", cfg.Interval).
		Msg("Starting presenced")

	store := config.NewStore(cfg, path)

	// The session bus is required: without it there is nothing to
	// track. Discord, in contrast, may come and go at runtime.
	bus, err := mpris.Connect()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to the D-Bus session bus")
	}
	tagReader := cover.NewFileTagReader()
	tracker := mpris.NewTracker(bus, tagReader)
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session bus")
		}
	}()

	cache, err := cover.OpenCache(cfg.Cover.CacheDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cover art cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cover art cache")
		}
	}()

	resolver := cover.NewResolver(cache, tagReader, nil)
	publisher := presence.NewPublisher()
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing Discord connections")
		}
	}()

	sched := scheduler.New(store, tracker, resolver, publisher, &template.Simple{})

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(sched)
	tree.AddPipelineService(cache)
	if path != "" {
		tree.AddSupportService(store)
	}
	if cfg.Metrics.Enabled {
		tree.AddSupportService(supervisor.NewMetricsService(cfg.Metrics.Listen, 0))
		logging.Info().Str("listen", cfg.Metrics.Listen).Msg("Metrics listener enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for services to stop...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Presenced stopped gracefully")
}
