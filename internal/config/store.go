// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package config

import (
	"context"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"

	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
)

// Store owns the current configuration snapshot and hot-reloads it when
// the user config file changes. Readers call Current and get a complete,
// immutable snapshot; a reload swaps the pointer, it never mutates an
// installed snapshot in place.
type Store struct {
	current atomic.Pointer[Config]
	path    string

	// reloaded receives a signal after each successful swap. Buffered so
	// a slow consumer never stalls the watcher.
	reloaded chan struct{}
}

// NewStore wraps an initial snapshot. path is the user config file to
// watch; empty disables watching.
func NewStore(initial *Config, path string) *Store {
	s := &Store{
		path:     path,
		reloaded: make(chan struct{}, 1),
	}
	s.current.Store(initial)
	return s
}

// Current returns the configuration snapshot in effect. The returned
// value must be treated as read-only; callers hold it for at most one
// tick and re-read on the next.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Reloaded exposes the post-swap signal for components that want to
// react faster than their next scheduled read.
func (s *Store) Reloaded() <-chan struct{} {
	return s.reloaded
}

// Reload re-runs the full layered load and installs the result if it
// validates. On failure the last-valid snapshot stays current and the
// error is returned for logging; the daemon never halts on a bad edit.
func (s *Store) Reload() error {
	cfg, err := loadLayers(s.path)
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		return err
	}

	s.current.Store(cfg)
	metrics.ConfigReloads.WithLabelValues("applied").Inc()

	select {
	case s.reloaded <- struct{}{}:
	default:
	}
	return nil
}

// Serve watches the config file until ctx is canceled. Implements the
// suture service contract. Watch errors restart the service through the
// supervisor's backoff rather than being retried inline.
func (s *Store) Serve(ctx context.Context) error {
	if s.path == "" {
		logging.Debug().Msg("No config file present, hot reload disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	events := make(chan error, 1)
	f := file.Provider(s.path)
	err := f.Watch(func(event interface{}, err error) {
		select {
		case events <- err:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Unwatch(); err != nil {
			logging.Warn().Err(err).Msg("Failed to stop config watcher")
		}
	}()

	logging.Info().Str("path", s.path).Msg("Watching config file for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case werr := <-events:
			if werr != nil {
				logging.Warn().Err(werr).Msg("Config watch event error")
				continue
			}
			if err := s.Reload(); err != nil {
				logging.Error().Err(err).Str("path", s.path).
					Msg("Config reload failed, keeping last valid configuration")
				continue
			}
			logging.Info().Str("path", s.path).Msg("Configuration reloaded")
		}
	}
}

func (s *Store) String() string { return "config-store" }
