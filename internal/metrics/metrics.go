// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package metrics provides Prometheus instrumentation for the daemon:
// scheduler ticks, presence publishes and suppressions, cover-art cache
// efficiency, provider attempts, and circuit-breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presenced_tick_duration_seconds",
			Help:    "Duration of scheduler ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presenced_sessions_active",
			Help: "Number of currently tracked player sessions",
		},
	)

	SessionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_session_changes_total",
			Help: "Session changes detected per kind",
		},
		[]string{"kind"}, // "metadata", "status", "seek", "tick", "added", "removed"
	)

	// Player Tracker metrics
	BusPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_bus_poll_errors_total",
			Help: "Total number of D-Bus polling errors",
		},
	)

	// Presence Publisher metrics
	PresencePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_presence_publishes_total",
			Help: "Presence updates sent to Discord",
		},
		[]string{"result"}, // "sent", "cleared", "suppressed", "error"
	)

	PresenceReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_presence_reconnects_total",
			Help: "Total number of Discord IPC reconnection attempts",
		},
	)

	// Cover Art Resolver metrics
	CoverCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_cover_cache_hits_total",
			Help: "Cover-art disk cache hits",
		},
	)

	CoverCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_cover_cache_misses_total",
			Help: "Cover-art disk cache misses",
		},
	)

	CoverResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_cover_resolutions_total",
			Help: "Cover-art resolutions per source",
		},
		[]string{"source"}, // "cache", "direct", "embedded", "local", provider names, "none"
	)

	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_provider_attempts_total",
			Help: "Cover-art provider attempts and outcomes",
		},
		[]string{"provider", "outcome"}, // outcome: "hit", "miss", "error"
	)

	// Circuit breaker metrics (one breaker per cover-art provider)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presenced_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Config Supervisor metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_config_reloads_total",
			Help: "Configuration reload attempts",
		},
		[]string{"result"}, // "applied", "rejected"
	)
)
