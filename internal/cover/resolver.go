// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
	"github.com/presenced/presenced/internal/models"
)

// Resolver runs the full cover-art pipeline. Concurrent resolutions for
// the same fingerprint share one in-flight attempt; every success is
// written back to the cache before being returned.
type Resolver struct {
	cache  *Cache
	tags   TagReader
	client *http.Client
	group  singleflight.Group

	// Providers are rebuilt when a config reload swaps the provider
	// settings; breaker state restarts with them.
	mu        sync.Mutex
	provCfg   *config.CoverProviderConfig
	providers []Provider
}

// NewResolver wires the pipeline. tags may be nil when no tag-reading
// collaborator is available; the embedded-art step then skips itself.
func NewResolver(cache *Cache, tags TagReader, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: providerTimeout}
	}
	return &Resolver{cache: cache, tags: tags, client: client}
}

// Resolve returns an image reference for the track, or nil when every
// source comes up empty. Exhausting the pipeline is not an error.
func (r *Resolver) Resolve(ctx context.Context, md *models.TrackMetadata, cfg *config.Config) (*models.ArtRef, error) {
	fingerprint := Fingerprint(md)

	v, err, _ := r.group.Do(fingerprint, func() (interface{}, error) {
		return r.resolve(ctx, fingerprint, md, cfg)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*models.ArtRef), nil
}

func (r *Resolver) resolve(ctx context.Context, fingerprint string, md *models.TrackMetadata, cfg *config.Config) (*models.ArtRef, error) {
	// Step 1: disk cache.
	if entry, ok, err := r.cache.Get(fingerprint); err != nil {
		logging.Warn().Err(err).Msg("Cover cache read failed")
	} else if ok {
		metrics.CoverResolutions.WithLabelValues("cache").Inc()
		ref := entry.Ref
		return &ref, nil
	}

	// Steps 2-4: player-supplied URL, embedded art, sibling files. A
	// remote URL wins immediately; local bytes feed the upload hosts.
	source := directSource(md)
	if source != nil && source.url != "" {
		return r.writeback(fingerprint, source.url, source.kind, time.Time{}, &cfg.Cover), nil
	}
	if source == nil || len(source.data) == 0 {
		source = embeddedSource(md, r.tags)
	}
	if source == nil || len(source.data) == 0 {
		source = siblingSource(md, &cfg.Cover)
	}

	var localArt []byte
	if source != nil {
		localArt = source.data
		if err := r.cache.PutImage(fingerprint, localArt); err != nil {
			logging.Debug().Err(err).Msg("Cover image cache write failed")
		}
	} else if data, ok, err := r.cache.GetImage(fingerprint); err == nil && ok {
		localArt = data
	}

	// Step 5: the provider chain, in configured order. A provider error
	// only eliminates that provider for this resolution.
	req := &Request{Track: md, LocalArt: localArt}
	for _, provider := range r.providersFor(&cfg.Cover.Provider) {
		attemptCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		result, err := provider.Attempt(attemptCtx, req)
		cancel()

		if err != nil {
			metrics.ProviderAttempts.WithLabelValues(provider.Name(), "error").Inc()
			logging.Warn().Err(err).Str("provider", provider.Name()).
				Msg("Cover provider failed")
			continue
		}
		if result == nil {
			metrics.ProviderAttempts.WithLabelValues(provider.Name(), "miss").Inc()
			continue
		}

		metrics.ProviderAttempts.WithLabelValues(provider.Name(), "hit").Inc()
		return r.writeback(fingerprint, result.URL, provider.Name(), result.ExpiresAt, &cfg.Cover), nil
	}

	metrics.CoverResolutions.WithLabelValues("none").Inc()
	return nil, nil
}

// writeback stores a successful resolution and returns its reference.
// The provider's expiry wins over the configured TTL; a zero TTL means
// entries never expire on their own.
func (r *Resolver) writeback(fingerprint, url, sourceName string, expiresAt time.Time, cfg *config.CoverConfig) *models.ArtRef {
	now := time.Now()
	if expiresAt.IsZero() && cfg.TTL > 0 {
		expiresAt = now.Add(cfg.TTL)
	}

	entry := &models.CoverArtEntry{
		Ref:       models.ArtRef{URL: url},
		Source:    sourceName,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := r.cache.Put(fingerprint, entry); err != nil {
		logging.Warn().Err(err).Msg("Cover cache write failed")
	}

	metrics.CoverResolutions.WithLabelValues(sourceName).Inc()
	ref := entry.Ref
	return &ref
}

// providersFor returns the chain for the current provider settings,
// rebuilding it only when a reload swapped the snapshot.
func (r *Resolver) providersFor(cfg *config.CoverProviderConfig) []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provCfg != cfg {
		r.providers = buildProviders(cfg, r.client)
		r.provCfg = cfg
	}
	return r.providers
}
