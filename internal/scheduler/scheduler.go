// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package scheduler drives the poll-resolve-publish pipeline. A single
// ticker polls the session bus; each player session then gets its own
// serialized worker, so one player's slow cover lookup never delays the
// others or the next poll.
package scheduler

import (
	"context"
	"time"

	"github.com/presenced/presenced/internal/config"
	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metadata"
	"github.com/presenced/presenced/internal/metrics"
	"github.com/presenced/presenced/internal/models"
	"github.com/presenced/presenced/internal/presence"
	"github.com/presenced/presenced/internal/template"
)

// resolveTimeout bounds one cover art resolution. It is deliberately
// longer than the tick interval; stale jobs are replaced, not queued.
const resolveTimeout = 30 * time.Second

// Poller reports session changes observed on the bus.
type Poller interface {
	Poll(ctx context.Context, cfg *config.Config) ([]models.Change, error)
}

// ArtResolver finds cover art for a track.
type ArtResolver interface {
	Resolve(ctx context.Context, md *models.TrackMetadata, cfg *config.Config) (*models.ArtRef, error)
}

// Publisher mirrors sessions to Discord.
type Publisher interface {
	Publish(ctx context.Context, session *models.PlayerSession, texts presence.Texts, art *models.ArtRef, rule config.ResolvedPlayer, activityType config.ActivityType, cfg *config.Config) error
	Clear(ctx context.Context, busName string) error
	Drop(busName string)
}

// job is one unit of per-session work: render, resolve art, publish.
type job struct {
	session *models.PlayerSession
	cfg     *config.Config
}

// worker serializes the pipeline for one session. Its job channel holds
// at most one pending job; a newer snapshot replaces an unstarted older
// one.
type worker struct {
	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the tick loop and the per-session workers. It
// implements suture.Service.
type Scheduler struct {
	store     *config.Store
	poller    Poller
	resolver  ArtResolver
	publisher Publisher
	renderer  template.Renderer

	workers map[string]*worker
}

// New creates a scheduler wired to the given collaborators.
func New(store *config.Store, poller Poller, resolver ArtResolver, publisher Publisher, renderer template.Renderer) *Scheduler {
	return &Scheduler{
		store:     store,
		poller:    poller,
		resolver:  resolver,
		publisher: publisher,
		renderer:  renderer,
		workers:   make(map[string]*worker),
	}
}

// Serve runs the tick loop until the context is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	interval := s.store.Current().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.stopAllWorkers()

	logging.Info().Dur("interval", interval).Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
			// Hot reload can change the interval.
			if next := s.store.Current().Interval; next != interval {
				interval = next
				ticker.Reset(interval)
				logging.Info().Dur("interval", interval).Msg("Tick interval updated")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "scheduler"
}

func (s *Scheduler) tick(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(started).Seconds())
	}()

	cfg := s.store.Current()
	changes, err := s.poller.Poll(ctx, cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("Bus poll failed")
		return
	}

	for _, change := range changes {
		s.dispatch(ctx, cfg, change)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, cfg *config.Config, change models.Change) {
	session := change.Session

	if change.Kind == models.ChangeRemoved {
		s.stopWorker(session.BusName)
		if err := s.publisher.Clear(ctx, session.BusName); err != nil {
			logging.Warn().Err(err).Str("bus_name", session.BusName).Msg("Failed to clear presence for removed player")
		}
		s.publisher.Drop(session.BusName)
		logging.Info().Str("bus_name", session.BusName).Str("player", session.Identity).Msg("Player removed")
		return
	}

	if change.Kind == models.ChangeAdded {
		logging.Info().Str("bus_name", session.BusName).Str("player", session.Identity).Msg("Player appeared")
	}

	rule := cfg.PlayerRuleFor(session.Identity)
	if rule.Ignore {
		if err := s.publisher.Clear(ctx, session.BusName); err != nil {
			logging.Warn().Err(err).Str("bus_name", session.BusName).Msg("Failed to clear presence for ignored player")
		}
		return
	}

	s.workerFor(session.BusName).submit(job{session: session, cfg: cfg})
}

// workerFor returns the session's worker, starting one if needed.
func (s *Scheduler) workerFor(busName string) *worker {
	if w, ok := s.workers[busName]; ok {
		return w
	}

	wctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		jobs:   make(chan job, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.workers[busName] = w

	go func() {
		defer close(w.done)
		for {
			select {
			case <-wctx.Done():
				return
			case j := <-w.jobs:
				s.process(wctx, j)
			}
		}
	}()
	return w
}

func (s *Scheduler) stopWorker(busName string) {
	w, ok := s.workers[busName]
	if !ok {
		return
	}
	delete(s.workers, busName)
	w.cancel()
	<-w.done
}

func (s *Scheduler) stopAllWorkers() {
	for name := range s.workers {
		s.stopWorker(name)
	}
}

// submit hands a job to the worker, replacing any job it has not
// started yet. Dropping the stale snapshot is correct: the new one
// supersedes it.
func (w *worker) submit(j job) {
	for {
		select {
		case w.jobs <- j:
			return
		default:
		}
		select {
		case <-w.jobs:
		default:
		}
	}
}

// process runs the full pipeline for one session snapshot.
func (s *Scheduler) process(ctx context.Context, j job) {
	session, cfg := j.session, j.cfg
	rule := cfg.PlayerRuleFor(session.Identity)

	texts, err := s.render(session, cfg)
	if err != nil {
		logging.Warn().Err(err).Str("player", session.Identity).Msg("Template rendering failed")
		return
	}

	var art *models.ArtRef
	if session.Status != models.StatusStopped {
		resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
		art, err = s.resolver.Resolve(resolveCtx, &session.Metadata, cfg)
		cancel()
		if err != nil {
			logging.Debug().Err(err).Str("player", session.Identity).Msg("Cover art resolution failed")
			art = nil
		}
	}

	if err := s.publisher.Publish(ctx, session, texts, art, rule, s.activityType(session, rule, cfg), cfg); err != nil {
		logging.Debug().Err(err).Str("player", session.Identity).Msg("Presence publish failed")
	}
}

// activityType picks the effective activity type: per-player override,
// then content-type inference, then the configured default.
func (s *Scheduler) activityType(session *models.PlayerSession, rule config.ResolvedPlayer, cfg *config.Config) config.ActivityType {
	if rule.ActivityType != nil {
		return *rule.ActivityType
	}
	if cfg.ActivityType.UseContentType {
		if t, ok := metadata.InferActivityType(&session.Metadata); ok {
			return t
		}
	}
	return cfg.ActivityType.Default
}

func (s *Scheduler) render(session *models.PlayerSession, cfg *config.Config) (presence.Texts, error) {
	rctx := metadata.BuildContext(session, cfg.Template.UnknownText)

	var texts presence.Texts
	var err error
	if texts.Details, err = s.renderer.Render(cfg.Template.Detail, rctx); err != nil {
		return texts, err
	}
	if texts.State, err = s.renderer.Render(cfg.Template.State, rctx); err != nil {
		return texts, err
	}
	if texts.LargeText, err = s.renderer.Render(cfg.Template.LargeText, rctx); err != nil {
		return texts, err
	}
	texts.SmallText, err = s.renderer.Render(cfg.Template.SmallText, rctx)
	return texts, err
}
