package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/avl-events/internal/config"
	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/metrics"
	"github.com/pfrederiksen/avl-events/internal/notifier"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
	"github.com/pfrederiksen/avl-events/internal/scheduler"
	"github.com/pfrederiksen/avl-events/internal/scraper"
	"github.com/pfrederiksen/avl-events/internal/storage"
)

// appOptions selects how the components are built
type appOptions struct {
	DryRun bool     // in-memory store, no Redis
	Venues []string // restrict scraping to these venues
}

// app holds the wired components of one command run
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	store     storage.Store
	metrics   *metrics.Metrics
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	closers   []func() error
}

// newApp opens the store, seeds it when empty and wires the pipeline and scheduler
func newApp(ctx context.Context, cfg *config.Config, l *logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: l, metrics: metrics.New()}

	if err := a.openStore(ctx, opts.DryRun); err != nil {
		return nil, err
	}

	extractors, err := buildExtractors(cfg, opts.Venues)
	if err != nil {
		a.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	notifiers := notifier.Multi{notifier.NewLogNotifier(l)}
	if cfg.Redis.URL != "" && !opts.DryRun {
		rn, err := notifier.NewRedisNotifier(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing redis notifier: %w", err)
		}
		a.closers = append(a.closers, rn.Close)
		notifiers = append(notifiers, rn)
	}

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		Timeout:      cfg.Timeout(),
		UserAgent:    cfg.Scraper.UserAgent,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	})
	normalizer := event.NewNormalizer(event.DateOptions{YearPolicy: cfg.YearPolicy(), Location: loc})

	a.pipeline = pipeline.New(fetcher, extractors, a.store, normalizer, pipeline.Options{
		Notifier:      notifiers,
		Metrics:       a.metrics,
		Logger:        l,
		FetchAttempts: cfg.Scraper.FetchAttempts,
		RetryDelay:    cfg.RetryDelay(),
	})

	a.scheduler = scheduler.New(a.pipeline, a.store, scheduler.Config{
		Daily:        cfg.Schedule.Daily,
		Interval:     cfg.Schedule.Interval,
		StartupDelay: cfg.StartupDelay(),
		Location:     loc,
		MaxAge:       cfg.MaxAge(),
		Metrics:      a.metrics,
		Logger:       l,
	})

	return a, nil
}

// openStore opens the configured database, or a memory store for dry runs, and
// seeds the configured venues when none are stored
func (a *app) openStore(ctx context.Context, dryRun bool) error {
	var store storage.Store
	if dryRun {
		store = storage.NewMemory()
	} else {
		s, err := storage.NewSQLite(a.cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		store = s
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	venues, err := store.AllVenues(ctx)
	if err != nil {
		a.Close()
		return fmt.Errorf("listing venues: %w", err)
	}
	if len(venues) > 0 {
		return nil
	}

	created, err := storage.Seed(ctx, store, a.cfg.SeedVenues())
	if err != nil {
		a.Close()
		return fmt.Errorf("seeding venues: %w", err)
	}
	a.log.Info("Seeded venues", logger.Fields{"count": len(created)})
	return nil
}

// Close releases the store and notifier connections
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildExtractors returns the extractors of the enabled venues, with URL overrides
// applied, optionally narrowed to only
func buildExtractors(cfg *config.Config, only []string) ([]scraper.Extractor, error) {
	enabled := cfg.EnabledVenues()
	names := make([]string, 0, len(enabled))
	overrides := make(map[string]string)
	for _, v := range enabled {
		names = append(names, v.Name)
		if v.URL != "" {
			overrides[v.Name] = v.URL
		}
	}

	extractors, err := scraper.Select(scraper.DefaultExtractors(), names)
	if err != nil {
		return nil, err
	}
	for i, ex := range extractors {
		if url, ok := overrides[ex.Venue()]; ok {
			extractors[i] = scraper.WithURL(ex, url)
		}
	}

	if len(only) > 0 {
		return scraper.Select(extractors, only)
	}
	return extractors, nil
}
