// Package pipeline runs one scrape cycle across every configured venue.
//
// Each venue runs in its own goroutine through the same sequence: fetch the listing
// page (with retries), parse it, look up the venue, reconcile against stored events,
// insert the new ones and announce them. A venue that fails or panics is reported
// and never affects the others.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/metrics"
	"github.com/pfrederiksen/avl-events/internal/notifier"
	"github.com/pfrederiksen/avl-events/internal/scraper"
)

const (
	// DefaultFetchAttempts is how many times a listing page is requested per cycle
	DefaultFetchAttempts = 2
	// DefaultRetryDelay is the initial wait between fetch attempts
	DefaultRetryDelay = 2 * time.Second
)

// Fetcher retrieves a page body
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Store is the storage the pipeline reads and writes
type Store interface {
	VenueByName(ctx context.Context, name string) (*event.Venue, error)
	EventsByVenue(ctx context.Context, venueID int64) ([]*event.Event, error)
	CreateEvent(ctx context.Context, evt *event.Event) (*event.Event, error)
}

// Options carries the optional collaborators and retry settings
type Options struct {
	Notifier      notifier.Notifier
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	FetchAttempts int
	RetryDelay    time.Duration
}

// Pipeline scrapes every extractor's venue into the store
type Pipeline struct {
	fetcher    Fetcher
	extractors []scraper.Extractor
	store      Store
	normalizer *event.Normalizer
	notifier   notifier.Notifier
	metrics    *metrics.Metrics
	log        *logger.Logger
	attempts   int
	retryDelay time.Duration
	now        func() time.Time
}

// New creates a pipeline. Zero-valued options get defaults.
func New(fetcher Fetcher, extractors []scraper.Extractor, store Store, norm *event.Normalizer, opts Options) *Pipeline {
	if opts.FetchAttempts < 1 {
		opts.FetchAttempts = DefaultFetchAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	return &Pipeline{
		fetcher:    fetcher,
		extractors: extractors,
		store:      store,
		normalizer: norm,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		attempts:   opts.FetchAttempts,
		retryDelay: opts.RetryDelay,
		now:        time.Now,
	}
}

// Extractors returns the venues this pipeline scrapes
func (p *Pipeline) Extractors() []scraper.Extractor {
	return p.extractors
}

// ScrapeAll runs every venue pipeline concurrently and waits for all of them.
// It never fails as a whole: per-venue problems are recorded in the report.
// Venues appear in the report in extractor order.
func (p *Pipeline) ScrapeAll(ctx context.Context) *CycleReport {
	report := &CycleReport{
		ID:        uuid.New(),
		StartedAt: p.now(),
		Venues:    make([]VenueReport, len(p.extractors)),
	}

	p.log.Info("Starting scrape cycle", logger.Fields{
		"cycle_id": report.ID.String(),
		"venues":   len(p.extractors),
	})

	var wg sync.WaitGroup
	for i, ex := range p.extractors {
		wg.Add(1)
		go func(i int, ex scraper.Extractor) {
			defer wg.Done()
			report.Venues[i] = p.scrapeVenue(ctx, ex)
		}(i, ex)
	}
	wg.Wait()

	report.FinishedAt = p.now()

	failed := report.Failed()
	fields := logger.Fields{
		"cycle_id":      report.ID.String(),
		"inserted":      report.TotalInserted(),
		"failed_venues": len(failed),
		"duration":      report.Duration().String(),
	}
	if len(failed) > 0 {
		p.log.Warn("Scrape cycle finished with failures", fields)
	} else {
		p.log.Info("Scrape cycle finished", fields)
	}

	return report
}

// scrapeVenue runs one venue's steps in order; any panic becomes the venue's error
func (p *Pipeline) scrapeVenue(ctx context.Context, ex scraper.Extractor) (rep VenueReport) {
	start := time.Now()
	rep = VenueReport{Venue: ex.Venue(), URL: ex.URL(), Rejected: make([]RecordError, 0)}

	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("panic: %v", r)
			p.log.Error("Venue pipeline panicked", logger.Fields{
				"venue": rep.Venue,
				"stack": string(debug.Stack()),
			}, rep.Err)
		}
		rep.Duration = time.Since(start)
		p.metrics.VenueDone(rep.Venue, rep.Scraped, rep.Inserted, rep.Duplicates, rep.Failed(), rep.Duration)
		for _, r := range rep.Rejected {
			p.metrics.Rejected(rep.Venue, string(r.Kind))
		}
	}()

	page, err := p.fetch(ctx, rep.URL)
	if err != nil {
		rep.Err = err
		p.log.Error("Failed to fetch venue page", logger.Fields{"venue": rep.Venue, "url": rep.URL}, err)
		return rep
	}

	scraped, err := ex.Parse(page)
	if err != nil {
		rep.Err = fmt.Errorf("parsing %s: %w", rep.URL, err)
		p.log.Error("Failed to parse venue page", logger.Fields{"venue": rep.Venue}, err)
		return rep
	}
	rep.Scraped = len(scraped)

	if len(scraped) == 0 {
		p.log.Info("No events found on venue page", logger.Fields{"venue": rep.Venue, "url": rep.URL})
	}

	venue, err := p.store.VenueByName(ctx, rep.Venue)
	if err != nil {
		rep.Err = fmt.Errorf("looking up venue: %w", err)
		p.log.Error("Venue lookup failed", logger.Fields{"venue": rep.Venue}, err)
		return rep
	}

	existing, err := p.store.EventsByVenue(ctx, venue.ID)
	if err != nil {
		rep.Err = fmt.Errorf("listing events: %w", err)
		p.log.Error("Failed to list venue events", logger.Fields{"venue": rep.Venue}, err)
		return rep
	}

	plan := event.Reconcile(venue, scraped, existing, p.normalizer)
	rep.Duplicates = len(plan.Duplicates)
	rep.Rejected = append(rep.Rejected, plan.Rejected...)

	for _, r := range plan.Rejected {
		p.log.Warn("Skipped scraped event", logger.Fields{
			"venue": rep.Venue,
			"title": r.Title,
			"kind":  string(r.Kind),
			"error": r.Err.Error(),
		})
	}

	inserted := make([]*event.Event, 0, len(plan.Insert))
	for _, evt := range plan.Insert {
		stored, err := p.store.CreateEvent(ctx, evt)
		if err != nil {
			rep.Rejected = append(rep.Rejected, RecordError{Title: evt.Title, Kind: event.RejectStorage, Err: err})
			p.log.Error("Failed to store event", logger.Fields{"venue": rep.Venue, "title": evt.Title}, err)
			continue
		}
		inserted = append(inserted, stored)
	}
	rep.Inserted = len(inserted)

	p.log.Info("Venue scraped", logger.Fields{
		"venue":      rep.Venue,
		"scraped":    rep.Scraped,
		"inserted":   rep.Inserted,
		"duplicates": rep.Duplicates,
		"rejected":   len(rep.Rejected),
	})

	if len(inserted) > 0 && p.notifier != nil {
		if err := p.notifier.Notify(ctx, venue, inserted); err != nil {
			p.log.Warn("Failed to send notifications", logger.Fields{
				"venue": rep.Venue,
				"error": err.Error(),
			})
		}
	}

	return rep
}

// fetch requests url up to p.attempts times; client errors are not retried
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	var page string

	op := func() error {
		body, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			var fe *scraper.FetchError
			if errors.As(err, &fe) && !fe.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		page = body
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		p.log.Warn("Retrying venue page fetch", logger.Fields{
			"url":   url,
			"wait":  wait.String(),
			"error": err.Error(),
		})
	})
	if err != nil {
		return "", err
	}
	return page, nil
}
