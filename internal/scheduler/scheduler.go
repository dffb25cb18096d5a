// Package scheduler runs scrape cycles on a cron schedule and on demand.
//
// At most one cycle runs at a time. The Idle/Running flag is an atomic owned by the
// Scheduler and is claimed by compare-and-swap; a trigger that loses the race is a
// logged no-op. Each cycle first retires stale events and then scrapes every venue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/metrics"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
)

// Defaults for the service configuration; the scheduler itself takes its Config as given
const (
	DefaultDaily        = "0 6 * * *"
	DefaultInterval     = "0 */6 * * *"
	DefaultStartupDelay = 30 * time.Second
)

var (
	// ErrCycleInProgress is returned by TriggerUpdate while another cycle runs
	ErrCycleInProgress = errors.New("scrape cycle already in progress")
	// ErrAlreadyStarted is returned by Start on a running scheduler
	ErrAlreadyStarted = errors.New("scheduler already started")
)

const (
	stateIdle int32 = iota
	stateRunning
)

// Runner performs the scrape part of a cycle
type Runner interface {
	ScrapeAll(ctx context.Context) *pipeline.CycleReport
}

// Config controls timers and cleanup. An empty spec disables that timer, so two
// empty specs mean manual triggers only. A zero StartupDelay runs a cycle right
// after Start and a negative one disables the initial run.
type Config struct {
	Daily        string
	Interval     string
	StartupDelay time.Duration
	Location     *time.Location
	MaxAge       time.Duration
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
}

// Summary is a compact view of a finished cycle
type Summary struct {
	CycleID      string    `json:"cycle_id"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   int64     `json:"duration_ms"`
	Inserted     int       `json:"inserted"`
	FailedVenues []string  `json:"failed_venues"`
	Retired      int       `json:"retired"`
}

// Status reports what the scheduler is doing
type Status struct {
	Running    bool       `json:"running"`
	Started    bool       `json:"started"`
	Schedule   string     `json:"schedule"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastReport *Summary   `json:"last_report,omitempty"`
}

// Scheduler guards scrape cycles and fires them on schedule
type Scheduler struct {
	state atomic.Int32

	runner Runner
	store  EventStore
	cfg    Config
	log    *logger.Logger
	now    func() time.Time

	mu sync.Mutex
	// base is the context for scheduled cycles of the current Start; Stop cancels it
	base       context.Context
	cancel     context.CancelFunc
	started    bool
	cron       *cron.Cron
	startup    *time.Timer
	startupAt  time.Time
	done       chan struct{}
	lastReport *pipeline.CycleReport
}

// New creates an idle, unstarted scheduler
func New(runner Runner, store EventStore, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	return &Scheduler{
		runner: runner,
		store:  store,
		cfg:    cfg,
		log:    cfg.Logger,
		now:    time.Now,
	}
}

// TriggerUpdate runs one cycle synchronously. It returns ErrCycleInProgress without
// doing anything when a cycle is already running.
func (s *Scheduler) TriggerUpdate(ctx context.Context) (*pipeline.CycleReport, error) {
	return s.runCycle(ctx, "manual")
}

// runCycle claims the Running state, runs cleanup then the scrape, and always
// releases the state, even when the cycle panics
func (s *Scheduler) runCycle(ctx context.Context, trigger string) (report *pipeline.CycleReport, err error) {
	// Claim and publish done together so Stop never sees Running without it
	s.mu.Lock()
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		s.mu.Unlock()
		s.log.Info("Scrape already in progress, skipping", logger.Fields{"trigger": trigger})
		s.cfg.Metrics.CycleSkipped()
		return nil, ErrCycleInProgress
	}
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	start := time.Now()
	s.cfg.Metrics.CycleStarted()

	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("scrape cycle panicked: %v", r)
			s.log.Error("Scrape cycle panicked", logger.Fields{"trigger": trigger}, err)
			s.cfg.Metrics.CycleFinished(time.Since(start), 1)
		}
		s.state.Store(stateIdle)
		close(done)
	}()

	s.log.Info("Running scheduled update", logger.Fields{"trigger": trigger})

	cleanup := RetireStale(ctx, s.store, s.now(), s.cfg.MaxAge)
	s.cfg.Metrics.Retired(cleanup.Retired)
	if cleanup.Err != nil {
		s.log.Error("Cleanup failed", nil, cleanup.Err)
	} else {
		s.log.Info("Cleaned up old events", logger.Fields{
			"checked":  cleanup.Checked,
			"retired":  cleanup.Retired,
			"failures": len(cleanup.Failures),
		})
	}

	report = s.runner.ScrapeAll(ctx)
	report.Cleanup = &cleanup

	s.cfg.Metrics.CycleFinished(time.Since(start), len(report.Failed()))

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	return report, nil
}

// scheduled is the cron and startup timer entry point
func (s *Scheduler) scheduled(trigger string) func() {
	return func() {
		s.mu.Lock()
		if trigger == "startup" {
			s.startupAt = time.Time{}
		}
		ctx := s.base
		s.mu.Unlock()

		if _, err := s.runCycle(ctx, trigger); err != nil && !errors.Is(err, ErrCycleInProgress) {
			s.log.Error("Scheduled update failed", logger.Fields{"trigger": trigger}, err)
		}
	}
}

// Start registers the cron jobs and arms the startup run
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithLocation(s.cfg.Location))
	for _, spec := range []string{s.cfg.Daily, s.cfg.Interval} {
		if spec == "" {
			continue
		}
		if _, err := c.AddFunc(spec, s.scheduled("cron")); err != nil {
			return fmt.Errorf("scheduling %q: %w", spec, err)
		}
	}
	c.Start()
	s.cron = c
	s.base, s.cancel = context.WithCancel(context.Background())

	if s.cfg.StartupDelay >= 0 {
		s.startupAt = s.now().Add(s.cfg.StartupDelay)
		s.startup = time.AfterFunc(s.cfg.StartupDelay, s.scheduled("startup"))
	}

	s.started = true
	s.log.Info("Scheduler started", logger.Fields{
		"schedule":      s.schedule(),
		"startup_delay": s.cfg.StartupDelay.String(),
	})
	return nil
}

// Stop halts the timers and waits, bounded by ctx, for an in-flight cycle.
// Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false

	cronDone := s.cron.Stop()
	if s.startup != nil {
		s.startup.Stop()
		s.startup = nil
		s.startupAt = time.Time{}
	}
	done := s.done
	cancel := s.cancel
	s.mu.Unlock()
	// Scheduled cycles of this run end with it; the next Start gets a fresh context
	defer cancel()

	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.log.Info("Scheduler stopped", nil)
	return nil
}

// Status reports the current state, schedule and last result
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:  s.state.Load() == stateRunning,
		Started:  s.started,
		Schedule: s.schedule(),
	}

	if s.lastReport != nil {
		r := s.lastReport
		finished := r.FinishedAt
		st.LastRun = &finished

		summary := &Summary{
			CycleID:      r.ID.String(),
			FinishedAt:   r.FinishedAt,
			DurationMS:   r.Duration().Milliseconds(),
			Inserted:     r.TotalInserted(),
			FailedVenues: make([]string, 0),
		}
		for _, v := range r.Failed() {
			summary.FailedVenues = append(summary.FailedVenues, v.Venue)
		}
		if r.Cleanup != nil {
			summary.Retired = r.Cleanup.Retired
		}
		st.LastReport = summary
	}

	if s.started {
		var next time.Time
		for _, e := range s.cron.Entries() {
			if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
				next = e.Next
			}
		}
		if !s.startupAt.IsZero() && (next.IsZero() || s.startupAt.Before(next)) {
			next = s.startupAt
		}
		if !next.IsZero() {
			st.NextRun = &next
		}
	}

	return st
}

func (s *Scheduler) schedule() string {
	return Describe(s.cfg.Daily, s.cfg.Interval)
}
