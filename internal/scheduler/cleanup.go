package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
)

// DefaultMaxAge is how long after its start an upcoming event is retired
const DefaultMaxAge = 30 * 24 * time.Hour

// EventStore is the storage cleanup reads and updates
type EventStore interface {
	AllEvents(ctx context.Context) ([]*event.Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status event.Status) error
}

// RetireStale moves upcoming events that started more than maxAge before now to past.
// Cancelled and past events are left alone. A failed update is recorded and the pass
// continues with the next event.
func RetireStale(ctx context.Context, store EventStore, now time.Time, maxAge time.Duration) pipeline.CleanupReport {
	report := pipeline.CleanupReport{Failures: make([]pipeline.CleanupFailure, 0)}

	events, err := store.AllEvents(ctx)
	if err != nil {
		report.Err = fmt.Errorf("listing events: %w", err)
		return report
	}
	report.Checked = len(events)

	for _, evt := range events {
		if !evt.ShouldRetire(now, maxAge) {
			continue
		}
		if err := store.UpdateEventStatus(ctx, evt.ID, event.StatusPast); err != nil {
			report.Failures = append(report.Failures, pipeline.CleanupFailure{EventID: evt.ID, Title: evt.Title, Err: err})
			continue
		}
		report.Retired++
	}

	return report
}
