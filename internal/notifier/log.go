package notifier

import (
	"context"

	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/logger"
)

// LogNotifier logs each inserted event instead of sending it anywhere
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that writes to l, or to the default logger when l is nil
func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

// Notify logs one line per event
func (n *LogNotifier) Notify(_ context.Context, venue *event.Venue, events []*event.Event) error {
	l := n.log
	if l == nil {
		l = logger.Default()
	}

	for _, evt := range events {
		l.Info("New event", logger.Fields{
			"venue":      venue.Name,
			"event_id":   evt.ID,
			"title":      evt.Title,
			"start_date": evt.StartDate.Format("2006-01-02 15:04"),
			"summary":    FormatEvent(venue, evt),
		})
	}
	return nil
}
