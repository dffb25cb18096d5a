package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// MessageTypeCreated is the type of the message sent for each inserted event
const MessageTypeCreated = "event.created"

// Notifier defines the interface for announcing newly inserted events
type Notifier interface {
	// Notify announces events that were just stored for venue
	Notify(ctx context.Context, venue *event.Venue, events []*event.Event) error
}

// Message is the payload published for one inserted event
type Message struct {
	Type           string    `json:"type"`
	EventID        int64     `json:"event_id"`
	VenueID        int64     `json:"venue_id"`
	Venue          string    `json:"venue"`
	Title          string    `json:"title"`
	StartDate      time.Time `json:"start_date"`
	StartTime      string    `json:"start_time,omitempty"`
	Price          string    `json:"price,omitempty"`
	TicketURL      string    `json:"ticket_url,omitempty"`
	Genre          string    `json:"genre,omitempty"`
	AgeRestriction string    `json:"age_restriction,omitempty"`
	IsSoldOut      bool      `json:"is_sold_out"`
}

// NewMessage builds the created message for evt
func NewMessage(venue *event.Venue, evt *event.Event) Message {
	return Message{
		Type:           MessageTypeCreated,
		EventID:        evt.ID,
		VenueID:        venue.ID,
		Venue:          venue.Name,
		Title:          evt.Title,
		StartDate:      evt.StartDate,
		StartTime:      evt.StartTime,
		Price:          evt.Price,
		TicketURL:      evt.TicketURL,
		Genre:          evt.Genre,
		AgeRestriction: evt.AgeRestriction,
		IsSoldOut:      evt.IsSoldOut,
	}
}

// FormatEvent renders a one-line human summary such as
// "Jazz Night @ The Grey Eagle, Fri Jun 27 8:00 PM ($15)"
func FormatEvent(venue *event.Venue, evt *event.Event) string {
	var b strings.Builder

	b.WriteString(evt.Title)
	if venue != nil && venue.Name != "" {
		fmt.Fprintf(&b, " @ %s", venue.Name)
	}

	when := evt.StartDate.Format("Mon Jan 2")
	if evt.StartDate.Hour() != 0 || evt.StartDate.Minute() != 0 {
		when += evt.StartDate.Format(" 3:04 PM")
	}
	fmt.Fprintf(&b, ", %s", when)

	switch {
	case evt.IsSoldOut:
		b.WriteString(" (SOLD OUT)")
	case evt.Price != "":
		fmt.Fprintf(&b, " (%s)", evt.Price)
	}

	return b.String()
}

// Multi sends to every notifier and joins their errors
type Multi []Notifier

// Notify calls each notifier in order, even after one fails
func (m Multi) Notify(ctx context.Context, venue *event.Venue, events []*event.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, venue, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
